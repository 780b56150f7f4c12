package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-localsend/localgo/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFile_DerivesNameSizeAndType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	c := New()
	sf, err := c.AddFile(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "hello.txt", sf.Descriptor.FileName)
	assert.Equal(t, uint64(5), sf.Descriptor.Size)
	assert.Equal(t, model.FileTypeText, sf.Descriptor.FileType)
	require.NotNil(t, sf.Path)
	assert.Equal(t, path, *sf.Path)
}

func TestAddDir_PreservesTopLevelDirectoryName(t *testing.T) {
	root := t.TempDir()
	topDir := filepath.Join(root, "D")
	nested := filepath.Join(topDir, "a")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "b.txt"), []byte("x"), 0o644))

	c := New()
	require.NoError(t, c.AddDir(topDir))

	require.Len(t, c.Files(), 1)
	assert.Equal(t, "D/a/b.txt", c.Files()[0].Descriptor.FileName)
}

func TestAddText_ShortTextGetsPreview(t *testing.T) {
	c := New()
	sf := c.AddText("hello world")

	assert.Equal(t, model.FileTypeText, sf.Descriptor.FileType)
	require.NotNil(t, sf.Descriptor.Preview)
	assert.Equal(t, "hello world", *sf.Descriptor.Preview)
	require.NotNil(t, sf.Descriptor.Hash)
	assert.Nil(t, sf.Path)
}

func TestAddText_LongTextHasNoPreview(t *testing.T) {
	long := make([]byte, previewThreshold+1)
	for i := range long {
		long[i] = 'a'
	}
	c := New()
	sf := c.AddText(string(long))
	assert.Nil(t, sf.Descriptor.Preview)
}

func TestCollection_FilesPreserveInsertionOrder(t *testing.T) {
	c := New()
	c.AddText("one")
	c.AddText("two")
	c.AddText("three")

	files := c.Files()
	require.Len(t, files, 3)
	for i, f := range files {
		assert.Equal(t, i, f.Index)
	}
}
