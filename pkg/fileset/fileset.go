// Package fileset builds the ordered list of files a SendSession offers to
// a peer: single files, whole directories (preserving the top-level
// directory name in transmitted paths), and inline text snippets.
package fileset

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-localsend/localgo/pkg/core"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/sirupsen/logrus"
)

// previewThreshold is the byte-length under which an inline-text file's
// full content is also mirrored into its FileDescriptor.Preview field.
const previewThreshold = 1024

// Collection is an insertion-ordered set of SendingFiles, matching the
// Rust original's LinkedHashMap-backed SendingFiles container.
type Collection struct {
	files []*core.SendingFile
}

// New returns an empty Collection.
func New() *Collection {
	return &Collection{}
}

// Files returns the files in stable insertion order.
func (c *Collection) Files() []*core.SendingFile {
	return c.files
}

// ToDescriptorMap builds the file_id -> FileDescriptor map sent as the
// "files" field of a PrepareUploadRequest.
func (c *Collection) ToDescriptorMap() map[string]model.FileDescriptor {
	out := make(map[string]model.FileDescriptor, len(c.files))
	for _, f := range c.files {
		out[f.Descriptor.ID] = f.Descriptor
	}
	return out
}

func (c *Collection) append(descriptor model.FileDescriptor, path *string) *core.SendingFile {
	sf := &core.SendingFile{
		Index:      len(c.files),
		Descriptor: descriptor,
		Status:     core.FileStatusQueue,
		Path:       path,
	}
	c.files = append(c.files, sf)
	return sf
}

// AddFile stats path, derives file_name from its basename (or the override
// when non-nil) and file_type from its extension, and appends it.
func (c *Collection) AddFile(path string, overrideName *string) (*core.SendingFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, use AddDir", path)
	}

	name := filepath.Base(path)
	if overrideName != nil {
		name = *overrideName
	}

	descriptor := model.FileDescriptor{
		ID:       core.NewID(),
		FileName: name,
		Size:     uint64(info.Size()),
		FileType: model.ClassifyExtension(filepath.Ext(path)),
	}
	p := path
	return c.append(descriptor, &p), nil
}

// AddDir recursively walks path, skipping non-regular entries. Each file's
// transmitted name is computed relative to path's *parent* directory, so
// the top-level directory name is preserved in the transmitted path, with
// separators normalized to "/". Entries whose relative path cannot be
// computed are logged and skipped rather than aborting the whole walk.
func (c *Collection) AddDir(path string) error {
	cleaned := filepath.Clean(path)
	base := filepath.Dir(cleaned)

	return filepath.WalkDir(cleaned, func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(base, entryPath)
		if relErr != nil {
			logrus.Warnf("skipping %s: cannot compute relative path: %v", entryPath, relErr)
			return nil
		}
		name := filepath.ToSlash(rel)

		if _, err := c.AddFile(entryPath, &name); err != nil {
			logrus.Warnf("skipping %s: %v", entryPath, err)
		}
		return nil
	})
}

// AddText adds an inline-text file with no backing path. Its name is
// derived from the MD5 hash of the text (matching the Rust original's
// naming scheme); preview is populated automatically when the text is
// shorter than previewThreshold bytes.
func (c *Collection) AddText(text string) *core.SendingFile {
	sum := md5.Sum([]byte(text))
	hash := hex.EncodeToString(sum[:])
	name := hash + ".txt"

	descriptor := model.FileDescriptor{
		ID:       core.NewID(),
		FileName: name,
		Size:     uint64(len(text)),
		FileType: model.FileTypeText,
		Hash:     &hash,
	}
	if len(text) < previewThreshold {
		preview := text
		descriptor.Preview = &preview
	}

	return c.append(descriptor, nil)
}
