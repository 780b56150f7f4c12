package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-localsend/localgo/pkg/config"
	"github.com/go-localsend/localgo/pkg/core"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/go-localsend/localgo/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, quickSave bool) *config.Config {
	t.Helper()
	return &config.Config{
		Alias:          "receiver",
		HTTPSEnabled:   false,
		DestinationDir: t.TempDir(),
		QuickSave:      quickSave,
	}
}

func prepareRequest(t *testing.T, remoteAddr string, files map[string]model.FileDescriptor) *http.Request {
	t.Helper()
	body, err := json.Marshal(model.PrepareUploadRequest{
		Info:  model.RegisterDto{Alias: "sender", Fingerprint: "sender-fp"},
		Files: files,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/localsend/v2/prepare-upload", bytes.NewReader(body))
	req.RemoteAddr = remoteAddr
	return req
}

func TestPrepareUpload_HappyPathV2QuickSave(t *testing.T) {
	cfg := newTestConfig(t, true)
	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: true})
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "hello.txt", Size: 5},
	})
	rec := httptest.NewRecorder()
	h.PrepareUpload(route.V2)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PrepareUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Files, "F")
	token := resp.Files["F"]

	uploadURL := "/api/localsend/v2/upload?fileId=F&token=" + token + "&sessionId=" + resp.SessionID
	uploadReq := httptest.NewRequest(http.MethodPost, uploadURL, bytes.NewBufferString("hello"))
	uploadReq.RemoteAddr = "10.0.0.2:9001"
	uploadRec := httptest.NewRecorder()
	h.Upload(route.V2)(uploadRec, uploadReq)

	require.Equal(t, http.StatusOK, uploadRec.Code)
	data, err := os.ReadFile(filepath.Join(cfg.DestinationDir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestPrepareUpload_BusyReturnsSessionBlocked(t *testing.T) {
	cfg := newTestConfig(t, true)
	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: true})
	state.ReceiveSession = core.NewReceiveSession(model.Device{IP: "10.0.0.9"}, cfg.DestinationDir)
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "hello.txt", Size: 5},
	})
	rec := httptest.NewRecorder()
	h.PrepareUpload(route.V2)(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPrepareUpload_DeclinedRemovesSession(t *testing.T) {
	cfg := newTestConfig(t, false)
	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir})
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "hello.txt", Size: 5},
	})
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.PrepareUpload(route.V2)(rec, req)
		close(done)
	}()

	offer := <-state.ServerTx
	_, ok := offer.(core.SelectedFiles)
	require.True(t, ok)
	state.ClientRx <- core.Declined{}
	<-done

	assert.Equal(t, http.StatusForbidden, rec.Code)

	state.Lock()
	defer state.Unlock()
	assert.Nil(t, state.ReceiveSession, "declined session must be removed")
}

func TestUpload_TokenReplayRejected(t *testing.T) {
	cfg := newTestConfig(t, true)
	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: true})
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "hello.txt", Size: 5},
	})
	rec := httptest.NewRecorder()
	h.PrepareUpload(route.V2)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PrepareUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	token := resp.Files["F"]

	uploadURL := "/api/localsend/v2/upload?fileId=F&token=" + token + "&sessionId=" + resp.SessionID
	first := httptest.NewRequest(http.MethodPost, uploadURL, bytes.NewBufferString("hello"))
	first.RemoteAddr = "10.0.0.2:9001"
	firstRec := httptest.NewRecorder()
	h.Upload(route.V2)(firstRec, first)
	require.Equal(t, http.StatusOK, firstRec.Code)

	second := httptest.NewRequest(http.MethodPost, uploadURL, bytes.NewBufferString("hello"))
	second.RemoteAddr = "10.0.0.2:9002"
	secondRec := httptest.NewRecorder()
	h.Upload(route.V2)(secondRec, second)
	assert.Equal(t, http.StatusForbidden, secondRec.Code)
}

func TestUpload_IPMismatchRejected(t *testing.T) {
	cfg := newTestConfig(t, true)
	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: true})
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "hello.txt", Size: 5},
	})
	rec := httptest.NewRecorder()
	h.PrepareUpload(route.V2)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PrepareUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	token := resp.Files["F"]

	uploadURL := "/api/localsend/v2/upload?fileId=F&token=" + token + "&sessionId=" + resp.SessionID
	uploadReq := httptest.NewRequest(http.MethodPost, uploadURL, bytes.NewBufferString("hello"))
	uploadReq.RemoteAddr = "10.0.0.3:9001"
	uploadRec := httptest.NewRecorder()
	h.Upload(route.V2)(uploadRec, uploadReq)

	assert.Equal(t, http.StatusForbidden, uploadRec.Code)
}

// failingReader yields n bytes then a hard error, simulating a sender
// aborting mid-stream.
type failingReader struct {
	data []byte
	sent bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.sent {
		return 0, errors.New("connection reset")
	}
	n := copy(p, f.data)
	f.sent = true
	return n, nil
}

func TestUpload_SenderCancelMidStreamCleansUpPartialFile(t *testing.T) {
	cfg := newTestConfig(t, true)
	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: true})
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "big.bin", Size: 10 * 1024 * 1024},
	})
	rec := httptest.NewRecorder()
	h.PrepareUpload(route.V2)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PrepareUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	token := resp.Files["F"]

	uploadURL := "/api/localsend/v2/upload?fileId=F&token=" + token + "&sessionId=" + resp.SessionID
	uploadReq := httptest.NewRequest(http.MethodPost, uploadURL, &failingReader{data: bytes.Repeat([]byte("x"), 1024*1024)})
	uploadReq.RemoteAddr = "10.0.0.2:9001"
	uploadRec := httptest.NewRecorder()
	h.Upload(route.V2)(uploadRec, uploadReq)

	assert.Equal(t, http.StatusOK, uploadRec.Code)
	_, err := os.Stat(filepath.Join(cfg.DestinationDir, "big.bin"))
	assert.True(t, os.IsNotExist(err), "partial file must not remain in the destination")

	state.Lock()
	defer state.Unlock()
	assert.Nil(t, state.ReceiveSession, "a cancelled file must still free the session for the next prepare-upload")
}

func TestUpload_SaveFailureReturnsSaveFileFailedAndFreesSession(t *testing.T) {
	cfg := newTestConfig(t, true)
	blockedDir := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blockedDir, []byte("x"), 0644))
	cfg.DestinationDir = blockedDir

	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: true})
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "hello.txt", Size: 5},
	})
	rec := httptest.NewRecorder()
	h.PrepareUpload(route.V2)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.PrepareUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	token := resp.Files["F"]

	uploadURL := "/api/localsend/v2/upload?fileId=F&token=" + token + "&sessionId=" + resp.SessionID
	uploadReq := httptest.NewRequest(http.MethodPost, uploadURL, bytes.NewBufferString("hello"))
	uploadReq.RemoteAddr = "10.0.0.2:9001"
	uploadRec := httptest.NewRecorder()
	h.Upload(route.V2)(uploadRec, uploadReq)

	assert.Equal(t, http.StatusInternalServerError, uploadRec.Code)

	state.Lock()
	defer state.Unlock()
	assert.Nil(t, state.ReceiveSession, "session must be freed even after a genuine save failure")
}

func TestPrepareUpload_V1ResponseIsBareTokenMap(t *testing.T) {
	cfg := newTestConfig(t, true)
	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: true})
	h := NewReceiveHandler(cfg, state)

	req := prepareRequest(t, "10.0.0.2:9000", map[string]model.FileDescriptor{
		"F": {ID: "F", FileName: "hello.txt", Size: 5},
	})
	rec := httptest.NewRecorder()
	h.PrepareUpload(route.V1)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var tokens map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	assert.Contains(t, tokens, "F")

	var asObject map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asObject))
	_, hasEnvelope := asObject["sessionId"]
	assert.False(t, hasEnvelope, "v1 response must not carry the v2 session envelope")
}
