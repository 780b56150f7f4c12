package send

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/go-localsend/localgo/pkg/core"
	"github.com/go-localsend/localgo/pkg/fileset"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targetFor(t *testing.T, srv *httptest.Server) model.Device {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return model.Device{IP: u.Hostname(), Port: port, HTTPS: false, Version: model.ProtocolVersion2}
}

func TestEngine_UploadHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	var receivedBody string
	mux.HandleFunc("/api/localsend/v2/prepare-upload", func(w http.ResponseWriter, r *http.Request) {
		var req model.PrepareUploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Files, 1)
		var fileID string
		for id := range req.Files {
			fileID = id
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.PrepareUploadResponse{
			SessionID: "sess-1",
			Files:     map[string]string{fileID: "tok-1"},
		})
	})
	mux.HandleFunc("/api/localsend/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token"))
		assert.Equal(t, "sess-1", r.URL.Query().Get("sessionId"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		receivedBody = string(body)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	state := core.NewState(core.Settings{})
	engine := NewEngine(state, model.RegisterDto{Alias: "sender", Fingerprint: "sender-fp"})

	collection := fileset.New()
	collection.AddText("hello")

	err := engine.Upload(context.Background(), targetFor(t, srv), collection, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", receivedBody)

	state.Lock()
	defer state.Unlock()
	assert.Nil(t, state.SendSession, "session must be cleared from shared state after completion")
}

func TestEngine_NegotiateClassifiesBusy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/localsend/v2/prepare-upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	state := core.NewState(core.Settings{})
	engine := NewEngine(state, model.RegisterDto{Alias: "sender", Fingerprint: "sender-fp"})

	collection := fileset.New()
	collection.AddText("hello")

	err := engine.Upload(context.Background(), targetFor(t, srv), collection, nil)
	require.Error(t, err)
	coreErr := core.AsError(err)
	require.NotNil(t, coreErr)
	assert.Equal(t, core.KindBusy, coreErr.Kind)
}

func TestEngine_NegotiateClassifiesNothingSelected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/localsend/v2/prepare-upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	state := core.NewState(core.Settings{})
	engine := NewEngine(state, model.RegisterDto{Alias: "sender", Fingerprint: "sender-fp"})

	collection := fileset.New()
	collection.AddText("hello")

	err := engine.Upload(context.Background(), targetFor(t, srv), collection, nil)
	require.Error(t, err)
	coreErr := core.AsError(err)
	require.NotNil(t, coreErr)
	assert.Equal(t, core.KindNothingSelected, coreErr.Kind)
}

func TestEngine_CancelWithNoActiveSessionReturnsNoPermission(t *testing.T) {
	state := core.NewState(core.Settings{})
	engine := NewEngine(state, model.RegisterDto{Alias: "sender", Fingerprint: "sender-fp"})

	err := engine.Cancel(context.Background(), true)
	require.Error(t, err)
	coreErr := core.AsError(err)
	require.NotNil(t, coreErr)
	assert.Equal(t, core.KindNoPermission, coreErr.Kind)
}
