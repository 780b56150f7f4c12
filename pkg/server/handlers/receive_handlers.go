package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"

	"github.com/go-localsend/localgo/pkg/config"
	"github.com/go-localsend/localgo/pkg/core"
	"github.com/go-localsend/localgo/pkg/httputil"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/go-localsend/localgo/pkg/route"
	"github.com/go-localsend/localgo/pkg/storage"
	"github.com/sirupsen/logrus"
)

// ReceiveHandler implements the receive engine's six HTTP endpoints (spec
// §4.D): the v1/v2 variants of prepare-upload, upload, and cancel. All
// session-state access goes through the shared core.State lock, following
// the acquire-mutate-release-IO-reacquire-finalize discipline spec §4.F
// requires.
type ReceiveHandler struct {
	config *config.Config
	state  *core.State
}

// NewReceiveHandler creates a new ReceiveHandler.
func NewReceiveHandler(cfg *config.Config, state *core.State) *ReceiveHandler {
	return &ReceiveHandler{config: cfg, state: state}
}

func respondCoreError(w http.ResponseWriter, err *core.Error) {
	httputil.RespondPlainError(w, err.HTTPStatus(), err.Error())
}

// PrepareUpload handles POST /v{1,2}/{send-request,prepare-upload}.
func (h *ReceiveHandler) PrepareUpload(version route.Version) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.state.TryLock() {
			respondCoreError(w, core.NewError(core.KindSessionBlocked))
			return
		}
		if h.state.ReceiveSession != nil {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindSessionBlocked))
			return
		}
		h.state.Unlock()

		var req model.PrepareUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.RespondPlainError(w, http.StatusBadRequest, "request body malformed")
			return
		}
		defer r.Body.Close()

		if len(req.Files) == 0 {
			respondCoreError(w, core.NewError(core.KindEmptyFiles))
			return
		}

		senderIP, _, _ := net.SplitHostPort(r.RemoteAddr)
		sender := model.DeviceFromRegister(req.Info, senderIP, config.DefaultHTTPPort, h.config.HTTPSEnabled)

		session := core.NewReceiveSession(sender, h.config.DestinationDir)

		h.state.Lock()
		if h.state.ReceiveSession != nil {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindSessionBlocked))
			return
		}
		h.state.ReceiveSession = session
		h.state.Unlock()

		// Cleanup guard (spec §9): remove the session on every exit path
		// where it is still Waiting.
		settled := false
		defer func() {
			if settled {
				return
			}
			h.state.Lock()
			if h.state.ReceiveSession == session && session.Status == core.ReceiveWaiting {
				h.state.ReceiveSession = nil
			}
			h.state.Unlock()
		}()

		descriptors := make([]model.FileDescriptor, 0, len(req.Files))
		for _, fd := range req.Files {
			descriptors = append(descriptors, fd)
		}

		var accepted []model.FileDescriptor
		var sink chan<- core.UploadProgress

		if h.config.QuickSave {
			accepted = descriptors
		} else {
			select {
			case h.state.ServerTx <- core.SelectedFiles{Files: descriptors}:
			default:
				logrus.Warn("prepare-upload: ServerTx full, UI not keeping up")
				respondCoreError(w, core.NewError(core.KindInvalidServerState))
				return
			}

			reply, ok := <-h.state.ClientRx
			if !ok {
				respondCoreError(w, core.NewError(core.KindNothingSelected))
				return
			}
			switch msg := reply.(type) {
			case core.FilesSelected:
				accepted = msg.Files
				sink = msg.Sink
			case core.Declined:
				respondCoreError(w, core.NewError(core.KindSessionDeclined))
				return
			default:
				respondCoreError(w, core.NewError(core.KindInvalidServerState))
				return
			}
		}

		if len(accepted) == 0 {
			respondCoreError(w, core.NewError(core.KindNothingSelected))
			return
		}

		h.state.Lock()
		session.ProgressSink = sink
		tokens := session.AcceptFiles(accepted)
		h.state.Unlock()
		settled = true

		if version == route.V1 {
			httputil.RespondJSON(w, http.StatusOK, tokens)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, model.PrepareUploadResponse{
			SessionID: session.SessionID,
			Files:     tokens,
		})
	}
}

// Upload handles POST /v{1,2}/{send,upload}.
func (h *ReceiveHandler) Upload(version route.Version) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		fileID := query.Get("fileId")
		token := query.Get("token")
		sessionID := query.Get("sessionId")

		h.state.Lock()
		session := h.state.ReceiveSession
		if session == nil {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindSessionNotExists))
			return
		}

		peerIP, _, _ := net.SplitHostPort(r.RemoteAddr)
		if peerIP != session.Sender.IP {
			h.state.Unlock()
			respondCoreError(w, core.Errorf(core.KindInvalidIP, "invalid ip address: %s", peerIP))
			return
		}
		if session.Status != core.ReceiveSending {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindInvalidRecipient))
			return
		}
		if fileID == "" || token == "" {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindInvalidParameters))
			return
		}
		if version == route.V2 && sessionID != session.SessionID {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindInvalidSessionID))
			return
		}

		file, ok := session.ConsumeToken(fileID, token)
		if !ok {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindInvalidToken))
			return
		}
		destDir := session.DestinationDir
		fileName := file.Descriptor.FileName
		fileSize := file.Descriptor.Size
		sink := session.ProgressSink
		h.state.Unlock()

		destPath := filepath.Join(destDir, fileName)
		onProgress := func(bytesWritten int64) {
			if sink == nil {
				return
			}
			progress := core.UploadProgress{
				FileID:   fileID,
				Position: uint64(bytesWritten),
				Finish:   uint64(bytesWritten) >= fileSize,
			}
			select {
			case sink <- progress:
			default:
			}
		}

		if err := storage.SaveStreamToFile(r.Body, destPath, onProgress); err != nil {
			r.Body.Close()

			h.state.Lock()
			if h.state.ReceiveSession == session {
				file.Status = core.FileStatusFailed
				if session.AllTerminal() {
					h.state.ReceiveSession = nil
				}
			}
			h.state.Unlock()

			if errors.Is(err, storage.ErrStreamCopyFailed) {
				logrus.Debugf("upload stream for %s failed (treated as cancel): %v", fileID, err)
				respondCoreError(w, core.NewError(core.KindCancelled))
				return
			}
			logrus.Errorf("saving file %s failed: %v", fileID, err)
			respondCoreError(w, core.NewError(core.KindSaveFileFailed))
			return
		}
		r.Body.Close()

		h.state.Lock()
		if h.state.ReceiveSession == session {
			file.Status = core.FileStatusFinished
			if session.AllTerminal() {
				h.state.ReceiveSession = nil
			}
		}
		h.state.Unlock()

		httputil.RespondOK(w)
	}
}

// Cancel handles POST /v{1,2}/cancel. Per spec §4.D.3, cancel operates on
// the active SendSession (this host acting as sender), not the
// ReceiveSession — the asymmetry is intentional: the endpoint is reached
// when the remote peer (a receiver) is cancelling our outbound transfer.
func (h *ReceiveHandler) Cancel(version route.Version) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.state.Lock()
		session := h.state.SendSession
		if session == nil {
			h.state.Unlock()
			respondCoreError(w, core.NewError(core.KindNoPermission))
			return
		}

		if version == route.V2 {
			sessionID := r.URL.Query().Get("sessionId")
			if session.RemoteSessionID == nil || *session.RemoteSessionID != sessionID {
				h.state.Unlock()
				respondCoreError(w, core.NewError(core.KindNoPermission))
				return
			}
		}

		h.state.SendSession = nil
		h.state.Unlock()

		session.Abort()
		httputil.RespondOK(w)
	}
}
