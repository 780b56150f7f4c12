// Package handlers contains HTTP handlers for the LocalGo server.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-localsend/localgo/pkg/config"
	"github.com/go-localsend/localgo/pkg/httputil"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/sirupsen/logrus"
)

// DiscoveryHandler handles /info and /register requests.
type DiscoveryHandler struct {
	config *config.Config
}

// NewDiscoveryHandler creates a new DiscoveryHandler.
func NewDiscoveryHandler(cfg *config.Config) *DiscoveryHandler {
	return &DiscoveryHandler{config: cfg}
}

// InfoHandler handles GET /info requests (v1 & v2 share the same body).
func (h *DiscoveryHandler) InfoHandler(w http.ResponseWriter, r *http.Request) {
	senderFingerprint := r.URL.Query().Get("fingerprint")
	if senderFingerprint != "" && senderFingerprint == h.config.SecurityContext.CertificateHash {
		logrus.Debug("received /info request from self, ignoring")
		httputil.RespondError(w, http.StatusPreconditionFailed, "Self-discovered")
		return
	}

	logrus.Debugf("responding to /info request from %s", r.RemoteAddr)
	httputil.RespondJSON(w, http.StatusOK, h.config.ToRegisterDto())
}

// RegisterHandler handles POST /register requests (v1 & v2 share the same body).
func (h *DiscoveryHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var requestDto model.RegisterDto
	if err := json.NewDecoder(r.Body).Decode(&requestDto); err != nil {
		logrus.Debugf("error decoding /register request from %s: %v", r.RemoteAddr, err)
		httputil.RespondError(w, http.StatusBadRequest, "Request body malformed")
		return
	}
	defer r.Body.Close()

	if requestDto.Fingerprint == h.config.SecurityContext.CertificateHash {
		logrus.Debug("received /register request from self, ignoring")
		httputil.RespondError(w, http.StatusPreconditionFailed, "Self-discovered")
		return
	}

	logrus.Debugf("received /register request from %s: alias=%s fingerprint=%.8s...",
		r.RemoteAddr, requestDto.Alias, requestDto.Fingerprint)

	httputil.RespondJSON(w, http.StatusOK, h.config.ToRegisterDto())
}
