// Package httputil provides HTTP response helpers for LocalGo's API surface.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Error is the JSON error envelope used by discovery endpoints.
type Error struct {
	Error string `json:"error"`
}

// RespondJSON sends a JSON response.
func RespondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	jsonData, err := json.Marshal(data)
	if err != nil {
		logrus.Errorf("failed to marshal JSON response: %v", err)
		return
	}
	if _, err := w.Write(jsonData); err != nil {
		logrus.Errorf("failed to write JSON response: %v", err)
	}
}

// RespondError sends a JSON error response (used by discovery endpoints,
// which the protocol defines as always returning a JSON body).
func RespondError(w http.ResponseWriter, statusCode int, message string) {
	RespondJSON(w, statusCode, Error{Error: message})
}

// RespondPlainError sends a plain-text error response, matching the
// transfer endpoints' error policy (spec §7): the body is the message
// verbatim, with 500s generalized to a fixed "Internal server error" so
// internal detail never leaks to a peer.
func RespondPlainError(w http.ResponseWriter, statusCode int, message string) {
	if statusCode == http.StatusInternalServerError {
		message = "Internal server error"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(message)); err != nil {
		logrus.Errorf("failed to write plain error response: %v", err)
	}
}

// RespondOK sends a 200 response with no content.
func RespondOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}
