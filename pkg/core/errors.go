// Package core implements the session state machine, shared-state
// container, and error taxonomy shared by the receive and send engines.
package core

import (
	"fmt"
	"net/http"
)

// Kind enumerates the error taxonomy from the protocol's error handling
// design. Each kind maps to exactly one HTTP status code.
type Kind int

const (
	KindEmptyFiles Kind = iota
	KindInvalidParameters
	KindInvalidIP
	KindInvalidSessionID
	KindInvalidToken
	KindSessionDeclined
	KindNoPermission
	KindNothingSelected
	KindSessionBlocked
	KindInvalidRecipient
	KindSessionNotExists
	KindCancelled
	KindSaveFileFailed
	KindInvalidServerState

	// Sender-side classifications (spec §7, "Sender-side errors from the
	// HTTP client are classified identically"): these describe how the
	// Send Engine interprets status codes on a peer's prepare-upload and
	// cancel responses, not codes this process emits itself. KindAborted
	// is defined but not returned by any current code path.
	KindRejected
	KindBusy
	KindAborted
	KindUnknown
)

var statusByKind = map[Kind]int{
	KindEmptyFiles:         http.StatusBadRequest,
	KindInvalidParameters:  http.StatusBadRequest,
	KindInvalidIP:          http.StatusForbidden,
	KindInvalidSessionID:   http.StatusForbidden,
	KindInvalidToken:       http.StatusForbidden,
	KindSessionDeclined:    http.StatusForbidden,
	KindNoPermission:       http.StatusForbidden,
	KindNothingSelected:    http.StatusNoContent,
	KindSessionBlocked:     http.StatusConflict,
	KindInvalidRecipient:   http.StatusConflict,
	KindSessionNotExists:   http.StatusConflict,
	KindCancelled:          http.StatusOK,
	KindSaveFileFailed:     http.StatusInternalServerError,
	KindInvalidServerState: http.StatusInternalServerError,
	KindRejected:           http.StatusForbidden,
	KindBusy:               http.StatusConflict,
	KindAborted:            http.StatusInternalServerError,
	KindUnknown:            http.StatusInternalServerError,
}

var messageByKind = map[Kind]string{
	KindEmptyFiles:         "no files were offered",
	KindInvalidParameters:  "missing fileId or token",
	KindInvalidIP:          "request ip does not match the session sender",
	KindInvalidSessionID:   "sessionId does not match the active session",
	KindInvalidToken:       "unknown file or invalid token",
	KindSessionDeclined:    "session was declined",
	KindNoPermission:       "no permission",
	KindNothingSelected:    "nothing was selected",
	KindSessionBlocked:     "blocked by another session",
	KindInvalidRecipient:   "session is not accepting uploads",
	KindSessionNotExists:   "session does not exist",
	KindCancelled:          "cancelled",
	KindSaveFileFailed:     "failed to save file",
	KindInvalidServerState: "invalid server state",
	KindRejected:           "peer rejected the offer",
	KindBusy:               "peer is busy with another session",
	KindAborted:            "upload aborted by an internal error",
	KindUnknown:            "peer returned an unexpected response",
}

// Error is the typed protocol error returned by core/send/receive
// operations. It satisfies the standard error interface.
type Error struct {
	Kind    Kind
	Message string
}

// NewError builds an Error for kind, using the taxonomy's default message.
func NewError(kind Kind) *Error {
	return &Error{Kind: kind, Message: messageByKind[kind]}
}

// Errorf builds an Error for kind with a custom message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus returns the status code the taxonomy assigns to this error's
// kind.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AsError unwraps err into a *Error, returning nil if err isn't one.
func AsError(err error) *Error {
	coreErr, _ := err.(*Error)
	return coreErr
}
