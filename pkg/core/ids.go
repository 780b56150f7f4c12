package core

import "github.com/google/uuid"

// NewID returns a fresh UUIDv4 string, used for session ids, file ids, and
// per-file upload tokens throughout the core.
func NewID() string {
	return uuid.NewString()
}
