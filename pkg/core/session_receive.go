package core

import (
	"github.com/go-localsend/localgo/pkg/model"
)

// ReceiveSessionStatus tracks where a ReceiveSession is in its handshake.
type ReceiveSessionStatus int

const (
	ReceiveWaiting ReceiveSessionStatus = iota
	ReceiveSending
)

// UploadProgress reports incremental byte-level progress for one file,
// delivered to a session's progress sink.
type UploadProgress struct {
	FileID   string
	Position uint64
	Finish   bool
}

// ReceivingFile is one file offered to us by a remote sender. Token is
// cleared the first time it is consumed by a successful upload request
// (spec invariant 2: one-shot, rejects replay).
type ReceivingFile struct {
	Descriptor model.FileDescriptor
	Status     FileStatus
	Token      *string
}

// ReceiveSession is the server side of one prepare-upload/upload/cancel
// handshake. At most one exists in the process at a time (spec invariant 1).
type ReceiveSession struct {
	SessionID          string
	Status             ReceiveSessionStatus
	Sender             model.Device
	Files              map[string]*ReceivingFile
	DestinationDir     string
	ProgressSink       chan<- UploadProgress
}

// NewReceiveSession creates a Waiting session with no files populated yet;
// files are added once the accepted subset is known (quick-save or UI
// selection).
func NewReceiveSession(sender model.Device, destinationDir string) *ReceiveSession {
	return &ReceiveSession{
		SessionID:      NewID(),
		Status:         ReceiveWaiting,
		Sender:         sender,
		Files:          make(map[string]*ReceivingFile),
		DestinationDir: destinationDir,
	}
}

// AcceptFiles issues a fresh token per accepted descriptor and transitions
// the session to Sending. Returns the file_id -> token map for the response.
func (s *ReceiveSession) AcceptFiles(accepted []model.FileDescriptor) map[string]string {
	tokens := make(map[string]string, len(accepted))
	for _, fd := range accepted {
		token := NewID()
		s.Files[fd.ID] = &ReceivingFile{
			Descriptor: fd,
			Status:     FileStatusQueue,
			Token:      &token,
		}
		tokens[fd.ID] = token
	}
	s.Status = ReceiveSending
	return tokens
}

// ConsumeToken validates and one-shot-consumes the token for fileID,
// returning the matching ReceivingFile on success. Per invariant 2, a
// second call with the same (or any) token for this file fails.
func (s *ReceiveSession) ConsumeToken(fileID, token string) (*ReceivingFile, bool) {
	file, ok := s.Files[fileID]
	if !ok || file.Token == nil || *file.Token != token {
		return nil, false
	}
	file.Token = nil
	file.Status = FileStatusSending
	return file, true
}

// AllTerminal reports whether every file in the session has reached a
// terminal status (Finished or Failed), meaning the session should be
// destroyed.
func (s *ReceiveSession) AllTerminal() bool {
	for _, f := range s.Files {
		if f.Status != FileStatusFinished && f.Status != FileStatusFailed {
			return false
		}
	}
	return true
}
