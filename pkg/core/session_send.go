package core

import (
	"context"

	"github.com/go-localsend/localgo/pkg/model"
)

// FileStatus is the monotone lifecycle of one file within a session:
// Queue -> Sending -> {Finished | Failed | Skipped}.
type FileStatus int

const (
	FileStatusQueue FileStatus = iota
	FileStatusSkipped
	FileStatusSending
	FileStatusFailed
	FileStatusFinished
)

func (s FileStatus) String() string {
	switch s {
	case FileStatusQueue:
		return "queue"
	case FileStatusSkipped:
		return "skipped"
	case FileStatusSending:
		return "sending"
	case FileStatusFailed:
		return "failed"
	case FileStatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// SendingFile is one file we are offering to a remote receiver. Index
// preserves stable insertion order (spec: "files are uploaded in insertion
// order"). Path is absent for inline-text files, whose bytes live in
// Descriptor.Preview instead.
type SendingFile struct {
	Index      int
	Descriptor model.FileDescriptor
	Status     FileStatus
	Path       *string
	Token      *string
}

// SendSession is the client side of one prepare-upload/upload/cancel
// handshake. At most one exists in the process at a time (spec invariant 1).
type SendSession struct {
	SessionID       string
	Info            model.RegisterDto
	Target          model.Device
	Files           []*SendingFile
	fileByID        map[string]*SendingFile
	RemoteSessionID *string
	cancel          context.CancelFunc
}

// NewSendSession creates a session for the given ordered file list,
// keeping their insertion order and indexing them by descriptor id for File.
func NewSendSession(info model.RegisterDto, target model.Device, files []*SendingFile) *SendSession {
	byID := make(map[string]*SendingFile, len(files))
	for _, f := range files {
		byID[f.Descriptor.ID] = f
	}
	return &SendSession{
		SessionID: NewID(),
		Info:      info,
		Target:    target,
		Files:     files,
		fileByID:  byID,
	}
}

// File looks up a SendingFile by its descriptor id.
func (s *SendSession) File(id string) (*SendingFile, bool) {
	f, ok := s.fileByID[id]
	return f, ok
}

// ApplyTokens marks every file present in tokens as Sending (with its
// token) and every other file as Skipped, per spec §4.E.1 step 4.
func (s *SendSession) ApplyTokens(tokens map[string]string) {
	for _, f := range s.Files {
		if token, ok := tokens[f.Descriptor.ID]; ok {
			t := token
			f.Token = &t
			f.Status = FileStatusSending
		} else {
			f.Status = FileStatusSkipped
		}
	}
}

// SetCancel installs the cancellation handle for the in-flight upload
// worker, used by Cancel to abort it.
func (s *SendSession) SetCancel(cancel context.CancelFunc) {
	s.cancel = cancel
}

// Abort cancels the in-flight upload worker, if any.
func (s *SendSession) Abort() {
	if s.cancel != nil {
		s.cancel()
	}
}
