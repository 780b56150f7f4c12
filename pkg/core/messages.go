package core

import "github.com/go-localsend/localgo/pkg/model"

// ServerMessage is sent from the receive engine to the external UI over the
// ServerTx channel.
type ServerMessage interface {
	isServerMessage()
}

// SelectedFiles notifies the UI that a peer has offered this set of files
// and is awaiting a selection decision.
type SelectedFiles struct {
	Files []model.FileDescriptor
}

func (SelectedFiles) isServerMessage() {}

// ClientMessage is sent from the external UI back to the receive engine
// over the ClientRx channel, replying to a SelectedFiles prompt.
type ClientMessage interface {
	isClientMessage()
}

// FilesSelected accepts a subset of the offered files and supplies the sink
// progress events for those files should be delivered to.
type FilesSelected struct {
	Sink  chan<- UploadProgress
	Files []model.FileDescriptor
}

func (FilesSelected) isClientMessage() {}

// Declined rejects the entire offer.
type Declined struct{}

func (Declined) isClientMessage() {}
