// Package model contains the wire DTOs and the internal Device representation
// shared by discovery, the receive engine, and the send engine.
package model

// FileType categorizes a FileDescriptor for display purposes on the
// receiving end. Derived from the file's extension; see ClassifyExtension
// in file.go.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypePdf   FileType = "pdf"
	FileTypeText  FileType = "text"
	FileTypeApk   FileType = "apk"
	FileTypeOther FileType = "other"
)

// RegisterDto is the "info" payload embedded in a PrepareUploadRequest, and
// the body of a /register call. All fields besides Alias and Fingerprint are
// optional on the wire; absent values fall back per DeviceFromRegister.
type RegisterDto struct {
	Alias       string        `json:"alias"`
	Version     *string       `json:"version,omitempty"`
	DeviceModel *string       `json:"deviceModel,omitempty"`
	DeviceType  *DeviceType   `json:"deviceType,omitempty"`
	Fingerprint string        `json:"fingerprint"`
	Port        *int          `json:"port,omitempty"`
	Protocol    *ProtocolType `json:"protocol,omitempty"`
	Download    *bool         `json:"download,omitempty"`
}

// MulticastDto is the UDP presence-announcement payload. It carries both the
// v1 `announcement` flag and the v2 `announce` flag so that a single
// datagram is understood regardless of the listener's protocol version.
type MulticastDto struct {
	Alias        string        `json:"alias"`
	Version      *string       `json:"version,omitempty"`
	DeviceModel  *string       `json:"deviceModel,omitempty"`
	DeviceType   *DeviceType   `json:"deviceType,omitempty"`
	Fingerprint  string        `json:"fingerprint"`
	Port         *int          `json:"port,omitempty"`
	Protocol     *ProtocolType `json:"protocol,omitempty"`
	Download     *bool         `json:"download,omitempty"`
	Announcement *bool         `json:"announcement,omitempty"` // v1
	Announce     *bool         `json:"announce,omitempty"`     // v2
}

// toRegisterDto strips the multicast-only announcement flags, yielding the
// shared fields used by the Device fallback-mapping rules.
func (m MulticastDto) toRegisterDto() RegisterDto {
	return RegisterDto{
		Alias:       m.Alias,
		Version:     m.Version,
		DeviceModel: m.DeviceModel,
		DeviceType:  m.DeviceType,
		Fingerprint: m.Fingerprint,
		Port:        m.Port,
		Protocol:    m.Protocol,
		Download:    m.Download,
	}
}

// IsAnnouncement reports whether this datagram is an initial announcement
// (as opposed to a response to one), checking both version flags.
func (m MulticastDto) IsAnnouncement() bool {
	if m.Announce != nil {
		return *m.Announce
	}
	if m.Announcement != nil {
		return *m.Announcement
	}
	return false
}

// FileDescriptor describes one file offered in a prepare-upload request.
// Preview holds inline text content for Text-type files sent without a
// backing path on disk (see pkg/fileset's AddText).
type FileDescriptor struct {
	ID       string   `json:"id"`
	FileName string   `json:"fileName"`
	Size     uint64   `json:"size"`
	FileType FileType `json:"fileType"`
	Hash     *string  `json:"hash,omitempty"`
	Preview  *string  `json:"preview,omitempty"`
}

// PrepareUploadRequest is the body POSTed to PrepareUpload by the sender.
type PrepareUploadRequest struct {
	Info  RegisterDto               `json:"info"`
	Files map[string]FileDescriptor `json:"files"`
}

// PrepareUploadResponse is the v2 success body: a session id plus a
// per-file token map. The v1 response is the bare token map with no
// envelope — handlers serialize that case directly from the map, bypassing
// this type.
type PrepareUploadResponse struct {
	SessionID string            `json:"sessionId"`
	Files     map[string]string `json:"files"`
}
