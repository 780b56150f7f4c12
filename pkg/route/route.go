// Package route resolves {operation, protocol version} pairs to HTTP paths
// and builds absolute target URLs for a peer Device.
package route

import (
	"fmt"

	"github.com/go-localsend/localgo/pkg/model"
)

// Operation identifies one of the three HTTP operations the wire protocol
// defines.
type Operation int

const (
	PrepareUpload Operation = iota
	Upload
	Cancel
)

// Version is a validated, normalized protocol version.
type Version string

const (
	V1 Version = model.ProtocolVersion1
	V2 Version = model.ProtocolVersion2
)

// VersionOf normalizes an arbitrary version string, degrading anything
// unrecognized to V1.
func VersionOf(version string) Version {
	return Version(model.NormalizeVersion(version))
}

// pathV1 returns the legacy (v1) path segment for an operation.
func pathV1(op Operation) string {
	switch op {
	case PrepareUpload:
		return "send-request"
	case Upload:
		return "send"
	default: // Cancel
		return "cancel"
	}
}

// pathV2 returns the v2 path segment for an operation. Cancel's path name
// is shared between v1 and v2.
func pathV2(op Operation) string {
	switch op {
	case PrepareUpload:
		return "prepare-upload"
	case Upload:
		return "upload"
	default: // Cancel
		return pathV1(op)
	}
}

// Path returns the operation's path segment for the given version.
func Path(op Operation, v Version) string {
	if v == V2 {
		return pathV2(op)
	}
	return pathV1(op)
}

// Route returns the full route, e.g. "/api/localsend/v2/prepare-upload".
func Route(op Operation, v Version) string {
	segment := "v1"
	if v == V2 {
		segment = "v2"
	}
	return fmt.Sprintf("/api/localsend/%s/%s", segment, Path(op, v))
}

// TargetRaw builds the absolute URL for op against a bare ip/port/https/version
// tuple, without requiring a full model.Device value.
func TargetRaw(op Operation, ip string, port int, https bool, version string) string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	v := VersionOf(version)
	return fmt.Sprintf("%s://%s:%d%s", scheme, ip, port, Route(op, v))
}

// Target builds the absolute URL for op against a peer Device. TLS
// certificate validation is intentionally not this package's concern —
// callers must use an HTTP client configured to accept self-signed peer
// certificates.
func Target(op Operation, d model.Device) string {
	return TargetRaw(op, d.IP, d.Port, d.HTTPS, d.Version)
}
