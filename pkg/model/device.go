package model

import (
	"fmt"
	"time"
)

// DeviceType classifies the kind of device a peer is running on. Only these
// five values are recognized on the wire; anything else degrades to Desktop.
type DeviceType string

const (
	DeviceTypeMobile   DeviceType = "mobile"
	DeviceTypeDesktop  DeviceType = "desktop"
	DeviceTypeWeb      DeviceType = "web"
	DeviceTypeHeadless DeviceType = "headless"
	DeviceTypeServer   DeviceType = "server"
)

// ProtocolType is the transport scheme a peer's HTTP server listens on.
type ProtocolType string

const (
	ProtocolTypeHTTP  ProtocolType = "http"
	ProtocolTypeHTTPS ProtocolType = "https"
)

// Wire protocol versions. Any other value degrades to ProtocolVersion1 for
// route selection.
const (
	ProtocolVersion1 = "1.0"
	ProtocolVersion2 = "2.0"
)

// NormalizeVersion maps an unknown or empty version string to the v1
// fallback.
func NormalizeVersion(version string) string {
	switch version {
	case ProtocolVersion1, ProtocolVersion2:
		return version
	default:
		return ProtocolVersion1
	}
}

// NormalizeDeviceType maps an absent or unrecognized device type to Desktop.
func NormalizeDeviceType(dt *DeviceType) DeviceType {
	if dt == nil {
		return DeviceTypeDesktop
	}
	switch *dt {
	case DeviceTypeMobile, DeviceTypeDesktop, DeviceTypeWeb, DeviceTypeHeadless, DeviceTypeServer:
		return *dt
	default:
		return DeviceTypeDesktop
	}
}

// NormalizeProtocol maps an absent or unrecognized protocol to http.
func NormalizeProtocol(p *ProtocolType) ProtocolType {
	if p == nil {
		return ProtocolTypeHTTP
	}
	switch *p {
	case ProtocolTypeHTTP, ProtocolTypeHTTPS:
		return *p
	default:
		return ProtocolTypeHTTP
	}
}

// Device is a peer on the local network. Identity is Fingerprint; a device's
// IP/port may change between sightings but the fingerprint does not.
type Device struct {
	IP          string
	Port        int
	HTTPS       bool
	Version     string
	Fingerprint string
	Alias       string
	DeviceModel *string
	DeviceType  DeviceType
	Download    bool
	LastSeen    time.Time
}

// UpdateLastSeen refreshes the discovery-cache bookkeeping timestamp.
func (d *Device) UpdateLastSeen() {
	d.LastSeen = time.Now()
}

// IsStale reports whether the device hasn't announced itself recently.
func (d *Device) IsStale(staleThreshold time.Duration) bool {
	return time.Since(d.LastSeen) > staleThreshold
}

func (d Device) String() string {
	model := "nil"
	if d.DeviceModel != nil {
		model = *d.DeviceModel
	}
	fp := d.Fingerprint
	if len(fp) > 8 {
		fp = fp[:8]
	}
	return fmt.Sprintf("Device{ip=%s port=%d https=%t alias=%q fingerprint=%s... model=%s type=%s}",
		d.IP, d.Port, d.HTTPS, d.Alias, fp, model, d.DeviceType)
}

// DeviceFromRegister builds a Device from a RegisterDto and the transport
// source IP, applying the fallback rules from spec §3/§4.A: unknown version
// degrades to "1.0", unknown port falls back to ownPort, unknown protocol
// falls back to ownHTTPS, unknown device_type falls back to Desktop.
func DeviceFromRegister(info RegisterDto, ip string, ownPort int, ownHTTPS bool) Device {
	port := ownPort
	if info.Port != nil && *info.Port > 0 {
		port = *info.Port
	}

	https := ownHTTPS
	if info.Protocol != nil {
		https = *info.Protocol == ProtocolTypeHTTPS
	}

	version := ProtocolVersion1
	if info.Version != nil {
		version = NormalizeVersion(*info.Version)
	}

	return Device{
		IP:          ip,
		Port:        port,
		HTTPS:       https,
		Version:     version,
		Fingerprint: info.Fingerprint,
		Alias:       info.Alias,
		DeviceModel: info.DeviceModel,
		DeviceType:  NormalizeDeviceType(info.DeviceType),
		Download:    info.Download != nil && *info.Download,
		LastSeen:    time.Now(),
	}
}

// ToRegisterDto converts a Device into the RegisterDto embedded as the "info"
// field of a PrepareUploadRequest.
func (d Device) ToRegisterDto() RegisterDto {
	port := d.Port
	protocol := ProtocolTypeHTTP
	if d.HTTPS {
		protocol = ProtocolTypeHTTPS
	}
	version := d.Version
	download := d.Download
	deviceType := d.DeviceType
	return RegisterDto{
		Alias:       d.Alias,
		Version:     &version,
		DeviceModel: d.DeviceModel,
		DeviceType:  &deviceType,
		Fingerprint: d.Fingerprint,
		Port:        &port,
		Protocol:    &protocol,
		Download:    &download,
	}
}

// ToMulticastDto converts a Device into a presence announcement. Both v1's
// `announcement` and v2's `announce` flags are populated defensively so the
// same datagram is understood by peers on either protocol version.
func (d Device) ToMulticastDto(announce bool) MulticastDto {
	reg := d.ToRegisterDto()
	version := ProtocolVersion2
	return MulticastDto{
		Alias:        reg.Alias,
		Version:      &version,
		DeviceModel:  reg.DeviceModel,
		DeviceType:   reg.DeviceType,
		Fingerprint:  reg.Fingerprint,
		Port:         reg.Port,
		Protocol:     reg.Protocol,
		Download:     reg.Download,
		Announcement: &announce,
		Announce:     &announce,
	}
}

// DeviceFromMulticast builds a Device from a received MulticastDto and its
// source IP, reusing the RegisterDto fallback rules.
func DeviceFromMulticast(dto MulticastDto, ip string, ownPort int, ownHTTPS bool) Device {
	return DeviceFromRegister(dto.toRegisterDto(), ip, ownPort, ownHTTPS)
}
