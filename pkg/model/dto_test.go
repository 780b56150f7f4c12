package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestMulticastDtoRoundTrip_V1Announcement(t *testing.T) {
	model := DeviceTypeMobile
	dto := MulticastDto{
		Alias:        "Nice Orange",
		DeviceModel:  strPtr("Samsung"),
		DeviceType:   &model,
		Fingerprint:  "random string",
		Announcement: boolPtr(true),
	}

	data, err := json.Marshal(dto)
	require.NoError(t, err)

	var roundTripped MulticastDto
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	assert.Equal(t, dto.Alias, roundTripped.Alias)
	assert.Equal(t, *dto.DeviceModel, *roundTripped.DeviceModel)
	assert.Equal(t, *dto.DeviceType, *roundTripped.DeviceType)
	assert.Equal(t, dto.Fingerprint, roundTripped.Fingerprint)
	assert.True(t, roundTripped.IsAnnouncement())
	assert.Nil(t, roundTripped.Version)
	assert.Nil(t, roundTripped.Port)
}

func TestMulticastDtoIsAnnouncement_PrefersV2Flag(t *testing.T) {
	dto := MulticastDto{Announce: boolPtr(false), Announcement: boolPtr(true)}
	assert.False(t, dto.IsAnnouncement())
}

func TestFileDescriptorRoundTrip(t *testing.T) {
	hash := "deadbeef"
	fd := FileDescriptor{
		ID:       "F",
		FileName: "hello.txt",
		Size:     5,
		FileType: FileTypeText,
		Hash:     &hash,
	}
	data, err := json.Marshal(fd)
	require.NoError(t, err)

	var roundTripped FileDescriptor
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, fd, roundTripped)
}

func TestDeviceFromRegister_FallbacksApply(t *testing.T) {
	reg := RegisterDto{Alias: "Peer", Fingerprint: "fp"}

	device := DeviceFromRegister(reg, "10.0.0.5", 53317, true)

	assert.Equal(t, ProtocolVersion1, device.Version)
	assert.Equal(t, DeviceTypeDesktop, device.DeviceType)
	assert.True(t, device.HTTPS)
	assert.Equal(t, 53317, device.Port)
}

func TestDeviceFromRegister_ExplicitValuesWin(t *testing.T) {
	version := ProtocolVersion2
	port := 9999
	protocol := ProtocolTypeHTTP
	deviceType := DeviceTypeMobile
	reg := RegisterDto{
		Alias:       "Peer",
		Fingerprint: "fp",
		Version:     &version,
		Port:        &port,
		Protocol:    &protocol,
		DeviceType:  &deviceType,
	}

	device := DeviceFromRegister(reg, "10.0.0.5", 53317, true)

	assert.Equal(t, ProtocolVersion2, device.Version)
	assert.Equal(t, DeviceTypeMobile, device.DeviceType)
	assert.False(t, device.HTTPS)
	assert.Equal(t, 9999, device.Port)
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, ProtocolVersion1, NormalizeVersion(""))
	assert.Equal(t, ProtocolVersion1, NormalizeVersion("3.0"))
	assert.Equal(t, ProtocolVersion2, NormalizeVersion(ProtocolVersion2))
}

func TestClassifyExtension(t *testing.T) {
	assert.Equal(t, FileTypeImage, ClassifyExtension(".png"))
	assert.Equal(t, FileTypeVideo, ClassifyExtension(".mp4"))
	assert.Equal(t, FileTypePdf, ClassifyExtension(".pdf"))
	assert.Equal(t, FileTypeText, ClassifyExtension(".txt"))
	assert.Equal(t, FileTypeApk, ClassifyExtension(".apk"))
	assert.Equal(t, FileTypeOther, ClassifyExtension(".bin"))
}
