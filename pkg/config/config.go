// Package config loads LocalGo's process-wide settings from environment
// variables (CLI flags are applied on top by the command), and manages the
// persisted TLS security context.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-localsend/localgo/pkg/crypto"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMulticastPort  = 53317
	DefaultHTTPPort       = 53317
	DefaultMulticastGroup = "224.0.0.167"
	DefaultSecurityDir    = ".localgo_security"
	DefaultSecurityFile   = "context.json"
	DefaultDestinationDir = "./downloads"
)

// Config is the process-wide, immutable-after-load settings object.
type Config struct {
	Alias           string
	MulticastGroup  string
	MulticastPort   int
	HTTPPort        int
	HTTPSEnabled    bool
	DeviceModel     *string
	DeviceType      model.DeviceType
	SecurityContext *crypto.StoredSecurityContext
	SecurityPath    string
	DestinationDir  string
	QuickSave       bool
}

// LoadConfig reads settings from the environment, generating (and
// persisting) a fresh TLS security context on first run. CLI flags, applied
// by the caller afterward, take precedence over every value here.
func LoadConfig() (*Config, error) {
	alias := os.Getenv("LOCALSEND_ALIAS")
	if alias == "" {
		alias = generateDefaultAlias()
	}

	exePath, err := os.Executable()
	if err != nil {
		logrus.Warnf("could not get executable path, using current directory for security file: %v", err)
		exePath = "."
	}
	securityDirPath := filepath.Join(filepath.Dir(exePath), DefaultSecurityDir)
	securityFilePath := filepath.Join(securityDirPath, DefaultSecurityFile)

	multicastPort := DefaultMulticastPort
	if p, err := strconv.Atoi(os.Getenv("LOCALSEND_PORT")); err == nil {
		multicastPort = p
	}

	httpPort := DefaultHTTPPort
	if p, err := strconv.Atoi(os.Getenv("LOCALSEND_HTTP_PORT")); err == nil {
		httpPort = p
	}

	multicastGroup := os.Getenv("LOCALSEND_MULTIADDR")
	if multicastGroup == "" {
		multicastGroup = DefaultMulticastGroup
	}

	destinationDir := os.Getenv("LOCALSEND_DESTINATION")
	if destinationDir == "" {
		destinationDir = DefaultDestinationDir
	}

	securityContext, err := crypto.LoadSecurityContext(securityFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("security context not found at %s, generating new one", securityFilePath)
			securityContext, err = crypto.GenerateSecurityContext(alias)
			if err != nil {
				return nil, fmt.Errorf("failed to generate security context: %w", err)
			}
			if err := os.MkdirAll(securityDirPath, 0700); err != nil {
				logrus.Warnf("could not create security directory %q: %v", securityDirPath, err)
			}
			if err := crypto.SaveSecurityContext(securityContext, securityFilePath); err != nil {
				logrus.Warnf("failed to save newly generated security context to %q: %v", securityFilePath, err)
			}
		} else {
			return nil, fmt.Errorf("failed to load security context from %q: %w", securityFilePath, err)
		}
	}

	if override := os.Getenv("LOCALSEND_FINGERPRINT"); override != "" {
		securityContext.CertificateHash = override
	}

	deviceModel := "GoDevice"

	return &Config{
		Alias:           alias,
		MulticastGroup:  multicastGroup,
		MulticastPort:   multicastPort,
		HTTPPort:        httpPort,
		HTTPSEnabled:    true,
		SecurityContext: securityContext,
		SecurityPath:    securityFilePath,
		DeviceModel:     &deviceModel,
		DeviceType:      model.DeviceTypeDesktop,
		DestinationDir:  destinationDir,
		QuickSave:       false,
	}, nil
}

func generateDefaultAlias() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		logrus.Info("could not get hostname, using a fixed fallback alias")
		hostname = "LocalGo"
	}
	return hostname
}

// ToDevice builds the Device this process presents to peers.
func (c *Config) ToDevice() model.Device {
	return model.Device{
		IP:          "",
		Port:        c.HTTPPort,
		HTTPS:       c.HTTPSEnabled,
		Version:     model.ProtocolVersion2,
		Fingerprint: c.SecurityContext.CertificateHash,
		Alias:       c.Alias,
		DeviceModel: c.DeviceModel,
		DeviceType:  c.DeviceType,
		Download:    false,
	}
}

// ToRegisterDto converts Config to the RegisterDto this process announces
// on /register, /info, and multicast.
func (c *Config) ToRegisterDto() model.RegisterDto {
	return c.ToDevice().ToRegisterDto()
}
