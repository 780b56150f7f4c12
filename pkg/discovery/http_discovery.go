package discovery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-localsend/localgo/pkg/model"
	"github.com/go-localsend/localgo/pkg/network"
	"github.com/sirupsen/logrus"
)

// HTTPDiscoveryConfig contains settings for HTTP discovery
type HTTPDiscoveryConfig struct {
	RequestTimeout time.Duration
}

// DefaultHTTPDiscoveryConfig returns default HTTP discovery configuration
func DefaultHTTPDiscoveryConfig() *HTTPDiscoveryConfig {
	return &HTTPDiscoveryConfig{
		RequestTimeout: 2 * time.Second,
	}
}

// HTTPDiscovery is a supplementary, unicast fallback to multicast discovery:
// it probes a set of candidate IPs' /info endpoint directly, for networks
// that block multicast traffic.
type HTTPDiscovery struct {
	config *HTTPDiscoveryConfig
	self   model.Device
	client *http.Client
}

// NewHTTPDiscovery creates a new HTTP discovery instance that announces self
// when registering with a peer.
func NewHTTPDiscovery(config *HTTPDiscoveryConfig, self model.Device) *HTTPDiscovery {
	if config == nil {
		config = DefaultHTTPDiscoveryConfig()
	}

	client := &http.Client{
		Timeout: config.RequestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // peers commonly use self-signed certs
			},
		},
	}

	return &HTTPDiscovery{
		config: config,
		self:   self,
		client: client,
	}
}

// fetchDeviceInfo retrieves device information using a specific scheme (http or https)
func (hd *HTTPDiscovery) fetchDeviceInfo(ctx context.Context, ip net.IP, port int, scheme string) (*model.Device, error) {
	url := fmt.Sprintf("%s://%s:%d/api/localsend/v2/info", scheme, ip.String(), port)

	logrus.Debugf("HTTPDiscovery: fetching device info from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := hd.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var info model.RegisterDto
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse response body: %w", err)
	}

	device := model.DeviceFromRegister(info, ip.String(), port, scheme == "https")
	device.Port = port
	device.HTTPS = scheme == "https"
	return &device, nil
}

// FetchDeviceInfo is a public wrapper that tries HTTPS first, then HTTP, the
// official app's default scheme preference.
func (hd *HTTPDiscovery) FetchDeviceInfo(ctx context.Context, ip net.IP, port int) (*model.Device, error) {
	device, err := hd.fetchDeviceInfo(ctx, ip, port, "https")
	if err != nil {
		device, err = hd.fetchDeviceInfo(ctx, ip, port, "http")
	}
	return device, err
}

// RegisterWithDevice announces self to a peer's /register endpoint and
// parses its reply as the peer's own RegisterDto.
func (hd *HTTPDiscovery) RegisterWithDevice(ctx context.Context, ip net.IP, port int) (*model.Device, error) {
	jsonData, err := json.Marshal(hd.self.ToRegisterDto())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	scheme := "http"
	if hd.self.HTTPS {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d/api/localsend/v2/register", scheme, ip.String(), port)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hd.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var info model.RegisterDto
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse response body: %w", err)
	}

	device := model.DeviceFromRegister(info, ip.String(), port, scheme == "https")
	device.Port = port
	device.HTTPS = scheme == "https"
	return &device, nil
}

// ScanNetwork probes /info on every candidate IP concurrently, collecting
// whichever respond within the configured timeout.
func (hd *HTTPDiscovery) ScanNetwork(ctx context.Context, ips []net.IP, port int) ([]*model.Device, error) {
	var devices []*model.Device
	var wg sync.WaitGroup
	deviceChan := make(chan *model.Device, len(ips))

	logrus.Debugf("HTTPDiscovery: scanning %d IPs on port %d", len(ips), port)

	for _, ip := range ips {
		wg.Add(1)
		go func(ip net.IP) {
			defer wg.Done()

			device, err := hd.fetchDeviceInfo(ctx, ip, port, "https")
			if err != nil {
				device, err = hd.fetchDeviceInfo(ctx, ip, port, "http")
				if err != nil {
					logrus.Debugf("HTTPDiscovery: no response from %s:%d: %v", ip, port, err)
					return
				}
			}
			deviceChan <- device
		}(ip)
	}

	wg.Wait()
	close(deviceChan)

	for device := range deviceChan {
		devices = append(devices, device)
	}

	logrus.Debugf("HTTPDiscovery: found %d devices", len(devices))
	return devices, nil
}

// ScanLocalNetwork probes /info on this host's own IPv4 interface addresses
// plus loopback, for discovery on networks that drop multicast. Other
// addresses in the interfaces' subnets are not probed.
func (hd *HTTPDiscovery) ScanLocalNetwork(ctx context.Context, port int) ([]*model.Device, error) {
	localIPs, err := getLocalNetworkIPs()
	if err != nil {
		return nil, fmt.Errorf("could not get local ip addresses to scan: %w", err)
	}
	localIPs = append(localIPs, net.ParseIP("127.0.0.1"))
	logrus.Debugf("HTTPDiscovery: scanning local network on port %d (%d candidate IPs)", port, len(localIPs))

	return hd.ScanNetwork(ctx, localIPs, port)
}

func getLocalNetworkIPs() ([]net.IP, error) {
	return network.GetLocalIPAddresses()
}
