// Package discovery implements UDP multicast presence discovery and a
// supplementary HTTP-based fallback discovery mechanism.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-localsend/localgo/pkg/model"
	"github.com/sirupsen/logrus"
)

// Config controls the multicast group/port a Scanner binds to. The
// announcement loop's cadence is fixed (see announceCadence).
type Config struct {
	MulticastAddr string
	Port          int
}

// DefaultConfig returns the protocol's default multicast group and port.
func DefaultConfig() *Config {
	return &Config{
		MulticastAddr: "224.0.0.167",
		Port:          53317,
	}
}

func (c *Config) groupAddr() string {
	return fmt.Sprintf("%s:%d", c.MulticastAddr, c.Port)
}

// scanDeadline is the floor/deadline for Scan: it runs for at least this
// long, or until at least one peer is collected, whichever is later.
const scanDeadline = 2 * time.Second

// scanPollInterval is the sleep between empty, non-blocking polls of the
// listening socket during Scan.
const scanPollInterval = 100 * time.Millisecond

// announceCadence is the {100, 500, 2000}ms schedule used by the background
// announcement loop so late joiners see us quickly. The schedule does not
// restart: after the first two waits, every wait is the last entry (2s).
var announceCadence = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

// Scanner performs UDP multicast discovery: bounded announce-then-listen
// scans, and a background presence-announcement loop.
type Scanner struct {
	config *Config
	self   model.Device
}

// NewScanner builds a Scanner that will identify itself as self in every
// announcement it sends.
func NewScanner(config *Config, self model.Device) *Scanner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scanner{config: config, self: self}
}

// Scan implements spec §4.C: send one announcement, then poll the socket
// non-blockingly for at least scanDeadline and until at least one peer is
// collected (whichever is later), waiting up to scanPollInterval per poll.
// While no peer has been collected, Scan keeps polling until ctx is done. Self-announcements are filtered by fingerprint; duplicates are
// dropped. IO errors on recv short-circuit the scan with an error; socket
// errors on send are swallowed (announce is best-effort); parse errors on
// one datagram just skip that datagram.
func (s *Scanner) Scan(ctx context.Context) ([]model.Device, error) {
	conn, err := s.listen()
	if err != nil {
		return nil, fmt.Errorf("bind multicast listener: %w", err)
	}
	defer conn.Close()

	if err := s.sendAnnouncementDialed(); err != nil {
		logrus.Debugf("multicast announce failed (best-effort): %v", err)
	}

	var (
		devices []model.Device
		seen    = map[string]bool{}
	)
	deadline := time.Now().Add(scanDeadline)
	buf := make([]byte, 4096)

	for time.Now().Before(deadline) || len(devices) == 0 {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(scanPollInterval)); err != nil {
			return devices, fmt.Errorf("set read deadline: %w", err)
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if strings.Contains(err.Error(), "use of closed network connection") {
				return devices, nil
			}
			return devices, fmt.Errorf("read multicast socket: %w", err)
		}

		var dto model.MulticastDto
		if err := json.Unmarshal(buf[:n], &dto); err != nil {
			logrus.Debugf("discarding unparsable multicast datagram: %v", err)
			continue
		}
		if dto.Fingerprint == s.self.Fingerprint {
			continue
		}
		if seen[dto.Fingerprint] {
			continue
		}

		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		device := model.DeviceFromRegister(dto.toRegisterDto(), udpAddr.IP.String(), udpAddr.Port, s.self.HTTPS)
		seen[device.Fingerprint] = true
		devices = append(devices, device)
	}

	return devices, nil
}

// RunAnnounceLoop sends presence announcements on the {100,500,2000}ms
// cadence until ctx is cancelled, used by receivers so late joiners notice
// them quickly and then steady-state peers stay aware of them roughly
// every two seconds.
func (s *Scanner) RunAnnounceLoop(ctx context.Context) {
	conn, err := s.dial()
	if err != nil {
		logrus.Errorf("announce loop: cannot open multicast socket: %v", err)
		return
	}
	defer conn.Close()

	i := 0
	for {
		if err := s.sendAnnouncementOn(conn); err != nil {
			logrus.Debugf("announce loop: send failed (best-effort): %v", err)
		}

		wait := announceCadence[i]
		if i < len(announceCadence)-1 {
			i++
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Scanner) listen() (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", s.config.groupAddr())
	if err != nil {
		return nil, fmt.Errorf("resolve multicast address: %w", err)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(4096)
	return conn, nil
}

func (s *Scanner) dial() (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", s.config.groupAddr())
	if err != nil {
		return nil, fmt.Errorf("resolve multicast address: %w", err)
	}
	return net.DialUDP("udp4", nil, addr)
}

// sendAnnouncementDialed opens a short-lived dialed socket to the
// multicast group and writes one announcement, matching the teacher's
// one-shot-connection send pattern.
func (s *Scanner) sendAnnouncementDialed() error {
	conn, err := s.dial()
	if err != nil {
		return err
	}
	defer conn.Close()
	return s.sendAnnouncementOn(conn)
}

// sendAnnouncementOn writes one announcement datagram on an already-dialed
// (connected) socket.
func (s *Scanner) sendAnnouncementOn(conn *net.UDPConn) error {
	dto := s.self.ToMulticastDto(true)
	data, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}
	_, err = conn.Write(data)
	return err
}
