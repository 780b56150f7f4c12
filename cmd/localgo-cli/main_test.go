package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-localsend/localgo/pkg/discovery"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/go-localsend/localgo/pkg/network"
	"github.com/stretchr/testify/assert"
)

// waitForDevice polls a candidate's /info endpoint via HTTP discovery until
// a device with the given alias responds or timeout elapses.
func waitForDevice(ctx context.Context, alias string, port int, timeout time.Duration) error {
	self := model.Device{Alias: "probe", Port: port}
	discoverer := discovery.NewHTTPDiscovery(nil, self)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case <-timeoutCtx.Done():
			return fmt.Errorf("timeout waiting for device %s", alias)
		case <-ticker.C:
			device, err := discoverer.FetchDeviceInfo(timeoutCtx, net.ParseIP("127.0.0.1"), port)
			if err == nil && device.Alias == alias {
				return nil
			}

			ips, err := network.GetLocalIPAddresses()
			if err != nil {
				continue
			}
			for _, ip := range ips {
				device, err := discoverer.FetchDeviceInfo(timeoutCtx, ip, port)
				if err == nil && device.Alias == alias {
					return nil
				}
			}
		}
	}
}

func TestSendFile(t *testing.T) {
	buildCmd := exec.Command("go", "build", "-o", "/tmp/localgo-cli", "./cmd/localgo-cli")
	buildCmd.Dir = "../.."
	err := buildCmd.Run()
	assert.NoError(t, err, "failed to build localgo-cli binary")

	tmpDownloadsDir, err := os.MkdirTemp("", "localgo-downloads-")
	assert.NoError(t, err)
	defer os.RemoveAll(tmpDownloadsDir)

	tmpfile, err := os.CreateTemp("", "testfile-*.txt")
	assert.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	content := []byte("hello, world")
	_, err = tmpfile.Write(content)
	assert.NoError(t, err)
	tmpfile.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	serverCmd := exec.CommandContext(ctx, "/tmp/localgo-cli", "receive", "--http-port", "53417", "--quick-save", "--dest", tmpDownloadsDir, "--no-nerd")
	serverCmd.Env = append(os.Environ(), "LOCALSEND_ALIAS=GoDevice", "LOCALSEND_HTTP_PORT=53417")
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr

	err = serverCmd.Start()
	assert.NoError(t, err)
	defer func() {
		serverCmd.Process.Kill()
		serverCmd.Wait()
	}()

	err = waitForDevice(ctx, "GoDevice", 53417, 10*time.Second)
	assert.NoError(t, err, "server did not become discoverable")

	time.Sleep(1 * time.Second)

	sendCmd := exec.CommandContext(ctx, "/tmp/localgo-cli", "send", "--to", "GoDevice", "--http-port", "53417", "--no-nerd", tmpfile.Name())
	sendCmd.Env = append(os.Environ(), "LOCALSEND_ALIAS=GoSender")
	sendCmd.Stdout = os.Stdout
	sendCmd.Stderr = os.Stderr

	err = sendCmd.Run()
	assert.NoError(t, err, "send command failed")

	time.Sleep(2 * time.Second)

	receivedFilePath := filepath.Join(tmpDownloadsDir, filepath.Base(tmpfile.Name()))
	assert.FileExists(t, receivedFilePath)

	receivedContent, err := os.ReadFile(receivedFilePath)
	assert.NoError(t, err)
	assert.Equal(t, content, receivedContent)
}
