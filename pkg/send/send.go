// Package send implements the Send Engine (spec §4.E): HTTP-client
// negotiation of a SendSession against a peer, followed by a sequential
// per-file upload worker with progress reporting and cancellation.
package send

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-localsend/localgo/pkg/core"
	"github.com/go-localsend/localgo/pkg/discovery"
	"github.com/go-localsend/localgo/pkg/fileset"
	"github.com/go-localsend/localgo/pkg/model"
	"github.com/go-localsend/localgo/pkg/network"
	"github.com/go-localsend/localgo/pkg/route"
	"github.com/sirupsen/logrus"
)

// sharedClient is the process-wide HTTP client (spec §9, "Global client"):
// a single instance, keep-alive on, configured to accept peers' self-signed
// certificates.
var sharedClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// Engine drives one outbound transfer: prepare-upload negotiation followed
// by a sequential per-file upload worker.
type Engine struct {
	state *core.State
	self  model.RegisterDto
}

// NewEngine builds a send Engine that announces self's RegisterDto in
// every prepare-upload request.
func NewEngine(state *core.State, self model.RegisterDto) *Engine {
	return &Engine{state: state, self: self}
}

// Upload executes spec §4.E.1: negotiate a SendSession against target for
// files, then stream each accepted file's body. progressSink, if non-nil,
// receives UploadProgress events for every accepted file. Upload blocks
// until the transfer completes, fails outright, or ctx is cancelled.
func (e *Engine) Upload(ctx context.Context, target model.Device, files *fileset.Collection, progressSink chan<- core.UploadProgress) error {
	session := core.NewSendSession(e.self, target, files.Files())

	tokens, err := e.negotiate(ctx, session)
	if err != nil {
		return err
	}
	session.ApplyTokens(tokens)

	workerCtx, cancel := context.WithCancel(ctx)
	session.SetCancel(cancel)

	e.state.Lock()
	e.state.SendSession = session
	e.state.Unlock()

	defer func() {
		e.state.Lock()
		if e.state.SendSession == session {
			e.state.SendSession = nil
		}
		e.state.Unlock()
	}()

	return e.runWorker(workerCtx, session, progressSink)
}

// negotiate POSTs the prepare-upload request and classifies the response
// per spec §4.E.1 steps 1-4 (and §7's sender-side error classification).
func (e *Engine) negotiate(ctx context.Context, session *core.SendSession) (map[string]string, error) {
	req := model.PrepareUploadRequest{
		Info:  e.self,
		Files: descriptorsOf(session.Files),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal prepare-upload request: %w", err)
	}

	url := route.Target(route.PrepareUpload, session.Target)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prepare-upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := sharedClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send prepare-upload request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, core.NewError(core.KindNothingSelected)
	case http.StatusForbidden:
		return nil, core.NewError(core.KindRejected)
	case http.StatusConflict:
		return nil, core.NewError(core.KindBusy)
	default:
		return nil, core.Errorf(core.KindUnknown, "peer responded %d to prepare-upload", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read prepare-upload response: %w", err)
	}

	var tokens map[string]string
	if route.VersionOf(session.Target.Version) == route.V1 {
		if err := json.Unmarshal(respBody, &tokens); err != nil {
			return nil, fmt.Errorf("parse v1 prepare-upload response: %w", err)
		}
	} else {
		var parsed model.PrepareUploadResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("parse v2 prepare-upload response: %w", err)
		}
		remoteSessionID := parsed.SessionID
		session.RemoteSessionID = &remoteSessionID
		tokens = parsed.Files
	}

	if len(tokens) == 0 {
		return nil, core.NewError(core.KindNothingSelected)
	}
	return tokens, nil
}

func descriptorsOf(files []*core.SendingFile) map[string]model.FileDescriptor {
	out := make(map[string]model.FileDescriptor, len(files))
	for _, f := range files {
		out[f.Descriptor.ID] = f.Descriptor
	}
	return out
}

// runWorker uploads every Sending file in insertion order (spec §5:
// "within one SendSession, files are uploaded in insertion order"). A
// per-file failure marks that file Failed and continues; it does not abort
// the session.
func (e *Engine) runWorker(ctx context.Context, session *core.SendSession, sink chan<- core.UploadProgress) error {
	for _, file := range session.Files {
		if file.Status != core.FileStatusSending {
			continue
		}
		select {
		case <-ctx.Done():
			return core.NewError(core.KindCancelled)
		default:
		}

		if err := e.uploadFile(ctx, session, file, sink); err != nil {
			logrus.Warnf("upload of %s failed: %v", file.Descriptor.FileName, err)
			file.Status = core.FileStatusFailed
			continue
		}
		file.Status = core.FileStatusFinished
	}
	return nil
}

// progressReader wraps a file's body, reporting cumulative bytes read into
// sink after every chunk (spec §4.E.1 step 6: "streaming, chunked with
// progress emission per chunk").
type progressReader struct {
	r       io.Reader
	fileID  string
	total   uint64
	written uint64
	sink    chan<- core.UploadProgress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += uint64(n)
		if p.sink != nil {
			progress := core.UploadProgress{FileID: p.fileID, Position: p.written, Finish: p.written >= p.total}
			select {
			case p.sink <- progress:
			default:
			}
		}
	}
	return n, err
}

func (e *Engine) uploadFile(ctx context.Context, session *core.SendSession, file *core.SendingFile, sink chan<- core.UploadProgress) error {
	var body io.Reader
	switch {
	case file.Path != nil:
		f, err := os.Open(*file.Path)
		if err != nil {
			return fmt.Errorf("open %s: %w", *file.Path, err)
		}
		defer f.Close()
		body = f
	case file.Descriptor.Preview != nil:
		body = strings.NewReader(*file.Descriptor.Preview)
	default:
		return fmt.Errorf("file %s has neither a path nor inline preview", file.Descriptor.FileName)
	}

	body = &progressReader{r: body, fileID: file.Descriptor.ID, total: file.Descriptor.Size, sink: sink}

	uploadURL := route.Target(route.Upload, session.Target) + "?fileId=" + file.Descriptor.ID + "&token=" + *file.Token
	if session.RemoteSessionID != nil {
		uploadURL += "&sessionId=" + *session.RemoteSessionID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = int64(file.Descriptor.Size)
	req.Header.Set("Content-Length", strconv.FormatUint(file.Descriptor.Size, 10))
	req.Header.Set("Content-Type", mimeForName(file.Descriptor.FileName))

	resp, err := sharedClient.Do(req)
	if err != nil {
		return fmt.Errorf("send upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload failed with status %s", resp.Status)
	}
	return nil
}

func mimeForName(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Cancel implements spec §4.E.2. When fromSender is true (user-initiated
// cancellation of an active outbound transfer) it notifies the peer via
// the Cancel route before aborting the worker; when false (the local
// receive engine's cancel endpoint triggered this, meaning the peer
// already knows), it only aborts locally.
func (e *Engine) Cancel(ctx context.Context, fromSender bool) error {
	e.state.Lock()
	session := e.state.SendSession
	e.state.Unlock()
	if session == nil {
		return core.NewError(core.KindNoPermission)
	}

	if fromSender {
		cancelURL := route.Target(route.Cancel, session.Target)
		if session.RemoteSessionID != nil {
			cancelURL += "?sessionId=" + *session.RemoteSessionID
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cancelURL, nil)
		if err != nil {
			return fmt.Errorf("build cancel request: %w", err)
		}
		resp, err := sharedClient.Do(req)
		if err != nil {
			return fmt.Errorf("send cancel request: %w", err)
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusForbidden:
			return core.NewError(core.KindNoPermission)
		default:
			return core.Errorf(core.KindUnknown, "peer responded %d to cancel", resp.StatusCode)
		}
	}

	session.Abort()
	return nil
}

// FindDeviceByAlias retries discovery (a multicast scan bounded to a few
// seconds, falling back to a unicast HTTP probe of this host's own
// interface addresses and loopback) until a device matching alias is found
// or ctx expires.
func FindDeviceByAlias(ctx context.Context, self model.Device, alias string, targetPort int) (*model.Device, error) {
	scanner := discovery.NewScanner(&discovery.Config{MulticastAddr: discovery.DefaultConfig().MulticastAddr, Port: self.Port}, self)
	httpDiscoverer := discovery.NewHTTPDiscovery(nil, self)

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("recipient %q not found: %w", alias, ctx.Err())
		default:
		}

		scanCtx, cancelScan := context.WithTimeout(ctx, 3*time.Second)
		devices, err := scanner.Scan(scanCtx)
		cancelScan()
		if err != nil {
			logrus.Debugf("multicast scan failed, falling back to HTTP discovery: %v", err)
		}
		if d := matchAlias(devices, alias); d != nil {
			return d, nil
		}

		ips, err := network.GetLocalIPAddresses()
		if err == nil {
			ips = append(ips, net.ParseIP("127.0.0.1"))
			scanCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			httpDevices, err := httpDiscoverer.ScanNetwork(scanCtx, ips, targetPort)
			cancel()
			if err != nil {
				logrus.Debugf("HTTP discovery failed: %v", err)
			} else if d := matchAliasPtrs(httpDevices, alias); d != nil {
				return d, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("recipient %q not found: %w", alias, ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func matchAlias(devices []model.Device, alias string) *model.Device {
	for i := range devices {
		if devices[i].Alias == alias {
			return &devices[i]
		}
	}
	return nil
}

func matchAliasPtrs(devices []*model.Device, alias string) *model.Device {
	for _, d := range devices {
		if d.Alias == alias {
			return d
		}
	}
	return nil
}
