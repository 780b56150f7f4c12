// Command localgo-cli is the thin CLI orchestration layer over pkg/core,
// pkg/send, pkg/discovery and pkg/server (spec §6): it wires flags and
// environment variables into a config.Config, then drives one of the two
// subcommands to completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-localsend/localgo/pkg/cli"
	"github.com/go-localsend/localgo/pkg/config"
	"github.com/go-localsend/localgo/pkg/core"
	"github.com/go-localsend/localgo/pkg/discovery"
	"github.com/go-localsend/localgo/pkg/fileset"
	"github.com/go-localsend/localgo/pkg/logging"
	"github.com/go-localsend/localgo/pkg/send"
	"github.com/go-localsend/localgo/pkg/server"
	"github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	logging.Init()

	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		showUsage()
		return
	case "version", "-v", "--version":
		showVersion()
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	var runErr error
	switch os.Args[1] {
	case "send":
		runErr = runSend(cfg, os.Args[2:])
	case "receive":
		runErr = runReceive(cfg, os.Args[2:])
	default:
		logrus.Errorf("unknown command: %s", os.Args[1])
		showUsage()
		os.Exit(1)
	}

	if runErr != nil {
		logrus.Fatalf("command failed: %v", runErr)
	}
}

func showUsage() {
	fmt.Print(`LocalGo CLI - LocalSend protocol implementation

USAGE:
    localgo-cli send [OPTIONS] <inputs...>
    localgo-cli receive [OPTIONS]

COMMANDS:
    send       Send files or directories to a peer by alias
    receive    Listen for and accept incoming transfers

SEND OPTIONS:
    --to STRING         target device alias (required)
    --alias STRING       this device's alias
    --multiaddr STRING   multicast group address
    --port INT           multicast port
    --http-port INT      HTTP port
    --no-nerd            disable the progress bar, use plain log lines

RECEIVE OPTIONS:
    --dest PATH          destination directory for received files
    --quick-save         accept every offered file without prompting
    --alias STRING
    --multiaddr STRING
    --port INT
    --http-port INT
    --no-nerd

ENVIRONMENT:
    LOCALSEND_ALIAS, LOCALSEND_MULTIADDR, LOCALSEND_PORT,
    LOCALSEND_HTTP_PORT, LOCALSEND_DESTINATION, LOCALSEND_FINGERPRINT
`)
}

func showVersion() {
	fmt.Printf("LocalGo CLI %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	fmt.Println("Protocol: LocalSend v1.0/v2.0")
}

// applyCommonFlags wires the flags shared between send and receive (spec
// §6) onto cfg, overriding whatever LoadConfig derived from the
// environment.
func applyCommonFlags(cfg *config.Config, alias, multiaddr *string, port, httpPort *int) {
	if *alias != "" {
		cfg.Alias = *alias
	}
	if *multiaddr != "" {
		cfg.MulticastGroup = *multiaddr
	}
	if *port > 0 {
		cfg.MulticastPort = *port
	}
	if *httpPort > 0 {
		cfg.HTTPPort = *httpPort
	}
}

func runSend(cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("send", flag.ExitOnError)
	to := flags.String("to", "", "target device alias")
	alias := flags.String("alias", "", "device alias")
	multiaddr := flags.String("multiaddr", "", "multicast group address")
	port := flags.Int("port", 0, "multicast port")
	httpPort := flags.Int("http-port", 0, "http port")
	noNerd := flags.Bool("no-nerd", false, "disable progress bar output")
	flags.Parse(args)

	applyCommonFlags(cfg, alias, multiaddr, port, httpPort)

	inputs := flags.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("at least one file or directory is required")
	}
	if *to == "" {
		return fmt.Errorf("--to is required")
	}

	collection := fileset.New()
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return fmt.Errorf("stat %s: %w", input, err)
		}
		if info.IsDir() {
			if err := collection.AddDir(input); err != nil {
				return fmt.Errorf("add directory %s: %w", input, err)
			}
		} else {
			if _, err := collection.AddFile(input, nil); err != nil {
				return fmt.Errorf("add file %s: %w", input, err)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	self := cfg.ToDevice()
	logrus.Infof("looking for device %q on the network...", *to)
	findCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	target, err := send.FindDeviceByAlias(findCtx, self, *to, cfg.HTTPPort)
	cancel()
	if err != nil {
		return fmt.Errorf("find recipient: %w", err)
	}
	logrus.Infof("found %s at %s:%d, sending %d file(s)", target.Alias, target.IP, target.Port, len(collection.Files()))

	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: cfg.QuickSave})
	engine := send.NewEngine(state, cfg.ToRegisterDto())

	progressSink := make(chan core.UploadProgress, 1)
	done := make(chan struct{})
	go reportProgress(progressSink, done, !*noNerd)

	err = engine.Upload(ctx, *target, collection, progressSink)
	close(done)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	logrus.Info("transfer complete")
	return nil
}

// reportProgress drains progressSink until it or done closes. In nerd mode
// every chunk renders an updated byte count on one rewritten line per file;
// otherwise only the final per-file completion is logged.
func reportProgress(progressSink <-chan core.UploadProgress, done <-chan struct{}, nerd bool) {
	for {
		select {
		case <-done:
			return
		case p, ok := <-progressSink:
			if !ok {
				return
			}
			switch {
			case !nerd && p.Finish:
				logrus.Infof("file %s finished", p.FileID)
			case nerd:
				fmt.Printf("\r%s: %s", p.FileID, cli.FormatBytes(int64(p.Position)))
				if p.Finish {
					fmt.Println()
				}
			}
		}
	}
}

func runReceive(cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("receive", flag.ExitOnError)
	dest := flags.String("dest", "", "destination directory")
	quickSave := flags.Bool("quick-save", false, "accept every offered file without prompting")
	alias := flags.String("alias", "", "device alias")
	multiaddr := flags.String("multiaddr", "", "multicast group address")
	port := flags.Int("port", 0, "multicast port")
	httpPort := flags.Int("http-port", 0, "http port")
	noNerd := flags.Bool("no-nerd", false, "disable progress bar output")
	flags.Parse(args)

	applyCommonFlags(cfg, alias, multiaddr, port, httpPort)
	if *dest != "" {
		cfg.DestinationDir = *dest
	}
	cfg.QuickSave = cfg.QuickSave || *quickSave

	if abs, err := filepath.Abs(cfg.DestinationDir); err == nil {
		cfg.DestinationDir = abs
	}
	if err := os.MkdirAll(cfg.DestinationDir, 0755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := core.NewState(core.Settings{DestinationDir: cfg.DestinationDir, QuickSave: cfg.QuickSave})

	scanner := discovery.NewScanner(&discovery.Config{MulticastAddr: cfg.MulticastGroup, Port: cfg.MulticastPort}, cfg.ToDevice())
	go scanner.RunAnnounceLoop(ctx)

	if !cfg.QuickSave {
		go autoAcceptOffers(ctx, state, !*noNerd)
	}

	srv := server.NewServer(cfg, state)

	logrus.Infof("receiving into %s, alias %q, listening on port %d", cfg.DestinationDir, cfg.Alias, cfg.HTTPPort)
	logrus.Info("press Ctrl+C to stop")

	return srv.Start(ctx)
}

// autoAcceptOffers services the ServerTx/ClientRx UI-channel contract
// (spec §6): since the CLI has no interactive selection UI, every offer is
// accepted in full, matching quick-save behavior but still routed through
// the channel pair rather than bypassing it.
func autoAcceptOffers(ctx context.Context, state *core.State, nerd bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-state.ServerTx:
			if !ok {
				return
			}
			offer, isOffer := msg.(core.SelectedFiles)
			if !isOffer {
				continue
			}
			logrus.Infof("peer offered %d file(s), accepting all", len(offer.Files))

			sink := make(chan core.UploadProgress, 1)
			done := make(chan struct{})
			go reportProgress(sink, done, nerd)

			select {
			case state.ClientRx <- core.FilesSelected{Sink: sink, Files: offer.Files}:
			case <-ctx.Done():
				close(done)
				return
			}
		}
	}
}
