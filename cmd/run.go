package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/packetsentry/internal/config"
	"firestige.xyz/packetsentry/internal/log"
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/engine"
	"firestige.xyz/packetsentry/pkg/ingress"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start packetsentry capture, classification, and parsing",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMain(); err != nil {
			exitWithError("run", err)
		}
	},
}

func runMain() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Init(cfg.Logger)
	logger := log.GetLogger()

	host := parser.NewHost()
	if err := host.LoadStatic(cfg.StaticParsers...); err != nil {
		return fmt.Errorf("loading static parsers: %w", err)
	}
	for _, path := range cfg.ParserLibraries {
		if err := host.LoadLibrary(path); err != nil {
			return fmt.Errorf("loading parser library %s: %w", path, err)
		}
	}

	mgr := classify.NewManager()
	for _, p := range host.Parsers() {
		if err := p.RegisterClassifyRules(mgr); err != nil {
			return fmt.Errorf("parser %q: registering classify rules: %w", p.Name(), err)
		}
	}
	if err := mgr.Prepare(); err != nil {
		return fmt.Errorf("preparing classifier: %w", err)
	}
	if err := host.InitAll(); err != nil {
		return fmt.Errorf("initializing parsers: %w", err)
	}
	defer func() {
		if err := host.ExitAll(); err != nil {
			logger.WithError(err).Warnf("cmd: parser shutdown reported errors")
		}
	}()

	sources, err := buildSources(cfg)
	if err != nil {
		return err
	}

	fanout := make([]chan *packet.Packet, cfg.ClassifierWorkers)
	for i := range fanout {
		fanout[i] = make(chan *packet.Packet, cfg.ChannelCapacity)
	}

	var exit atomic.Bool
	var rxWg, engineWg sync.WaitGroup

	for i, src := range sources {
		rxWg.Add(1)
		go func(i int, src ingress.Capture) {
			defer rxWg.Done()
			rx := ingress.NewRxWorker(fmt.Sprintf("source-%d", i), src, fanout,
				ingress.RxConfig{StatLogInterval: cfg.RxStatLogInterval, OverflowLogInterval: 10000},
				logger, &exit)
			if err := rx.Run(); err != nil {
				logger.WithError(err).Errorf("cmd: rx worker %d terminated", i)
			}
		}(i, src)
	}

	for i, ch := range fanout {
		w, err := engine.NewWorker(i, ch, mgr, host, logger)
		if err != nil {
			return fmt.Errorf("allocating classify worker %d scratch: %w", i, err)
		}
		engineWg.Add(1)
		go func(w *engine.Worker) {
			defer engineWg.Done()
			w.Run()
		}(w)
	}

	rxDone := make(chan struct{})
	go func() { rxWg.Wait(); close(rxDone) }()

	waitForShutdownOrDone(&exit, rxDone)

	// Every rx worker must observe the exit flag and return before its
	// fanout channels are closed, or a still-running rx thread could
	// send on a closed channel.
	rxWg.Wait()
	for _, ch := range fanout {
		close(ch)
	}
	engineWg.Wait()
	return nil
}

func buildSources(cfg *config.Config) ([]ingress.Capture, error) {
	var sources []ingress.Capture

	for _, iface := range cfg.Interfaces {
		src, err := ingress.NewLiveSource(ingress.LiveConfig{
			Interface:    iface,
			SnapLen:      cfg.SnapLen,
			BufferSizeMB: cfg.BufferSizeMB,
			TimeoutMs:    cfg.ReadTimeoutMillis,
			BpfFilter:    cfg.BPFFilter,
		})
		if err != nil {
			return nil, fmt.Errorf("opening interface %s: %w", iface, err)
		}
		sources = append(sources, src)
	}

	if cfg.PcapFile != "" {
		src, err := ingress.NewOfflineSourceFile(cfg.PcapFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if cfg.PcapDir != "" {
		src, err := ingress.NewOfflineSourceDir(cfg.PcapDir)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// waitForShutdownOrDone blocks until SIGINT/SIGTERM or every rx worker
// has already returned on its own (offline sources reaching EOF), then
// sets the shared exit flag every rx worker polls between packets
// (spec.md §5 cancellation contract: single atomic flag, no mid-packet
// cancellation).
func waitForShutdownOrDone(exit *atomic.Bool, rxDone <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-rxDone:
	}
	exit.Store(true)
}
