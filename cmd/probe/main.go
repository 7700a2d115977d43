package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DrC0ns0le/net-latency/internal/config"
	"github.com/DrC0ns0le/net-latency/internal/measure"
	"github.com/DrC0ns0le/net-latency/internal/measure/latency"
	"github.com/DrC0ns0le/net-latency/internal/metrics"
	"github.com/DrC0ns0le/net-latency/internal/output"
	"github.com/DrC0ns0le/net-latency/internal/server"
	"github.com/DrC0ns0le/net-latency/internal/system"
	"github.com/DrC0ns0le/net-latency/internal/system/netctl"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit code. Startup errors are printed to stderr
// before logging is routed away from the terminal.
func run(args []string, stderr io.Writer) int {
	cfg, err := config.ParseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	endpoint, err := cfg.ResolveEndpoint()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialise logging: %v\n", err)
		return 1
	}
	logging.SetDefault(logger)
	if cfg.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	node := &system.Node{
		StopCh:   make(chan struct{}),
		Config:   cfg,
		Endpoint: endpoint,
		Logger:   logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		close(node.StopCh)
	}()

	switch cfg.Mode {
	case config.Server:
		err = server.NewServerManager(node).Start()
	case config.Client:
		err = runClient(ctx, node)
	}
	if err != nil {
		logger.Errorf("%v", err)
		if !logsToTerminal(cfg) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

// logsToTerminal reports whether newLogger writes to stdout or stderr.
func logsToTerminal(cfg *config.Config) bool {
	if cfg.LogFile != "" {
		return false
	}
	return cfg.Output != output.Syslog && cfg.Output != output.Trap
}

// newLogger routes diagnostics according to the output kind so they never
// mix with machine-readable output.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	if cfg.LogFile != "" {
		return logging.NewFileLogger(cfg.LogFile), nil
	}
	switch cfg.Output {
	case output.Syslog, output.Trap:
		return logging.NewSyslogLogger("probe")
	case output.NDJSON:
		return logging.NewLogger(os.Stderr), nil
	default:
		return logging.NewLogger(os.Stdout), nil
	}
}

func runClient(ctx context.Context, node *system.Node) error {
	cfg, endpoint := node.Config, node.Endpoint

	if egress, err := netctl.LookupEgress(endpoint.IP); err != nil {
		node.Logger.Debugf("failed to look up route to %s: %v", endpoint.IP, err)
	} else {
		node.Logger.Debugf("route to %s: %s", endpoint.IP, egress)
	}

	var (
		dialer    latency.Dialer
		frameSize int
	)
	switch cfg.Proto {
	case config.TCP, config.UDP:
		frame, err := latency.NewFrame(cfg.FrameSize)
		if err != nil {
			return err
		}
		frameSize = len(frame)
		node.Logger.Debugf("frame digest: %016x", frame.Digest())

		if cfg.Proto == config.TCP {
			dialer = &latency.TCPDialer{Addr: endpoint.TCPAddr(), Timeout: cfg.Timeout, Frame: frame}
		} else {
			dialer = &latency.UDPDialer{Addr: endpoint.UDPAddr(), Timeout: cfg.Timeout, Frame: frame}
		}
	case config.ICMP:
		dialer = &latency.ICMPDialer{
			IP:      endpoint.IP,
			Timeout: cfg.Timeout,
			Pinger:  &latency.ProbingPinger{Privileged: cfg.ICMPPrivileged},
		}
	}

	sink, err := output.New(cfg.Output, output.Options{
		Title:       output.Title(endpoint.String(), string(cfg.Proto), frameSize),
		Warn:        cfg.LatencyWarn,
		TrapOptions: cfg.OutputOptions,
		Logger:      node.Logger,
	})
	if err != nil {
		return &config.ConfigError{Field: "output", Err: err}
	}
	defer sink.Close()

	if cfg.Metrics.Port > 0 {
		ms := metrics.NewHTTPServer(node)
		if err := ms.Start(); err != nil {
			return err
		}
		defer ms.Stop()
	}

	node.Logger.Debugf("probing %s every %v, timeout %v, warn threshold %s",
		endpoint, cfg.Interval, cfg.Timeout, config.Duration(cfg.LatencyWarn))

	return measure.NewRunner(measure.Config{
		Protocol: string(cfg.Proto),
		Target:   endpoint.String(),
		Interval: cfg.Interval,
		Dialer:   dialer,
		Sink:     sink,
		Logger:   node.Logger,
	}).Run(ctx)
}
