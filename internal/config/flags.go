package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/DrC0ns0le/net-latency/internal/output"
)

const usage = "usage: probe [flags] <client|server> <tcp|udp|icmp> <path>"

// ParseFlags parses args (without the program name). Only flags given
// explicitly override values from the config file.
func ParseFlags(args []string, stderr io.Writer) (*Config, error) {
	var (
		configPath    string
		timeout       float64
		interval      float64
		frameSize     int
		latencyWarn   float64
		outputKind    string
		outputOptions string
		metricsPort   int
		metricsPath   string
		grpcPort      int
		maxConns      int
		privileged    bool
		debug         bool
		logFile       string
	)

	d := Default()

	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&configPath, "config", "", "path to a yaml or toml config file")

	fs.Float64Var(&timeout, "T", d.Timeout.Seconds(), "shorthand for -timeout")
	fs.Float64Var(&timeout, "timeout", d.Timeout.Seconds(), "socket timeout in seconds")
	fs.Float64Var(&interval, "I", d.Interval.Seconds(), "shorthand for -interval")
	fs.Float64Var(&interval, "interval", d.Interval.Seconds(), "probe interval in seconds")
	fs.IntVar(&frameSize, "S", d.FrameSize, "shorthand for -frame-size")
	fs.IntVar(&frameSize, "frame-size", d.FrameSize, "frame size in bytes")
	fs.Float64Var(&latencyWarn, "W", 0, "shorthand for -latency-warn")
	fs.Float64Var(&latencyWarn, "latency-warn", 0, "warn when latency reaches this many seconds")
	fs.StringVar(&outputKind, "O", string(d.Output), "shorthand for -output")
	fs.StringVar(&outputKind, "output", string(d.Output), "output: regular, syslog, chart, ndjson or trap")
	fs.StringVar(&outputOptions, "output-options", "", "output options, e.g. path=host:port,oid=kind:id,units=ms")

	fs.IntVar(&metricsPort, "metrics.port", d.Metrics.Port, "port for metrics server, 0 to disable")
	fs.StringVar(&metricsPath, "metrics.path", d.Metrics.Path, "path for metrics server")
	fs.IntVar(&grpcPort, "grpc.port", d.GRPCPort, "port for grpc health server, 0 to disable")
	fs.IntVar(&maxConns, "server.maxconns", d.MaxConns, "max concurrent tcp connections in server mode")
	fs.BoolVar(&privileged, "icmp.privileged", d.ICMPPrivileged, "use raw sockets for icmp")
	fs.BoolVar(&debug, "logging.debug", d.Debug, "enable debug logging")
	fs.StringVar(&logFile, "logging.file", d.LogFile, "write logs to a rotated file")

	if err := fs.Parse(args); err != nil {
		return nil, &ConfigError{Field: "flags", Err: err}
	}

	cfg := d
	if configPath != "" {
		if err := Load(configPath, cfg); err != nil {
			return nil, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "T", "timeout":
			cfg.Timeout = seconds(timeout)
		case "I", "interval":
			cfg.Interval = seconds(interval)
		case "S", "frame-size":
			cfg.FrameSize = frameSize
		case "W", "latency-warn":
			w := seconds(latencyWarn)
			cfg.LatencyWarn = &w
		case "O", "output":
			var kind output.Kind
			if kind, err = output.ParseKind(outputKind); err != nil {
				err = &ConfigError{Field: "output", Err: err}
				return
			}
			cfg.Output = kind
		case "output-options":
			cfg.OutputOptions = outputOptions
		case "metrics.port":
			cfg.Metrics.Port = metricsPort
		case "metrics.path":
			cfg.Metrics.Path = metricsPath
		case "grpc.port":
			cfg.GRPCPort = grpcPort
		case "server.maxconns":
			cfg.MaxConns = maxConns
		case "icmp.privileged":
			cfg.ICMPPrivileged = privileged
		case "logging.debug":
			cfg.Debug = debug
		case "logging.file":
			cfg.LogFile = logFile
		}
	})
	if err != nil {
		return nil, err
	}

	switch fs.NArg() {
	case 0:
		// all three positionals may come from the config file
	case 3:
		cfg.Mode = Mode(fs.Arg(0))
		cfg.Proto = Proto(fs.Arg(1))
		cfg.Path = fs.Arg(2)
	default:
		return nil, &ConfigError{Field: "args", Err: fmt.Errorf("expected 3 arguments, got %d\n%s", fs.NArg(), usage)}
	}

	return cfg, nil
}

// Duration is a helper for printing a threshold that may be unset.
func Duration(d *time.Duration) string {
	if d == nil {
		return "none"
	}
	return d.String()
}
