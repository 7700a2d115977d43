// Package config assembles the probe configuration from defaults, an optional
// YAML or TOML file and command line flags, in increasing precedence.
package config

import (
	"time"

	"github.com/DrC0ns0le/net-latency/internal/output"
)

type Mode string

const (
	Client Mode = "client"
	Server Mode = "server"
)

type Proto string

const (
	TCP  Proto = "tcp"
	UDP  Proto = "udp"
	ICMP Proto = "icmp"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultInterval  = time.Second
	DefaultFrameSize = 1500
	DefaultMaxConns  = 1024
)

type Config struct {
	Mode  Mode
	Proto Proto
	// Path is host:port for tcp and udp, a bare host for icmp. In server
	// mode the host may be empty to listen on all addresses.
	Path string

	Timeout   time.Duration
	Interval  time.Duration
	FrameSize int
	// LatencyWarn is nil when no threshold is configured.
	LatencyWarn *time.Duration

	Output        output.Kind
	OutputOptions string

	Metrics MetricsConfig
	// GRPCPort serves the health service when non-zero (server mode).
	GRPCPort int
	MaxConns int

	ICMPPrivileged bool

	Debug   bool
	LogFile string
}

type MetricsConfig struct {
	Port int
	Path string
}

func Default() *Config {
	return &Config{
		Timeout:   DefaultTimeout,
		Interval:  DefaultInterval,
		FrameSize: DefaultFrameSize,
		Output:    output.Regular,
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		MaxConns:       DefaultMaxConns,
		ICMPPrivileged: true,
	}
}

// seconds converts a float number of seconds, as used on the command line and
// in config files, to a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
