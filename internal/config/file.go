package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/DrC0ns0le/net-latency/internal/output"
)

// fileConfig mirrors Config in file form. Durations are float seconds and
// every leaf is optional so only the keys present override defaults.
type fileConfig struct {
	Mode        *string  `yaml:"mode" toml:"mode"`
	Protocol    *string  `yaml:"protocol" toml:"protocol"`
	Path        *string  `yaml:"path" toml:"path"`
	Timeout     *float64 `yaml:"timeout" toml:"timeout"`
	Interval    *float64 `yaml:"interval" toml:"interval"`
	FrameSize   *int     `yaml:"frame_size" toml:"frame_size"`
	LatencyWarn *float64 `yaml:"latency_warn" toml:"latency_warn"`

	Output        *string `yaml:"output" toml:"output"`
	OutputOptions *string `yaml:"output_options" toml:"output_options"`

	Metrics struct {
		Port *int    `yaml:"port" toml:"port"`
		Path *string `yaml:"path" toml:"path"`
	} `yaml:"metrics" toml:"metrics"`

	GRPC struct {
		Port *int `yaml:"port" toml:"port"`
	} `yaml:"grpc" toml:"grpc"`

	Server struct {
		MaxConns *int `yaml:"max_conns" toml:"max_conns"`
	} `yaml:"server" toml:"server"`

	ICMP struct {
		Privileged *bool `yaml:"privileged" toml:"privileged"`
	} `yaml:"icmp" toml:"icmp"`

	Logging struct {
		Debug *bool   `yaml:"debug" toml:"debug"`
		File  *string `yaml:"file" toml:"file"`
	} `yaml:"logging" toml:"logging"`
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file and applies the keys
// it sets onto cfg.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Field: "config", Err: errors.Wrap(err, "failed to read config file")}
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && err != io.EOF {
			return &ConfigError{Field: "config", Err: errors.Wrapf(err, "failed to parse %s", path)}
		}
	case ".toml":
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return &ConfigError{Field: "config", Err: errors.Wrapf(err, "failed to parse %s", path)}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return &ConfigError{Field: "config", Err: fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)}
		}
	default:
		return &ConfigError{Field: "config", Err: fmt.Errorf("unsupported config format %q", ext)}
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.Mode != nil {
		cfg.Mode = Mode(*fc.Mode)
	}
	if fc.Protocol != nil {
		cfg.Proto = Proto(*fc.Protocol)
	}
	if fc.Path != nil {
		cfg.Path = *fc.Path
	}
	if fc.Timeout != nil {
		cfg.Timeout = seconds(*fc.Timeout)
	}
	if fc.Interval != nil {
		cfg.Interval = seconds(*fc.Interval)
	}
	if fc.FrameSize != nil {
		cfg.FrameSize = *fc.FrameSize
	}
	if fc.LatencyWarn != nil {
		w := seconds(*fc.LatencyWarn)
		cfg.LatencyWarn = &w
	}
	if fc.Output != nil {
		kind, err := output.ParseKind(*fc.Output)
		if err != nil {
			return &ConfigError{Field: "output", Err: err}
		}
		cfg.Output = kind
	}
	if fc.OutputOptions != nil {
		cfg.OutputOptions = *fc.OutputOptions
	}
	if fc.Metrics.Port != nil {
		cfg.Metrics.Port = *fc.Metrics.Port
	}
	if fc.Metrics.Path != nil {
		cfg.Metrics.Path = *fc.Metrics.Path
	}
	if fc.GRPC.Port != nil {
		cfg.GRPCPort = *fc.GRPC.Port
	}
	if fc.Server.MaxConns != nil {
		cfg.MaxConns = *fc.Server.MaxConns
	}
	if fc.ICMP.Privileged != nil {
		cfg.ICMPPrivileged = *fc.ICMP.Privileged
	}
	if fc.Logging.Debug != nil {
		cfg.Debug = *fc.Logging.Debug
	}
	if fc.Logging.File != nil {
		cfg.LogFile = *fc.Logging.File
	}
	return nil
}
