package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/DrC0ns0le/net-latency/internal/measure/latency"
	"github.com/DrC0ns0le/net-latency/internal/output"
)

// ConfigError is a startup error; the process exits without probing.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Validate checks the configuration without touching the network.
func (c *Config) Validate() error {
	switch c.Mode {
	case Client, Server:
	default:
		return invalid("mode", "%q, expected client or server", c.Mode)
	}

	switch c.Proto {
	case TCP, UDP, ICMP:
	default:
		return invalid("protocol", "%q, expected tcp, udp or icmp", c.Proto)
	}
	if c.Mode == Server && c.Proto == ICMP {
		return invalid("protocol", "icmp has no server mode")
	}

	if c.Path == "" {
		return invalid("path", "empty")
	}
	if c.Timeout <= 0 {
		return invalid("timeout", "must be positive, got %v", c.Timeout)
	}
	if c.Interval <= 0 {
		return invalid("interval", "must be positive, got %v", c.Interval)
	}
	if c.LatencyWarn != nil && *c.LatencyWarn < 0 {
		return invalid("latency-warn", "must not be negative, got %v", *c.LatencyWarn)
	}

	maxFrame := latency.MaxFrameSize
	if c.Proto == UDP {
		maxFrame = latency.MaxUDPFrameSize
	}
	if c.Proto != ICMP && (c.FrameSize < latency.MinFrameSize || c.FrameSize > maxFrame) {
		return invalid("frame-size", "%d, expected %d..%d", c.FrameSize, latency.MinFrameSize, maxFrame)
	}

	if _, err := output.ParseKind(string(c.Output)); err != nil {
		return &ConfigError{Field: "output", Err: err}
	}
	if c.Output == output.Trap {
		if _, err := output.ParseTrapOptions(c.OutputOptions); err != nil {
			return &ConfigError{Field: "output-options", Err: err}
		}
	}

	for field, port := range map[string]int{"metrics.port": c.Metrics.Port, "grpc.port": c.GRPCPort} {
		if port < 0 || port > 65535 {
			return invalid(field, "%d out of range", port)
		}
	}
	if c.MaxConns < 1 {
		return invalid("server.maxconns", "must be at least 1, got %d", c.MaxConns)
	}
	return nil
}

// Endpoint is the resolved probe target or listen address.
type Endpoint struct {
	Proto Proto
	// IP is nil for a server listening on all addresses.
	IP   net.IP
	Port int
}

// String renders ip:port, or the bare ip when there is no port.
func (e Endpoint) String() string {
	ip := ""
	if e.IP != nil {
		ip = e.IP.String()
	}
	if e.Port == 0 && e.Proto == ICMP {
		return ip
	}
	return net.JoinHostPort(ip, strconv.Itoa(e.Port))
}

func (e Endpoint) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: e.IP, Port: e.Port}
}

func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: e.Port}
}

// ResolveEndpoint resolves Path once at startup.
func (c *Config) ResolveEndpoint() (Endpoint, error) {
	ep := Endpoint{Proto: c.Proto}

	host := c.Path
	if c.Proto != ICMP {
		h, p, err := net.SplitHostPort(c.Path)
		if err != nil {
			return ep, &ConfigError{Field: "path", Err: err}
		}
		port, err := strconv.Atoi(p)
		if err != nil || port < 0 || port > 65535 || (port == 0 && c.Mode == Client) {
			return ep, invalid("path", "invalid port %q", p)
		}
		host, ep.Port = h, port
	}

	if host == "" {
		if c.Mode == Client {
			return ep, invalid("path", "missing host")
		}
		return ep, nil
	}

	addr, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return ep, &ConfigError{Field: "path", Err: err}
	}
	ep.IP = addr.IP
	return ep, nil
}
