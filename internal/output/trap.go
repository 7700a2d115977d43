package output

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// Units selects how a latency in seconds is encoded in a trap.
type Units int

const (
	Seconds Units = iota
	Milliseconds
	Microseconds
	Nanoseconds
)

func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(s) {
	case "", "s":
		return Seconds, nil
	case "ms":
		return Milliseconds, nil
	case "us":
		return Microseconds, nil
	case "ns":
		return Nanoseconds, nil
	default:
		return 0, fmt.Errorf("unknown units %q", s)
	}
}

func (u Units) String() string {
	return [...]string{"s", "ms", "us", "ns"}[u]
}

// Encode formats seconds in u: plain seconds are passed through unrounded,
// the sub-second units are rounded to an integer.
func (u Units) Encode(seconds float64) string {
	var scale float64
	switch u {
	case Milliseconds:
		scale = 1e3
	case Microseconds:
		scale = 1e6
	case Nanoseconds:
		scale = 1e9
	default:
		return strconv.FormatFloat(seconds, 'f', -1, 64)
	}
	return strconv.FormatUint(uint64(math.Round(seconds*scale)), 10)
}

// TrapConfig addresses the monitored object that receives latency updates.
type TrapConfig struct {
	Addr  *net.UDPAddr
	OID   string
	Units Units
}

// ParseTrapOptions parses "path=host:port,oid=kind:group/id[,units=ms]".
func ParseTrapOptions(s string) (TrapConfig, error) {
	var (
		cfg  TrapConfig
		path string
	)
	if strings.TrimSpace(s) == "" {
		return cfg, fmt.Errorf("output options not specified")
	}

	for _, kv := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return cfg, fmt.Errorf("invalid output option %q", kv)
		}
		switch key {
		case "path":
			path = value
		case "oid":
			cfg.OID = value
		case "units":
			u, err := ParseUnits(value)
			if err != nil {
				return cfg, err
			}
			cfg.Units = u
		default:
			return cfg, fmt.Errorf("unknown output option %q", key)
		}
	}

	if path == "" {
		return cfg, fmt.Errorf("output option path is required")
	}
	addr, err := net.ResolveUDPAddr("udp", path)
	if err != nil {
		return cfg, errors.Wrapf(err, "invalid trap path %q", path)
	}
	cfg.Addr = addr

	kind, id, ok := strings.Cut(cfg.OID, ":")
	if !ok || kind == "" || id == "" {
		return cfg, fmt.Errorf("invalid oid %q", cfg.OID)
	}
	return cfg, nil
}

// Notifier pushes latency values to an external monitor.
type Notifier interface {
	NotifyLatency(seconds float64) error
	NotifyFailure() error
	Close() error
}

// UDPNotifier sends "set value" datagrams: "u <oid> 1 <value>" on success
// and "u <oid> -1" on failure.
type UDPNotifier struct {
	cfg  TrapConfig
	conn net.PacketConn
}

func NewUDPNotifier(cfg TrapConfig) (*UDPNotifier, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, errors.Wrap(err, "failed to bind trap socket")
	}
	return &UDPNotifier{cfg: cfg, conn: conn}, nil
}

func (n *UDPNotifier) NotifyLatency(seconds float64) error {
	return n.send(fmt.Sprintf("u %s 1 %s", n.cfg.OID, n.cfg.Units.Encode(seconds)))
}

func (n *UDPNotifier) NotifyFailure() error {
	return n.send(fmt.Sprintf("u %s -1", n.cfg.OID))
}

func (n *UDPNotifier) Close() error {
	return n.conn.Close()
}

func (n *UDPNotifier) send(msg string) error {
	_, err := n.conn.WriteTo([]byte(msg), n.cfg.Addr)
	return err
}

// TrapSink forwards every outcome to a Notifier. Notification failures are
// logged and never stop the probe.
type TrapSink struct {
	notifier Notifier
	logger   logging.Logger
}

func NewTrap(notifier Notifier, logger logging.Logger) *TrapSink {
	return &TrapSink{notifier: notifier, logger: logger}
}

func (t *TrapSink) Render(o Outcome) error {
	if o.Err != nil {
		t.logger.Error(o.Err.Error())
		if err := t.notifier.NotifyFailure(); err != nil {
			t.logger.Errorf("error sending trap: %v", err)
		}
		return nil
	}
	if err := t.notifier.NotifyLatency(o.Latency.Seconds()); err != nil {
		t.logger.Errorf("error sending trap: %v", err)
	}
	return nil
}

func (t *TrapSink) Warn(msg string) {
	t.logger.Warn(msg)
}

func (t *TrapSink) Close() error {
	return t.notifier.Close()
}
