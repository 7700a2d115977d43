package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// Kind selects an output sink.
type Kind string

const (
	Regular Kind = "regular"
	Syslog  Kind = "syslog"
	Chart   Kind = "chart"
	NDJSON  Kind = "ndjson"
	Trap    Kind = "trap"
)

var kinds = []Kind{Regular, Syslog, Chart, NDJSON, Trap}

func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown output kind %q", s)
}

// Outcome is the result of one probe iteration: a latency on success or
// the error that ended the session.
type Outcome struct {
	Latency time.Duration
	Err     error
}

// RenderError reports that the sink could not write its output. It is fatal
// to the probe loop.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return "output failed: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Sink consumes one Outcome per iteration.
type Sink interface {
	Render(o Outcome) error
	// Warn reports a loop-level condition such as a pacing overrun. Sinks
	// that own the whole screen or emit machine-readable output ignore it.
	Warn(msg string)
	Close() error
}

// Options configures New.
type Options struct {
	Title string
	// Warn is the latency at or above which samples are reported at warning
	// level. Nil disables the threshold.
	Warn *time.Duration
	// TrapOptions is the comma separated key=value list for the trap sink.
	TrapOptions string

	Logger logging.Logger
	// Out defaults to os.Stdout.
	Out io.Writer
}

// New builds the sink for kind.
func New(kind Kind, opts Options) (Sink, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	terminal := false
	if opts.Out == nil {
		opts.Out = os.Stdout
		terminal = isatty.IsTerminal(os.Stdout.Fd())
	}

	switch kind {
	case Regular:
		return NewConsole(opts.Logger, opts.Out, opts.Warn, terminal), nil
	case Syslog:
		return NewConsole(opts.Logger, opts.Out, opts.Warn, false), nil
	case Chart:
		c := NewChart(opts.Title, opts.Out, stdoutSize, opts.Logger)
		if terminal {
			c.WatchResize()
		}
		return c, nil
	case NDJSON:
		return NewNDJSON(opts.Out), nil
	case Trap:
		cfg, err := ParseTrapOptions(opts.TrapOptions)
		if err != nil {
			return nil, err
		}
		n, err := NewUDPNotifier(cfg)
		if err != nil {
			return nil, err
		}
		return NewTrap(n, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown output kind %q", kind)
	}
}

// Title renders the probe title, e.g. "10.0.0.1:5000 (TCP) 1500 bytes".
// A frame size of zero is omitted.
func Title(target, protocol string, frameSize int) string {
	title := fmt.Sprintf("%s (%s)", color.GreenString(target), strings.ToUpper(protocol))
	if frameSize > 0 {
		title += fmt.Sprintf(" %s bytes", color.CyanString("%d", frameSize))
	}
	return title
}
