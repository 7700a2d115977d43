package output

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

var spinnerFrames = []byte{'-', '\\', '|', '/'}

const (
	// move the cursor back one column
	cursorBack = "\x1b[D"
	// return to column 0 and erase the line
	clearLine = "\x1b[0G\x1b[0K"
)

// Console logs every sample through a logger. When a warning threshold is
// set and stdout is a terminal, samples below the threshold only advance a
// spinner instead of producing a line.
type Console struct {
	logger  logging.Logger
	out     io.Writer
	warn    *time.Duration
	spinner bool
	phase   int
}

func NewConsole(logger logging.Logger, out io.Writer, warn *time.Duration, spinner bool) *Console {
	return &Console{
		logger:  logger,
		out:     out,
		warn:    warn,
		spinner: spinner,
	}
}

func (c *Console) Render(o Outcome) error {
	if o.Err != nil {
		if err := c.clearLine(); err != nil {
			return err
		}
		c.logger.Error(o.Err.Error())
		return nil
	}

	defer func() {
		c.phase = (c.phase + 1) % len(spinnerFrames)
	}()

	switch {
	case c.warn != nil && o.Latency >= *c.warn:
		if err := c.clearLine(); err != nil {
			return err
		}
		c.logLatency(o.Latency, slog.LevelWarn)
	case c.warn != nil && c.spinner:
		if _, err := fmt.Fprintf(c.out, "%s%c", cursorBack, spinnerFrames[c.phase]); err != nil {
			return &RenderError{Err: err}
		}
	default:
		c.logLatency(o.Latency, slog.LevelInfo)
	}
	return nil
}

// Warn cannot return an error, so a failed spinner clear is logged instead.
func (c *Console) Warn(msg string) {
	if err := c.clearLine(); err != nil {
		c.logger.Error(err.Error())
	}
	c.logger.Warn(msg)
}

func (c *Console) Close() error {
	return nil
}

func (c *Console) logLatency(d time.Duration, level slog.Level) {
	s := d.Seconds()
	c.logger.Log(level, fmt.Sprintf("latency: %s sec (%.0f ms)", strconv.FormatFloat(s, 'f', -1, 64), s*1000))
}

func (c *Console) clearLine() error {
	if !c.spinner {
		return nil
	}
	if _, err := io.WriteString(c.out, clearLine); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}
