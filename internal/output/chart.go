package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/guptarohit/asciigraph"
	"golang.org/x/sys/unix"

	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

const (
	clearScreen = "\x1b[2J\x1b[H"
	// columns reserved for the y-axis labels
	chartMargin = 10
	// rows reserved for the title line and prompt
	chartHeader = 3
)

// ChartSink redraws a full-screen line chart of recent latencies, in
// milliseconds, after every successful sample.
type ChartSink struct {
	title  string
	ring   *Ring
	out    io.Writer
	size   func() (int, int, error)
	logger logging.Logger

	// mu serialises redraws and guards last
	mu   sync.Mutex
	last float64

	stop chan struct{}
	once sync.Once
}

// NewChart returns a chart sink. size reports the terminal columns and rows;
// when it fails the chart is not drawn.
func NewChart(title string, out io.Writer, size func() (int, int, error), logger logging.Logger) *ChartSink {
	return &ChartSink{
		title:  title,
		ring:   NewRing(ChartPoints),
		out:    out,
		size:   size,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

func (c *ChartSink) Render(o Outcome) error {
	if o.Err != nil {
		c.logger.Error(o.Err.Error())
		return nil
	}

	ms := float64(o.Latency) / float64(time.Millisecond)
	c.ring.Push(ms)

	c.mu.Lock()
	c.last = ms
	c.mu.Unlock()

	return c.redraw()
}

// Warn is a no-op: the chart owns the screen.
func (c *ChartSink) Warn(string) {}

// WatchResize redraws the chart from history whenever the terminal is resized.
func (c *ChartSink) WatchResize() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGWINCH)

	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				if err := c.redraw(); err != nil {
					c.logger.Errorf("error redrawing chart: %v", err)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *ChartSink) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *ChartSink) redraw() error {
	cols, rows, err := c.size()
	if err != nil {
		return nil
	}

	width := cols - chartMargin
	if width > c.ring.Cap() {
		width = c.ring.Cap()
	}
	if width < 1 {
		width = 1
	}
	height := rows - chartHeader
	if height < 1 {
		height = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(clearScreen)
	fmt.Fprintf(&buf, "%s: %s ms\n", c.title, color.New(color.FgWhite, color.Bold).Sprintf("%.0f", c.last))
	buf.WriteString(asciigraph.Plot(c.ring.Last(width),
		asciigraph.Height(height),
		asciigraph.LowerBound(0),
		asciigraph.Precision(0),
	))
	buf.WriteByte('\n')

	if _, err := c.out.Write(buf.Bytes()); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}
