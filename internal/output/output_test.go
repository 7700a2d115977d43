package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

func TestParseKind(t *testing.T) {
	for _, k := range []string{"regular", "syslog", "chart", "ndjson", "trap", "NDJSON"} {
		_, err := ParseKind(k)
		assert.NoError(t, err, k)
	}
	_, err := ParseKind("csv")
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	title := Title("10.0.0.1:5000", "tcp", 1500)
	assert.Contains(t, title, "10.0.0.1:5000")
	assert.Contains(t, title, "(TCP)")
	assert.Contains(t, title, "1500")

	assert.NotContains(t, Title("10.0.0.1", "icmp", 0), "bytes")
}

func TestRing(t *testing.T) {
	r := NewRing(ChartPoints)
	assert.Equal(t, make([]float64, ChartPoints), r.Values())

	for i := 1; i <= 2500; i++ {
		r.Push(float64(i))
	}
	values := r.Values()
	require.Len(t, values, ChartPoints)
	for i, v := range values {
		assert.Equal(t, float64(1501+i), v)
	}

	assert.Equal(t, []float64{2498, 2499, 2500}, r.Last(3))
	assert.Len(t, r.Last(ChartPoints+10), ChartPoints)
}

func TestRingPartial(t *testing.T) {
	r := NewRing(4)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []float64{0, 0, 1, 2}, r.Values())
}

func duration(d time.Duration) *time.Duration {
	return &d
}

func TestConsoleThreshold(t *testing.T) {
	tests := []struct {
		name    string
		warn    *time.Duration
		latency time.Duration
		level   string
	}{
		{name: "no threshold", latency: 5 * time.Second, level: "level=INFO"},
		{name: "below", warn: duration(100 * time.Millisecond), latency: 99 * time.Millisecond, level: "level=INFO"},
		{name: "equal", warn: duration(100 * time.Millisecond), latency: 100 * time.Millisecond, level: "level=WARN"},
		{name: "above", warn: duration(100 * time.Millisecond), latency: 250 * time.Millisecond, level: "level=WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs, out bytes.Buffer
			c := NewConsole(logging.NewLogger(&logs), &out, tt.warn, false)

			require.NoError(t, c.Render(Outcome{Latency: tt.latency}))
			assert.Contains(t, logs.String(), tt.level)
			assert.Contains(t, logs.String(), "latency: ")
			assert.Empty(t, out.String())
		})
	}
}

func TestConsoleLatencyLine(t *testing.T) {
	var logs bytes.Buffer
	c := NewConsole(logging.NewLogger(&logs), &bytes.Buffer{}, nil, false)

	require.NoError(t, c.Render(Outcome{Latency: 12500 * time.Microsecond}))
	assert.Contains(t, logs.String(), "latency: 0.0125 sec (12 ms)")
}

func TestConsoleSpinner(t *testing.T) {
	var logs, out bytes.Buffer
	c := NewConsole(logging.NewLogger(&logs), &out, duration(time.Second), true)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Render(Outcome{Latency: time.Millisecond}))
	}
	assert.Empty(t, logs.String())
	assert.Equal(t, cursorBack+"-"+cursorBack+"\\"+cursorBack+"|"+cursorBack+"/"+cursorBack+"-", out.String())

	// a slow sample clears the spinner before logging
	out.Reset()
	require.NoError(t, c.Render(Outcome{Latency: 2 * time.Second}))
	assert.Equal(t, clearLine, out.String())
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestConsoleFailure(t *testing.T) {
	var logs bytes.Buffer
	c := NewConsole(logging.NewLogger(&logs), &bytes.Buffer{}, nil, false)

	require.NoError(t, c.Render(Outcome{Err: errors.New("connection refused")}))
	assert.Contains(t, logs.String(), `level=ERROR msg="connection refused"`)

	c.Warn("loop timeout")
	assert.Contains(t, logs.String(), `level=WARN msg="loop timeout"`)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestRenderErrors(t *testing.T) {
	var re *RenderError

	err := NewNDJSON(failingWriter{}).Render(Outcome{Latency: time.Millisecond})
	assert.ErrorAs(t, err, &re)

	c := NewConsole(logging.Discard(), failingWriter{}, duration(time.Second), true)
	assert.ErrorAs(t, c.Render(Outcome{Latency: time.Millisecond}), &re)
}

func TestConsoleWarnLogsClearFailure(t *testing.T) {
	var logs bytes.Buffer
	c := NewConsole(logging.NewLogger(&logs), failingWriter{}, duration(time.Second), true)

	c.Warn("loop timeout")
	assert.Contains(t, logs.String(), "output failed: broken pipe")
	assert.Contains(t, logs.String(), `level=WARN msg="loop timeout"`)
}

func TestNDJSON(t *testing.T) {
	var out bytes.Buffer
	n := NewNDJSON(&out)
	n.now = func() time.Time { return time.Unix(1700000000, 500000000) }

	require.NoError(t, n.Render(Outcome{Latency: 25 * time.Millisecond}))
	require.NoError(t, n.Render(Outcome{Err: errors.New("timeout")}))
	n.Warn("loop timeout")

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"t":1700000000.5,"v":0.025}`, lines[0])
	assert.Equal(t, `{"t":1700000000.5,"v":-1}`, lines[1])

	var rec record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.InDelta(t, 0.025, rec.V, 1e-9)
}

func TestChart(t *testing.T) {
	var out, logs bytes.Buffer
	c := NewChart("target (UDP)", &out, func() (int, int, error) { return 80, 24, nil }, logging.NewLogger(&logs))

	require.NoError(t, c.Render(Outcome{Latency: 42 * time.Millisecond}))
	assert.True(t, strings.HasPrefix(out.String(), clearScreen))
	assert.Contains(t, out.String(), "target (UDP): ")
	assert.Contains(t, out.String(), "42")
	assert.Equal(t, 42.0, c.ring.Last(1)[0])

	// failures are logged and do not redraw
	out.Reset()
	require.NoError(t, c.Render(Outcome{Err: errors.New("invalid packet")}))
	assert.Empty(t, out.String())
	assert.Contains(t, logs.String(), "invalid packet")

	c.Warn("loop timeout")
	assert.NotContains(t, logs.String(), "loop timeout")
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestChartWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	c := NewChart("t", &out, func() (int, int, error) { return 0, 0, errors.New("not a tty") }, logging.Discard())

	require.NoError(t, c.Render(Outcome{Latency: time.Millisecond}))
	assert.Empty(t, out.String())
	assert.Equal(t, 1.0, c.ring.Last(1)[0])
}

func TestUnitsEncode(t *testing.T) {
	tests := []struct {
		units Units
		want  string
	}{
		{Seconds, "0.1234"},
		{Milliseconds, "123"},
		{Microseconds, "123400"},
		{Nanoseconds, "123400000"},
	}
	for _, tt := range tests {
		t.Run(tt.units.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.units.Encode(0.1234))
		})
	}
}

func TestParseTrapOptions(t *testing.T) {
	cfg, err := ParseTrapOptions("path=127.0.0.1:1234,oid=sensor:net/latency,units=ms")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1234", cfg.Addr.String())
	assert.Equal(t, "sensor:net/latency", cfg.OID)
	assert.Equal(t, Milliseconds, cfg.Units)

	cfg, err = ParseTrapOptions("oid=sensor:x, path=127.0.0.1:1234")
	require.NoError(t, err)
	assert.Equal(t, Seconds, cfg.Units)

	for _, bad := range []string{
		"",
		"oid=sensor:x",
		"path=127.0.0.1:1234",
		"path=127.0.0.1:1234,oid=sensor",
		"path=127.0.0.1:1234,oid=sensor:x,units=min",
		"path=127.0.0.1:1234,oid=sensor:x,color=red",
		"path",
	} {
		_, err := ParseTrapOptions(bad)
		assert.Error(t, err, bad)
	}
}

func TestUDPNotifier(t *testing.T) {
	monitor, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer monitor.Close()

	n, err := NewUDPNotifier(TrapConfig{
		Addr:  monitor.LocalAddr().(*net.UDPAddr),
		OID:   "sensor:net/latency",
		Units: Milliseconds,
	})
	require.NoError(t, err)

	sink := NewTrap(n, logging.Discard())
	require.NoError(t, sink.Render(Outcome{Latency: 123400 * time.Microsecond}))
	require.NoError(t, sink.Render(Outcome{Err: errors.New("timeout")}))

	buf := make([]byte, 128)
	monitor.SetReadDeadline(time.Now().Add(time.Second))
	size, _, err := monitor.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "u sensor:net/latency 1 123", string(buf[:size]))

	size, _, err = monitor.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "u sensor:net/latency -1", string(buf[:size]))

	assert.NoError(t, sink.Close())
}

type fakeNotifier struct {
	latencies []float64
	failures  int
	err       error
}

func (f *fakeNotifier) NotifyLatency(seconds float64) error {
	f.latencies = append(f.latencies, seconds)
	return f.err
}

func (f *fakeNotifier) NotifyFailure() error {
	f.failures++
	return f.err
}

func (f *fakeNotifier) Close() error { return nil }

func TestTrapSinkIgnoresNotifierErrors(t *testing.T) {
	var logs bytes.Buffer
	n := &fakeNotifier{err: errors.New("network unreachable")}
	sink := NewTrap(n, logging.NewLogger(&logs))

	assert.NoError(t, sink.Render(Outcome{Latency: 10 * time.Millisecond}))
	assert.NoError(t, sink.Render(Outcome{Err: errors.New("reset")}))
	assert.Equal(t, []float64{0.01}, n.latencies)
	assert.Equal(t, 1, n.failures)
	assert.Contains(t, logs.String(), "network unreachable")
}

func TestNew(t *testing.T) {
	var out bytes.Buffer
	for _, k := range []Kind{Regular, Syslog, Chart, NDJSON} {
		s, err := New(k, Options{Out: &out, Logger: logging.Discard()})
		require.NoError(t, err, k)
		assert.NoError(t, s.Close())
	}

	_, err := New(Trap, Options{Out: &out, Logger: logging.Discard()})
	assert.Error(t, err)

	s, err := New(Trap, Options{Out: &out, Logger: logging.Discard(), TrapOptions: "path=127.0.0.1:9,oid=sensor:x"})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
