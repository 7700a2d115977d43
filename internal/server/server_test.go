package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/DrC0ns0le/net-latency/internal/config"
	"github.com/DrC0ns0le/net-latency/internal/measure/latency"
	"github.com/DrC0ns0le/net-latency/internal/system"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// syncBuffer is a log sink safe to read while server goroutines write to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testNode(proto config.Proto, logs io.Writer) *system.Node {
	cfg := config.Default()
	cfg.Mode, cfg.Proto = config.Server, proto
	cfg.Timeout = 2 * time.Second

	return &system.Node{
		StopCh:   make(chan struct{}),
		Config:   cfg,
		Endpoint: config.Endpoint{Proto: proto, IP: net.IPv4(127, 0, 0, 1)},
		Logger:   logging.NewLogger(logs),
	}
}

func startTCP(t *testing.T, node *system.Node) *TCPServer {
	t.Helper()
	s := NewTCPServer(node)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestTCPEcho(t *testing.T) {
	logs := &syncBuffer{}
	s := startTCP(t, testNode(config.TCP, logs))

	frame, err := latency.NewFrame(64)
	require.NoError(t, err)
	before := testutil.ToFloat64(echoFrames.WithLabelValues("tcp"))

	dialer := &latency.TCPDialer{Addr: s.Addr().(*net.TCPAddr), Timeout: time.Second, Frame: frame}
	sess, err := dialer.Dial(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, sess.Exchange(context.Background()))
	}
	require.NoError(t, sess.Close())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(echoFrames.WithLabelValues("tcp")) == before+5
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("disconnected"))
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "frame size: 64 bytes")
	assert.Contains(t, logs.String(), ": connected")
}

func hello(t *testing.T, addr net.Addr, msg []byte) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	var magic [1]byte
	_, err = io.ReadFull(conn, magic[:])
	require.NoError(t, err)
	require.Equal(t, latency.Magic, magic[0])

	_, err = conn.Write(msg)
	require.NoError(t, err)
	return conn
}

func TestTCPRejectsBadHello(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
	}{
		{"bad magic", []byte{0xEF, 64, 0, 0, 0}},
		{"zero size", latency.EncodeHello(0)},
		{"oversized", latency.EncodeHello(latency.MaxFrameSize + 1)},
	}

	logs := &syncBuffer{}
	s := startTCP(t, testNode(config.TCP, logs))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := hello(t, s.Addr(), tt.msg)

			// the server hangs up without echoing anything
			_, err := conn.Read(make([]byte, 1))
			assert.Error(t, err)
		})
	}
	assert.Contains(t, logs.String(), "handshake failed")
}

func TestTCPPartialFrame(t *testing.T) {
	logs := &syncBuffer{}
	s := startTCP(t, testNode(config.TCP, logs))

	conn := hello(t, s.Addr(), latency.EncodeHello(8))
	_, err := conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	conn.(*net.TCPConn).CloseWrite()

	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("unexpected EOF"))
	}, time.Second, 10*time.Millisecond)
}

func TestTCPPoolSaturation(t *testing.T) {
	node := testNode(config.TCP, io.Discard)
	node.Config.MaxConns = 1
	s := startTCP(t, node)

	// occupy the only worker
	busy := hello(t, s.Addr(), latency.EncodeHello(4))
	_, err := busy.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	echo := make([]byte, 4)
	_, err = io.ReadFull(busy, echo)
	require.NoError(t, err)

	refused, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer refused.Close()
	refused.SetDeadline(time.Now().Add(2 * time.Second))

	_, err = refused.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestTCPStopClosesConnections(t *testing.T) {
	s := NewTCPServer(testNode(config.TCP, io.Discard))
	require.NoError(t, s.Start())

	conn := hello(t, s.Addr(), latency.EncodeHello(4))
	require.NoError(t, s.Stop())

	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)

	_, err = net.DialTimeout("tcp", s.Addr().String(), time.Second)
	assert.Error(t, err)
}

func TestUDPEcho(t *testing.T) {
	s := NewUDPServer(testNode(config.UDP, io.Discard))
	require.NoError(t, s.Start())
	defer s.Stop()

	for _, size := range []int{1, 1500, latency.MaxUDPFrameSize} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			frame, err := latency.NewFrame(size)
			require.NoError(t, err)

			dialer := &latency.UDPDialer{Addr: s.Addr().(*net.UDPAddr), Timeout: time.Second, Frame: frame}
			sess, err := dialer.Dial(context.Background())
			require.NoError(t, err)
			defer sess.Close()

			assert.NoError(t, sess.Exchange(context.Background()))
		})
	}
}

func TestUDPStop(t *testing.T) {
	s := NewUDPServer(testNode(config.UDP, io.Discard))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	select {
	case <-s.done:
	default:
		t.Fatal("serve loop still running")
	}
}

func TestUDPReadErrorBackoff(t *testing.T) {
	s := NewUDPServer(testNode(config.UDP, io.Discard))
	require.NoError(t, s.Start())

	before := testutil.ToFloat64(echoErrors.WithLabelValues("udp"))
	// every read now fails immediately with a timeout
	require.NoError(t, s.conn.SetReadDeadline(time.Now().Add(-time.Second)))
	time.Sleep(100 * time.Millisecond)
	failures := testutil.ToFloat64(echoErrors.WithLabelValues("udp")) - before

	require.NoError(t, s.Stop())
	assert.GreaterOrEqual(t, failures, 1.0)
	assert.LessOrEqual(t, failures, 20.0)
}

func TestGRPCHealth(t *testing.T) {
	s := NewGRPCServer(testNode(config.TCP, io.Discard))
	require.NoError(t, s.Start())
	defer s.Stop()

	addr := "127.0.0.1:" + strconv.Itoa(s.Addr().(*net.TCPAddr).Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: EchoService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

type fakeServer struct {
	startErr error
	started  bool
	stopped  bool
}

func (f *fakeServer) Start() error {
	f.started = f.startErr == nil
	return f.startErr
}

func (f *fakeServer) Stop() error {
	f.stopped = true
	return nil
}

func TestServerManager(t *testing.T) {
	a, b := &fakeServer{}, &fakeServer{}
	stopCh := make(chan struct{})
	m := &ServerManager{stopCh: stopCh, servers: []Server{a, b}, logger: logging.Discard()}

	errCh := make(chan error, 1)
	go func() { errCh <- m.Start() }()

	close(stopCh)
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.True(t, a.stopped)
	assert.True(t, b.stopped)
}

func TestServerManagerStartFailure(t *testing.T) {
	bindErr := errors.New("address already in use")
	a, b, c := &fakeServer{}, &fakeServer{startErr: bindErr}, &fakeServer{}
	m := &ServerManager{stopCh: make(chan struct{}), servers: []Server{a, b, c}, logger: logging.Discard()}

	err := m.Start()
	assert.ErrorIs(t, err, bindErr)
	assert.True(t, a.stopped)
	assert.False(t, b.stopped)
	assert.False(t, c.started)
}

func TestNewServerManager(t *testing.T) {
	node := testNode(config.UDP, io.Discard)
	node.Config.GRPCPort = 5122
	node.Config.Metrics.Port = 5120

	m := NewServerManager(node)
	require.Len(t, m.servers, 3)
	assert.IsType(t, &UDPServer{}, m.servers[0])
	assert.IsType(t, &GRPCServer{}, m.servers[1])
}
