package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/DrC0ns0le/net-latency/internal/measure/latency"
	"github.com/DrC0ns0le/net-latency/internal/system"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// TCPServer accepts probe connections and echoes every frame back. Each
// connection is served by a worker from a bounded pool; connections beyond
// the pool size are refused.
type TCPServer struct {
	addr     string
	timeout  time.Duration
	maxConns int

	listener net.Listener
	pool     *ants.Pool
	logger   logging.Logger

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing atomic.Bool
	done    chan struct{}
}

func NewTCPServer(global *system.Node) *TCPServer {
	return &TCPServer{
		addr:     global.Endpoint.String(),
		timeout:  global.Config.Timeout,
		maxConns: global.Config.MaxConns,
		logger:   global.Logger.With("component", "tcp"),
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds the listener and serves in the background.
func (s *TCPServer) Start() error {
	pool, err := ants.NewPool(s.maxConns, ants.WithNonblocking(true))
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		pool.Release()
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.pool = pool
	s.listener = listener

	s.logger.Infof("TCP listening at %s", listener.Addr())
	go s.serve()
	return nil
}

// Addr returns the bound address; valid after Start.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and all open connections.
func (s *TCPServer) Stop() error {
	s.closing.Store(true)
	err := s.listener.Close()
	<-s.done

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.pool.Release()
	return err
}

func (s *TCPServer) serve() {
	defer close(s.done)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Errorf("error accepting connection: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.track(conn, true)
		if err := s.pool.Submit(func() { s.handle(conn) }); err != nil {
			s.logger.Warnf("%s: refused: %v", conn.RemoteAddr(), err)
			echoErrors.WithLabelValues("tcp").Inc()
			s.track(conn, false)
			conn.Close()
		}
	}
}

func (s *TCPServer) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		s.conns[conn] = struct{}{}
		echoConnections.WithLabelValues("tcp").Inc()
		return
	}
	delete(s.conns, conn)
	echoConnections.WithLabelValues("tcp").Dec()
}

func (s *TCPServer) handle(conn net.Conn) {
	defer func() {
		s.track(conn, false)
		conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	s.logger.Infof("%s: connected", remote)
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	if err := s.echo(conn, remote); err != nil {
		if !s.closing.Load() {
			s.logger.Errorf("%s: %v", remote, err)
		}
		echoErrors.WithLabelValues("tcp").Inc()
		return
	}
	s.logger.Infof("%s: disconnected", remote)
}

// echo runs the handshake and then echoes frames until the client closes
// the connection at a frame boundary. A timeout or a partial frame is an
// error.
func (s *TCPServer) echo(conn net.Conn, remote string) error {
	size, err := latency.ServerHandshake(conn, time.Now().Add(s.timeout))
	if err != nil {
		return err
	}
	s.logger.Infof("%s: frame size: %d bytes", remote, size)

	buf := make([]byte, size)
	for {
		conn.SetDeadline(time.Now().Add(s.timeout))

		n, err := io.ReadFull(conn, buf)
		if err == io.EOF && n == 0 {
			return nil
		}
		if err != nil {
			return &latency.IOError{Op: "read", Err: err}
		}
		if _, err := conn.Write(buf); err != nil {
			return &latency.IOError{Op: "write", Err: err}
		}
		echoFrames.WithLabelValues("tcp").Inc()
	}
}
