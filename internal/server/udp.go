package server

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/DrC0ns0le/net-latency/internal/system"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

const udpBufferSize = 65535

// UDPServer echoes every datagram back to its sender, one at a time.
type UDPServer struct {
	addr string

	conn    *net.UDPConn
	logger  logging.Logger
	closing atomic.Bool
	done    chan struct{}
}

func NewUDPServer(global *system.Node) *UDPServer {
	return &UDPServer{
		addr:   global.Endpoint.String(),
		logger: global.Logger.With("component", "udp"),
		done:   make(chan struct{}),
	}
}

func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.conn = conn

	s.logger.Infof("UDP listening at %s", conn.LocalAddr())
	go s.serve()
	return nil
}

func (s *UDPServer) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPServer) Stop() error {
	s.closing.Store(true)
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *UDPServer) serve() {
	defer close(s.done)

	buf := make([]byte, udpBufferSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Errorf("error receiving: %v", err)
			echoErrors.WithLabelValues("udp").Inc()
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if _, err := s.conn.WriteToUDP(buf[:n], addr); err != nil {
			s.logger.Errorf("%s: %v", addr, err)
			echoErrors.WithLabelValues("udp").Inc()
			continue
		}
		echoFrames.WithLabelValues("udp").Inc()
	}
}
