package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/DrC0ns0le/net-latency/internal/config"
	"github.com/DrC0ns0le/net-latency/internal/metrics"
	"github.com/DrC0ns0le/net-latency/internal/system"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

type Server interface {
	Start() error
	Stop() error
}

// ServerManager runs the echo server for the configured protocol together
// with the optional gRPC health and metrics servers.
type ServerManager struct {
	stopCh  chan struct{}
	servers []Server
	logger  logging.Logger
}

func NewServerManager(global *system.Node) *ServerManager {
	m := &ServerManager{
		stopCh: global.StopCh,
		logger: global.Logger,
	}

	switch global.Config.Proto {
	case config.TCP:
		m.servers = append(m.servers, NewTCPServer(global))
	case config.UDP:
		m.servers = append(m.servers, NewUDPServer(global))
	}
	if global.Config.GRPCPort > 0 {
		m.servers = append(m.servers, NewGRPCServer(global))
	}
	if global.Config.Metrics.Port > 0 {
		m.servers = append(m.servers, metrics.NewHTTPServer(global))
	}
	return m
}

// Start starts every server and blocks until the stop channel is closed.
// A server that fails to start stops the ones already running and its
// error is returned.
func (n *ServerManager) Start() error {
	for i, s := range n.servers {
		if err := s.Start(); err != nil {
			n.stop(n.servers[:i])
			return err
		}
	}

	<-n.stopCh
	n.logger.Info("received stop signal, shutting down servers")
	return n.stop(n.servers)
}

func (n *ServerManager) stop(servers []Server) error {
	stopErrCh := make(chan error, len(servers))

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s Server) {
			defer wg.Done()
			if err := s.Stop(); err != nil {
				n.logger.Errorf("error stopping server: %v", err)
				stopErrCh <- err
			}
		}(s)
	}

	wg.Wait()
	close(stopErrCh)

	var stopErrors []error
	for err := range stopErrCh {
		stopErrors = append(stopErrors, err)
	}
	if len(stopErrors) > 0 {
		return fmt.Errorf("errors occurred while stopping servers: %w", errors.Join(stopErrors...))
	}
	return nil
}
