package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DrC0ns0le/net-latency/internal/system"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// HTTPServer exposes the default Prometheus registry.
type HTTPServer struct {
	port int
	path string

	server   *http.Server
	listener net.Listener
	logger   logging.Logger
}

func NewHTTPServer(global *system.Node) *HTTPServer {
	return &HTTPServer{
		port:   global.Config.Metrics.Port,
		path:   global.Config.Metrics.Path,
		logger: global.Logger.With("component", "metrics"),
	}
}

func (s *HTTPServer) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/hello", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	mux.Handle(s.path, promhttp.Handler())

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Infof("serving metrics on %s%s", listener.Addr(), s.path)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("metrics server failed: %v", err)
		}
	}()
	return nil
}

func (s *HTTPServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
