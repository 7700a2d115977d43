package server

import (
	"fmt"
	"net"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/DrC0ns0le/net-latency/internal/system"
	"github.com/DrC0ns0le/net-latency/pkg/logging"
)

// EchoService is the health service name reported for the echo server.
const EchoService = "netlatency.Echo"

// GRPCServer exposes the standard gRPC health service so orchestrators can
// check that the echo server is up.
type GRPCServer struct {
	port     int
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	logger   logging.Logger
}

func NewGRPCServer(global *system.Node) *GRPCServer {
	return &GRPCServer{
		port:   global.Config.GRPCPort,
		logger: global.Logger.With("component", "grpc"),
	}
}

func (s *GRPCServer) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.server = grpc.NewServer()

	s.register()

	s.logger.Infof("gRPC server listening at %v", s.listener.Addr())
	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			s.logger.Errorf("failed to serve gRPC server: %v", err)
		}
	}()
	return nil
}

func (s *GRPCServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *GRPCServer) Stop() error {
	s.health.Shutdown()
	s.server.Stop()
	return nil
}

func (s *GRPCServer) register() {
	s.health = health.NewServer()
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(EchoService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s.server, s.health)
}
