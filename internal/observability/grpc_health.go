package observability

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealth exposes the standard gRPC health service for process supervisors
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewGRPCHealth listens on addr. The service starts NOT_SERVING.
func NewGRPCHealth(addr string, logger zerolog.Logger) (*GRPCHealth, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	return &GRPCHealth{
		server:   s,
		health:   hs,
		listener: lis,
		logger:   logger.With().Str("component", "grpc_health").Logger(),
	}, nil
}

// Addr returns the bound address
func (g *GRPCHealth) Addr() net.Addr {
	return g.listener.Addr()
}

// Serve blocks until Stop is called
func (g *GRPCHealth) Serve() error {
	g.logger.Info().Str("addr", g.listener.Addr().String()).Msg("gRPC health service listening")
	if err := g.server.Serve(g.listener); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// SetServing flips the reported status
func (g *GRPCHealth) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(ServiceName, status)
	g.health.SetServingStatus("", status)
}

// Stop marks the service down and shuts the server
func (g *GRPCHealth) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
