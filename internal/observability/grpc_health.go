package observability

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the readiness checks over the standard gRPC
// health protocol. The overall service ("") and each dependency by name
// are reported.
type GRPCHealthServer struct {
	server *grpc.Server
	health *health.Server
	checks []DependencyCheck
}

// NewGRPCHealthServer creates a gRPC server with only the health service registered
func NewGRPCHealthServer(checks ...DependencyCheck) *GRPCHealthServer {
	s := &GRPCHealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
		checks: checks,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	return s
}

// Refresh runs the checks once and publishes the results
func (s *GRPCHealthServer) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	dependencies, allHealthy := RunChecks(ctx, s.checks)
	for name, dep := range dependencies {
		s.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	s.health.SetServingStatus("", servingStatus(allHealthy))
}

// Run refreshes the published status every interval until ctx is done
func (s *GRPCHealthServer) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Serve accepts gRPC connections on lis until Stop is called
func (s *GRPCHealthServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop marks everything as not serving and drains connections
func (s *GRPCHealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// Check answers a health query without going over the network
func (s *GRPCHealthServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
