package monitor

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/sonar.report/internal/sonar/network"
)

// HEALTH_SERVICE is the service name reported alongside the overall ("")
// status.
const HEALTH_SERVICE = "sonar.report.Sonar"

// Health is a gRPC health service that follows the client's connection
// state: SERVING while connected, NOT_SERVING otherwise.
type Health struct {
	srv *health.Server
}

func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.SetState(network.StateDisconnected)
	return h
}

// ServingStatus maps a connection state onto a health status.
func ServingStatus(s network.State) healthpb.HealthCheckResponse_ServingStatus {
	switch s {
	case network.StateConnected:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// SetState updates both the overall and the sonar service status.
func (h *Health) SetState(s network.State) {
	st := ServingStatus(s)
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(HEALTH_SERVICE, st)
}

// Watch applies every event until events closes or ctx ends.
func (h *Health) Watch(ctx context.Context, events <-chan network.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.SetState(ev.State)
		}
	}
}

// Check answers a health request without going through gRPC.
func (h *Health) Check(ctx context.Context, service string) (*healthpb.HealthCheckResponse, error) {
	return h.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
}

// Register adds the health service to g.
func (h *Health) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, h.srv)
}

// Shutdown reports NOT_SERVING for every service from now on.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}
