package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name probes ask for besides the overall "" entry.
const ServiceName = "chat.realtime.Coordinator"

// HealthServer exposes the standard grpc.health.v1 service for orchestrator probes.
type HealthServer struct {
	log    *slog.Logger
	grpc   *grpc.Server
	health *health.Server
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return &HealthServer{log: log, grpc: s, health: hs}
}

func (h *HealthServer) Server() *grpc.Server {
	return h.grpc
}

func (h *HealthServer) MarkServing() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	h.log.Debug("Health status set", "status", healthpb.HealthCheckResponse_SERVING.String())
}

// Shutdown flips every service to NOT_SERVING so probes stop routing before the listeners close.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
	h.log.Debug("Health status set", "status", healthpb.HealthCheckResponse_NOT_SERVING.String())
}
