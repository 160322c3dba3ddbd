package workers

import (
	"chat-realtime/infrastructure/grpc/server"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
)

// GRPCServerWorker serves the health service on its own port.
type GRPCServerWorker struct {
	log     *slog.Logger
	address string
	health  *server.HealthServer
}

func NewGRPCServerWorker(log *slog.Logger, address string, health *server.HealthServer) *GRPCServerWorker {
	return &GRPCServerWorker{log: log, address: address, health: health}
}

func (w *GRPCServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}
	return w.Serve(ctx, listener)
}

func (w *GRPCServerWorker) Serve(ctx context.Context, listener net.Listener) error {
	s := w.health.Server()
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC health server", "address", listener.Addr().String(), "at", time.Now().UTC())
		if err := s.Serve(listener); err != nil && err != grpc.ErrServerStopped {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	w.health.MarkServing()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}
	w.health.Shutdown()
	s.GracefulStop()
	w.log.Info("gRPC health server stopped")
	return nil
}
