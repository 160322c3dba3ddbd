package main

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/errors"
	"chat-realtime/infrastructure/grpc/server"
	"chat-realtime/infrastructure/ws"
	"chat-realtime/internal"
	"chat-realtime/moderation"
	"chat-realtime/observability"
	"chat-realtime/repositories"
	"chat-realtime/runtime"
	"chat-realtime/runtime/workers"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until SIGINT/SIGTERM.
// Returning instead of exiting lets the deferred cleanups run.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	store, err := repositories.NewStore(db, log)
	if err != nil {
		return fmt.Errorf("store init failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	// 3. Optional moderation
	censor, err := loadCensor(config, log)
	if err != nil {
		return fmt.Errorf("moderation init failed: %w", err)
	}

	// 4. Supervision & Orchestration
	metrics := observability.NewMetrics()
	sup := workers.NewSupervisor(log, metrics, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, sup, store, metrics, runtime.Config{
		MaxContentLength: config.MaxContentLength,
		SinkTimeout:      config.SinkTimeout,
		Censor:           censor,
	})

	// 5. HTTP surface
	gate := auth.NewGate(config.JWTSecret)
	handler := ws.NewHandler(log, orchestrator, ws.Settings{
		SendBufferSize:    config.SendBufferSize,
		MaxMessageSize:    config.MaxMessageSize,
		RateLimitBurst:    config.RateLimitBurst,
		RateLimitInterval: config.RateLimitInterval,
		AllowedOrigins:    internal.SplitList(config.AllowedOrigins),
	})

	mux := http.NewServeMux()
	mux.Handle("GET /ws", gate.Middleware(handler, func(r *http.Request, err error) {
		metrics.ConnectionsTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
		log.Debug("Connection rejected", "remote", r.RemoteAddr, "error", err)
	}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	})
	mux.Handle("GET /metrics", metrics.Handler())
	if config.EnableDebug {
		log.Warn("Debug inspector enabled", "path", "/debug/inspect")
		mux.Handle("GET /debug/inspect", internal.InspectHandler(db, nil, orchestrator.Stats))
	}

	// 6. Workers
	sup.Add(
		workers.NewHTTPServerWorker(log, fmt.Sprintf("%s:%d", config.Host, config.Port), mux, config.ShutdownTimeout),
		workers.NewGRPCServerWorker(log, fmt.Sprintf("%s:%d", config.Host, config.GRPCPort), server.NewHealthServer(log)),
		workers.NewHeartbeatWorker(log, metrics, config.HeartbeatInterval),
	)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Blocks until the signal, then closes every live connection
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}

func loadCensor(config Config, log *slog.Logger) (contract.Censor, error) {
	if !config.EnableModeration {
		return nil, nil
	}
	replacement, err := internal.CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return nil, err
	}
	data, err := runtime.NewCensoredLoader(os.DirFS(config.CensoredDir)).LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.CensoredDir, err)
	}
	log.Info("Censored words loaded", "files", data.Files, "words", len(data.Words))
	return moderation.NewModerator(data.Words, replacement, log)
}
