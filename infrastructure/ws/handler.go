package ws

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Settings struct {
	SendBufferSize    int
	MaxMessageSize    int64
	RateLimitBurst    int
	RateLimitInterval time.Duration
	AllowedOrigins    []string
	PingPeriod        time.Duration
	PongWait          time.Duration
	WriteWait         time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.SendBufferSize <= 0 {
		s.SendBufferSize = 256
	}
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = 64 * 1024
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = 20
	}
	if s.RateLimitInterval <= 0 {
		s.RateLimitInterval = time.Second
	}
	if s.PongWait <= 0 {
		s.PongWait = 60 * time.Second
	}
	if s.PingPeriod <= 0 || s.PingPeriod >= s.PongWait {
		s.PingPeriod = s.PongWait * 9 / 10
	}
	if s.WriteWait <= 0 {
		s.WriteWait = 10 * time.Second
	}
	return s
}

// Handler upgrades authenticated requests and drives the connection lifecycle.
// It must sit behind auth.Gate.Middleware, which rejects bad credentials before any upgrade.
type Handler struct {
	log          *slog.Logger
	orchestrator contract.IOrchestrator
	settings     Settings
	upgrader     websocket.Upgrader
}

func NewHandler(log *slog.Logger, orchestrator contract.IOrchestrator, settings Settings) *Handler {
	settings = settings.withDefaults()
	return &Handler{
		log:          log,
		orchestrator: orchestrator,
		settings:     settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     OriginChecker(settings.AllowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, errors.ErrMissingCredential.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(domain.ConnectionID(uuid.NewString()), identity, conn, h.log, h.settings)
	go client.writePump()

	// keeps the request values, drops its cancellation
	ctx := context.WithoutCancel(r.Context())
	if err := h.orchestrator.Connect(ctx, client); err != nil {
		if errors.Is(err, errors.ErrConnectionClosed) {
			// a newer connection of the same user took over, nothing to report
			h.log.Info("Connection superseded during bootstrap", "conn_id", client.ID(), "user_id", identity.ID)
			client.Close()
			return
		}
		h.log.Warn("Connection refused", "conn_id", client.ID(), "user_id", identity.ID, "error", err)
		_ = client.Consume(ctx, event.Error{Message: errors.PublicMessage(err), Code: string(errors.CodeOf(err))})
		client.Close()
		return
	}
	defer h.orchestrator.Disconnect(ctx, client)

	client.readPump(ctx, h.orchestrator)
	client.Close()
}
