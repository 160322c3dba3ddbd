// Package runtime binds live connections to conversation rooms.
// It owns the in-memory state (presence, subscriptions, typing) and rebuilds it
// from the store on every connect, so a restart loses nothing durable.
package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type connection struct {
	session contract.Session
	state   domain.ConnectionState
}

// Orchestrator is the connection lifecycle supervisor.
// Connect and Disconnect are driven by the transport; Handle forwards intents to the router.
type Orchestrator struct {
	mu          sync.Mutex
	log         *slog.Logger
	supervisor  contract.ISupervisor
	store       contract.Store
	presence    *PresenceDirectory
	registry    *Registry
	typing      *TypingTracker
	fanout      Deliverer
	router      *Router
	metrics     *observability.Metrics
	connections map[domain.ConnectionID]*connection
}

type Config struct {
	MaxContentLength int
	SinkTimeout      time.Duration
	Censor           contract.Censor
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, store contract.Store,
	metrics *observability.Metrics, config Config) *Orchestrator {
	presence := NewPresenceDirectory()
	registry := NewRegistry(store)
	typing := NewTypingTracker()
	fanout := NewEventFanout(log, registry, presence, metrics, config.SinkTimeout)
	router := NewRouter(log, store, presence, registry, typing, fanout, metrics, RouterConfig{
		MaxContentLength: config.MaxContentLength,
		Censor:           config.Censor,
	})
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		store:       store,
		presence:    presence,
		registry:    registry,
		typing:      typing,
		fanout:      fanout,
		router:      router,
		metrics:     metrics,
		connections: make(map[domain.ConnectionID]*connection),
	}
}

// Start runs the supervised workers until ctx is done, then closes every live connection.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	o.Stop()
	return nil
}

// Connect moves an authenticated session to Active: presence registration
// (superseding any older connection of the same user), room bootstrap from durable
// memberships, then the welcome and user_online events.
// The welcome carries the full conversation records, not only their ids.
func (o *Orchestrator) Connect(ctx context.Context, session contract.Session) error {
	identity := session.Identity()
	o.setState(session, domain.StateAuthenticated)

	if previous, superseded := o.presence.Register(session); superseded {
		o.metrics.PresenceSuperseded.Inc()
		o.log.Info("Connection superseded", "user_id", identity.ID,
			"old_conn_id", previous.Session.ID(), "new_conn_id", session.ID())
		o.retire(ctx, previous.Session)
		previous.Session.Close()
	}

	memberships, err := o.registry.Bootstrap(ctx, session)
	var conversations []domain.Conversation
	if err == nil {
		conversations, err = o.loadConversations(ctx, memberships)
	}
	if err != nil {
		o.abort(session)
		o.metrics.ConnectionsTotal.WithLabelValues("bootstrap_failed").Inc()
		return fmt.Errorf("bootstrap %s: %w", session.ID(), err)
	}
	if !o.promote(session) {
		// superseded by a newer connection while the memberships were loading
		o.abort(session)
		o.metrics.ConnectionsTotal.WithLabelValues("superseded").Inc()
		return errors.ErrConnectionClosed
	}
	o.metrics.ConnectionsActive.Inc()
	o.metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
	o.log.Info("Connection active", "conn_id", session.ID(), "user_id", identity.ID, "rooms", len(memberships))

	o.fanout.Deliver(ctx,
		Delivery{Target: ToSession(session), Event: event.JoinedConversation{User: identity, Conversations: conversations}},
		Delivery{Target: ToEveryoneExcept(session.ID()), Event: event.UserOnline{
			UserID:      identity.ID,
			Username:    identity.Username,
			DisplayName: identity.DisplayName,
			AvatarURL:   identity.AvatarURL,
		}},
	)
	return nil
}

func (o *Orchestrator) loadConversations(ctx context.Context, ids []domain.ConversationID) ([]domain.Conversation, error) {
	conversations := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conversation, err := o.store.GetConversation(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			o.log.Warn("Membership without conversation record", "conversation_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load conversation %d: %w", id, err)
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

// Handle drops intents of a connection that is not Active (superseded or closing).
func (o *Orchestrator) Handle(ctx context.Context, session contract.Session, cmd domain.Command) {
	if o.stateOf(session) != domain.StateActive {
		o.log.Debug("Intent ignored on inactive connection", "conn_id", session.ID(), "intent", cmd.Intent())
		return
	}
	o.router.Handle(ctx, session, cmd)
}

// Disconnect is idempotent. The presence entry is only removed, and user_offline
// only broadcast, while the entry still belongs to this connection.
func (o *Orchestrator) Disconnect(ctx context.Context, session contract.Session) {
	identity := session.Identity()
	retired := o.retire(ctx, session)
	o.forget(session)
	if !retired {
		return
	}

	if !o.presence.Unregister(identity.ID, session.ID()) {
		o.log.Debug("Presence already owned by a newer connection", "conn_id", session.ID(), "user_id", identity.ID)
		return
	}
	o.log.Info("Connection closed", "conn_id", session.ID(), "user_id", identity.ID)
	o.fanout.Deliver(ctx, Delivery{
		Target: ToEveryoneExcept(session.ID()),
		Event:  event.UserOffline{UserID: identity.ID, Username: identity.Username},
	})
}

// retire marks the connection Disconnected, ends its typing indicators and
// unsubscribes it from every room. It reports false when already retired.
func (o *Orchestrator) retire(ctx context.Context, session contract.Session) bool {
	o.mu.Lock()
	conn, ok := o.connections[session.ID()]
	if !ok || conn.state == domain.StateDisconnected {
		o.mu.Unlock()
		return false
	}
	wasActive := conn.state == domain.StateActive
	conn.state = domain.StateDisconnected
	o.mu.Unlock()

	if wasActive {
		o.metrics.ConnectionsActive.Dec()
	}

	var stops []Delivery
	for _, entry := range o.typing.DropConnection(session.ID()) {
		stops = append(stops, Delivery{
			Target: ToRoomExcept(domain.RoomOf(entry.ConversationID), entry.Identity.ID),
			Event:  event.NewUserStopTyping(entry.Identity, entry.ConversationID),
		})
	}
	o.metrics.TypingActive.Set(float64(o.typing.Len()))
	o.fanout.Deliver(ctx, stops...)

	o.registry.LeaveAll(session.ID())
	return true
}

// Stop closes every live connection; the transport reports each disconnect back.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	sessions := make([]contract.Session, 0, len(o.connections))
	for _, conn := range o.connections {
		sessions = append(sessions, conn.session)
	}
	o.mu.Unlock()

	o.log.Info("Closing live connections", "count", len(sessions))
	for _, session := range sessions {
		session.Close()
	}
}

// Stats is a point-in-time view of the in-memory state for the debug inspector.
func (o *Orchestrator) Stats() map[string]any {
	o.mu.Lock()
	states := make(map[string]int)
	for _, conn := range o.connections {
		states[conn.state.String()]++
	}
	o.mu.Unlock()

	return map[string]any{
		"connections": states,
		"online":      o.presence.Len(),
		"typing":      o.typing.Len(),
	}
}

func (o *Orchestrator) setState(session contract.Session, state domain.ConnectionState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	conn, ok := o.connections[session.ID()]
	if !ok {
		conn = &connection{session: session}
		o.connections[session.ID()] = conn
	}
	conn.state = state
}

// promote moves an Authenticated connection to Active and fails for any other state.
func (o *Orchestrator) promote(session contract.Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	conn, ok := o.connections[session.ID()]
	if !ok || conn.state != domain.StateAuthenticated {
		return false
	}
	conn.state = domain.StateActive
	return true
}

// abort undoes a connection that never reached Active.
func (o *Orchestrator) abort(session contract.Session) {
	o.registry.LeaveAll(session.ID())
	o.presence.Unregister(session.Identity().ID, session.ID())
	o.forget(session)
}

func (o *Orchestrator) stateOf(session contract.Session) domain.ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()

	if conn, ok := o.connections[session.ID()]; ok {
		return conn.state
	}
	return domain.StateDisconnected
}

func (o *Orchestrator) forget(session contract.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.connections, session.ID())
}
