package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/observability"
	"context"
	"log/slog"
	"time"
)

type TargetKind int

const (
	TargetSession TargetKind = iota
	TargetRoom
	TargetUser
	TargetEveryone
)

// Target selects recipients. It is resolved at delivery time, never earlier,
// so the subscriber set reflects the state after the durable write.
type Target struct {
	Kind             TargetKind
	Session          contract.Session
	Room             domain.RoomID
	User             domain.UserID
	ExceptUser       domain.UserID
	ExceptConnection domain.ConnectionID
}

func ToSession(session contract.Session) Target {
	return Target{Kind: TargetSession, Session: session}
}

func ToRoom(roomID domain.RoomID) Target {
	return Target{Kind: TargetRoom, Room: roomID}
}

// ToRoomExcept skips every connection of the given user.
func ToRoomExcept(roomID domain.RoomID, userID domain.UserID) Target {
	return Target{Kind: TargetRoom, Room: roomID, ExceptUser: userID}
}

// ToUser reaches the user's current presence entry, if online.
func ToUser(userID domain.UserID) Target {
	return Target{Kind: TargetUser, User: userID}
}

func ToEveryoneExcept(connectionID domain.ConnectionID) Target {
	return Target{Kind: TargetEveryone, ExceptConnection: connectionID}
}

type Delivery struct {
	Target Target
	Event  event.Event
}

type Deliverer interface {
	Deliver(ctx context.Context, deliveries ...Delivery)
}

// EventFanout delivers events to live sessions.
//
// Delivery is best-effort per recipient: a session refusing an event is logged
// and counted and the loop moves on to the next one. Deliveries are processed in
// the order given, which is what keeps a stop-typing ahead of the message it precedes.
type EventFanout struct {
	log         *slog.Logger
	registry    *Registry
	presence    *PresenceDirectory
	metrics     *observability.Metrics
	sinkTimeout time.Duration
}

const defaultSinkTimeout = 2 * time.Second

func NewEventFanout(log *slog.Logger, registry *Registry, presence *PresenceDirectory,
	metrics *observability.Metrics, sinkTimeout time.Duration) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = defaultSinkTimeout
	}
	return &EventFanout{log: log, registry: registry, presence: presence, metrics: metrics, sinkTimeout: sinkTimeout}
}

func (f *EventFanout) Deliver(ctx context.Context, deliveries ...Delivery) {
	for _, d := range deliveries {
		for _, session := range f.resolve(d.Target) {
			f.consume(ctx, session, d.Event)
		}
	}
}

func (f *EventFanout) resolve(target Target) []contract.Session {
	switch target.Kind {
	case TargetSession:
		if target.Session == nil {
			return nil
		}
		return []contract.Session{target.Session}
	case TargetRoom:
		return f.registry.GetSinksForRoom(target.Room, target.ExceptUser)
	case TargetUser:
		if entry, ok := f.presence.Get(target.User); ok {
			return []contract.Session{entry.Session}
		}
		return nil
	case TargetEveryone:
		return f.presence.Sessions(target.ExceptConnection)
	default:
		f.log.Warn("Unknown delivery target", "kind", target.Kind)
		return nil
	}
}

func (f *EventFanout) consume(ctx context.Context, session contract.Session, evt event.Event) {
	ctx, cancel := context.WithTimeout(ctx, f.sinkTimeout)
	defer cancel()

	if err := session.Consume(ctx, evt); err != nil {
		f.metrics.DeliveryFailures.WithLabelValues(evt.Name()).Inc()
		f.log.Debug("Event not delivered",
			"event", evt.Name(), "conn_id", session.ID(), "user_id", session.Identity().ID, "error", err)
		return
	}
	f.metrics.EventsDelivered.WithLabelValues(evt.Name()).Inc()
}
