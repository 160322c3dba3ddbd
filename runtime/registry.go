package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
)

type Set map[domain.ConnectionID]struct{}

// Registry is the room membership manager: which live connection listens to which room.
// A session must be attached (Bootstrap) before it can subscribe; once detached (LeaveAll)
// late subscriptions are ignored so a disconnected handle never reappears in a room.
type Registry struct {
	mu            sync.RWMutex
	store         contract.Store
	sessions      map[domain.ConnectionID]contract.Session
	roomMembers   map[domain.RoomID]Set
	subscriptions map[domain.ConnectionID]map[domain.RoomID]struct{}
}

func NewRegistry(store contract.Store) *Registry {
	return &Registry{
		store:         store,
		sessions:      make(map[domain.ConnectionID]contract.Session),
		roomMembers:   make(map[domain.RoomID]Set),
		subscriptions: make(map[domain.ConnectionID]map[domain.RoomID]struct{}),
	}
}

// Bootstrap attaches the session and subscribes it to every room matching the
// user's durable memberships. The membership list is returned for the welcome event.
func (r *Registry) Bootstrap(ctx context.Context, session contract.Session) ([]domain.ConversationID, error) {
	conversations, err := r.store.GetDurableMemberships(ctx, session.Identity().ID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID()] = session
	r.subscriptions[session.ID()] = make(map[domain.RoomID]struct{}, len(conversations))
	for _, conversationID := range conversations {
		r.subscribeLocked(session.ID(), domain.RoomOf(conversationID))
	}
	return conversations, nil
}

// Join re-checks durable membership before subscribing; the subscription cache is never trusted.
func (r *Registry) Join(ctx context.Context, session contract.Session, conversationID domain.ConversationID) error {
	member, err := r.store.IsDurableMember(ctx, conversationID, session.Identity().ID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return errors.ErrNotAMember
	}
	r.Subscribe(session.ID(), domain.RoomOf(conversationID))
	return nil
}

// Subscribe adds an attached connection to a room without any durable check.
// It reports false when the connection is not attached.
func (r *Registry) Subscribe(connectionID domain.ConnectionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, attached := r.sessions[connectionID]; !attached {
		return false
	}
	r.subscribeLocked(connectionID, roomID)
	return true
}

func (r *Registry) subscribeLocked(connectionID domain.ConnectionID, roomID domain.RoomID) {
	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][connectionID] = struct{}{}
	r.subscriptions[connectionID][roomID] = struct{}{}
}

// Leave is unconditional.
func (r *Registry) Leave(connectionID domain.ConnectionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(connectionID, roomID)
}

// LeaveAll unsubscribes the connection from every room and detaches it.
func (r *Registry) LeaveAll(connectionID domain.ConnectionID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := lo.Keys(r.subscriptions[connectionID])
	for _, roomID := range rooms {
		r.leaveLocked(connectionID, roomID)
	}
	delete(r.subscriptions, connectionID)
	delete(r.sessions, connectionID)
	return rooms
}

// leaveLocked leaves no empty set behind in the room map.
func (r *Registry) leaveLocked(connectionID domain.ConnectionID, roomID domain.RoomID) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	delete(r.subscriptions[connectionID], roomID)
}

// SubscribersOf is the live snapshot used for fan-out.
func (r *Registry) SubscribersOf(roomID domain.RoomID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.roomMembers[roomID])
}

// GetSinksForRoom resolves the subscribers of a room into their sessions,
// skipping the connections of one user (0 skips nobody).
func (r *Registry) GetSinksForRoom(roomID domain.RoomID, exceptUser domain.UserID) []contract.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	sinks := make([]contract.Session, 0, len(members))
	for connectionID := range members {
		session, exists := r.sessions[connectionID]
		if !exists {
			continue
		}
		if exceptUser != 0 && session.Identity().ID == exceptUser {
			continue
		}
		sinks = append(sinks, session)
	}
	return sinks
}

func (r *Registry) IsSubscribed(connectionID domain.ConnectionID, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.roomMembers[roomID][connectionID]
	return ok
}

func (r *Registry) RoomsOf(connectionID domain.ConnectionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.subscriptions[connectionID])
}
