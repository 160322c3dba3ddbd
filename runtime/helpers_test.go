package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// fakeSession records every event it accepts.
type fakeSession struct {
	mu       sync.Mutex
	id       domain.ConnectionID
	identity domain.Identity
	events   []event.Event
	closed   bool
	refuse   error
}

func newFakeSession(id string, userID domain.UserID) *fakeSession {
	return &fakeSession{
		id: domain.ConnectionID(id),
		identity: domain.Identity{
			ID:          userID,
			Username:    fmt.Sprintf("user%d", userID),
			DisplayName: fmt.Sprintf("User %d", userID),
			AvatarURL:   domain.DefaultAvatarURL,
		},
	}
}

func (s *fakeSession) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse != nil {
		return s.refuse
	}
	s.events = append(s.events, e)
	return nil
}

func (s *fakeSession) ID() domain.ConnectionID   { return s.id }
func (s *fakeSession) Identity() domain.Identity { return s.identity }
func (s *fakeSession) ConnectedAt() time.Time    { return time.Time{} }

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) received() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func (s *fakeSession) names() []string {
	return lo.Map(s.received(), func(e event.Event, _ int) string { return e.Name() })
}

func (s *fakeSession) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// recordingDeliverer keeps the deliveries instead of resolving them.
type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (d *recordingDeliverer) Deliver(_ context.Context, deliveries ...Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, deliveries...)
}

func (d *recordingDeliverer) all() []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Delivery(nil), d.deliveries...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
