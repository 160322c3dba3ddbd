package runtime

import (
	"chat-realtime/domain"
	"sync"
)

type keyedLock struct {
	sync.Mutex
	refs int
}

// Sequencer serializes work per conversation. The lock is held across the durable
// write and the fan-out so broadcast order equals commit order.
type Sequencer struct {
	mu    sync.Mutex
	locks map[domain.ConversationID]*keyedLock
}

func NewSequencer() *Sequencer {
	return &Sequencer{locks: make(map[domain.ConversationID]*keyedLock)}
}

// Lock blocks until the conversation is free and returns the matching unlock.
func (s *Sequencer) Lock(conversationID domain.ConversationID) func() {
	s.mu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &keyedLock{}
		s.locks[conversationID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, conversationID)
		}
		s.mu.Unlock()
	}
}
