package runtime

import (
	"chat-realtime/domain"
	"sync"
	"time"
)

type typingKey struct {
	conversationID domain.ConversationID
	userID         domain.UserID
}

// TypingEntry is ephemeral and never persisted.
// ConnectionID records which connection started it so a disconnect can clear it.
type TypingEntry struct {
	ConversationID domain.ConversationID
	Identity       domain.Identity
	ConnectionID   domain.ConnectionID
	StartedAt      time.Time
}

// TypingTracker has no timeout of its own: clients stop typing explicitly,
// a sent message stops it implicitly and a disconnect stops it synthetically.
type TypingTracker struct {
	mu      sync.Mutex
	entries map[typingKey]TypingEntry
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{entries: make(map[typingKey]TypingEntry)}
}

// Start inserts or refreshes the entry of the user in the conversation.
func (t *TypingTracker) Start(conversationID domain.ConversationID, identity domain.Identity, connectionID domain.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[typingKey{conversationID, identity.ID}] = TypingEntry{
		ConversationID: conversationID,
		Identity:       identity,
		ConnectionID:   connectionID,
		StartedAt:      time.Now(),
	}
}

// Stop removes the entry and reports whether one existed.
func (t *TypingTracker) Stop(conversationID domain.ConversationID, userID domain.UserID) (TypingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{conversationID, userID}
	entry, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	return entry, ok
}

// DropConnection removes and returns every entry started by the connection.
func (t *TypingTracker) DropConnection(connectionID domain.ConnectionID) []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dropped []TypingEntry
	for key, entry := range t.entries {
		if entry.ConnectionID == connectionID {
			dropped = append(dropped, entry)
			delete(t.entries, key)
		}
	}
	return dropped
}

func (t *TypingTracker) IsTyping(conversationID domain.ConversationID, userID domain.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[typingKey{conversationID, userID}]
	return ok
}

func (t *TypingTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
