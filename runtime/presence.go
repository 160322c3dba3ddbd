package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"cmp"
	"slices"
	"sync"
	"time"
)

type PresenceEntry struct {
	Session  contract.Session
	Identity domain.Identity
	Since    time.Time
}

// PresenceDirectory holds at most one entry per user: the last connection wins.
type PresenceDirectory struct {
	mu      sync.RWMutex
	entries map[domain.UserID]PresenceEntry
}

func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{entries: make(map[domain.UserID]PresenceEntry)}
}

// Register installs the session for its user and hands back the entry it replaced.
// The caller is responsible for closing the superseded session.
func (p *PresenceDirectory) Register(session contract.Session) (PresenceEntry, bool) {
	identity := session.Identity()

	p.mu.Lock()
	defer p.mu.Unlock()

	previous, existed := p.entries[identity.ID]
	p.entries[identity.ID] = PresenceEntry{Session: session, Identity: identity, Since: time.Now()}
	if existed && previous.Session.ID() == session.ID() {
		return PresenceEntry{}, false
	}
	return previous, existed
}

// Unregister removes the user's entry only while it still belongs to connectionID.
// It reports whether an entry was removed.
func (p *PresenceDirectory) Unregister(userID domain.UserID, connectionID domain.ConnectionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok || entry.Session.ID() != connectionID {
		return false
	}
	delete(p.entries, userID)
	return true
}

func (p *PresenceDirectory) Get(userID domain.UserID) (PresenceEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[userID]
	return entry, ok
}

// ListAll returns the identity of every online user ordered by id.
func (p *PresenceDirectory) ListAll() []domain.Identity {
	p.mu.RLock()
	identities := make([]domain.Identity, 0, len(p.entries))
	for _, entry := range p.entries {
		identities = append(identities, entry.Identity)
	}
	p.mu.RUnlock()

	slices.SortFunc(identities, func(a, b domain.Identity) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return identities
}

// Sessions snapshots every live session except the given connection.
func (p *PresenceDirectory) Sessions(except domain.ConnectionID) []contract.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sessions := make([]contract.Session, 0, len(p.entries))
	for _, entry := range p.entries {
		if entry.Session.ID() != except {
			sessions = append(sessions, entry.Session)
		}
	}
	return sessions
}

func (p *PresenceDirectory) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
