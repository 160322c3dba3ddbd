package repositories

import (
	"chat-realtime/domain"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *badger.DB) {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	store, err := NewStore(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})
	return store, db
}

// seedUsers registers user1..userN, which get ids 1..N on a fresh database.
func seedUsers(t *testing.T, db *badger.DB, count int) {
	t.Helper()
	users, err := NewUserRepository(db)
	require.NoError(t, err)
	defer users.Close()
	for i := 1; i <= count; i++ {
		user, err := users.CreateUser(fmt.Sprintf("user%d", i), fmt.Sprintf("User %d", i), "$argon2id$hash")
		require.NoError(t, err)
		require.Equal(t, domain.UserID(i), user.ID)
	}
}

func TestDirectKey_IsSymmetric(t *testing.T) {
	require.Equal(t, directKey(7, 3), directKey(3, 7))
}

func TestNextID_NeverReturnsZero(t *testing.T) {
	req := require.New(t)
	store, _ := newTestStore(t)

	first, err := nextID(store.messageSeq)
	req.NoError(err)
	second, err := nextID(store.messageSeq)
	req.NoError(err)

	req.Positive(first)
	req.Greater(second, first)
}
