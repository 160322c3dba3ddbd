package runtime

import (
	"chat-realtime/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTyping_StartStop(t *testing.T) {
	req := require.New(t)
	typing := NewTypingTracker()
	alice := domain.Identity{ID: 1, Username: "alice"}

	typing.Start(7, alice, "c1")
	typing.Start(7, alice, "c1")
	req.True(typing.IsTyping(7, 1))
	req.Equal(1, typing.Len())

	entry, ok := typing.Stop(7, 1)
	req.True(ok)
	req.Equal("alice", entry.Identity.Username)
	req.False(typing.IsTyping(7, 1))

	_, ok = typing.Stop(7, 1)
	req.False(ok)
}

func TestTyping_DropConnection(t *testing.T) {
	req := require.New(t)
	typing := NewTypingTracker()
	alice := domain.Identity{ID: 1, Username: "alice"}
	bob := domain.Identity{ID: 2, Username: "bob"}

	// Given alice types in two conversations and bob in one
	typing.Start(7, alice, "c1")
	typing.Start(8, alice, "c1")
	typing.Start(7, bob, "c2")

	// When alice's connection drops
	dropped := typing.DropConnection("c1")

	// Then only her entries are removed
	req.Len(dropped, 2)
	req.ElementsMatch([]domain.ConversationID{7, 8},
		[]domain.ConversationID{dropped[0].ConversationID, dropped[1].ConversationID})
	req.True(typing.IsTyping(7, 2))
	req.Equal(1, typing.Len())
}
