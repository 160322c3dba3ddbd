package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/mocks"
	"chat-realtime/observability"
	"chat-realtime/repositories"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	store        *repositories.Store
	metrics      *observability.Metrics
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	store, err := repositories.NewStore(db, discardLogger())
	req.NoError(err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})
	seedUsers(t, db, 3)

	ctrl := gomock.NewController(t)
	metrics := observability.NewMetrics()
	orchestrator := NewOrchestrator(discardLogger(), mocks.NewMockISupervisor(ctrl), store, metrics, Config{
		MaxContentLength: 1000,
		SinkTimeout:      time.Second,
	})
	return &orchestratorFixture{orchestrator: orchestrator, store: store, metrics: metrics}
}

// seedUsers registers user1..userN, which get ids 1..N on a fresh database.
func seedUsers(t *testing.T, db *badger.DB, count int) {
	t.Helper()
	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	defer users.Close()
	for i := 1; i <= count; i++ {
		user, err := users.CreateUser(fmt.Sprintf("user%d", i), fmt.Sprintf("User %d", i), "$argon2id$hash")
		require.NoError(t, err)
		require.Equal(t, domain.UserID(i), user.ID)
	}
}

func (f *orchestratorFixture) connect(t *testing.T, id string, userID domain.UserID) *fakeSession {
	t.Helper()
	session := newFakeSession(id, userID)
	require.NoError(t, f.orchestrator.Connect(context.Background(), session))
	return session
}

func TestOrchestrator_Connect_WelcomesAndAnnounces(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	// Given alice and bob share a group and bob is online
	conversation, err := f.store.CreateConversation(ctx, domain.NewConversation{
		Type: domain.ConversationGroup, CreatorID: 1, MemberIDs: []domain.UserID{2},
	})
	req.NoError(err)
	bob := f.connect(t, "c2", 2)
	bob.reset()

	// When alice connects
	alice := f.connect(t, "c1", 1)

	// Then she is welcomed with her conversations and already listens to the room
	req.Equal([]string{event.NameJoinedConversation}, alice.names())
	welcome := alice.received()[0].(event.JoinedConversation)
	req.Len(welcome.Conversations, 1)
	req.Equal(conversation.ID, welcome.Conversations[0].ID)
	req.Equal(domain.ConversationGroup, welcome.Conversations[0].Type)
	req.ElementsMatch([]domain.UserID{1, 2}, welcome.Conversations[0].MemberIDs)
	req.Equal(alice.Identity(), welcome.User)
	req.True(f.orchestrator.registry.IsSubscribed("c1", domain.RoomOf(conversation.ID)))

	// And bob sees her come online
	req.Equal([]event.Event{event.UserOnline{
		UserID: 1, Username: "user1", DisplayName: "User 1", AvatarURL: domain.DefaultAvatarURL,
	}}, bob.received())
	req.Equal(domain.StateActive, f.orchestrator.stateOf(alice))
}

func TestOrchestrator_Connect_NoMembershipsSendsEmptyList(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	alice := f.connect(t, "c1", 1)

	welcome := alice.received()[0].(event.JoinedConversation)
	req.NotNil(welcome.Conversations)
	req.Empty(welcome.Conversations)
}

func TestOrchestrator_DirectConversationThenMessage(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "c1", 1)
	bob := f.connect(t, "c2", 2)
	alice.reset()
	bob.reset()

	// When alice opens a direct conversation with bob
	f.orchestrator.Handle(ctx, alice, &domain.CreateConversation{
		Type: domain.ConversationDirect, MemberIDs: []domain.UserID{2},
	})

	// Then both are told and both listen to the new room
	req.Equal([]string{event.NameConversationCreated}, alice.names())
	req.Equal([]string{event.NameConversationCreated}, bob.names())
	created := bob.received()[0].(event.ConversationCreated)
	room := domain.RoomOf(created.Conversation.ID)
	req.True(f.orchestrator.registry.IsSubscribed("c1", room))
	req.True(f.orchestrator.registry.IsSubscribed("c2", room))

	// When alice sends into it
	f.orchestrator.Handle(ctx, alice, &domain.SendMessage{ConversationID: created.Conversation.ID, Content: "hey bob"})

	// Then both receive the stored message
	req.Equal(event.NameNewMessage, alice.names()[1])
	req.Equal(event.NameNewMessage, bob.names()[1])
	msg := bob.received()[1].(event.NewMessage)
	req.Equal("hey bob", msg.Content)
	req.Equal(domain.ContentText, msg.ContentType)

	// And asking for the same pair again returns it to alice only
	f.orchestrator.Handle(ctx, alice, &domain.CreateConversation{
		Type: domain.ConversationDirect, MemberIDs: []domain.UserID{2},
	})
	again := alice.received()[2].(event.ConversationCreated)
	req.True(again.Existing)
	req.Equal(created.Conversation.ID, again.Conversation.ID)
	req.Len(bob.received(), 2)
}

func TestOrchestrator_CreateConversationWithUnknownMember(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	alice := f.connect(t, "c1", 1)
	alice.reset()

	// When alice opens a direct conversation with an id nobody registered
	f.orchestrator.Handle(ctx, alice, &domain.CreateConversation{
		Type: domain.ConversationDirect, MemberIDs: []domain.UserID{424242},
	})

	// Then she gets an invalid payload error and nothing is created
	req.Equal([]string{event.NameError}, alice.names())
	req.Equal(string(errors.CodeInvalidPayload), alice.received()[0].(event.Error).Code)
	_, found, err := f.store.FindExistingDirectConversation(ctx, 1, 424242)
	req.NoError(err)
	req.False(found)
	memberships, err := f.store.GetDurableMemberships(ctx, 424242)
	req.NoError(err)
	req.Empty(memberships)
	memberships, err = f.store.GetDurableMemberships(ctx, 1)
	req.NoError(err)
	req.Empty(memberships)
	req.Empty(f.orchestrator.registry.RoomsOf("c1"))
}

func TestOrchestrator_Disconnect_StopsTypingBeforeOffline(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conversation, err := f.store.CreateConversation(ctx, domain.NewConversation{
		Type: domain.ConversationGroup, CreatorID: 1, MemberIDs: []domain.UserID{2},
	})
	req.NoError(err)
	alice := f.connect(t, "c1", 1)
	bob := f.connect(t, "c2", 2)

	// Given alice is typing
	f.orchestrator.Handle(ctx, alice, &domain.TypingStart{ConversationID: conversation.ID})
	bob.reset()

	// When her connection drops
	f.orchestrator.Disconnect(ctx, alice)

	// Then bob sees the typing end first, then her going offline
	req.Equal([]string{event.NameUserStopTyping, event.NameUserOffline}, bob.names())
	req.Equal(event.UserOffline{UserID: 1, Username: "user1"}, bob.received()[1])
	req.Empty(f.orchestrator.registry.RoomsOf("c1"))
	_, online := f.orchestrator.presence.Get(1)
	req.False(online)

	// And a second disconnect is a no-op
	f.orchestrator.Disconnect(ctx, alice)
	req.Len(bob.received(), 2)
}

func TestOrchestrator_JoinWithoutMembership(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conversation, err := f.store.CreateConversation(ctx, domain.NewConversation{
		Type: domain.ConversationGroup, CreatorID: 1, MemberIDs: []domain.UserID{2},
	})
	req.NoError(err)
	mallory := f.connect(t, "c3", 3)
	mallory.reset()

	// When an outsider joins the conversation
	f.orchestrator.Handle(ctx, mallory, &domain.JoinConversation{ConversationID: conversation.ID})

	// Then the join is refused and the connection stays usable
	req.Equal([]event.Event{event.Error{Message: errors.ErrNotAMember.Error(), Code: "NotAMember"}}, mallory.received())
	req.False(f.orchestrator.registry.IsSubscribed("c3", domain.RoomOf(conversation.ID)))
	req.Equal(domain.StateActive, f.orchestrator.stateOf(mallory))
}

func TestOrchestrator_ReconnectSupersedesOldConnection(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	bob := f.connect(t, "c2", 2)
	first := f.connect(t, "c1", 1)
	bob.reset()

	// When alice connects again from elsewhere
	second := f.connect(t, "c1-bis", 1)

	// Then the first connection is closed and retired
	req.True(first.isClosed())
	req.Equal(domain.StateDisconnected, f.orchestrator.stateOf(first))
	entry, _ := f.orchestrator.presence.Get(1)
	req.Equal(second.ID(), entry.Session.ID())

	// And bob only hears she is online, never offline
	req.Equal([]string{event.NameUserOnline}, bob.names())

	// When the transport reports the old connection gone
	f.orchestrator.Disconnect(ctx, first)

	// Then presence still points to the new connection
	entry, online := f.orchestrator.presence.Get(1)
	req.True(online)
	req.Equal(second.ID(), entry.Session.ID())
	req.Equal([]string{event.NameUserOnline}, bob.names())

	// And intents still arriving on the old connection are dropped
	first.reset()
	f.orchestrator.Handle(ctx, first, &domain.GetOnlineUsers{})
	req.Empty(first.received())
}

func TestOrchestrator_BootstrapFailureRollsBack(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	orchestrator := NewOrchestrator(discardLogger(), mocks.NewMockISupervisor(ctrl), store, observability.NewMetrics(),
		Config{SinkTimeout: time.Second})
	alice := newFakeSession("c1", 1)

	// Given the store cannot load memberships
	store.EXPECT().GetDurableMemberships(gomock.Any(), domain.UserID(1)).Return(nil, fmt.Errorf("badger closed"))

	// When alice connects
	err := orchestrator.Connect(context.Background(), alice)

	// Then the attempt fails and leaves nothing behind
	req.Error(err)
	_, online := orchestrator.presence.Get(1)
	req.False(online)
	req.Empty(alice.received())
	req.Equal(domain.StateDisconnected, orchestrator.stateOf(alice))
}

func TestOrchestrator_ConversationLoadFailureRollsBack(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	orchestrator := NewOrchestrator(discardLogger(), mocks.NewMockISupervisor(ctrl), store, observability.NewMetrics(),
		Config{SinkTimeout: time.Second})
	alice := newFakeSession("c1", 1)

	// Given the membership loads but its conversation record cannot be read
	store.EXPECT().GetDurableMemberships(gomock.Any(), domain.UserID(1)).Return([]domain.ConversationID{7}, nil)
	store.EXPECT().GetConversation(gomock.Any(), domain.ConversationID(7)).Return(domain.Conversation{}, fmt.Errorf("badger closed"))

	// When alice connects
	err := orchestrator.Connect(context.Background(), alice)

	// Then the attempt fails without leaving her subscribed or online
	req.Error(err)
	req.Empty(orchestrator.registry.RoomsOf("c1"))
	_, online := orchestrator.presence.Get(1)
	req.False(online)
	req.Empty(alice.received())
}

func TestOrchestrator_RefusingSessionDoesNotStopFanout(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conversation, err := f.store.CreateConversation(ctx, domain.NewConversation{
		Type: domain.ConversationGroup, CreatorID: 1, MemberIDs: []domain.UserID{2, 3},
	})
	req.NoError(err)
	alice := f.connect(t, "c1", 1)
	bob := f.connect(t, "c2", 2)
	carol := f.connect(t, "c3", 3)
	carol.reset()

	// Given bob's buffer is full
	bob.refuse = errors.ErrSlowConsumer

	// When alice sends
	f.orchestrator.Handle(ctx, alice, &domain.SendMessage{ConversationID: conversation.ID, Content: "hi all"})

	// Then carol still gets the message
	req.Equal([]string{event.NameNewMessage}, carol.names())
}

func TestOrchestrator_StartStopsLiveConnections(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	supervisor := mocks.NewMockISupervisor(ctrl)
	store := mocks.NewMockStore(ctrl)
	orchestrator := NewOrchestrator(discardLogger(), supervisor, store, observability.NewMetrics(),
		Config{SinkTimeout: time.Second})
	store.EXPECT().GetDurableMemberships(gomock.Any(), gomock.Any()).Return(nil, nil)
	alice := newFakeSession("c1", 1)
	req.NoError(orchestrator.Connect(context.Background(), alice))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	supervisor.EXPECT().Run(ctx)

	req.NoError(orchestrator.Start(ctx))
	req.True(alice.isClosed())
}

func TestOrchestrator_Stats(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	f.connect(t, "c1", 1)
	f.connect(t, "c2", 2)

	stats := f.orchestrator.Stats()

	req.Equal(2, stats["online"])
	req.Equal(0, stats["typing"])
	req.Equal(map[string]int{domain.StateActive.String(): 2}, stats["connections"])
}
