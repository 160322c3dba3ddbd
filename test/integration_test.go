package test

import (
	"chat-realtime/auth"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/infrastructure/grpc/server"
	"chat-realtime/infrastructure/ws"
	"chat-realtime/internal/json"
	"chat-realtime/observability"
	"chat-realtime/repositories"
	"chat-realtime/runtime"
	"chat-realtime/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const secret = "integration-secret-with-entropy"

func freeAddress(t *testing.T) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().String()
}

func Test_Scenario(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 2 Go of value log)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	// Given the full process wiring under a real supervisor
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	store, err := repositories.NewStore(db, log)
	req.NoError(err)
	t.Cleanup(func() { _ = store.Close() })
	users, err := repositories.NewUserRepository(db)
	req.NoError(err)
	t.Cleanup(func() { _ = users.Close() })
	aliceUser, err := users.CreateUser("alice", "Alice", "$argon2id$hash")
	req.NoError(err)
	bobUser, err := users.CreateUser("bob", "Bob", "$argon2id$hash")
	req.NoError(err)
	metrics := observability.NewMetrics()
	supervisor := workers.NewSupervisor(log, metrics, 50*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, store, metrics, runtime.Config{
		MaxContentLength: 500,
		SinkTimeout:      time.Second,
	})

	httpAddress, grpcAddress := freeAddress(t), freeAddress(t)
	mux := http.NewServeMux()
	mux.Handle("GET /ws", auth.NewGate(secret).Middleware(ws.NewHandler(log, orchestrator, ws.Settings{}), nil))
	supervisor.Add(
		workers.NewHTTPServerWorker(log, httpAddress, mux, time.Second),
		workers.NewGRPCServerWorker(log, grpcAddress, server.NewHealthServer(log)),
	)

	stopped := make(chan error, 1)
	go func() { stopped <- orchestrator.Start(ctx) }()

	// When the health service reports serving
	conn, err := grpc.NewClient(grpcAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer conn.Close()
	health := grpc_health_v1.NewHealthClient(conn)
	req.Eventually(func() bool {
		resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
		return err == nil && resp.Status == grpc_health_v1.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	// And registered Alice and Bob connect then share a group
	alice := dial(t, httpAddress, domain.Identity{ID: aliceUser.ID, Username: aliceUser.Username, DisplayName: aliceUser.DisplayName})
	bob := dial(t, httpAddress, domain.Identity{ID: bobUser.ID, Username: bobUser.Username, DisplayName: bobUser.DisplayName})
	expect(t, alice, event.NameJoinedConversation, nil)
	expect(t, bob, event.NameJoinedConversation, nil)

	send(t, alice, domain.IntentCreateConversation, domain.CreateConversation{
		Type:      domain.ConversationGroup,
		Title:     "integration",
		MemberIDs: []domain.UserID{bobUser.ID},
	})
	var created event.ConversationCreated
	expect(t, bob, event.NameConversationCreated, &created)

	send(t, alice, domain.IntentSendMessage, domain.SendMessage{
		ConversationID: created.Conversation.ID,
		Content:        "this message will self destruct in 5 seconds",
	})

	// Then Bob receives it and it is durable
	var message event.NewMessage
	expect(t, bob, event.NameNewMessage, &message)
	req.Equal("this message will self destruct in 5 seconds", message.Content)
	stored, err := store.GetMessage(ctx, message.ID)
	req.NoError(err)
	req.Equal(message.Content, stored.Content)

	// When the process is asked to stop
	cancel()

	// Then Start returns and live sockets get a normal close
	select {
	case err := <-stopped:
		req.NoError(err)
	case <-time.After(5 * time.Second):
		req.Fail("Timeout: orchestrator never stopped")
	}
	req.NoError(bob.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		if _, _, err = bob.ReadMessage(); err != nil {
			break
		}
	}
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func dial(t *testing.T, address string, identity domain.Identity) *websocket.Conn {
	token, err := auth.GenerateToken(identity, nil, []byte(secret), time.Hour)
	require.NoError(t, err)
	conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws?token=%s", address, token), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, intent string, payload any) {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(ws.Frame{Event: intent, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

// expect skips frames until the named event arrives.
func expect(t *testing.T, conn *websocket.Conn, name string, out any) {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", name)
		var frame ws.Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		if frame.Event != name {
			continue
		}
		if out != nil {
			require.NoError(t, json.Unmarshal(frame.Data, out))
		}
		return
	}
}
