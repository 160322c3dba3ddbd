//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision so the Worker interface carries no name.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink accepts an outbound event for one recipient.
// Consume must not block on the network.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Session is a live connection handle owned by the transport.
type Session interface {
	EventSink
	ID() domain.ConnectionID
	Identity() domain.Identity
	ConnectedAt() time.Time
	// Close asks the transport to tear the connection down.
	// The transport reports the disconnect back through IOrchestrator.Disconnect.
	Close()
}

// Store is the persistence collaborator the coordinator relies on.
type Store interface {
	GetDurableMemberships(ctx context.Context, userID domain.UserID) ([]domain.ConversationID, error)
	IsDurableMember(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) (bool, error)
	MemberRole(ctx context.Context, conversationID domain.ConversationID, userID domain.UserID) (domain.Role, error)
	InsertMessage(ctx context.Context, conversationID domain.ConversationID, senderID domain.UserID, content string, contentType domain.ContentType) (domain.Message, error)
	GetMessage(ctx context.Context, messageID domain.MessageID) (domain.Message, error)
	UpdateMessageContent(ctx context.Context, messageID domain.MessageID, userID domain.UserID, content string) (bool, error)
	DeleteMessageByID(ctx context.Context, messageID domain.MessageID, userID domain.UserID) (bool, error)
	UpsertReadReceipt(ctx context.Context, messageID domain.MessageID, userID domain.UserID) (bool, error)
	CreateConversation(ctx context.Context, c domain.NewConversation) (domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID domain.ConversationID) (domain.Conversation, error)
	FindExistingDirectConversation(ctx context.Context, userA, userB domain.UserID) (domain.ConversationID, bool, error)
}

// Censor rewrites user supplied content before it is persisted.
type Censor interface {
	Censor(content string) (string, []string)
}

// IOrchestrator is what the transport drives for every connection.
type IOrchestrator interface {
	Connect(ctx context.Context, session Session) error
	Handle(ctx context.Context, session Session, cmd domain.Command)
	Disconnect(ctx context.Context, session Session)
	Stop()
}
