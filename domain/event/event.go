package event

import (
	"chat-realtime/domain"
	"time"
)

// Event is an outbound server to client notification.
// Name is the bit-exact wire name.
type Event interface {
	Name() string
}

const (
	NameNewMessage          = "new_message"
	NameMessageEdited       = "message_edited"
	NameMessageDeleted      = "message_deleted"
	NameMessageRead         = "message_read"
	NameUserTyping          = "user_typing"
	NameUserStopTyping      = "user_stop_typing"
	NameUserOnline          = "user_online"
	NameUserOffline         = "user_offline"
	NameOnlineUsers         = "online_users"
	NameConversationCreated = "conversation_created"
	NameJoinedConversation  = "joined_conversation"
	NameError               = "error"
)

type Sender struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type NewMessage struct {
	ID             domain.MessageID      `json:"id"`
	ConversationID domain.ConversationID `json:"conversationId"`
	SenderID       domain.UserID         `json:"senderId"`
	Content        string                `json:"content"`
	ContentType    domain.ContentType    `json:"contentType"`
	CreatedAt      time.Time             `json:"createdAt"`
	Sender         Sender                `json:"sender"`
}

func NewMessageFrom(m domain.Message, sender domain.Identity) NewMessage {
	return NewMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		ContentType:    m.ContentType,
		CreatedAt:      m.CreatedAt,
		Sender: Sender{
			Username:    sender.Username,
			DisplayName: sender.DisplayName,
			AvatarURL:   sender.AvatarURL,
		},
	}
}

type MessageEdited struct {
	MessageID      domain.MessageID      `json:"messageId"`
	ConversationID domain.ConversationID `json:"conversationId"`
	Content        string                `json:"content"`
	EditedAt       time.Time             `json:"editedAt"`
	EditedBy       domain.Identity       `json:"editedBy"`
}

type MessageDeleted struct {
	MessageID      domain.MessageID      `json:"messageId"`
	ConversationID domain.ConversationID `json:"conversationId"`
	DeletedBy      domain.Identity       `json:"deletedBy"`
	DeletedAt      time.Time             `json:"deletedAt"`
}

type Reader struct {
	UserID      domain.UserID `json:"userId"`
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
	AvatarURL   string        `json:"avatarUrl"`
}

type MessageRead struct {
	MessageID      domain.MessageID      `json:"messageId"`
	ConversationID domain.ConversationID `json:"conversationId"`
	ReadBy         Reader                `json:"readBy"`
	Timestamp      time.Time             `json:"timestamp"`
}

// Typing carries both user_typing and user_stop_typing.
type Typing struct {
	UserID         domain.UserID         `json:"userId"`
	Username       string                `json:"username"`
	DisplayName    string                `json:"displayName"`
	ConversationID domain.ConversationID `json:"conversationId"`
}

type UserTyping struct{ Typing }

type UserStopTyping struct{ Typing }

func NewUserTyping(who domain.Identity, conversationID domain.ConversationID) UserTyping {
	return UserTyping{typingOf(who, conversationID)}
}

func NewUserStopTyping(who domain.Identity, conversationID domain.ConversationID) UserStopTyping {
	return UserStopTyping{typingOf(who, conversationID)}
}

func typingOf(who domain.Identity, conversationID domain.ConversationID) Typing {
	return Typing{
		UserID:         who.ID,
		Username:       who.Username,
		DisplayName:    who.DisplayName,
		ConversationID: conversationID,
	}
}

type UserOnline struct {
	UserID      domain.UserID `json:"userId"`
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
	AvatarURL   string        `json:"avatarUrl"`
}

type UserOffline struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

// OnlineUsers is sent as a bare array.
type OnlineUsers []domain.Identity

type ConversationCreated struct {
	Conversation domain.Conversation `json:"conversation"`
	Creator      domain.Identity     `json:"creator"`
	Existing     bool                `json:"existing,omitempty"`
}

type JoinedConversation struct {
	User          domain.Identity       `json:"user"`
	Conversations []domain.Conversation `json:"conversations"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (NewMessage) Name() string          { return NameNewMessage }
func (MessageEdited) Name() string       { return NameMessageEdited }
func (MessageDeleted) Name() string      { return NameMessageDeleted }
func (MessageRead) Name() string         { return NameMessageRead }
func (UserTyping) Name() string          { return NameUserTyping }
func (UserStopTyping) Name() string      { return NameUserStopTyping }
func (UserOnline) Name() string          { return NameUserOnline }
func (UserOffline) Name() string         { return NameUserOffline }
func (OnlineUsers) Name() string         { return NameOnlineUsers }
func (ConversationCreated) Name() string { return NameConversationCreated }
func (JoinedConversation) Name() string  { return NameJoinedConversation }
func (Error) Name() string               { return NameError }
