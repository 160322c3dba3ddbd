package domain

// Command is one inbound client intent. The set is closed.
type Command interface {
	Intent() string
}

const (
	IntentJoinConversation   = "join_conversation"
	IntentLeaveConversation  = "leave_conversation"
	IntentSendMessage        = "send_message"
	IntentEditMessage        = "edit_message"
	IntentDeleteMessage      = "delete_message"
	IntentMarkMessageRead    = "mark_message_read"
	IntentTypingStart        = "typing_start"
	IntentTypingStop         = "typing_stop"
	IntentCreateConversation = "create_conversation"
	IntentGetOnlineUsers     = "get_online_users"
)

type JoinConversation struct {
	ConversationID ConversationID `json:"conversationId" validate:"required,gt=0"`
}

type LeaveConversation struct {
	ConversationID ConversationID `json:"conversationId" validate:"required,gt=0"`
}

type SendMessage struct {
	ConversationID ConversationID `json:"conversationId" validate:"required,gt=0"`
	Content        string         `json:"content" validate:"required"`
	ContentType    ContentType    `json:"contentType" validate:"omitempty,oneof=text image file"`
}

type EditMessage struct {
	MessageID MessageID `json:"messageId" validate:"required,gt=0"`
	Content   string    `json:"content" validate:"required"`
}

type DeleteMessage struct {
	MessageID MessageID `json:"messageId" validate:"required,gt=0"`
}

type MarkMessageRead struct {
	MessageID MessageID `json:"messageId" validate:"required,gt=0"`
}

type TypingStart struct {
	ConversationID ConversationID `json:"conversationId" validate:"required,gt=0"`
}

type TypingStop struct {
	ConversationID ConversationID `json:"conversationId" validate:"required,gt=0"`
}

type CreateConversation struct {
	Type        ConversationType `json:"type" validate:"required,oneof=direct group"`
	Title       string           `json:"title" validate:"max=100"`
	MemberIDs   []UserID         `json:"memberIds" validate:"required,min=1,dive,gt=0"`
	AvatarURL   string           `json:"avatarUrl"`
	CoverGifURL string           `json:"coverGifUrl"`
	Label       string           `json:"label" validate:"max=50"`
}

type GetOnlineUsers struct{}

func (JoinConversation) Intent() string   { return IntentJoinConversation }
func (LeaveConversation) Intent() string  { return IntentLeaveConversation }
func (SendMessage) Intent() string        { return IntentSendMessage }
func (EditMessage) Intent() string        { return IntentEditMessage }
func (DeleteMessage) Intent() string      { return IntentDeleteMessage }
func (MarkMessageRead) Intent() string    { return IntentMarkMessageRead }
func (TypingStart) Intent() string        { return IntentTypingStart }
func (TypingStop) Intent() string         { return IntentTypingStop }
func (CreateConversation) Intent() string { return IntentCreateConversation }
func (GetOnlineUsers) Intent() string     { return IntentGetOnlineUsers }

// NewCommand returns an empty command to decode the payload of the named intent into.
func NewCommand(intent string) (Command, bool) {
	switch intent {
	case IntentJoinConversation:
		return &JoinConversation{}, true
	case IntentLeaveConversation:
		return &LeaveConversation{}, true
	case IntentSendMessage:
		return &SendMessage{}, true
	case IntentEditMessage:
		return &EditMessage{}, true
	case IntentDeleteMessage:
		return &DeleteMessage{}, true
	case IntentMarkMessageRead:
		return &MarkMessageRead{}, true
	case IntentTypingStart:
		return &TypingStart{}, true
	case IntentTypingStop:
		return &TypingStop{}, true
	case IntentCreateConversation:
		return &CreateConversation{}, true
	case IntentGetOnlineUsers:
		return &GetOnlineUsers{}, true
	default:
		return nil, false
	}
}
