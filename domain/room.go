package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ConversationID int64

// RoomID names the broadcast channel of a conversation.
type RoomID string

const roomPrefix = "conversation:"

func RoomOf(id ConversationID) RoomID {
	return RoomID(fmt.Sprintf("%s%d", roomPrefix, id))
}

// ConversationID parses the conversation back out of the room name.
func (r RoomID) ConversationID() (ConversationID, bool) {
	raw, ok := strings.CutPrefix(string(r), roomPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return ConversationID(id), true
}

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	DefaultAvatarURL = "default"
	DefaultLabel     = "Custom"
)

type Conversation struct {
	ID          ConversationID   `json:"id"`
	Type        ConversationType `json:"type"`
	Title       string           `json:"title,omitempty"`
	AvatarURL   string           `json:"avatarUrl"`
	CoverGifURL string           `json:"coverGifUrl,omitempty"`
	Label       string           `json:"label"`
	CreatorID   UserID           `json:"creatorId"`
	MemberIDs   []UserID         `json:"memberIds"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// NewConversation is what a creator asks the store to persist.
type NewConversation struct {
	Type        ConversationType
	Title       string
	CreatorID   UserID
	MemberIDs   []UserID
	AvatarURL   string
	CoverGifURL string
	Label       string
}
