package main

import (
	"chat-realtime/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantEvent string
		wantData  string
	}{
		{"send keeps spaces", "/send 3 hello there", domain.IntentSendMessage, `{"conversationId":3,"content":"hello there","contentType":"text"}`},
		{"typing", "/typing 7", domain.IntentTypingStart, `{"conversationId":7}`},
		{"mark read", "/read 12", domain.IntentMarkMessageRead, `{"messageId":12}`},
		{"direct", "/direct 42", domain.IntentCreateConversation, `{"type":"direct","title":"","memberIds":[42],"avatarUrl":"","coverGifUrl":"","label":""}`},
		{"group", "/group team 2,3", domain.IntentCreateConversation, `{"type":"group","title":"team","memberIds":[2,3],"avatarUrl":"","coverGifUrl":"","label":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			frame, err := parseLine(tt.line)
			req.NoError(err)
			req.Equal(tt.wantEvent, frame.Event)
			req.JSONEq(tt.wantData, string(frame.Data))
		})
	}
}

func TestParseLine_OnlineHasNoPayload(t *testing.T) {
	req := require.New(t)
	frame, err := parseLine("/online")
	req.NoError(err)
	req.Equal(domain.IntentGetOnlineUsers, frame.Event)
	req.Empty(frame.Data)
}

func TestParseLine_Rejects(t *testing.T) {
	for _, line := range []string{"/send", "/edit abc text", "/group team", "/nope"} {
		t.Run(line, func(t *testing.T) {
			_, err := parseLine(line)
			require.Error(t, err)
		})
	}
}

func TestParseLine_BlankLine(t *testing.T) {
	frame, err := parseLine("   ")
	require.NoError(t, err)
	require.Nil(t, frame)
}
