package ws

import (
	"bytes"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/internal/json"
	"fmt"
)

// Frame is the envelope of every websocket text message, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  event.Event `json:"data"`
}

// Encode wraps an outbound event into its frame.
func Encode(e event.Event) ([]byte, error) {
	return json.Marshal(outbound{Event: e.Name(), Data: e})
}

// DecodeCommand reads one inbound frame. Unknown event names and malformed
// payloads are both InvalidPayload.
func DecodeCommand(raw []byte) (domain.Command, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	cmd, ok := domain.NewCommand(frame.Event)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, frame.Event)
	}
	if len(frame.Data) == 0 || bytes.Equal(frame.Data, []byte("null")) {
		return cmd, nil
	}
	if err := json.Unmarshal(frame.Data, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, frame.Event, err)
	}
	return cmd, nil
}
