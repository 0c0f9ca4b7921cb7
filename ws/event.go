// Package ws carries the push-event wire format and the client-side
// subscription to the message-distribution server.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/Mikemike8/teamchat/types"
)

// Push event kinds, server -> client.
const (
	KindNewMessage      = "new-message"
	KindMessagePinned   = "message-pinned"
	KindReactionUpdated = "reaction-updated"
)

// Event is one push notification. Exactly the fields for its kind are set:
// Message for new-message; MessageID/IsPinned/PinnedBy for message-pinned;
// reaction-updated carries no payload, it only invalidates the local copy.
type Event struct {
	Kind      string
	Message   *types.Message
	MessageID string
	IsPinned  bool
	PinnedBy  string
}

// envelope is the JSON frame on the wire.
type envelope struct {
	Event     string               `json:"event"`
	Message   *types.MessageRecord `json:"message,omitempty"`
	MessageID string               `json:"message_id,omitempty"`
	IsPinned  bool                 `json:"is_pinned,omitempty"`
	PinnedBy  string               `json:"pinned_by,omitempty"`
}

// Decode parses one websocket text frame into an Event.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("ws: decode frame: %w", err)
	}

	switch env.Event {
	case KindNewMessage:
		if env.Message == nil {
			return Event{}, fmt.Errorf("ws: new-message frame without message")
		}
		msg, err := types.DecodeMessage(*env.Message)
		if err != nil {
			return Event{}, fmt.Errorf("ws: new-message frame: %w", err)
		}
		return Event{Kind: KindNewMessage, Message: &msg}, nil
	case KindMessagePinned:
		if env.MessageID == "" {
			return Event{}, fmt.Errorf("ws: message-pinned frame without message_id")
		}
		return Event{
			Kind:      KindMessagePinned,
			MessageID: env.MessageID,
			IsPinned:  env.IsPinned,
			PinnedBy:  env.PinnedBy,
		}, nil
	case KindReactionUpdated:
		return Event{Kind: KindReactionUpdated}, nil
	default:
		return Event{}, fmt.Errorf("ws: unknown event kind %q", env.Event)
	}
}

// EncodeNewMessage renders a new-message frame. Used by the devserver hub.
func EncodeNewMessage(rec types.MessageRecord) []byte {
	out, _ := json.Marshal(envelope{Event: KindNewMessage, Message: &rec})
	return out
}

// EncodeMessagePinned renders a message-pinned frame.
func EncodeMessagePinned(messageID string, isPinned bool, pinnedBy string) []byte {
	out, _ := json.Marshal(envelope{
		Event:     KindMessagePinned,
		MessageID: messageID,
		IsPinned:  isPinned,
		PinnedBy:  pinnedBy,
	})
	return out
}

// EncodeReactionUpdated renders a reaction-updated frame.
func EncodeReactionUpdated() []byte {
	out, _ := json.Marshal(envelope{Event: KindReactionUpdated})
	return out
}
