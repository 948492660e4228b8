// Package ws provides the realtime side of the chat server: the presence
// registry mapping a user id to its live connection, the websocket gateway
// with its per-connection read/write pumps, and the typed event protocol
// spoken over the channel.
//
// Event flow for a mutation: the client hits the HTTP API, the chat service
// commits to MongoDB, then asks the gateway to push the updated message to
// every participant with a live connection. Delivery is best-effort; an
// offline participant catches up by re-fetching conversation history.
package ws

import "encoding/json"

// Event is a single message exchanged over the websocket channel, in either
// direction. Data carries the event-specific payload.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event with the payload marshaled in place.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}

// Server → client event types.
const (
	// EventOnlineUsers carries the full set of online user ids; broadcast
	// to every connection after each register/unregister.
	EventOnlineUsers = "getOnlineUsers"

	// The message lifecycle events all carry the full current Message
	// state so clients can apply them idempotently, deduplicating by id.
	EventNewMessage      = "newMessage"
	EventMessageEdited   = "messageEdited"
	EventMessageDeleted  = "messageDeleted"
	EventMessageReaction = "messageReaction"
)

// Client → server event types. Typing events are also re-emitted
// server → client to the receiving side.
const (
	// EventSendMessage is the redundant notify-only path: the message was
	// already persisted via HTTP and the payload is relayed to the
	// receiver as a newMessage event.
	EventSendMessage = "sendMessage"

	EventTyping     = "typing"
	EventStopTyping = "stopTyping"
)

// TypingPayload is the payload of typing and stopTyping events. The server
// overwrites SenderID with the connection's authenticated identity before
// routing, so a client cannot forge typing events for another user.
type TypingPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}
