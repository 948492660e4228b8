// Package data provides DB models and stores.
package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// DeletedBody is the tombstone text that replaces a soft-deleted message's
// body. The document stays in place so clients can render the tombstone.
const DeletedBody = "This message was deleted"

// Conversation maps to the conversations collection. A conversation groups
// the ordered message ids exchanged between exactly two users; at most one
// document exists per unordered participant pair (unique index on
// participants_key).
type Conversation struct {
	ID bson.ObjectID `bson:"_id,omitempty" json:"id"`

	// Participants holds the two user ids in canonical order.
	Participants []string `bson:"participants" json:"participants"`

	// ParticipantsKey is the normalized "lo|hi" pair key carrying the
	// unique index. Not exposed over the API.
	ParticipantsKey string `bson:"participants_key" json:"-"`

	// MessageIDs is append-only; insertion order is the authoritative
	// causal order of the conversation.
	MessageIDs []bson.ObjectID `bson:"message_ids" json:"messageIds"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Message maps to the messages collection. Lifecycle mutations (edit,
// soft-delete, react) update the document in place; messages are never
// removed from their conversation's sequence.
type Message struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   string        `bson:"sender_id" json:"senderId"`
	ReceiverID string        `bson:"receiver_id" json:"receiverId"`
	Body       string        `bson:"body" json:"message"`
	Edited     bool          `bson:"edited" json:"edited"`
	Deleted    bool          `bson:"deleted" json:"deleted"`

	// Reactions maps a reacting user id to their emoji. Keying by user id
	// enforces at-most-one-reaction-per-user; re-reacting overwrites.
	Reactions map[string]string `bson:"reactions" json:"reactions"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsOwner reports whether userID is the original sender of the message.
// Edit and soft-delete authorization both go through this predicate.
func (m *Message) IsOwner(userID string) bool {
	return m.SenderID == userID
}
