package data

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is a reference to the "messages" collection in MongoDB.
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Create inserts a new message document and returns the saved record.
// The body must not be blank; reactions start out empty.
func (m *MessagesStore) Create(ctx context.Context, senderID, receiverID, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	now := time.Now()
	msg := &Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		Reactions:  map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Extract MongoDB's auto-generated _id and populate it in the struct;
	// clients deduplicate fanout events by this id.
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// Get returns the message with the given id, or ErrNotFound.
func (m *MessagesStore) Get(ctx context.Context, id bson.ObjectID) (*Message, error) {
	var msg Message
	if err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// Edit replaces the body of a message and marks it edited. Only the original
// sender may edit; a soft-deleted message rejects edits with
// ErrMessageDeleted, and a blank replacement body is rejected outright.
func (m *MessagesStore) Edit(ctx context.Context, id bson.ObjectID, requesterID, newBody string) (*Message, error) {
	if strings.TrimSpace(newBody) == "" {
		return nil, ErrEmptyBody
	}

	msg, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.IsOwner(requesterID) {
		return nil, ErrNotSender
	}
	if msg.Deleted {
		return nil, ErrMessageDeleted
	}

	return m.update(ctx, id, bson.M{"$set": bson.M{
		"body":       newBody,
		"edited":     true,
		"updated_at": time.Now(),
	}})
}

// SoftDelete marks a message deleted and replaces its body with the fixed
// tombstone text. Only the original sender may delete. Deleting an
// already-deleted message is an idempotent no-op returning the current
// tombstoned state, so clients retrying a delete get 200 both times.
func (m *MessagesStore) SoftDelete(ctx context.Context, id bson.ObjectID, requesterID string) (*Message, error) {
	msg, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.IsOwner(requesterID) {
		return nil, ErrNotSender
	}
	if msg.Deleted {
		return msg, nil
	}

	return m.update(ctx, id, bson.M{"$set": bson.M{
		"body":       DeletedBody,
		"deleted":    true,
		"updated_at": time.Now(),
	}})
}

// SetReaction records the user's emoji reaction on a message, replacing any
// prior reaction from the same user (last write wins). Any participant may
// react; there is no sender-only restriction.
func (m *MessagesStore) SetReaction(ctx context.Context, id bson.ObjectID, userID, emoji string) (*Message, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, ErrEmptyEmoji
	}

	return m.update(ctx, id, bson.M{"$set": bson.M{
		"reactions." + userID: emoji,
		"updated_at":          time.Now(),
	}})
}

// ClearReaction removes the user's reaction from a message, if present.
func (m *MessagesStore) ClearReaction(ctx context.Context, id bson.ObjectID, userID string) (*Message, error) {
	return m.update(ctx, id, bson.M{
		"$unset": bson.M{"reactions." + userID: ""},
		"$set":   bson.M{"updated_at": time.Now()},
	})
}

// ListByIDs returns the messages for the given id sequence, preserving the
// sequence order (the conversation's append order). Soft-deleted messages
// are returned as tombstones; nothing is filtered server-side — rendering
// is the client's decision.
func (m *MessagesStore) ListByIDs(ctx context.Context, ids []bson.ObjectID) ([]*Message, error) {
	if len(ids) == 0 {
		return []*Message{}, nil
	}

	cursor, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var fetched []*Message
	if err := cursor.All(ctx, &fetched); err != nil {
		return nil, err
	}

	// $in gives no ordering guarantee; re-order by the conversation's
	// message id sequence, which is the authoritative causal order.
	byID := make(map[bson.ObjectID]*Message, len(fetched))
	for _, msg := range fetched {
		byID[msg.ID] = msg
	}

	ordered := make([]*Message, 0, len(fetched))
	for _, id := range ids {
		if msg, ok := byID[id]; ok {
			ordered = append(ordered, msg)
		}
	}
	return ordered, nil
}

// update applies a single-document mutation and returns the post-update
// state, mapping a missing document to ErrNotFound.
func (m *MessagesStore) update(ctx context.Context, id bson.ObjectID, mutation bson.M) (*Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, mutation, opts).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}
