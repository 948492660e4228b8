package data

import (
	"context"
	"errors"
	"time"

	"github.com/pairchat/pairchat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ConversationsStore provides conversation database operations.
type ConversationsStore struct {
	// coll is a reference to the "conversations" collection in MongoDB.
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using the given collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// FindOrCreate looks up the conversation for an unordered participant pair,
// creating it if absent. The lookup key is the normalized pair key, so
// FindOrCreate(a, b) and FindOrCreate(b, a) resolve to the same document.
//
// Concurrent first-message sends from both participants may both miss the
// lookup and race on the insert; the unique index on participants_key makes
// one insert fail with a duplicate-key error, which is recovered here by
// re-fetching the surviving document instead of failing the request.
func (c *ConversationsStore) FindOrCreate(ctx context.Context, userA, userB string) (*Conversation, error) {
	key := normalize.PairKey(userA, userB)

	var conv Conversation
	err := c.coll.FindOne(ctx, bson.M{"participants_key": key}).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// No conversation yet; create one lazily on first send.
	lo, hi := normalize.Pair(userA, userB)
	now := time.Now()
	created := &Conversation{
		Participants:    []string{lo, hi},
		ParticipantsKey: key,
		MessageIDs:      []bson.ObjectID{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result, err := c.coll.InsertOne(ctx, created)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the creation race; the other participant's insert won.
			if err := c.coll.FindOne(ctx, bson.M{"participants_key": key}).Decode(&conv); err != nil {
				return nil, err
			}
			return &conv, nil
		}
		return nil, err
	}

	created.ID = result.InsertedID.(bson.ObjectID)
	return created, nil
}

// AppendMessage appends a message id to the conversation's ordered sequence.
// The sequence is append-only; commit order here is the causal order readers
// must treat as authoritative.
func (c *ConversationsStore) AppendMessage(ctx context.Context, conversationID, messageID bson.ObjectID) error {
	result, err := c.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$push": bson.M{"message_ids": messageID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MessageIDs returns the ordered message id sequence for a participant pair.
// A missing conversation is not an error: it returns (nil, false, nil) so
// callers can respond with an empty message list.
func (c *ConversationsStore) MessageIDs(ctx context.Context, userA, userB string) ([]bson.ObjectID, bool, error) {
	key := normalize.PairKey(userA, userB)

	var conv Conversation
	err := c.coll.FindOne(ctx, bson.M{"participants_key": key}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return conv.MessageIDs, true, nil
}
