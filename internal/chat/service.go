// Package chat implements the delivery orchestrator: it validates each
// mutating operation, commits it to the stores, and only then fans the
// resulting event out to the participants' live connections. A failed
// commit aborts with no fanout; a failed fanout never fails the request —
// the HTTP response always carries the authoritative post-commit state.
package chat

import (
	"context"
	"log"

	"github.com/pairchat/pairchat/internal/data"
	"github.com/pairchat/pairchat/internal/ws"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ConversationStore is the subset of the conversations store the
// orchestrator needs.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, userA, userB string) (*data.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, messageID bson.ObjectID) error
	MessageIDs(ctx context.Context, userA, userB string) ([]bson.ObjectID, bool, error)
}

// MessageStore is the subset of the messages store the orchestrator needs.
type MessageStore interface {
	Create(ctx context.Context, senderID, receiverID, body string) (*data.Message, error)
	Edit(ctx context.Context, id bson.ObjectID, requesterID, newBody string) (*data.Message, error)
	SoftDelete(ctx context.Context, id bson.ObjectID, requesterID string) (*data.Message, error)
	SetReaction(ctx context.Context, id bson.ObjectID, userID, emoji string) (*data.Message, error)
	ClearReaction(ctx context.Context, id bson.ObjectID, userID string) (*data.Message, error)
	ListByIDs(ctx context.Context, ids []bson.ObjectID) ([]*data.Message, error)
}

// Publisher is the fanout capability the orchestrator needs from the
// realtime gateway. The boolean result (delivered or not) is informational;
// fanout is best-effort and never retried.
type Publisher interface {
	EmitToUser(userID string, ev ws.Event) bool
}

// Service ties the stores and the gateway together, one instance per
// process.
type Service struct {
	convs ConversationStore
	msgs  MessageStore
	pub   Publisher
}

// NewService returns a ready-to-use orchestrator.
func NewService(convs ConversationStore, msgs MessageStore, pub Publisher) *Service {
	return &Service{convs: convs, msgs: msgs, pub: pub}
}

// Send persists a new message and appends it to the pair's conversation,
// creating the conversation lazily on first contact. On commit success the
// message fans out to both participants' live connections.
func (s *Service) Send(ctx context.Context, senderID, receiverID, body string) (*data.Message, error) {
	conv, err := s.convs.FindOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	msg, err := s.msgs.Create(ctx, senderID, receiverID, body)
	if err != nil {
		return nil, err
	}

	if err := s.convs.AppendMessage(ctx, conv.ID, msg.ID); err != nil {
		// no fanout without a completed commit
		return nil, err
	}

	s.fanout(ws.EventNewMessage, msg)
	return msg, nil
}

// ListMessages returns the conversation history between the user and a
// peer, in append order. A missing conversation yields an empty list, not
// an error. Soft-deleted messages appear as tombstones.
func (s *Service) ListMessages(ctx context.Context, userID, peerID string) ([]*data.Message, error) {
	ids, ok, err := s.convs.MessageIDs(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*data.Message{}, nil
	}
	return s.msgs.ListByIDs(ctx, ids)
}

// Edit replaces a message body on behalf of its sender and fans out the
// updated state.
func (s *Service) Edit(ctx context.Context, messageID, requesterID, newBody string) (*data.Message, error) {
	id, err := parseID(messageID)
	if err != nil {
		return nil, err
	}

	msg, err := s.msgs.Edit(ctx, id, requesterID, newBody)
	if err != nil {
		return nil, err
	}

	s.fanout(ws.EventMessageEdited, msg)
	return msg, nil
}

// Delete soft-deletes a message on behalf of its sender and fans out the
// tombstoned state. Deleting twice is idempotent.
func (s *Service) Delete(ctx context.Context, messageID, requesterID string) (*data.Message, error) {
	id, err := parseID(messageID)
	if err != nil {
		return nil, err
	}

	msg, err := s.msgs.SoftDelete(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}

	s.fanout(ws.EventMessageDeleted, msg)
	return msg, nil
}

// React records the user's emoji on a message, replacing any prior reaction
// from that user, and fans out the updated state. Either participant may
// react.
func (s *Service) React(ctx context.Context, messageID, userID, emoji string) (*data.Message, error) {
	id, err := parseID(messageID)
	if err != nil {
		return nil, err
	}

	msg, err := s.msgs.SetReaction(ctx, id, userID, emoji)
	if err != nil {
		return nil, err
	}

	s.fanout(ws.EventMessageReaction, msg)
	return msg, nil
}

// Unreact removes the user's reaction from a message and fans out the
// updated state.
func (s *Service) Unreact(ctx context.Context, messageID, userID string) (*data.Message, error) {
	id, err := parseID(messageID)
	if err != nil {
		return nil, err
	}

	msg, err := s.msgs.ClearReaction(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.fanout(ws.EventMessageReaction, msg)
	return msg, nil
}

// fanout emits one event carrying the full current message state to each
// participant with a live connection. Offline participants are skipped;
// they reconcile by re-fetching history. Failures never propagate to the
// caller.
func (s *Service) fanout(eventType string, msg *data.Message) {
	ev, err := ws.NewEvent(eventType, msg)
	if err != nil {
		log.Printf("failed to build %s event for message %s: %v", eventType, msg.ID.Hex(), err)
		return
	}

	s.pub.EmitToUser(msg.ReceiverID, ev)
	if msg.SenderID != msg.ReceiverID {
		s.pub.EmitToUser(msg.SenderID, ev)
	}
}

// parseID converts a path-supplied message id into an ObjectID; a
// malformed id behaves like a missing message.
func parseID(messageID string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return bson.ObjectID{}, data.ErrNotFound
	}
	return id, nil
}
