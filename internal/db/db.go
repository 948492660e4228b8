// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the chat collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, reusable).
	client *mongo.Client

	// db is the "chat_db" database holding the conversations and
	// messages collections.
	db *mongo.Database
}

// New connects to MongoDB and returns a Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	// Fail fast if MongoDB is unreachable.
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify the connection actually works; Connect alone does
	// not establish one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database("chat_db"),
	}, nil
}

// ConversationsCollection returns the conversations collection.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// Unique index on the normalized participant pair key. This is what
	// resolves the concurrent find-or-create race: at most one
	// conversation document can exist per unordered pair, and the losing
	// insert surfaces as a recoverable duplicate-key error.
	convIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "participants_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.ConversationsCollection().Indexes().CreateOne(ctx, convIndex); err != nil {
		return fmt.Errorf("failed to create conversations index: %w", err)
	}

	// Messages are fetched by _id sets and occasionally scanned by
	// sender for moderation queries; index sender and creation time.
	// bson.D keeps the compound key order stable.
	msgIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, msgIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}
