// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the collections used by the
// messaging core.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database("campus_chat"),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ConversationsCollection returns the conversations collection.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// AttachmentsCollection returns the attachments collection.
func (c *Client) AttachmentsCollection() *mongo.Collection {
	return c.db.Collection("attachments")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the messaging core relies on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// Unique email: one account per address, lookups on login.
	usersIndex := mongo.IndexModel{
		Keys:    map[string]int{"email": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndex); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// One conversation per (teacher, student) pair. The unique index is the
	// storage-level backstop for the idempotent getOrCreate upsert.
	convIndexes := []mongo.IndexModel{
		{
			Keys:    map[string]int{"teacher_id": 1, "student_id": 1},
			Options: options.Index().SetUnique(true),
		},
		{
			// ListForUser orders by last activity.
			Keys: map[string]int{"last_message_at": -1},
		},
	}
	if _, err := c.ConversationsCollection().Indexes().CreateMany(ctx, convIndexes); err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}

	// Thread pagination walks (conversation_id, sent_at, _id) ascending.
	msgIndexes := []mongo.IndexModel{
		{
			Keys: map[string]int{"conversation_id": 1, "sent_at": 1, "_id": 1},
		},
		{
			// Lazy delivery marks a page of the receiver's undelivered messages.
			Keys: map[string]int{"conversation_id": 1, "receiver_id": 1, "delivered_at": 1},
		},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, msgIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	attachmentsIndex := mongo.IndexModel{
		Keys: map[string]int{"message_id": 1},
	}
	if _, err := c.AttachmentsCollection().Indexes().CreateOne(ctx, attachmentsIndex); err != nil {
		return fmt.Errorf("failed to create attachments index: %w", err)
	}

	return nil
}
