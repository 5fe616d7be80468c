package data

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// AttachmentsStore persists attachment metadata. The file bytes themselves
// live in whatever backend the storage tag names.
type AttachmentsStore struct {
	coll *mongo.Collection
}

// NewAttachmentsStore returns an AttachmentsStore using the given collection.
func NewAttachmentsStore(coll *mongo.Collection) *AttachmentsStore {
	return &AttachmentsStore{coll: coll}
}

// Create inserts attachment metadata for an existing message.
func (s *AttachmentsStore) Create(ctx context.Context, att *Attachment) (*Attachment, error) {
	result, err := s.coll.InsertOne(ctx, att)
	if err != nil {
		return nil, err
	}
	att.ID = result.InsertedID.(bson.ObjectID)
	return att, nil
}

// ListByMessage returns the attachments owned by a message.
func (s *AttachmentsStore) ListByMessage(ctx context.Context, messageID bson.ObjectID) ([]*Attachment, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attachments []*Attachment
	if err = cursor.All(ctx, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}
