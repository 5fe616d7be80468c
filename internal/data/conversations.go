package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

// ConversationsStore provides conversation database operations.
type ConversationsStore struct {
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using the given collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// GetOrCreate returns the conversation for the (teacher, student) pair,
// creating it lazily on first contact. The $setOnInsert upsert plus the
// unique pair index make this idempotent under concurrent callers: exactly
// one conversation ever exists per pair.
func (s *ConversationsStore) GetOrCreate(ctx context.Context, teacherID, studentID bson.ObjectID) (*Conversation, error) {
	now := time.Now()

	filter := bson.M{"teacher_id": teacherID, "student_id": studentID}
	update := bson.M{"$setOnInsert": bson.M{
		"teacher_id":      teacherID,
		"student_id":      studentID,
		"last_message_at": now,
		"created_at":      now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv Conversation
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced on the unique pair index; the other caller won,
		// so the conversation now exists.
		err = s.coll.FindOne(ctx, filter).Decode(&conv)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetByID returns a conversation by id.
func (s *ConversationsStore) GetByID(ctx context.Context, id bson.ObjectID) (*Conversation, error) {
	var conv Conversation
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// Touch advances last_message_at to at if at is later than the stored value.
// $max makes the update monotonic and idempotent.
func (s *ConversationsStore) Touch(ctx context.Context, id bson.ObjectID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$max": bson.M{"last_message_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrConversationNotFound
	}
	return nil
}

// ListForUser returns the conversations the user participates in, most
// recently active first.
func (s *ConversationsStore) ListForUser(ctx context.Context, userID bson.ObjectID) ([]*Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"teacher_id": userID},
		bson.M{"student_id": userID},
	}}
	opts := options.Find().SetSort(bson.M{"last_message_at": -1})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []*Conversation
	if err = cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}
