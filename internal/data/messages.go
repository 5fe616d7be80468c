package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

// MessagesStore provides message database operations. Delivery and seen
// transitions are conditional single-document updates, so concurrent calls
// on the same message serialize at the database and cannot move the state
// machine backwards.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Append persists a new message in the conversation. Sender and receiver
// must be the conversation's two participants, in either direction.
func (s *MessagesStore) Append(ctx context.Context, conv *Conversation, senderID, receiverID bson.ObjectID, body *string, contentType string, sentAt time.Time) (*Message, error) {
	teacherToStudent := senderID == conv.TeacherID && receiverID == conv.StudentID
	studentToTeacher := senderID == conv.StudentID && receiverID == conv.TeacherID
	if !teacherToStudent && !studentToTeacher {
		return nil, apperr.ErrWrongConversation
	}

	msg := &Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Body:           body,
		ContentType:    contentType,
		SentAt:         sentAt,
	}

	result, err := s.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// GetByID returns a message by id.
func (s *MessagesStore) GetByID(ctx context.Context, id bson.ObjectID) (*Message, error) {
	var msg Message
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// MarkDelivered sets delivered_at if it is still unset and at is not before
// sent_at. Calling it again is a no-op.
func (s *MessagesStore) MarkDelivered(ctx context.Context, id bson.ObjectID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "delivered_at": nil, "sent_at": bson.M{"$lte": at}},
		bson.M{"$set": bson.M{"delivered_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.errIfAbsent(ctx, id)
	}
	return nil
}

// MarkSeen sets seen_at if it is still unset. When delivered_at is missing
// it is set to at first, tolerating out-of-order delivery/seen signals from
// recipients that were offline at send time. Idempotent.
func (s *MessagesStore) MarkSeen(ctx context.Context, id bson.ObjectID, at time.Time) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "delivered_at": nil},
		bson.M{"$set": bson.M{"delivered_at": at}},
	)
	if err != nil {
		return err
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "seen_at": nil, "delivered_at": bson.M{"$lte": at}},
		bson.M{"$set": bson.M{"seen_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.errIfAbsent(ctx, id)
	}
	return nil
}

// errIfAbsent distinguishes "message does not exist" from "transition
// already happened" after a conditional update matched nothing.
func (s *MessagesStore) errIfAbsent(ctx context.Context, id bson.ObjectID) error {
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return apperr.ErrMessageNotFound
	}
	return nil
}

// ListByConversation returns one page of a conversation's messages, oldest
// first, ordered by (sent_at, _id). The returned cursor restarts the scan
// after the last message of the page; it stays valid under concurrent
// inserts because the sort key is the pagination key.
func (s *MessagesStore) ListByConversation(ctx context.Context, conversationID bson.ObjectID, cursor *Cursor, limit int64) ([]*Message, *Cursor, error) {
	filter := bson.M{"conversation_id": conversationID}
	if cursor != nil {
		filter["$or"] = bson.A{
			bson.M{"sent_at": bson.M{"$gt": cursor.SentAt}},
			bson.M{"sent_at": cursor.SentAt, "_id": bson.M{"$gt": cursor.ID}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, nil, err
	}
	defer cur.Close(ctx)

	var messages []*Message
	if err = cur.All(ctx, &messages); err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if int64(len(messages)) == limit && limit > 0 {
		last := messages[len(messages)-1]
		next = &Cursor{SentAt: last.SentAt, ID: last.ID}
	}
	return messages, next, nil
}

// MarkPageDelivered lazily marks the receiver's still-undelivered messages in
// the page as delivered. Messages sent by the caller are never touched. The
// in-memory page is updated too so callers can render the new state without
// re-reading. Returns the number of messages transitioned.
func (s *MessagesStore) MarkPageDelivered(ctx context.Context, receiverID bson.ObjectID, page []*Message, at time.Time) (int64, error) {
	var ids []bson.ObjectID
	for _, m := range page {
		if m.ReceiverID == receiverID && m.DeliveredAt == nil {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := s.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "receiver_id": receiverID, "delivered_at": nil},
		bson.M{"$set": bson.M{"delivered_at": at}},
	)
	if err != nil {
		return 0, err
	}

	for _, m := range page {
		if m.ReceiverID == receiverID && m.DeliveredAt == nil {
			t := at
			m.DeliveredAt = &t
		}
	}
	return res.ModifiedCount, nil
}
