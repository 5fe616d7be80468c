package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

func strptr(s string) *string { return &s }

// newTestThread drops the collections and creates one conversation.
func newTestThread(t *testing.T) (*ConversationsStore, *MessagesStore, *Conversation) {
	t.Helper()
	ctx := context.Background()
	c := newTestClient(t)
	_ = c.ConversationsCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)

	convs := NewConversationsStore(c.ConversationsCollection())
	msgs := NewMessagesStore(c.MessagesCollection())

	conv, err := convs.GetOrCreate(ctx, bson.NewObjectID(), bson.NewObjectID())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	return convs, msgs, conv
}

func TestMessagesAppendValidatesParticipants(t *testing.T) {
	ctx := context.Background()
	_, msgs, conv := newTestThread(t)

	// Either direction is fine.
	if _, err := msgs.Append(ctx, conv, conv.TeacherID, conv.StudentID, strptr("hi"), ContentTypeText, time.Now()); err != nil {
		t.Fatalf("Append teacher→student failed: %v", err)
	}
	if _, err := msgs.Append(ctx, conv, conv.StudentID, conv.TeacherID, strptr("hello"), ContentTypeText, time.Now()); err != nil {
		t.Fatalf("Append student→teacher failed: %v", err)
	}

	// An outsider is rejected at the store boundary.
	_, err := msgs.Append(ctx, conv, bson.NewObjectID(), conv.StudentID, strptr("intrude"), ContentTypeText, time.Now())
	if !errors.Is(err, apperr.ErrWrongConversation) {
		t.Fatalf("expected ErrWrongConversation, got %v", err)
	}

	// Sending to yourself is not a valid direction either.
	_, err = msgs.Append(ctx, conv, conv.TeacherID, conv.TeacherID, strptr("echo"), ContentTypeText, time.Now())
	if !errors.Is(err, apperr.ErrWrongConversation) {
		t.Fatalf("expected ErrWrongConversation for self-send, got %v", err)
	}
}

func TestMessagesDeliveredSeenTransitions(t *testing.T) {
	ctx := context.Background()
	_, msgs, conv := newTestThread(t)

	sent := time.Now()
	msg, err := msgs.Append(ctx, conv, conv.TeacherID, conv.StudentID, strptr("hi"), ContentTypeText, sent)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if msg.State() != StateSent {
		t.Fatalf("fresh message state = %s, want sent", msg.State())
	}

	delivered := sent.Add(time.Second)
	if err := msgs.MarkDelivered(ctx, msg.ID, delivered); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	// Second call with a later timestamp must not move delivered_at.
	if err := msgs.MarkDelivered(ctx, msg.ID, delivered.Add(time.Hour)); err != nil {
		t.Fatalf("MarkDelivered (repeat) failed: %v", err)
	}

	got, err := msgs.GetByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.State() != StateDelivered {
		t.Fatalf("state = %s, want delivered", got.State())
	}
	if got.DeliveredAt.UnixMilli() != delivered.UnixMilli() {
		t.Fatalf("delivered_at moved on repeat call")
	}

	seen := delivered.Add(time.Second)
	if err := msgs.MarkSeen(ctx, msg.ID, seen); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if err := msgs.MarkSeen(ctx, msg.ID, seen.Add(time.Hour)); err != nil {
		t.Fatalf("MarkSeen (repeat) failed: %v", err)
	}

	got, err = msgs.GetByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.State() != StateSeen {
		t.Fatalf("state = %s, want seen", got.State())
	}
	if got.SeenAt.UnixMilli() != seen.UnixMilli() {
		t.Fatalf("seen_at moved on repeat call")
	}
	if got.DeliveredAt.After(*got.SeenAt) || got.SentAt.After(*got.DeliveredAt) {
		t.Fatalf("timestamp ordering violated: sent=%v delivered=%v seen=%v", got.SentAt, got.DeliveredAt, got.SeenAt)
	}
}

func TestMessagesMarkSeenAutoDelivers(t *testing.T) {
	ctx := context.Background()
	_, msgs, conv := newTestThread(t)

	sent := time.Now()
	msg, err := msgs.Append(ctx, conv, conv.StudentID, conv.TeacherID, strptr("hi"), ContentTypeText, sent)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Seen signal arrives without a prior delivery signal.
	seen := sent.Add(time.Minute)
	if err := msgs.MarkSeen(ctx, msg.ID, seen); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}

	got, err := msgs.GetByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.DeliveredAt == nil || got.SeenAt == nil {
		t.Fatalf("MarkSeen did not backfill delivered_at: %+v", got)
	}
	if got.DeliveredAt.After(*got.SeenAt) {
		t.Fatalf("delivered_at after seen_at")
	}
}

func TestMessagesMarkAbsent(t *testing.T) {
	ctx := context.Background()
	_, msgs, _ := newTestThread(t)

	if err := msgs.MarkDelivered(ctx, bson.NewObjectID(), time.Now()); !errors.Is(err, apperr.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound from MarkDelivered, got %v", err)
	}
	if err := msgs.MarkSeen(ctx, bson.NewObjectID(), time.Now()); !errors.Is(err, apperr.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound from MarkSeen, got %v", err)
	}
}

func TestMessagesPagination(t *testing.T) {
	ctx := context.Background()
	_, msgs, conv := newTestThread(t)

	base := time.Now().Truncate(time.Millisecond)
	for i := 0; i < 7; i++ {
		_, err := msgs.Append(ctx, conv, conv.TeacherID, conv.StudentID, strptr("m"), ContentTypeText, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	var all []*Message
	var cursor *Cursor
	pages := 0
	for {
		page, next, err := msgs.ListByConversation(ctx, conv.ID, cursor, 3)
		if err != nil {
			t.Fatalf("ListByConversation failed: %v", err)
		}
		all = append(all, page...)
		pages++
		if next == nil || len(page) == 0 {
			break
		}
		cursor = next
	}

	if len(all) != 7 {
		t.Fatalf("expected 7 messages across pages, got %d (pages=%d)", len(all), pages)
	}
	for i := 1; i < len(all); i++ {
		if all[i].SentAt.Before(all[i-1].SentAt) {
			t.Fatalf("messages not in ascending sent_at order")
		}
	}
}

func TestMessagesPaginationStableUnderInsert(t *testing.T) {
	ctx := context.Background()
	_, msgs, conv := newTestThread(t)

	base := time.Now().Truncate(time.Millisecond)
	var pre []bson.ObjectID
	for i := 0; i < 6; i++ {
		m, err := msgs.Append(ctx, conv, conv.TeacherID, conv.StudentID, strptr("m"), ContentTypeText, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
		pre = append(pre, m.ID)
	}

	// Read the first page, then insert a new message mid-pagination.
	page1, next, err := msgs.ListByConversation(ctx, conv.ID, nil, 3)
	if err != nil {
		t.Fatalf("ListByConversation page 1 failed: %v", err)
	}
	if next == nil {
		t.Fatal("expected a next cursor after page 1")
	}

	if _, err := msgs.Append(ctx, conv, conv.StudentID, conv.TeacherID, strptr("new"), ContentTypeText, base.Add(time.Hour)); err != nil {
		t.Fatalf("mid-pagination Append failed: %v", err)
	}

	var rest []*Message
	cursor := next
	for cursor != nil {
		page, n, err := msgs.ListByConversation(ctx, conv.ID, cursor, 3)
		if err != nil {
			t.Fatalf("ListByConversation failed: %v", err)
		}
		rest = append(rest, page...)
		cursor = n
		if len(page) == 0 {
			break
		}
	}

	// Every pre-existing message shows up exactly once across the pages.
	seen := map[bson.ObjectID]int{}
	for _, m := range append(page1, rest...) {
		seen[m.ID]++
	}
	for i, id := range pre {
		if seen[id] != 1 {
			t.Fatalf("pre-existing message %d appeared %d times", i, seen[id])
		}
	}
}

func TestMessagesMarkPageDelivered(t *testing.T) {
	ctx := context.Background()
	_, msgs, conv := newTestThread(t)

	base := time.Now().Truncate(time.Millisecond)
	// Two messages to the student, one from the student.
	for i, dir := range []bool{true, true, false} {
		sender, receiver := conv.TeacherID, conv.StudentID
		if !dir {
			sender, receiver = conv.StudentID, conv.TeacherID
		}
		if _, err := msgs.Append(ctx, conv, sender, receiver, strptr("m"), ContentTypeText, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	page, _, err := msgs.ListByConversation(ctx, conv.ID, nil, 10)
	if err != nil {
		t.Fatalf("ListByConversation failed: %v", err)
	}

	// The student fetches the thread: only the student's received messages
	// flip to delivered.
	n, err := msgs.MarkPageDelivered(ctx, conv.StudentID, page, time.Now())
	if err != nil {
		t.Fatalf("MarkPageDelivered failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 messages marked delivered, got %d", n)
	}

	for _, m := range page {
		if m.ReceiverID == conv.StudentID && m.DeliveredAt == nil {
			t.Fatalf("received message not marked delivered in page")
		}
		if m.SenderID == conv.StudentID && m.DeliveredAt != nil {
			t.Fatalf("caller's own sent message was marked delivered")
		}
		if m.SeenAt != nil {
			t.Fatalf("lazy delivery must not mark seen")
		}
	}

	// Idempotent: nothing left to mark.
	n, err = msgs.MarkPageDelivered(ctx, conv.StudentID, page, time.Now())
	if err != nil {
		t.Fatalf("MarkPageDelivered (repeat) failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 on repeat, got %d", n)
	}
}
