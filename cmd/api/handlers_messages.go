package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/edudesk/campus-chat/internal/data"
	"github.com/edudesk/campus-chat/internal/metrics"
	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

const (
	defaultPageSize = 30
	maxPageSize     = 100
)

type sendMessageRequest struct {
	ReceiverID  string `json:"receiverId"`
	Body        string `json:"body"`
	ContentType string `json:"contentType"`
}

type threadResponse struct {
	Messages   []*data.Message `json:"messages"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// currentUserID returns the authenticated caller's id from the request
// context, set by requireAuth.
func (s *Server) currentUserID(r *http.Request) (bson.ObjectID, error) {
	claims, ok := getClaimsFromContext(r.Context())
	if !ok {
		return bson.ObjectID{}, apperr.ErrMissingToken
	}
	id, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return bson.ObjectID{}, apperr.ErrMissingToken
	}
	return id, nil
}

// ensurePair checks the role rules for a direct message and returns the
// conversation slots. A conversation always pairs exactly one teacher with
// one student.
func ensurePair(sender, receiver *data.User) (teacherID, studentID bson.ObjectID, err error) {
	switch {
	case sender.Role == data.RoleTeacher && receiver.Role == data.RoleStudent:
		return sender.ID, receiver.ID, nil
	case sender.Role == data.RoleStudent && receiver.Role == data.RoleTeacher:
		return receiver.ID, sender.ID, nil
	default:
		return bson.ObjectID{}, bson.ObjectID{}, apperr.ErrRoleMismatch
	}
}

// handleSendMessage persists a message and, when the receiver has a live
// connection, marks it delivered immediately and pushes it into the
// receiver's room. Persistence never depends on the push succeeding.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, err := s.currentUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.InvalidArg("invalid JSON body"))
		return
	}

	receiverID, err := bson.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		s.writeError(w, apperr.InvalidArg("receiverId is required"))
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = data.ContentTypeText
	}
	if !data.ValidContentType(contentType) {
		s.writeError(w, apperr.ErrBadContentType)
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		// Attachment-only messages are created by the upload endpoint.
		s.writeError(w, apperr.ErrEmptyMessage)
		return
	}

	msg, err := s.deliverMessage(r, senderID, receiverID, &body, contentType)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, msg)
}

// deliverMessage is the shared send path for text and upload messages:
// resolve the conversation, append, touch, then best-effort push.
func (s *Server) deliverMessage(r *http.Request, senderID, receiverID bson.ObjectID, body *string, contentType string) (*data.Message, error) {
	ctx := r.Context()

	sender, err := s.users.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.users.GetUserByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	teacherID, studentID, err := ensurePair(sender, receiver)
	if err != nil {
		return nil, err
	}

	conv, err := s.convs.GetOrCreate(ctx, teacherID, studentID)
	if err != nil {
		return nil, err
	}

	sentAt := time.Now()
	msg, err := s.msgs.Append(ctx, conv, senderID, receiverID, body, contentType, sentAt)
	if err != nil {
		return nil, err
	}

	if err := s.convs.Touch(ctx, conv.ID, sentAt); err != nil {
		// The message is already persisted; a stale last_message_at only
		// affects conversation ordering.
		s.logger.Warn().Err(err).Str("conversation", conv.ID.Hex()).Msg("touch failed")
	}

	if s.hub.IsOnline(receiverID.Hex()) {
		deliveredAt := time.Now()
		if err := s.msgs.MarkDelivered(ctx, msg.ID, deliveredAt); err != nil {
			s.logger.Warn().Err(err).Str("message", msg.ID.Hex()).Msg("mark delivered failed")
		} else {
			msg.DeliveredAt = &deliveredAt
		}
		s.relay(receiverID.Hex(), &Event{
			Type:           "message",
			From:           senderID.Hex(),
			ConversationID: conv.ID.Hex(),
			MessageID:      msg.ID.Hex(),
			State:          string(msg.State()),
			Message:        msg,
		})
	}

	metrics.MessagesSent.WithLabelValues(contentType).Inc()
	return msg, nil
}

// handleListConversations returns the caller's conversations, most recently
// active first.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := s.currentUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	conversations, err := s.convs.ListForUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if conversations == nil {
		conversations = []*data.Conversation{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

// handleGetThread returns one page of a conversation, oldest first. As a
// side effect any of the caller's received messages in the page become
// delivered (the lazy-delivery fallback for receivers who were offline at
// send time); they are never marked seen here.
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	userID, err := s.currentUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	convID, err := bson.ObjectIDFromHex(chi.URLParam(r, "conversationID"))
	if err != nil {
		s.writeError(w, apperr.InvalidArg("invalid conversation id"))
		return
	}

	conv, err := s.convs.GetByID(r.Context(), convID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !conv.HasParticipant(userID) {
		s.writeError(w, apperr.ErrNotParticipant)
		return
	}

	cursor, err := data.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	limit := int64(defaultPageSize)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			s.writeError(w, apperr.InvalidArg("limit must be a positive integer"))
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		limit = n
	}

	page, next, err := s.msgs.ListByConversation(r.Context(), convID, cursor, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := s.msgs.MarkPageDelivered(r.Context(), userID, page, time.Now()); err != nil {
		s.logger.Warn().Err(err).Str("conversation", convID.Hex()).Msg("lazy delivery failed")
	}

	resp := threadResponse{Messages: page}
	if resp.Messages == nil {
		resp.Messages = []*data.Message{}
	}
	if next != nil {
		resp.NextCursor = next.Encode()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleMarkSeen records the receiver's read acknowledgement and pushes a
// seen event back to the original sender's room.
func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	userID, err := s.currentUserID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	msgID, err := bson.ObjectIDFromHex(chi.URLParam(r, "messageID"))
	if err != nil {
		s.writeError(w, apperr.InvalidArg("invalid message id"))
		return
	}

	msg, err := s.msgs.GetByID(r.Context(), msgID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if msg.ReceiverID != userID {
		s.writeError(w, apperr.ErrNotReceiver)
		return
	}

	seenAt := time.Now()
	if err := s.msgs.MarkSeen(r.Context(), msgID, seenAt); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.MessagesSeen.Inc()

	s.relay(msg.SenderID.Hex(), &Event{
		Type:           "seen",
		ConversationID: msg.ConversationID.Hex(),
		MessageID:      msg.ID.Hex(),
		State:          string(data.StateSeen),
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"seenAt": seenAt,
	})
}
