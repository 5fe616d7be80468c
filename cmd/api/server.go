package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/edudesk/campus-chat/internal/auth"
	"github.com/edudesk/campus-chat/internal/data"
	"github.com/edudesk/campus-chat/internal/metrics"
	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

// Store interfaces cover exactly what the handlers call, so tests can swap
// in-memory fakes for the Mongo-backed stores.

type usersStore interface {
	CreateUser(ctx context.Context, email, hashedPassword, role, firstName, lastName string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
}

type conversationsStore interface {
	GetOrCreate(ctx context.Context, teacherID, studentID bson.ObjectID) (*data.Conversation, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*data.Conversation, error)
	Touch(ctx context.Context, id bson.ObjectID, at time.Time) error
	ListForUser(ctx context.Context, userID bson.ObjectID) ([]*data.Conversation, error)
}

type messagesStore interface {
	Append(ctx context.Context, conv *data.Conversation, senderID, receiverID bson.ObjectID, body *string, contentType string, sentAt time.Time) (*data.Message, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*data.Message, error)
	MarkDelivered(ctx context.Context, id bson.ObjectID, at time.Time) error
	MarkSeen(ctx context.Context, id bson.ObjectID, at time.Time) error
	ListByConversation(ctx context.Context, conversationID bson.ObjectID, cursor *data.Cursor, limit int64) ([]*data.Message, *data.Cursor, error)
	MarkPageDelivered(ctx context.Context, receiverID bson.ObjectID, page []*data.Message, at time.Time) (int64, error)
}

type attachmentsStore interface {
	Create(ctx context.Context, att *data.Attachment) (*data.Attachment, error)
	ListByMessage(ctx context.Context, messageID bson.ObjectID) ([]*data.Attachment, error)
}

// Server holds the messaging API's dependencies: the stores, the credential
// verifier and the realtime hub.
type Server struct {
	users     usersStore
	convs     conversationsStore
	msgs      messagesStore
	atts      attachmentsStore
	auth      *auth.JWTManager
	hub       *ConnectionHub
	logger    zerolog.Logger
	uploadDir string
}

// newServer returns a ready-to-use Server wired with stores, auth manager and hub.
func newServer(users usersStore, convs conversationsStore, msgs messagesStore, atts attachmentsStore, authMgr *auth.JWTManager, hub *ConnectionHub, logger zerolog.Logger, uploadDir string) *Server {
	return &Server{
		users:     users,
		convs:     convs,
		msgs:      msgs,
		atts:      atts,
		auth:      authMgr,
		hub:       hub,
		logger:    logger,
		uploadDir: uploadDir,
	}
}

// writeJSON sends a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps an application error to its HTTP status and writes it.
// Store-layer invariant violations pass through here unchanged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		s.logger.Error().Err(err).Msg("internal error")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, code.HTTPStatus(), map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

// relay pushes an event into a user's room. Relays are best-effort: a miss
// means the user is offline and the client reconciles from the stores on its
// next fetch, so failures are counted and logged, never surfaced.
func (s *Server) relay(toUserID string, ev *Event) {
	if err := s.hub.SendToUser(toUserID, ev); err != nil {
		metrics.RelayDropped.WithLabelValues(ev.Type).Inc()
		s.logger.Debug().
			Str("to", toUserID).
			Str("event", ev.Type).
			Err(err).
			Msg("relay dropped")
	}
}
