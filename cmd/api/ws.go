package main

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/edudesk/campus-chat/internal/metrics"
	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-authenticated; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket connection to the hub's Sender interface.
// gorilla/websocket allows one concurrent writer, so writes are serialized.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(ev *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

// inboundFrame is what clients send over the socket. Typing is the only
// client-initiated signal; message sending and read acknowledgements go
// through the HTTP API.
type inboundFrame struct {
	Type string `json:"type"`
	To   string `json:"to"`
}

// handleWS authenticates the handshake, joins the caller's room and runs the
// read loop. Authentication happens before the upgrade: a bad credential is
// refused with 401 and never touches the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		s.writeError(w, apperr.ErrMissingToken)
		return
	}
	claims, err := s.auth.VerifyToken(token)
	if err != nil {
		s.writeError(w, apperr.ErrMissingToken)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sender := &wsConn{conn: conn}
	connID := s.hub.Register(claims.UserID, sender)

	s.logger.Info().Str("user", claims.UserID).Int64("conn", connID).Msg("realtime connected")

	// Unregister before the connection closes so no relay can pick up a
	// dead socket after we return.
	defer func() {
		s.hub.Unregister(claims.UserID, connID)
		_ = conn.Close()
		s.logger.Info().Str("user", claims.UserID).Int64("conn", connID).Msg("realtime disconnected")
	}()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			// Graceful close and abrupt drop are the same thing here: the
			// user is now offline on this connection.
			return
		}

		switch frame.Type {
		case "typing":
			if frame.To == "" {
				continue
			}
			metrics.TypingSignals.Inc()
			// Best-effort and never persisted: if the target is offline the
			// signal just disappears.
			s.relay(frame.To, &Event{Type: "typing", From: claims.UserID})
		default:
			s.logger.Debug().Str("type", frame.Type).Msg("ignoring unknown frame")
		}
	}
}
