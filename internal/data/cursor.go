package data

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	apperr "github.com/edudesk/campus-chat/pkg/errors"
)

// Cursor is the opaque pagination position over (sent_at, _id). Paging on
// the compound key instead of an offset keeps pages stable while new
// messages are being inserted concurrently.
type Cursor struct {
	SentAt time.Time
	ID     bson.ObjectID
}

// Encode renders the cursor as an opaque base64 token.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%s|%s", c.SentAt.UTC().Format(time.RFC3339Nano), c.ID.Hex())
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token previously produced by Encode. An empty token
// means "start from the beginning" and yields a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, apperr.ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, apperr.ErrInvalidCursor
	}

	sentAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, apperr.ErrInvalidCursor
	}
	id, err := bson.ObjectIDFromHex(parts[1])
	if err != nil {
		return nil, apperr.ErrInvalidCursor
	}

	return &Cursor{SentAt: sentAt, ID: id}, nil
}
