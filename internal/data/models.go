package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User roles. Conversations always pair one teacher with one student.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User maps to the users collection.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string        `bson:"email" json:"email"`
	Password  string        `bson:"password" json:"-"`
	Role      string        `bson:"role" json:"role"`
	FirstName string        `bson:"first_name" json:"firstName"`
	LastName  string        `bson:"last_name" json:"lastName"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Conversation is the unique channel between one teacher and one student.
// The (teacher_id, student_id) pair carries a unique index.
type Conversation struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TeacherID     bson.ObjectID `bson:"teacher_id" json:"teacherId"`
	StudentID     bson.ObjectID `bson:"student_id" json:"studentId"`
	LastMessageAt time.Time     `bson:"last_message_at" json:"lastMessageAt"`
	CreatedAt     time.Time     `bson:"created_at" json:"createdAt"`
}

// HasParticipant reports whether id is one of the two participants.
func (c *Conversation) HasParticipant(id bson.ObjectID) bool {
	return id == c.TeacherID || id == c.StudentID
}

// Message content types, matching what clients may render.
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeVideo    = "video"
	ContentTypeAudio    = "audio"
	ContentTypeFile     = "file"
	ContentTypeDocument = "document"
	ContentTypeEmoji    = "emoji"
	ContentTypeLink     = "link"
)

var validContentTypes = map[string]bool{
	ContentTypeText:     true,
	ContentTypeImage:    true,
	ContentTypeVideo:    true,
	ContentTypeAudio:    true,
	ContentTypeFile:     true,
	ContentTypeDocument: true,
	ContentTypeEmoji:    true,
	ContentTypeLink:     true,
}

// ValidContentType reports whether ct is an allowed message content type.
func ValidContentType(ct string) bool {
	return validContentTypes[ct]
}

// Message maps to the messages collection. Body is a pointer because
// attachment-only messages carry no text. DeliveredAt and SeenAt are nil
// until the corresponding transition happens; they are set exactly once.
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID bson.ObjectID `bson:"conversation_id" json:"conversationId"`
	SenderID       bson.ObjectID `bson:"sender_id" json:"senderId"`
	ReceiverID     bson.ObjectID `bson:"receiver_id" json:"receiverId"`
	Body           *string       `bson:"body" json:"body"`
	ContentType    string        `bson:"content_type" json:"contentType"`
	SentAt         time.Time     `bson:"sent_at" json:"sentAt"`
	DeliveredAt    *time.Time    `bson:"delivered_at" json:"deliveredAt"`
	SeenAt         *time.Time    `bson:"seen_at" json:"seenAt"`
}

// Attachment maps to the attachments collection: file metadata owned by a
// message. Storage mechanics beyond the metadata live elsewhere.
type Attachment struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	MessageID bson.ObjectID `bson:"message_id" json:"messageId"`
	Storage   string        `bson:"storage" json:"storage"`
	FileKey   string        `bson:"file_key" json:"fileKey"`
	MimeType  string        `bson:"mime_type" json:"mimeType"`
	Size      int64         `bson:"size" json:"size"`
	Width     *int          `bson:"width,omitempty" json:"width,omitempty"`
	Height    *int          `bson:"height,omitempty" json:"height,omitempty"`
}
