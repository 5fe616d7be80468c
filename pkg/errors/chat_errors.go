package errors

var (
	// Domain errors shared between stores and handlers.
	ErrEmailTaken           = AlreadyExists("email is already registered")
	ErrUserNotFound         = NotFound("user not found")
	ErrInvalidCredentials   = Unauthorized("invalid credentials")
	ErrMissingToken         = Unauthorized("missing or invalid token")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotParticipant       = Forbidden("not a participant of this conversation")
	ErrNotReceiver          = Forbidden("only the receiver can mark a message seen")
	ErrEmptyMessage         = InvalidArg("message body or attachment is required")
	ErrBadContentType       = InvalidArg("unsupported content type")
	ErrRoleMismatch         = InvalidParticipants("conversations pair exactly one teacher with one student")
	ErrWrongConversation    = InvalidParticipants("sender and receiver are not the participants of this conversation")
	ErrInvalidCursor        = InvalidArg("invalid pagination cursor")
)
