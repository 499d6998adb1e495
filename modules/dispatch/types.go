package dispatch

import (
	"errors"
	"unicode/utf8"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Service names registered on the container.
const (
	ServiceSendMessage  = "send-message"
	ServiceActivateRoom = "activate-room"
	ServiceMarkRead     = "mark-read"
	ServiceHistory      = "conversation-history"
	ServiceCreateGroup  = "create-group"
)

// Validation constants
const (
	MaxContentLength   = 5000
	MaxGroupNameLength = 100
	MaxAttachments     = 10
)

// Dispatch errors. These map 1:1 onto the error codes carried in
// service responses and websocket acks.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("sender is not a participant")
	ErrNoRecipients         = errors.New("no recipients resolvable")
	ErrGroupRequiresID      = errors.New("group sends require an existing conversation id")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrContentEmpty         = errors.New("message has no content and no attachments")
	ErrContentTooLong       = errors.New("message content exceeds maximum length")
	ErrContentInvalid       = errors.New("message content is not valid UTF-8")
	ErrContentKindInvalid   = errors.New("unknown content kind")
	ErrTooManyAttachments   = errors.New("too many attachments")
	ErrGroupNameEmpty       = errors.New("group name cannot be empty")
	ErrGroupNameTooLong     = errors.New("group name exceeds maximum length")
	ErrGroupTooSmall        = errors.New("a group needs at least two participants")
)

// Error codes for service responses and websocket acks.
const (
	CodeConversationNotFound = "conversation_not_found"
	CodeNotParticipant       = "not_a_participant"
	CodeNoRecipients         = "no_recipients_resolvable"
	CodeGroupRequiresID      = "group_requires_existing_id"
	CodeStoreUnavailable     = "store_unavailable"
	CodeInvalidContent       = "invalid_content"
	CodeInternal             = "internal_error"
)

// ErrorCode maps a dispatch error to its wire code. Unknown errors map
// to internal_error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConversationNotFound):
		return CodeConversationNotFound
	case errors.Is(err, ErrNotParticipant):
		return CodeNotParticipant
	case errors.Is(err, ErrNoRecipients):
		return CodeNoRecipients
	case errors.Is(err, ErrGroupRequiresID):
		return CodeGroupRequiresID
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrContentEmpty),
		errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrContentInvalid),
		errors.Is(err, ErrContentKindInvalid),
		errors.Is(err, ErrTooManyAttachments):
		return CodeInvalidContent
	default:
		return CodeInternal
	}
}

// SendMessageRequest asks the dispatcher to persist and fan out one
// message. Either ConversationID or RecipientIDs must be set; with only
// recipients, a two-party conversation is resolved or created.
type SendMessageRequest struct {
	SenderID       string              `json:"sender_id"`
	ConversationID string              `json:"conversation_id,omitempty"`
	RecipientIDs   []string            `json:"recipient_ids,omitempty"`
	Content        string              `json:"content"`
	ContentKind    domain.ContentKind  `json:"content_kind,omitempty"`
	Attachments    []domain.Attachment `json:"attachments,omitempty"`
}

// SendMessageResponse is the dispatcher's ack.
type SendMessageResponse struct {
	OK             bool   `json:"ok"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ActivateRoomRequest marks a user active in a conversation, moving
// pending messages from other senders to delivered.
type ActivateRoomRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// ActivateRoomResponse reports how many messages moved to delivered.
type ActivateRoomResponse struct {
	OK             bool   `json:"ok"`
	DeliveredCount int    `json:"delivered_count"`
	Error          string `json:"error,omitempty"`
}

// MarkReadRequest marks messages read by a user.
type MarkReadRequest struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	MessageIDs     []string `json:"message_ids"`
}

// MarkReadResponse reports how many messages actually changed state.
type MarkReadResponse struct {
	OK           bool   `json:"ok"`
	UpdatedCount int    `json:"updated_count"`
	Error        string `json:"error,omitempty"`
}

// HistoryRequest fetches recent messages of a conversation. The user
// must be a participant.
type HistoryRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Limit          int    `json:"limit,omitempty"`
}

// HistoryResponse carries messages in chronological order.
type HistoryResponse struct {
	OK       bool             `json:"ok"`
	Messages []domain.Message `json:"messages,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// CreateGroupRequest creates a named group conversation. The admin is
// always included in the participant set.
type CreateGroupRequest struct {
	Name           string   `json:"name"`
	AdminID        string   `json:"admin_id"`
	ParticipantIDs []string `json:"participant_ids"`
}

// CreateGroupResponse returns the created conversation.
type CreateGroupResponse struct {
	OK           bool                 `json:"ok"`
	Conversation *domain.Conversation `json:"conversation,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// ValidateContent checks a message body before dispatch. A message may
// carry attachments without text, but never neither.
func ValidateContent(content string, kind domain.ContentKind, attachments []domain.Attachment) error {
	if content == "" && len(attachments) == 0 {
		return ErrContentEmpty
	}
	if len(content) > MaxContentLength {
		return ErrContentTooLong
	}
	if !utf8.ValidString(content) {
		return ErrContentInvalid
	}
	if kind != "" && !kind.Valid() {
		return ErrContentKindInvalid
	}
	if len(attachments) > MaxAttachments {
		return ErrTooManyAttachments
	}
	return nil
}

// ValidateGroupName checks a group conversation name.
func ValidateGroupName(name string) error {
	if name == "" {
		return ErrGroupNameEmpty
	}
	if len(name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}
	return nil
}
