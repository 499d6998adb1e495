package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat/domain/chat"
)

// MessageCreatedEvent is emitted after a message has been persisted.
// RecipientIDs is the conversation's participant set at dispatch time,
// minus the sender.
type MessageCreatedEvent struct {
	Message      domain.Message `json:"message"`
	RecipientIDs []string       `json:"recipient_ids"`
}

// MessageStatusEvent is emitted when a message moves to delivered or read.
// It is routed to the sender's live connections.
type MessageStatusEvent struct {
	MessageID      string                `json:"message_id"`
	ConversationID string                `json:"conversation_id"`
	SenderID       string                `json:"sender_id"`
	Status         domain.DeliveryStatus `json:"status"`
	ReaderID       string                `json:"reader_id,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// PresenceChangedEvent is emitted when a user's online state flips.
// Broadcast globally; any contact list anywhere may need it.
type PresenceChangedEvent struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen"`
}

// ConversationCreatedEvent is emitted when a conversation is created,
// either auto-created by the dispatcher (private) or explicitly (group).
type ConversationCreatedEvent struct {
	Conversation   domain.Conversation `json:"conversation"`
	ParticipantIDs []string            `json:"participant_ids"`
}

// Event definitions for the messaging engine.
var (
	MessageCreatedV1 = helper.EventDefinition[MessageCreatedEvent](
		"dispatch",
		"MessageCreated",
		"v1",
	)

	MessageStatusV1 = helper.EventDefinition[MessageStatusEvent](
		"dispatch",
		"MessageStatus",
		"v1",
	)

	ConversationCreatedV1 = helper.EventDefinition[ConversationCreatedEvent](
		"dispatch",
		"ConversationCreated",
		"v1",
	)

	PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
		"registry",
		"PresenceChanged",
		"v1",
	)
)
