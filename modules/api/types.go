package api

import (
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Inbound frame types.
const (
	FrameRoomJoin    = "room:join"
	FrameRoomLeave   = "room:leave"
	FrameTypingStart = "typing:start"
	FrameTypingStop  = "typing:stop"
	FrameMessageSend = "message:send"
	FrameMessageRead = "message:read"
)

// Outbound ack and control frame types. Engine-driven frames
// (message:new, message:update, presence:update) come from the router.
const (
	FrameConnected  = "connected"
	FrameRoomJoined = "room:joined"
	FrameRoomLeft   = "room:left"
	FrameMessageAck = "message:ack"
	FrameError      = "error"
)

// ClientFrame is the envelope clients send over the socket. Fields are
// populated per frame type.
type ClientFrame struct {
	Type           string              `json:"type"`
	ConversationID string              `json:"conversation_id,omitempty"`
	RecipientID    string              `json:"recipient_id,omitempty"`
	RecipientIDs   []string            `json:"recipient_ids,omitempty"`
	Content        string              `json:"content,omitempty"`
	ContentKind    domain.ContentKind  `json:"content_kind,omitempty"`
	Attachments    []domain.Attachment `json:"attachments,omitempty"`
	MessageIDs     []string            `json:"message_ids,omitempty"`
}

// ConnectedFrame is sent once after a successful upgrade.
type ConnectedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	ConnID string `json:"conn_id"`
}

// RoomAckFrame confirms a join or leave.
type RoomAckFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	DeliveredCount int    `json:"delivered_count,omitempty"`
}

// MessageAckFrame confirms or rejects a send.
type MessageAckFrame struct {
	Type           string `json:"type"`
	OK             bool   `json:"ok"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ErrorFrame reports a protocol or authorization failure.
type ErrorFrame struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateGroupRequest is the API request to create a group conversation.
type CreateGroupRequest struct {
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participant_ids"`
}

// MessageListResponse is the API response for conversation history.
type MessageListResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
}

// PresenceResponse is the API response for a user's presence.
type PresenceResponse struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
