package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
)

// Module is the room router. It owns the WebSocket hub and consumes
// engine events from the bus, fanning each one out to the right live
// connections.
type Module struct {
	hub *Hub
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new router module.
func NewModule() *Module {
	return &Module{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "router"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[router] Module started")
	return nil
}

// Stop closes all client connections.
func (m *Module) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	m.hub.CloseAll()
	log.Printf("[router] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageCreatedV1, m.handleMessageCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageStatusV1, m.handleMessageStatus, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageStatus consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.PresenceChangedV1, m.handlePresenceChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register PresenceChanged consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ConversationCreatedV1, m.handleConversationCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register ConversationCreated consumer: %w", err)
	}

	log.Println("[router] Registered event consumers: MessageCreated, MessageStatus, PresenceChanged, ConversationCreated")
	return nil
}

// handleMessageCreated routes a new message to every live connection of
// every recipient. Delivery is addressed per user, not per room, so
// recipients receive messages even when they have not joined the room.
func (m *Module) handleMessageCreated(_ context.Context, event events.MessageCreatedEvent, _ *mono.Msg) error {
	frame := MessageFrame{
		Type:    FrameMessageNew,
		Message: event.Message,
	}
	for _, userID := range event.RecipientIDs {
		m.hub.DeliverToUser(userID, frame)
	}
	return nil
}

// handleMessageStatus routes a status change back to the sender's
// connections.
func (m *Module) handleMessageStatus(_ context.Context, event events.MessageStatusEvent, _ *mono.Msg) error {
	m.hub.DeliverToUser(event.SenderID, StatusFrame{
		Type:           FrameMessageUpdate,
		MessageID:      event.MessageID,
		ConversationID: event.ConversationID,
		Status:         event.Status,
		ReaderID:       event.ReaderID,
		Timestamp:      event.Timestamp,
	})
	return nil
}

// handlePresenceChanged broadcasts presence flips to every client.
func (m *Module) handlePresenceChanged(_ context.Context, event events.PresenceChangedEvent, _ *mono.Msg) error {
	m.hub.BroadcastAll(PresenceFrame{
		Type:     FramePresenceUpdate,
		UserID:   event.UserID,
		Online:   event.Online,
		LastSeen: event.LastSeen,
	})
	return nil
}

// handleConversationCreated notifies each participant about the new
// conversation.
func (m *Module) handleConversationCreated(_ context.Context, event events.ConversationCreatedEvent, _ *mono.Msg) error {
	frame := ConversationFrame{
		Type:           FrameConversationNew,
		Conversation:   event.Conversation,
		ParticipantIDs: event.ParticipantIDs,
	}
	for _, userID := range event.ParticipantIDs {
		m.hub.DeliverToUser(userID, frame)
	}
	return nil
}

// GetHub returns the WebSocket hub for the API module to use.
func (m *Module) GetHub() *Hub {
	return m.hub
}

// Outbound frame types.
const (
	FrameMessageNew      = "message:new"
	FrameMessageUpdate   = "message:update"
	FramePresenceUpdate  = "presence:update"
	FrameConversationNew = "conversation:new"
	FrameTypingUpdate    = "typing:update"
)

// MessageFrame carries a newly created message to recipients.
type MessageFrame struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

// StatusFrame carries a delivery status change to the sender.
type StatusFrame struct {
	Type           string                `json:"type"`
	MessageID      string                `json:"message_id"`
	ConversationID string                `json:"conversation_id"`
	Status         domain.DeliveryStatus `json:"status"`
	ReaderID       string                `json:"reader_id,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// PresenceFrame carries a presence flip to all clients.
type PresenceFrame struct {
	Type     string     `json:"type"`
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ConversationFrame announces a new conversation to its participants.
type ConversationFrame struct {
	Type           string              `json:"type"`
	Conversation   domain.Conversation `json:"conversation"`
	ParticipantIDs []string            `json:"participant_ids"`
}

// TypingFrame carries a typing indicator to conversation peers.
type TypingFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	FromUserID     string `json:"from_user_id"`
	Typing         bool   `json:"typing"`
}
