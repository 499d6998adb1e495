package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/store"
)

// Module exposes the dispatcher as request-reply services on the
// container, so the API module can call it without a direct reference.
type Module struct {
	store      *store.Module
	dispatcher *Dispatcher
	eventBus   mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new dispatch module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "dispatch"
}

// SetStore injects the store module (called from main.go).
func (m *Module) SetStore(s *store.Module) {
	m.store = s
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
	if m.dispatcher != nil {
		m.dispatcher.SetEventBus(bus)
	}
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageCreatedV1.ToBase(),
		events.MessageStatusV1.ToBase(),
		events.ConversationCreatedV1.ToBase(),
	}
}

// Start builds the dispatcher. The store module must have been started
// first so the repositories exist.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("store dependency not set")
	}

	m.dispatcher = NewDispatcher(m.store.Conversations(), m.store.Messages())
	if m.eventBus != nil {
		m.dispatcher.SetEventBus(m.eventBus)
	}

	log.Println("[dispatch] Module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[dispatch] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.dispatcher != nil,
		Message: "operational",
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceSendMessage,
		json.Unmarshal,
		json.Marshal,
		m.handleSendMessage,
	); err != nil {
		return fmt.Errorf("failed to register send-message service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceActivateRoom,
		json.Unmarshal,
		json.Marshal,
		m.handleActivateRoom,
	); err != nil {
		return fmt.Errorf("failed to register activate-room service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceMarkRead,
		json.Unmarshal,
		json.Marshal,
		m.handleMarkRead,
	); err != nil {
		return fmt.Errorf("failed to register mark-read service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceHistory,
		json.Unmarshal,
		json.Marshal,
		m.handleHistory,
	); err != nil {
		return fmt.Errorf("failed to register conversation-history service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceCreateGroup,
		json.Unmarshal,
		json.Marshal,
		m.handleCreateGroup,
	); err != nil {
		return fmt.Errorf("failed to register create-group service: %w", err)
	}

	log.Printf("[dispatch] Registered services: %s, %s, %s, %s, %s",
		ServiceSendMessage, ServiceActivateRoom, ServiceMarkRead, ServiceHistory, ServiceCreateGroup)
	return nil
}

// handleSendMessage handles the send path. Dispatch failures come back
// as coded responses, not errors, so callers can ack them to clients.
func (m *Module) handleSendMessage(ctx context.Context, req SendMessageRequest, _ *mono.Msg) (SendMessageResponse, error) {
	msg, conv, err := m.dispatcher.Send(ctx, req)
	if err != nil {
		log.Printf("[dispatch] Send from %s failed: %v", req.SenderID, err)
		return SendMessageResponse{Error: ErrorCode(err)}, nil
	}
	return SendMessageResponse{
		OK:             true,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
	}, nil
}

// handleActivateRoom handles delivery sweeps on room activation.
func (m *Module) handleActivateRoom(ctx context.Context, req ActivateRoomRequest, _ *mono.Msg) (ActivateRoomResponse, error) {
	count, err := m.dispatcher.Activate(ctx, req)
	if err != nil {
		return ActivateRoomResponse{Error: ErrorCode(err)}, nil
	}
	return ActivateRoomResponse{OK: true, DeliveredCount: count}, nil
}

// handleMarkRead handles read receipts.
func (m *Module) handleMarkRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (MarkReadResponse, error) {
	count, err := m.dispatcher.MarkRead(ctx, req)
	if err != nil {
		return MarkReadResponse{Error: ErrorCode(err)}, nil
	}
	return MarkReadResponse{OK: true, UpdatedCount: count}, nil
}

// handleHistory handles history reads.
func (m *Module) handleHistory(ctx context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	msgs, err := m.dispatcher.History(ctx, req)
	if err != nil {
		return HistoryResponse{Error: ErrorCode(err)}, nil
	}
	return HistoryResponse{OK: true, Messages: msgs}, nil
}

// handleCreateGroup handles explicit group creation.
func (m *Module) handleCreateGroup(ctx context.Context, req CreateGroupRequest, _ *mono.Msg) (CreateGroupResponse, error) {
	conv, err := m.dispatcher.CreateGroup(ctx, req)
	if err != nil {
		return CreateGroupResponse{Error: ErrorCode(err)}, nil
	}
	return CreateGroupResponse{OK: true, Conversation: conv}, nil
}

// Dispatcher returns the dispatcher. Valid after Start.
func (m *Module) Dispatcher() *Dispatcher {
	return m.dispatcher
}
