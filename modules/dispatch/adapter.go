package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// DispatchPort is the interface the API module uses to reach the
// dispatcher through the service container.
type DispatchPort interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
	ActivateRoom(ctx context.Context, req ActivateRoomRequest) (ActivateRoomResponse, error)
	MarkRead(ctx context.Context, req MarkReadRequest) (MarkReadResponse, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
	CreateGroup(ctx context.Context, req CreateGroupRequest) (CreateGroupResponse, error)
}

// Adapter implements DispatchPort over the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) DispatchPort {
	if container == nil {
		panic("dispatch: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// SendMessage calls the send-message service.
func (a *Adapter) SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	var resp SendMessageResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSendMessage,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return SendMessageResponse{}, fmt.Errorf("failed to call send-message: %w", err)
	}
	return resp, nil
}

// ActivateRoom calls the activate-room service.
func (a *Adapter) ActivateRoom(ctx context.Context, req ActivateRoomRequest) (ActivateRoomResponse, error) {
	var resp ActivateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceActivateRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return ActivateRoomResponse{}, fmt.Errorf("failed to call activate-room: %w", err)
	}
	return resp, nil
}

// MarkRead calls the mark-read service.
func (a *Adapter) MarkRead(ctx context.Context, req MarkReadRequest) (MarkReadResponse, error) {
	var resp MarkReadResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMarkRead,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return MarkReadResponse{}, fmt.Errorf("failed to call mark-read: %w", err)
	}
	return resp, nil
}

// History calls the conversation-history service.
func (a *Adapter) History(ctx context.Context, req HistoryRequest) (HistoryResponse, error) {
	var resp HistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return HistoryResponse{}, fmt.Errorf("failed to call conversation-history: %w", err)
	}
	return resp, nil
}

// CreateGroup calls the create-group service.
func (a *Adapter) CreateGroup(ctx context.Context, req CreateGroupRequest) (CreateGroupResponse, error) {
	var resp CreateGroupResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateGroup,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return CreateGroupResponse{}, fmt.Errorf("failed to call create-group: %w", err)
	}
	return resp, nil
}
