package api

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/example/realtime-chat/modules/dispatch"
	"github.com/example/realtime-chat/modules/registry"
	"github.com/example/realtime-chat/modules/router"
)

// handleWebSocket owns one connection from admission to cleanup. The
// gate verdict is written as a terminal error frame before closing, so
// clients can tell a rejection from a network failure.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	token := c.Query("token")
	deviceID := c.Query("device_id")

	authorized, rejection := m.gate.Admit(token, deviceID)
	if rejection != nil {
		_ = c.WriteJSON(ErrorFrame{Type: FrameError, Error: string(rejection.Reason)})
		_ = c.Close()
		return
	}

	connID := uuid.New().String()
	userID := authorized.User.ID
	client := router.NewClient(connID, userID, deviceID, c)

	m.hub.Register(client)
	m.presence.Connect(context.Background(), registry.Connection{
		ID:          connID,
		UserID:      userID,
		DeviceID:    deviceID,
		ConnectedAt: client.ConnectedAt,
	})
	defer func() {
		// unregister before the presence flip so an offline event never
		// races a frame to this socket
		m.hub.Unregister(connID)
		m.presence.Disconnect(context.Background(), connID)
		log.Printf("[api] WebSocket client disconnected: %s (user %s)", connID, userID)
	}()

	log.Printf("[api] WebSocket client connected: %s (user %s, device %q)", connID, userID, deviceID)

	// the hub can already fan out to this socket, so the welcome must
	// take the client's write lock like every other frame
	if err := client.Send(ConnectedFrame{Type: FrameConnected, UserID: userID, ConnID: connID}); err != nil {
		log.Printf("[api] Failed to send welcome: %v", err)
		return
	}

	for {
		_, frameBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", connID)
			} else {
				log.Printf("[api] Read error from %s: %v", connID, err)
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(frameBytes, &frame); err != nil {
			m.sendError(client, "invalid_frame", "Invalid frame format")
			continue
		}

		switch frame.Type {
		case FrameRoomJoin:
			m.handleRoomJoin(client, frame)
		case FrameRoomLeave:
			m.handleRoomLeave(client, frame)
		case FrameTypingStart:
			m.handleTyping(client, frame, true)
		case FrameTypingStop:
			m.handleTyping(client, frame, false)
		case FrameMessageSend:
			m.handleMessageSend(client, frame)
		case FrameMessageRead:
			m.handleMessageRead(client, frame)
		default:
			m.sendError(client, "unknown_frame", "Unknown frame type: "+frame.Type)
		}
	}
}

// handleRoomJoin validates membership through the dispatcher, sweeps
// pending messages to delivered, and only then adds the socket to the
// room. Non-participants never enter the room.
func (m *Module) handleRoomJoin(client *router.Client, frame ClientFrame) {
	if frame.ConversationID == "" {
		m.sendError(client, "invalid_frame", "conversation_id is required")
		return
	}

	resp, err := m.dispatch.ActivateRoom(context.Background(), dispatch.ActivateRoomRequest{
		ConversationID: frame.ConversationID,
		UserID:         client.UserID,
	})
	if err != nil {
		log.Printf("[api] activate-room call failed for %s: %v", client.ID, err)
		m.sendError(client, "internal_error", "Failed to join room")
		return
	}
	if !resp.OK {
		m.sendError(client, resp.Error, "Cannot join room")
		return
	}

	m.hub.Join(client.ID, frame.ConversationID)
	_ = client.Send(RoomAckFrame{
		Type:           FrameRoomJoined,
		ConversationID: frame.ConversationID,
		DeliveredCount: resp.DeliveredCount,
	})
}

func (m *Module) handleRoomLeave(client *router.Client, frame ClientFrame) {
	if frame.ConversationID == "" {
		m.sendError(client, "invalid_frame", "conversation_id is required")
		return
	}
	m.hub.Leave(client.ID, frame.ConversationID)
	_ = client.Send(RoomAckFrame{Type: FrameRoomLeft, ConversationID: frame.ConversationID})
}

// handleTyping relays typing indicators. Indicators are ephemeral: no
// persistence, no event bus, and no ack. With a recipient id the frame
// goes straight to that user's connections, reaching peers that have
// not opened the room; otherwise it fans out to room peers, and a
// socket that never joined the room is silently ignored.
func (m *Module) handleTyping(client *router.Client, frame ClientFrame, typing bool) {
	if frame.ConversationID == "" {
		return
	}
	update := router.TypingFrame{
		Type:           router.FrameTypingUpdate,
		ConversationID: frame.ConversationID,
		FromUserID:     client.UserID,
		Typing:         typing,
	}
	if frame.RecipientID != "" {
		m.hub.DeliverToUser(frame.RecipientID, update)
		return
	}
	if m.hub.InRoom(client.ID, frame.ConversationID) {
		m.hub.Broadcast(frame.ConversationID, update, client.ID)
	}
}

// handleMessageSend forwards the frame to the dispatcher and acks the
// verdict. Fan-out to recipients happens through the event bus, never
// from here.
func (m *Module) handleMessageSend(client *router.Client, frame ClientFrame) {
	resp, err := m.dispatch.SendMessage(context.Background(), dispatch.SendMessageRequest{
		SenderID:       client.UserID,
		ConversationID: frame.ConversationID,
		RecipientIDs:   frame.RecipientIDs,
		Content:        frame.Content,
		ContentKind:    frame.ContentKind,
		Attachments:    frame.Attachments,
	})
	if err != nil {
		log.Printf("[api] send-message call failed for %s: %v", client.ID, err)
		_ = client.Send(MessageAckFrame{Type: FrameMessageAck, Error: "internal_error"})
		return
	}

	_ = client.Send(MessageAckFrame{
		Type:           FrameMessageAck,
		OK:             resp.OK,
		MessageID:      resp.MessageID,
		ConversationID: resp.ConversationID,
		Error:          resp.Error,
	})
}

// handleMessageRead forwards read receipts. Receipts are fire-and
// forget; failures are logged, not acked.
func (m *Module) handleMessageRead(client *router.Client, frame ClientFrame) {
	if frame.ConversationID == "" || len(frame.MessageIDs) == 0 {
		return
	}
	resp, err := m.dispatch.MarkRead(context.Background(), dispatch.MarkReadRequest{
		ConversationID: frame.ConversationID,
		UserID:         client.UserID,
		MessageIDs:     frame.MessageIDs,
	})
	if err != nil {
		log.Printf("[api] mark-read call failed for %s: %v", client.ID, err)
		return
	}
	if !resp.OK {
		log.Printf("[api] mark-read rejected for %s: %s", client.ID, resp.Error)
	}
}

func (m *Module) sendError(client *router.Client, code, message string) {
	_ = client.Send(ErrorFrame{Type: FrameError, Error: code, Message: message})
}
