package router

import (
	"log"
	"sync"
	"time"
)

// wireConn is the slice of the websocket connection the hub needs.
// *websocket.Conn satisfies it; tests substitute a stub.
type wireConn interface {
	WriteJSON(v any) error
	Close() error
}

// Client is one registered WebSocket connection. Writes are serialized
// through a per-client mutex because gofiber websocket connections do
// not allow concurrent writers.
type Client struct {
	ID          string
	UserID      string
	DeviceID    string
	ConnectedAt time.Time

	conn    wireConn
	writeMu sync.Mutex
}

// NewClient wraps a websocket connection for hub registration.
func NewClient(id, userID, deviceID string, conn wireConn) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		DeviceID:    deviceID,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// Send writes a JSON frame to the client.
func (c *Client) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hub routes frames to WebSocket clients. It maintains room membership
// per connection (a connection may sit in many rooms at once) and a
// user index so a frame can reach every device of a user.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client             // connID -> client
	rooms     map[string]map[string]struct{} // conversationID -> set of connIDs
	connRooms map[string]map[string]struct{} // connID -> set of conversationIDs
	userConns map[string]map[string]struct{} // userID -> set of connIDs
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		rooms:     make(map[string]map[string]struct{}),
		connRooms: make(map[string]map[string]struct{}),
		userConns: make(map[string]map[string]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if h.userConns[client.UserID] == nil {
		h.userConns[client.UserID] = make(map[string]struct{})
	}
	h.userConns[client.UserID][client.ID] = struct{}{}
	log.Printf("[hub] Client %s (user %s) registered", client.ID, client.UserID)
}

// Unregister removes a client and clears all of its room memberships.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)

	for roomID := range h.connRooms[connID] {
		h.removeFromRoom(roomID, connID)
	}
	delete(h.connRooms, connID)

	if set := h.userConns[client.UserID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.userConns, client.UserID)
		}
	}
	log.Printf("[hub] Client %s (user %s) unregistered", connID, client.UserID)
}

// Join adds a connection to a conversation room.
func (h *Hub) Join(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]struct{})
	}
	h.rooms[roomID][connID] = struct{}{}
	if h.connRooms[connID] == nil {
		h.connRooms[connID] = make(map[string]struct{})
	}
	h.connRooms[connID][roomID] = struct{}{}
	log.Printf("[hub] Client %s joined room %s", connID, roomID)
}

// Leave removes a connection from a conversation room.
func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(roomID, connID)
	if set := h.connRooms[connID]; set != nil {
		delete(set, roomID)
		if len(set) == 0 {
			delete(h.connRooms, connID)
		}
	}
}

// caller must hold h.mu
func (h *Hub) removeFromRoom(roomID, connID string) {
	if set := h.rooms[roomID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast sends a frame to every connection in a room, optionally
// excluding one connection (usually the originator).
func (h *Hub) Broadcast(roomID string, payload any, excludeConnID string) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for connID := range h.rooms[roomID] {
		if connID == excludeConnID {
			continue
		}
		if client, ok := h.clients[connID]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.send(client, payload)
	}
}

// DeliverToUser sends a frame to every live connection of a user.
// Returns the number of connections reached.
func (h *Hub) DeliverToUser(userID string, payload any) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.userConns[userID]))
	for connID := range h.userConns[userID] {
		if client, ok := h.clients[connID]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.send(client, payload)
	}
	return len(targets)
}

// BroadcastAll sends a frame to every connected client.
func (h *Hub) BroadcastAll(payload any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.send(client, payload)
	}
}

func (h *Hub) send(client *Client, payload any) {
	if err := client.Send(payload); err != nil {
		log.Printf("[hub] Failed to send to client %s: %v", client.ID, err)
	}
}

// InRoom reports whether a connection is currently in a room.
func (h *Hub) InRoom(connID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][connID]
	return ok
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// CloseAll closes every client connection. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]struct{})
	h.connRooms = make(map[string]map[string]struct{})
	h.userConns = make(map[string]map[string]struct{})
}
