package registry

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"

	"github.com/example/realtime-chat/events"
)

// Module is the presence tracker. It owns the session registry and
// publishes presence flips on the event bus. When Redis is reachable
// it also persists last-seen timestamps.
type Module struct {
	registry  *SessionRegistry
	eventBus  mono.EventBus
	redisAddr string
	redis     *redis.Client
	lastSeen  *LastSeenStore
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)

// NewModule creates a new registry module.
func NewModule() *Module {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	return &Module{
		registry:  NewSessionRegistry(),
		redisAddr: redisAddr,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "registry"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PresenceChangedV1.ToBase(),
	}
}

// Start connects to Redis for last-seen persistence. Presence tracking
// itself is in-memory and works without Redis; a connection failure
// only disables the last-seen store.
func (m *Module) Start(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:         m.redisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		log.Printf("[registry] Redis unavailable at %s, last-seen persistence disabled: %v", m.redisAddr, err)
	} else {
		m.redis = client
		m.lastSeen = NewLastSeenStore(client)
		log.Printf("[registry] Connected to Redis at %s", m.redisAddr)
	}

	log.Println("[registry] Module started")
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			log.Printf("[registry] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[registry] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"online_users": len(m.registry.OnlineUsers()),
			"connections":  m.registry.ConnectionCount(),
			"last_seen":    m.lastSeen != nil,
		},
	}
}

// Connect registers a live connection. If this is the user's first
// connection it publishes an online presence event.
func (m *Module) Connect(ctx context.Context, conn Connection) {
	cameOnline := m.registry.Register(conn)
	if !cameOnline {
		return
	}
	m.publishPresence(ctx, conn.UserID, true, nil)
}

// Disconnect removes a connection. If it was the user's last one it
// records last-seen and publishes an offline presence event.
func (m *Module) Disconnect(ctx context.Context, connID string) {
	userID, wentOffline, ok := m.registry.Unregister(connID)
	if !ok || !wentOffline {
		return
	}

	now := time.Now().UTC()
	if m.lastSeen != nil {
		if err := m.lastSeen.Record(ctx, userID, now); err != nil {
			log.Printf("[registry] Failed to record last seen for %s: %v", userID, err)
		}
	}
	m.publishPresence(ctx, userID, false, &now)
}

func (m *Module) publishPresence(_ context.Context, userID string, online bool, lastSeen *time.Time) {
	if m.eventBus == nil {
		return
	}
	event := events.PresenceChangedEvent{
		UserID:   userID,
		Online:   online,
		LastSeen: lastSeen,
	}
	if err := events.PresenceChangedV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[registry] Failed to publish presence change for %s: %v", userID, err)
	}
}

// Registry returns the session registry.
func (m *Module) Registry() *SessionRegistry {
	return m.registry
}

// LastSeen returns the persisted last-seen time for a user, or nil when
// unknown or when the last-seen store is disabled.
func (m *Module) LastSeen(ctx context.Context, userID string) *time.Time {
	if m.lastSeen == nil {
		return nil
	}
	t, err := m.lastSeen.Get(ctx, userID)
	if err != nil {
		log.Printf("[registry] Failed to load last seen for %s: %v", userID, err)
		return nil
	}
	return t
}
