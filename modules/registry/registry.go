package registry

import (
	"hash/fnv"
	"sync"
	"time"
)

// Connection is one live socket for a user. A user may hold several at
// once, one per device or tab.
type Connection struct {
	ID          string
	UserID      string
	DeviceID    string
	ConnectedAt time.Time
}

const shardCount = 32

type shard struct {
	mu    sync.Mutex
	users map[string]map[string]Connection // userID -> connID -> connection
}

// SessionRegistry tracks which users have live connections. State is
// sharded by user ID so connect/disconnect storms on different users
// never contend on one lock.
type SessionRegistry struct {
	shards [shardCount]*shard
	conns  sync.Map // connID -> userID, for reverse lookup on disconnect
}

func NewSessionRegistry() *SessionRegistry {
	r := &SessionRegistry{}
	for i := range r.shards {
		r.shards[i] = &shard{users: make(map[string]map[string]Connection)}
	}
	return r
}

func (r *SessionRegistry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Register adds a connection and reports whether the user just came
// online (no live connections before this one). Re-registering an
// existing connection ID is idempotent and never flips presence.
func (r *SessionRegistry) Register(conn Connection) (cameOnline bool) {
	s := r.shardFor(conn.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[conn.UserID]
	if !ok {
		set = make(map[string]Connection)
		s.users[conn.UserID] = set
	}
	_, existed := set[conn.ID]
	set[conn.ID] = conn
	r.conns.Store(conn.ID, conn.UserID)

	return !existed && len(set) == 1
}

// Unregister removes a connection and reports whether it was the
// user's last one. Unknown connection IDs return ok=false.
func (r *SessionRegistry) Unregister(connID string) (userID string, wentOffline bool, ok bool) {
	v, loaded := r.conns.LoadAndDelete(connID)
	if !loaded {
		return "", false, false
	}
	userID = v.(string)

	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, exists := s.users[userID]
	if !exists {
		return userID, false, false
	}
	if _, exists := set[connID]; !exists {
		return userID, false, false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(s.users, userID)
		return userID, true, true
	}
	return userID, false, true
}

// IsOnline reports whether the user has at least one live connection.
func (r *SessionRegistry) IsOnline(userID string) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users[userID]) > 0
}

// LiveConnectionsFor returns a snapshot of the user's connections.
func (r *SessionRegistry) LiveConnectionsFor(userID string) []Connection {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.users[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// OnlineUsers returns the IDs of every user with a live connection.
func (r *SessionRegistry) OnlineUsers() []string {
	var out []string
	for _, s := range r.shards {
		s.mu.Lock()
		for userID := range s.users {
			out = append(out, userID)
		}
		s.mu.Unlock()
	}
	return out
}

// ConnectionCount returns the total number of live connections.
func (r *SessionRegistry) ConnectionCount() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for _, set := range s.users {
			n += len(set)
		}
		s.mu.Unlock()
	}
	return n
}
