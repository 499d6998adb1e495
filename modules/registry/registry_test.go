package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func conn(id, userID, deviceID string) Connection {
	return Connection{ID: id, UserID: userID, DeviceID: deviceID, ConnectedAt: time.Now()}
}

func TestSessionRegistry_RegisterUnregister(t *testing.T) {
	r := NewSessionRegistry()

	if !r.Register(conn("c1", "alice", "phone")) {
		t.Error("first connection should flip the user online")
	}
	if r.Register(conn("c2", "alice", "laptop")) {
		t.Error("second connection should not flip presence again")
	}
	if !r.IsOnline("alice") {
		t.Error("alice should be online")
	}
	if got := len(r.LiveConnectionsFor("alice")); got != 2 {
		t.Errorf("live connections = %d, want 2", got)
	}

	userID, wentOffline, ok := r.Unregister("c1")
	if !ok || userID != "alice" || wentOffline {
		t.Errorf("Unregister(c1) = (%q, %v, %v), want (alice, false, true)", userID, wentOffline, ok)
	}
	if !r.IsOnline("alice") {
		t.Error("alice should still be online with one connection left")
	}

	userID, wentOffline, ok = r.Unregister("c2")
	if !ok || userID != "alice" || !wentOffline {
		t.Errorf("Unregister(c2) = (%q, %v, %v), want (alice, true, true)", userID, wentOffline, ok)
	}
	if r.IsOnline("alice") {
		t.Error("alice should be offline after last connection closed")
	}
}

func TestSessionRegistry_UnknownConnection(t *testing.T) {
	r := NewSessionRegistry()

	if _, _, ok := r.Unregister("ghost"); ok {
		t.Error("Unregister of unknown connection should report ok=false")
	}
}

func TestSessionRegistry_IdempotentRegister(t *testing.T) {
	r := NewSessionRegistry()

	if !r.Register(conn("c1", "alice", "phone")) {
		t.Error("first register should flip online")
	}
	// same connection ID re-registered (reconnect glitch)
	if r.Register(conn("c1", "alice", "phone")) {
		t.Error("re-registering the same connection must not flip presence")
	}
	if got := len(r.LiveConnectionsFor("alice")); got != 1 {
		t.Errorf("live connections = %d, want 1", got)
	}

	if _, wentOffline, ok := r.Unregister("c1"); !ok || !wentOffline {
		t.Error("single unregister should take the user offline")
	}
}

func TestSessionRegistry_OnlineUsers(t *testing.T) {
	r := NewSessionRegistry()

	r.Register(conn("c1", "alice", ""))
	r.Register(conn("c2", "bob", ""))
	r.Register(conn("c3", "bob", ""))

	users := r.OnlineUsers()
	if len(users) != 2 {
		t.Errorf("OnlineUsers() = %v, want 2 users", users)
	}
	if r.ConnectionCount() != 3 {
		t.Errorf("ConnectionCount() = %d, want 3", r.ConnectionCount())
	}
}

func TestSessionRegistry_ConcurrentChurn(t *testing.T) {
	r := NewSessionRegistry()

	const users = 20
	const connsPerUser = 10

	var wg sync.WaitGroup
	flips := make([]int32, users)
	var flipMu sync.Mutex

	for u := 0; u < users; u++ {
		for c := 0; c < connsPerUser; c++ {
			wg.Add(1)
			go func(u, c int) {
				defer wg.Done()
				userID := fmt.Sprintf("user-%d", u)
				connID := fmt.Sprintf("conn-%d-%d", u, c)
				if r.Register(conn(connID, userID, "")) {
					flipMu.Lock()
					flips[u]++
					flipMu.Unlock()
				}
			}(u, c)
		}
	}
	wg.Wait()

	// exactly one connect per user may observe the online flip
	for u, n := range flips {
		if n != 1 {
			t.Errorf("user-%d online flips = %d, want 1", u, n)
		}
	}
	if r.ConnectionCount() != users*connsPerUser {
		t.Fatalf("ConnectionCount() = %d, want %d", r.ConnectionCount(), users*connsPerUser)
	}

	offline := make([]int32, users)
	for u := 0; u < users; u++ {
		for c := 0; c < connsPerUser; c++ {
			wg.Add(1)
			go func(u, c int) {
				defer wg.Done()
				connID := fmt.Sprintf("conn-%d-%d", u, c)
				if _, wentOffline, ok := r.Unregister(connID); ok && wentOffline {
					flipMu.Lock()
					offline[u]++
					flipMu.Unlock()
				}
			}(u, c)
		}
	}
	wg.Wait()

	for u, n := range offline {
		if n != 1 {
			t.Errorf("user-%d offline flips = %d, want 1", u, n)
		}
	}
	if r.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount() = %d after full churn, want 0", r.ConnectionCount())
	}
}
