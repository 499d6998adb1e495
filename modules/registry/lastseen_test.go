package registry

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

const testRedisAddr = "localhost:6379"

// setupLastSeenStore connects to a local Redis, skipping the test when
// none is running. Returns the store and a cleanup function.
func setupLastSeenStore(t *testing.T) (*LastSeenStore, func()) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	cleanup := func() {
		var cursor uint64
		for {
			keys, next, err := client.Scan(ctx, cursor, lastSeenKeyPrefix+"test-*", 100).Result()
			if err != nil {
				break
			}
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		client.Close()
	}

	return NewLastSeenStore(client), cleanup
}

func TestLastSeenStore_RecordAndGet(t *testing.T) {
	store, cleanup := setupLastSeenStore(t)
	defer cleanup()

	ctx := context.Background()
	at := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)

	if err := store.Record(ctx, "test-alice", at); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := store.Get(ctx, "test-alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want recorded time")
	}
	if !got.Equal(at) {
		t.Errorf("Get() = %v, want %v", got, at)
	}
}

func TestLastSeenStore_GetUnknownUser(t *testing.T) {
	store, cleanup := setupLastSeenStore(t)
	defer cleanup()

	got, err := store.Get(context.Background(), "test-never-seen")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() for unrecorded user = %v, want nil", got)
	}
}

func TestLastSeenStore_RecordOverwrites(t *testing.T) {
	store, cleanup := setupLastSeenStore(t)
	defer cleanup()

	ctx := context.Background()
	first := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	if err := store.Record(ctx, "test-bob", first); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, "test-bob", second); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := store.Get(ctx, "test-bob")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || !got.Equal(second) {
		t.Errorf("Get() = %v, want %v", got, second)
	}
}
