package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastSeenKeyPrefix = "presence:lastseen:"

// LastSeenStore persists the moment a user went offline, so clients
// can show "last seen" across process restarts. Backed by Redis.
type LastSeenStore struct {
	client *redis.Client
}

func NewLastSeenStore(client *redis.Client) *LastSeenStore {
	return &LastSeenStore{client: client}
}

func (s *LastSeenStore) Record(ctx context.Context, userID string, at time.Time) error {
	key := lastSeenKeyPrefix + userID
	if err := s.client.Set(ctx, key, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("record last seen for %s: %w", userID, err)
	}
	return nil
}

// Get returns the stored last-seen time, or nil when the user has
// never been recorded.
func (s *LastSeenStore) Get(ctx context.Context, userID string) (*time.Time, error) {
	key := lastSeenKeyPrefix + userID
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last seen for %s: %w", userID, err)
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, fmt.Errorf("parse last seen for %s: %w", userID, err)
	}
	return &t, nil
}
