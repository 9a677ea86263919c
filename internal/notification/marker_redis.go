package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// markerTTL bounds how long delivery markers are retained. Long enough that
// no realistic re-derivation of the same source event falls outside it.
const markerTTL = 90 * 24 * time.Hour

// RedisMarkerStore implements the idempotency marker on Redis SETNX. The
// atomic set-if-absent is exactly the at-most-once guarantee the emitter
// needs, and markers expire on their own.
type RedisMarkerStore struct {
	client *redis.Client
}

func NewRedisMarkerStore(client *redis.Client) *RedisMarkerStore {
	return &RedisMarkerStore{client: client}
}

func (s *RedisMarkerStore) SetIfAbsent(ctx context.Context, sourceID, audienceKey string) (bool, error) {
	key := "nidhi:notify:" + sourceID + "|" + audienceKey
	ok, err := s.client.SetNX(ctx, key, 1, markerTTL).Result()
	if err != nil {
		return false, fmt.Errorf("set notification marker: %w", err)
	}
	return ok, nil
}
