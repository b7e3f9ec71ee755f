package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/critiqlab/critiq/internal/model"
)

// RedisStore keeps exact-match entries in a shared Redis. Size bounding is
// delegated to the backend (maxmemory + allkeys-lru); this client only sets
// the per-entry ttl.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*model.FeedbackEntry, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry := &model.FeedbackEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry *model.FeedbackEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}
