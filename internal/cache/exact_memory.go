package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/critiqlab/critiq/internal/model"
)

// MemoryStore bounds itself by item count with LRU eviction and a store-wide
// ttl fixed at construction; the per-call ttl on Set is ignored. Entries may
// disappear before their ttl under pressure, which is fine for a cache.
type MemoryStore struct {
	cache *expirable.LRU[string, *model.FeedbackEntry]
}

func NewMemoryStore(maxItems int, ttl time.Duration) *MemoryStore {
	if maxItems <= 0 {
		maxItems = 10000
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, *model.FeedbackEntry](maxItems, nil, ttl),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*model.FeedbackEntry, bool, error) {
	entry, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return entry, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, entry *model.FeedbackEntry, ttl time.Duration) error {
	s.cache.Add(key, entry)
	return nil
}
