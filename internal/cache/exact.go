package cache

import (
	"context"
	"time"

	"github.com/critiqlab/critiq/internal/model"
)

// ExactStore is the fingerprint-keyed tier. Implemented by the in-process
// LRU store (dev, tests) and the Redis store (prod). Get and Set return
// errors on backend trouble; the orchestrator degrades those to misses
// instead of failing the caller.
type ExactStore interface {
	Get(ctx context.Context, key string) (*model.FeedbackEntry, bool, error)
	Set(ctx context.Context, key string, entry *model.FeedbackEntry, ttl time.Duration) error
}

// entryKey scopes exact-match entries by feedback type as well as content, so
// a TONE entry can never satisfy a FALLACY lookup for identical text.
func entryKey(fingerprint, feedbackType string) string {
	return "feedback:" + feedbackType + ":" + fingerprint
}
