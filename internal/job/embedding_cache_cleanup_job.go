package job

import (
	"context"
	"time"

	"github.com/critiqlab/critiq/internal/repo"
)

// EmbeddingCacheCleanupJob reaps embedding rows past their ttl. Reads already
// ignore expired rows; this keeps the table from growing without bound.
type EmbeddingCacheCleanupJob struct {
	repo     *repo.EmbeddingCacheRepo
	ttlHours int
}

func NewEmbeddingCacheCleanupJob(repo *repo.EmbeddingCacheRepo, ttlHours int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{repo: repo, ttlHours: ttlHours}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	ttlHours := j.ttlHours
	if ttlHours <= 0 {
		ttlHours = 168
	}
	cutoff := time.Now().Add(-time.Duration(ttlHours) * time.Hour).Unix()
	_, err := j.repo.DeleteBefore(ctx, cutoff)
	return err
}
