package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/critiqlab/critiq/internal/ai"
	"github.com/critiqlab/critiq/internal/model"
	"github.com/critiqlab/critiq/internal/repo"
)

// WrapDBCacheToEmbedder adds the durable embedding tier. Its ttl is
// configured longer than the feedback ttl: the meaning of a text is stable
// even as feedback policy evolves. Rows past the ttl are ignored on read and
// reaped by the cleanup job.
func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo, ttl time.Duration) ai.IEmbedder {
	if e == nil || cacheRepo == nil || ttl <= 0 {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo, ttl: ttl}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
	ttl  time.Duration
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if d == nil || d.next == nil {
		return nil, nil
	}
	_, fp, modelName := buildCacheKey(d.next.ModelName(), taskType, text)
	minCtime := time.Now().Add(-d.ttl).Unix()
	values, ok, err := d.repo.Get(ctx, modelName, taskType, fp, minCtime)
	if err != nil {
		// A broken cache tier must not break embedding itself.
		logutil.GetLogger(ctx).Warn("embedding cache read failed", zap.Error(err))
	}
	if ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.String("task_type", taskType))
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.repo.Save(ctx, &model.EmbeddingCache{
		ModelName:   modelName,
		TaskType:    taskType,
		ContentHash: fp,
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}
