package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/critiqlab/critiq/internal/ai"
	"github.com/critiqlab/critiq/internal/fingerprint"
	"github.com/critiqlab/critiq/internal/model"
	"github.com/critiqlab/critiq/internal/repo"
)

// taskTypeSimilarity is the embedding task used for both stored entries and
// probes, so stored and query vectors live in the same space.
const taskTypeSimilarity = "SEMANTIC_SIMILARITY"

type Source string

const (
	SourceExact      Source = "exact"
	SourceSimilarity Source = "similarity"
	SourceFresh      Source = "fresh"
)

// Lookup is the outcome of LookupOrCompute. Only this package constructs it.
// A nil Result with Source == fresh means the analyzer found no issue.
// Similarity is set only when Source == similarity; callers apply their own
// policy to it rather than assuming a hit implies exactness.
type Lookup struct {
	Result     *model.AnalysisResult
	Source     Source
	Similarity float64
}

// LookupInfo is the introspection snapshot of the most recent lookup.
type LookupInfo struct {
	Source     Source  `json:"source"`
	Similarity float64 `json:"similarity,omitempty"`
}

// ComputeFunc is the injected fallback analyzer. Returning (nil, nil) means
// no feedback is warranted for this content.
type ComputeFunc func(ctx context.Context, content string) (*model.AnalysisResult, error)

// SimilarityStore is the vector tier; satisfied by repo.FeedbackVectorRepo.
type SimilarityStore interface {
	Upsert(ctx context.Context, contentHash string, vector []float32, entry *model.FeedbackEntry) error
	QueryNearest(ctx context.Context, vector []float32, feedbackType string, k int, minSimilarity float64) ([]repo.ScoredEntry, error)
}

type Config struct {
	SimilarityThreshold float64
	FeedbackTTL         time.Duration
	TopK                int
	EmbedTimeout        time.Duration
	AnalyzeTimeout      time.Duration
}

// tier outcomes: unavailable is kept distinct from miss internally so the
// degradation is visible in logs, even though callers see both as a miss.
type tierOutcome int

const (
	tierMiss tierOutcome = iota
	tierHit
	tierUnavailable
)

// Orchestrator sequences the exact tier, the similarity tier and the
// fallback analyzer, and owns the per-key stampede guard. Each instance has
// its own flight group, so independent instances never share coalescing
// state.
type Orchestrator struct {
	exact    ExactStore
	similar  SimilarityStore
	embedder ai.IEmbedder
	cfg      Config
	flight   singleflight.Group
	last     atomic.Value // LookupInfo
}

func NewOrchestrator(exact ExactStore, similar SimilarityStore, embedder ai.IEmbedder, cfg Config) *Orchestrator {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.95
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.FeedbackTTL <= 0 {
		cfg.FeedbackTTL = 48 * time.Hour
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 10 * time.Second
	}
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = 30 * time.Second
	}
	return &Orchestrator{
		exact:    exact,
		similar:  similar,
		embedder: embedder,
		cfg:      cfg,
	}
}

// LookupOrCompute resolves feedback for content through the cache tiers,
// falling back to compute. Exact-tier hits return without touching the
// stampede guard; everything past an exact miss coalesces per
// (fingerprint, feedbackType) so a burst of identical requests runs the
// embedding and the analyzer once.
func (o *Orchestrator) LookupOrCompute(ctx context.Context, content, feedbackType, topicID string, compute ComputeFunc) (*Lookup, error) {
	canonical := fingerprint.Normalize(content)
	fp := fingerprint.Hash(canonical)
	key := entryKey(fp, feedbackType)

	if entry, outcome := o.probeExact(ctx, key); outcome == tierHit {
		return o.finish(&Lookup{Result: &entry.Result, Source: SourceExact}), nil
	}

	v, err, _ := o.flight.Do(key, func() (interface{}, error) {
		return o.missPath(ctx, content, canonical, fp, key, feedbackType, topicID, compute)
	})
	if err != nil {
		return nil, err
	}
	return o.finish(v.(*Lookup)), nil
}

// LastLookup reports which tier satisfied the most recent lookup.
func (o *Orchestrator) LastLookup() (LookupInfo, bool) {
	info, ok := o.last.Load().(LookupInfo)
	return info, ok
}

func (o *Orchestrator) finish(lk *Lookup) *Lookup {
	o.last.Store(LookupInfo{Source: lk.Source, Similarity: lk.Similarity})
	return lk
}

func (o *Orchestrator) missPath(ctx context.Context, content, canonical, fp, key, feedbackType, topicID string, compute ComputeFunc) (*Lookup, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("feedback_type", feedbackType),
		zap.String("topic_id", topicID),
		zap.String("fingerprint", fp[:12]),
	)

	// A coalesced caller can land here right after the leader populated the
	// store, so re-probe before doing anything expensive.
	if entry, outcome := o.probeExact(ctx, key); outcome == tierHit {
		return &Lookup{Result: &entry.Result, Source: SourceExact}, nil
	}

	vector := o.embedContent(ctx, canonical, logger)
	if vector != nil {
		if best, outcome := o.probeSimilarity(ctx, vector, feedbackType, logger); outcome == tierHit {
			// Near-duplicate, not identical: the exact tier would never hit
			// for this text on its own, so store the entry under the current
			// fingerprint and turn a future resubmission into an exact hit.
			if err := o.exact.Set(context.WithoutCancel(ctx), key, best.Entry, o.cfg.FeedbackTTL); err != nil {
				logger.Warn("exact tier population after similarity hit failed", zap.Error(err))
			}
			logger.Debug("similarity hit", zap.Float64("similarity", best.Similarity))
			return &Lookup{Result: &best.Entry.Result, Source: SourceSimilarity, Similarity: best.Similarity}, nil
		}
	}

	actx, cancel := context.WithTimeout(ctx, o.cfg.AnalyzeTimeout)
	defer cancel()
	result, err := compute(actx, content)
	if err != nil {
		// Nothing further to fall back to.
		return nil, fmt.Errorf("analyze content: %w", err)
	}
	if result == nil {
		// No issue found. Never cached: a nil result carries no reusable
		// structure and a known-clean marker is not modeled.
		return &Lookup{Source: SourceFresh}, nil
	}

	entry := &model.FeedbackEntry{
		Result:      *result,
		ContentHash: fp,
		Ctime:       time.Now().Unix(),
	}
	// Population happens under a cancel-free context: the caller already has
	// its result, the writes only benefit future lookups.
	o.populate(context.WithoutCancel(ctx), key, fp, vector, entry, logger)
	return &Lookup{Result: result, Source: SourceFresh}, nil
}

func (o *Orchestrator) probeExact(ctx context.Context, key string) (*model.FeedbackEntry, tierOutcome) {
	entry, ok, err := o.exact.Get(ctx, key)
	if err != nil {
		logutil.GetLogger(ctx).Warn("exact tier unavailable", zap.Error(err))
		return nil, tierUnavailable
	}
	if !ok {
		return nil, tierMiss
	}
	return entry, tierHit
}

// embedContent returns nil when the provider fails or times out; the caller
// treats that as a similarity miss. A zero vector is never substituted, it
// would poison the index with false matches.
func (o *Orchestrator) embedContent(ctx context.Context, canonical string, logger *zap.Logger) []float32 {
	if o.embedder == nil {
		return nil
	}
	ectx, cancel := context.WithTimeout(ctx, o.cfg.EmbedTimeout)
	defer cancel()
	vector, err := o.embedder.Embed(ectx, canonical, taskTypeSimilarity)
	if err != nil {
		logger.Warn("embedding failed, skipping similarity tier", zap.Error(err))
		return nil
	}
	if len(vector) == 0 {
		logger.Warn("embedding provider returned empty vector, skipping similarity tier")
		return nil
	}
	return vector
}

func (o *Orchestrator) probeSimilarity(ctx context.Context, vector []float32, feedbackType string, logger *zap.Logger) (repo.ScoredEntry, tierOutcome) {
	if o.similar == nil {
		return repo.ScoredEntry{}, tierMiss
	}
	candidates, err := o.similar.QueryNearest(ctx, vector, feedbackType, o.cfg.TopK, o.cfg.SimilarityThreshold)
	if err != nil {
		logger.Warn("similarity tier unavailable", zap.Error(err))
		return repo.ScoredEntry{}, tierUnavailable
	}
	if len(candidates) == 0 {
		return repo.ScoredEntry{}, tierMiss
	}
	return candidates[0], tierHit
}

// populate writes a fresh entry to both tiers. The caller already has its
// result, so failures here are logged and absorbed; they only cost future
// lookups.
func (o *Orchestrator) populate(ctx context.Context, key, fp string, vector []float32, entry *model.FeedbackEntry, logger *zap.Logger) {
	if err := o.exact.Set(ctx, key, entry, o.cfg.FeedbackTTL); err != nil {
		logger.Warn("exact tier population failed", zap.Error(err))
	}
	if o.similar == nil || vector == nil {
		return
	}
	if err := o.similar.Upsert(ctx, fp, vector, entry); err != nil {
		logger.Warn("similarity tier population failed", zap.Error(err))
	}
}
