package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/critiqlab/critiq/internal/fingerprint"
	"github.com/critiqlab/critiq/internal/model"
	"github.com/critiqlab/critiq/internal/repo"
)

type fakeExactStore struct {
	mu      sync.Mutex
	entries map[string]*model.FeedbackEntry
	getErr  error
	setErr  error
}

func newFakeExactStore() *fakeExactStore {
	return &fakeExactStore{entries: map[string]*model.FeedbackEntry{}}
}

func (s *fakeExactStore) Get(ctx context.Context, key string) (*model.FeedbackEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *fakeExactStore) Set(ctx context.Context, key string, entry *model.FeedbackEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = entry
	return nil
}

type storedVector struct {
	hash  string
	score float64
	entry *model.FeedbackEntry
}

// fakeSimilarityStore enforces the minSimilarity floor and the feedback-type
// filter itself, like the real pgvector query does.
type fakeSimilarityStore struct {
	mu        sync.Mutex
	stored    []storedVector
	upserts   int
	queries   int
	lastType  string
	queryErr  error
	upsertErr error
}

func (s *fakeSimilarityStore) Upsert(ctx context.Context, contentHash string, vector []float32, entry *model.FeedbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.stored = append(s.stored, storedVector{hash: contentHash, entry: entry})
	return nil
}

func (s *fakeSimilarityStore) QueryNearest(ctx context.Context, vector []float32, feedbackType string, k int, minSimilarity float64) ([]repo.ScoredEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.lastType = feedbackType
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []repo.ScoredEntry
	for _, item := range s.stored {
		if item.entry.Result.FeedbackType != feedbackType || item.score < minSimilarity {
			continue
		}
		out = append(out, repo.ScoredEntry{Entry: item.entry, Similarity: item.score})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

type fakeEmbedder struct {
	calls int32
	vec   []float32
	err   error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *fakeEmbedder) ModelName() string { return "fake-embed" }

func countingCompute(result *model.AnalysisResult, err error) (*int32, ComputeFunc) {
	var calls int32
	return &calls, func(ctx context.Context, content string) (*model.AnalysisResult, error) {
		atomic.AddInt32(&calls, 1)
		return result, err
	}
}

func testOrchestrator(exact ExactStore, similar SimilarityStore) *Orchestrator {
	return NewOrchestrator(exact, similar, &fakeEmbedder{vec: []float32{0.1, 0.9}}, Config{
		SimilarityThreshold: 0.95,
		FeedbackTTL:         time.Hour,
		TopK:                3,
	})
}

func unsourcedResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		FeedbackType: model.FeedbackTypeUnsourced,
		Subtype:      "missing_citation",
		Suggestion:   "cite the studies you are referring to",
		Reasoning:    "claim references studies without naming any",
		Confidence:   0.82,
	}
}

func TestLookupOrCompute_ExactHitIdempotence(t *testing.T) {
	exact := newFakeExactStore()
	orch := testOrchestrator(exact, &fakeSimilarityStore{})
	calls, compute := countingCompute(unsourcedResult(), nil)

	first, err := orch.LookupOrCompute(context.Background(), "Studies show that X is true.", model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err)
	require.Equal(t, SourceFresh, first.Source)
	require.Greater(t, first.Result.Confidence, 0.7)
	require.EqualValues(t, 1, atomic.LoadInt32(calls))

	second, err := orch.LookupOrCompute(context.Background(), "studies  SHOW that x is true.", model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err)
	require.Equal(t, SourceExact, second.Source)
	require.Equal(t, first.Result.Suggestion, second.Result.Suggestion)
	require.EqualValues(t, 1, atomic.LoadInt32(calls), "exact hit must not invoke compute")
}

func TestLookupOrCompute_SimilarityThresholdBoundary(t *testing.T) {
	cached := &model.FeedbackEntry{Result: *unsourcedResult(), ContentHash: "other", Ctime: 1}

	for _, tc := range []struct {
		name    string
		score   float64
		wantHit bool
	}{
		{name: "at threshold", score: 0.95, wantHit: true},
		{name: "just below threshold", score: 0.9499, wantHit: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			similar := &fakeSimilarityStore{stored: []storedVector{{hash: "other", score: tc.score, entry: cached}}}
			orch := testOrchestrator(newFakeExactStore(), similar)
			calls, compute := countingCompute(unsourcedResult(), nil)

			lk, err := orch.LookupOrCompute(context.Background(), "Research shows that X is true.", model.FeedbackTypeUnsourced, "", compute)
			require.NoError(t, err)
			if tc.wantHit {
				require.Equal(t, SourceSimilarity, lk.Source)
				require.Equal(t, tc.score, lk.Similarity)
				require.EqualValues(t, 0, atomic.LoadInt32(calls))
			} else {
				require.Equal(t, SourceFresh, lk.Source)
				require.EqualValues(t, 1, atomic.LoadInt32(calls))
			}
		})
	}
}

func TestLookupOrCompute_SimilarityHitKeepsOriginalConfidence(t *testing.T) {
	cached := &model.FeedbackEntry{Result: *unsourcedResult(), ContentHash: "other", Ctime: 1}
	similar := &fakeSimilarityStore{stored: []storedVector{{hash: "other", score: 0.97, entry: cached}}}
	orch := testOrchestrator(newFakeExactStore(), similar)

	lk, err := orch.LookupOrCompute(context.Background(), "Research shows that X is true.", model.FeedbackTypeUnsourced, "", nil)
	require.NoError(t, err)
	require.Equal(t, SourceSimilarity, lk.Source)
	require.Equal(t, 0.97, lk.Similarity)
	require.Equal(t, 0.82, lk.Result.Confidence, "confidence comes from the original analysis, not the retrieval score")
}

func TestLookupOrCompute_SimilarityHitPopulatesExactTier(t *testing.T) {
	cached := &model.FeedbackEntry{Result: *unsourcedResult(), ContentHash: "other", Ctime: 1}
	similar := &fakeSimilarityStore{stored: []storedVector{{hash: "other", score: 0.97, entry: cached}}}
	exact := newFakeExactStore()
	orch := testOrchestrator(exact, similar)
	calls, compute := countingCompute(unsourcedResult(), nil)

	content := "Research shows that X is true."
	first, err := orch.LookupOrCompute(context.Background(), content, model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err)
	require.Equal(t, SourceSimilarity, first.Source)

	key := entryKey(fingerprint.Of(content), model.FeedbackTypeUnsourced)
	_, ok := exact.entries[key]
	require.True(t, ok, "similarity hit must be stored under the current fingerprint")

	second, err := orch.LookupOrCompute(context.Background(), content, model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err)
	require.Equal(t, SourceExact, second.Source)
	require.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestLookupOrCompute_TypeIsolation(t *testing.T) {
	exact := newFakeExactStore()
	similar := &fakeSimilarityStore{}
	orch := testOrchestrator(exact, similar)

	toneResult := &model.AnalysisResult{FeedbackType: model.FeedbackTypeTone, Suggestion: "soften the wording", Confidence: 0.9}
	_, toneCompute := countingCompute(toneResult, nil)
	_, err := orch.LookupOrCompute(context.Background(), "Everyone knows this.", model.FeedbackTypeTone, "", toneCompute)
	require.NoError(t, err)

	fallacyCalls, fallacyCompute := countingCompute(&model.AnalysisResult{FeedbackType: model.FeedbackTypeFallacy, Confidence: 0.8}, nil)
	lk, err := orch.LookupOrCompute(context.Background(), "Everyone knows this.", model.FeedbackTypeFallacy, "", fallacyCompute)
	require.NoError(t, err)
	require.Equal(t, SourceFresh, lk.Source)
	require.Equal(t, model.FeedbackTypeFallacy, lk.Result.FeedbackType)
	require.EqualValues(t, 1, atomic.LoadInt32(fallacyCalls), "a TONE entry must never satisfy a FALLACY lookup")
	require.Equal(t, model.FeedbackTypeFallacy, similar.lastType)
}

func TestLookupOrCompute_StampedeCoalescing(t *testing.T) {
	exact := newFakeExactStore()
	orch := testOrchestrator(exact, &fakeSimilarityStore{})

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context, content string) (*model.AnalysisResult, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return unsourcedResult(), nil
	}

	const n = 16
	results := make([]*Lookup, n)
	lookupErrs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], lookupErrs[i] = orch.LookupOrCompute(context.Background(), "never seen before content", model.FeedbackTypeUnsourced, "", compute)
		}(i)
	}

	// Give every goroutine a chance to reach the guard before the single
	// in-flight computation finishes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "concurrent misses must coalesce onto one computation")
	for i, lk := range results {
		require.NoError(t, lookupErrs[i])
		require.NotNil(t, lk.Result)
		require.Equal(t, results[0].Result, lk.Result)
	}
}

func TestLookupOrCompute_DegradesWhenStoresUnavailable(t *testing.T) {
	exact := newFakeExactStore()
	exact.getErr = errors.New("redis: connection refused")
	exact.setErr = errors.New("redis: connection refused")
	similar := &fakeSimilarityStore{queryErr: errors.New("pq: connection refused"), upsertErr: errors.New("pq: connection refused")}
	orch := testOrchestrator(exact, similar)
	calls, compute := countingCompute(unsourcedResult(), nil)

	lk, err := orch.LookupOrCompute(context.Background(), "Studies show that X is true.", model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err, "store connectivity problems must never reach the caller")
	require.Equal(t, SourceFresh, lk.Source)
	require.NotNil(t, lk.Result)
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestLookupOrCompute_EmbedFailureSkipsSimilarityTier(t *testing.T) {
	similar := &fakeSimilarityStore{}
	orch := NewOrchestrator(newFakeExactStore(), similar, &fakeEmbedder{err: errors.New("provider down")}, Config{
		SimilarityThreshold: 0.95,
		FeedbackTTL:         time.Hour,
	})
	calls, compute := countingCompute(unsourcedResult(), nil)

	lk, err := orch.LookupOrCompute(context.Background(), "Studies show that X is true.", model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err)
	require.Equal(t, SourceFresh, lk.Source)
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
	require.Equal(t, 0, similar.queries, "no vector means no similarity probe")
	require.Equal(t, 0, similar.upserts, "a failed embedding must not be upserted")
}

func TestLookupOrCompute_NilResultNotCached(t *testing.T) {
	exact := newFakeExactStore()
	orch := testOrchestrator(exact, &fakeSimilarityStore{})
	calls, compute := countingCompute(nil, nil)

	first, err := orch.LookupOrCompute(context.Background(), "perfectly fine content", model.FeedbackTypeClarity, "", compute)
	require.NoError(t, err)
	require.Nil(t, first.Result)
	require.Equal(t, SourceFresh, first.Source)

	second, err := orch.LookupOrCompute(context.Background(), "perfectly fine content", model.FeedbackTypeClarity, "", compute)
	require.NoError(t, err)
	require.Nil(t, second.Result)
	require.EqualValues(t, 2, atomic.LoadInt32(calls), "no-issue results are recomputed every time")
	require.Empty(t, exact.entries)
}

func TestLookupOrCompute_AnalyzerFailurePropagates(t *testing.T) {
	orch := testOrchestrator(newFakeExactStore(), &fakeSimilarityStore{})
	_, compute := countingCompute(nil, errors.New("model backend exploded"))

	_, err := orch.LookupOrCompute(context.Background(), "some content", model.FeedbackTypeBias, "", compute)
	require.Error(t, err)
	require.Contains(t, err.Error(), "analyze content")
}

func TestLastLookup_ReportsMostRecentTier(t *testing.T) {
	orch := testOrchestrator(newFakeExactStore(), &fakeSimilarityStore{})
	_, ok := orch.LastLookup()
	require.False(t, ok)

	_, compute := countingCompute(unsourcedResult(), nil)
	_, err := orch.LookupOrCompute(context.Background(), "Studies show that X is true.", model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err)

	info, ok := orch.LastLookup()
	require.True(t, ok)
	require.Equal(t, SourceFresh, info.Source)

	_, err = orch.LookupOrCompute(context.Background(), "Studies show that X is true.", model.FeedbackTypeUnsourced, "", compute)
	require.NoError(t, err)
	info, _ = orch.LastLookup()
	require.Equal(t, SourceExact, info.Source)
}
