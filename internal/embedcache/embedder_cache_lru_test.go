package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.vec, nil
}

func (c *countingEmbedder) ModelName() string {
	return "test-embed"
}

func TestLruEmbedder_SecondCallServedFromCache(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	embedder := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	first, err := embedder.Embed(context.Background(), "Some Content", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	second, err := embedder.Embed(context.Background(), "some   content", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls, "normalized-equal text must reuse the cached vector")
}

func TestLruEmbedder_TaskTypeSeparatesEntries(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1, 0}}
	embedder := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	_, err := embedder.Embed(context.Background(), "content", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	_, err = embedder.Embed(context.Background(), "content", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestLruEmbedder_ReturnedSliceIsACopy(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.5, 0.5}}
	embedder := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	first, err := embedder.Embed(context.Background(), "content", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	first[0] = 99

	second, err := embedder.Embed(context.Background(), "content", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, float32(0.5), second[0])
}

func TestLruEmbedder_ProviderErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: context.DeadlineExceeded}
	embedder := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	_, err := embedder.Embed(context.Background(), "content", "RETRIEVAL_DOCUMENT")
	require.Error(t, err)

	inner.err = nil
	inner.vec = []float32{1}
	_, err = embedder.Embed(context.Background(), "content", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}
