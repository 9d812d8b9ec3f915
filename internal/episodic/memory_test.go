package episodic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankenstein-ai/cognitive-core/pkg/vectorstore"
)

func newTestMemory(decayThreshold float64) *Memory {
	return New(vectorstore.NewInMemory(), vectorstore.NewInMemory(), decayThreshold, nil)
}

// TestStoreThenRecallWithinOneSecond checks spec.md §8 invariant 4: store
// then recall on the same embedding within 1s returns that record with
// retention > 0.99.
func TestStoreThenRecallWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	mem := newTestMemory(0.02)
	embedding := []float32{1, 0, 0, 0}

	id, err := mem.Store(ctx, embedding, "sum_two_ints", 10.0, 1.0, 1.0, 1.0, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	hits := mem.Recall(ctx, embedding, 1)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)
	assert.Greater(t, hits[0].Retention, 0.99)
}

// TestRecallExcludesBelowDecayThreshold checks spec.md §8 invariant 3:
// recall never returns a record whose retention at return time was below
// decay_threshold. The record's last_access is backdated directly in the
// backend so the test doesn't depend on real wall-clock sleeps.
func TestRecallExcludesBelowDecayThreshold(t *testing.T) {
	ctx := context.Background()
	backend := vectorstore.NewInMemory()
	embedding := []float32{1, 0, 0, 0}

	longAgo := time.Now().Add(-48 * time.Hour).Unix()
	require.NoError(t, backend.Upsert(ctx, "mem_stale", embedding, map[string]any{
		"concept": "weak", "strength": 0.1, "last_access": longAgo, "access_count": 0,
	}))

	mem := New(backend, vectorstore.NewInMemory(), 0.5, nil)
	hits := mem.Recall(ctx, embedding, 5)

	assert.Empty(t, hits, "a 48h-stale, low-strength record should have decayed below the threshold")
}

// TestGarbageCollectMonotonicallyDecreasesCount checks spec.md §8 property
// 5.
func TestGarbageCollectMonotonicallyDecreasesCount(t *testing.T) {
	ctx := context.Background()
	mem := newTestMemory(0.5)

	strongID, err := mem.Store(ctx, []float32{1, 0}, "strong", 10.0, 1.0, 1.0, 1.0, nil)
	require.NoError(t, err)
	_, err = mem.Store(ctx, []float32{0, 1}, "weak", 0.001, 1.0, 0.01, 1.0, nil)
	require.NoError(t, err)

	before := mem.Stats(ctx).ActiveMemories
	removed, err := mem.GarbageCollect(ctx)
	require.NoError(t, err)
	after := mem.Stats(ctx).ActiveMemories

	assert.Greater(t, removed, 0)
	assert.Less(t, after, before)
	assert.Equal(t, int64(removed), mem.Stats(ctx).TotalDecayed)

	hits := mem.Recall(ctx, []float32{1, 0}, 5)
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	assert.Contains(t, ids, strongID)
}

func TestRetentionDecaysOverElapsedTime(t *testing.T) {
	near := Retention(0, 10.0)
	far := Retention(100*time.Hour, 10.0)
	assert.Greater(t, near, far)
	assert.InDelta(t, 1.0, near, 1e-6)
}

func TestBackendFailureSwapsToFallback(t *testing.T) {
	ctx := context.Background()
	mem := New(failingBackend{}, vectorstore.NewInMemory(), 0.02, nil)

	id, err := mem.Store(ctx, []float32{1, 0}, "c", 10, 1, 1, 1, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, mem.usingFallback)
}

type failingBackend struct{}

func (failingBackend) Upsert(context.Context, string, []float32, map[string]any) error {
	return assert.AnError
}
func (failingBackend) Query(context.Context, []float32, int) ([]vectorstore.Match, error) {
	return nil, assert.AnError
}
func (failingBackend) UpdateMetadata(context.Context, string, map[string]any) error { return nil }
func (failingBackend) Delete(context.Context, []string) error                       { return nil }
func (failingBackend) Count(context.Context) (int, error)                           { return 0, assert.AnError }
