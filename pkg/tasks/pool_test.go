package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
)

func TestPoolRoundRobinsWithinCategory(t *testing.T) {
	pool := NewPool([]evaluator.Task{
		{ID: "a1", Category: "arithmetic", Difficulty: 1},
		{ID: "a2", Category: "arithmetic", Difficulty: 1},
	})
	ctx := context.Background()

	first, ok := pool.Next(ctx, "arithmetic", 1)
	require.True(t, ok)
	second, ok := pool.Next(ctx, "arithmetic", 1)
	require.True(t, ok)
	third, ok := pool.Next(ctx, "arithmetic", 1)
	require.True(t, ok)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ID, third.ID, "round-robin should wrap back to the first task")
}

func TestPoolFallsBackToWholePoolForUnknownCategory(t *testing.T) {
	pool := NewPool(DefaultSeedTasks())
	task, ok := pool.Next(context.Background(), "nonexistent-category", 1)
	require.True(t, ok)
	assert.NotEmpty(t, task.ID)
}

func TestPoolEmptyReturnsFalse(t *testing.T) {
	pool := NewPool(nil)
	_, ok := pool.Next(context.Background(), "anything", 1)
	assert.False(t, ok)
}

func TestLoadPoolFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	err := os.WriteFile(path, []byte(`[{"ID":"x","Category":"strings","Difficulty":2}]`), 0o644)
	require.NoError(t, err)

	pool, err := LoadPoolFromFile(path)
	require.NoError(t, err)
	task, ok := pool.Next(context.Background(), "strings", 2)
	require.True(t, ok)
	assert.Equal(t, "x", task.ID)
}

func TestDefaultSeedTasksCoverSeedCategories(t *testing.T) {
	seeds := DefaultSeedTasks()
	categories := make(map[string]bool)
	for _, s := range seeds {
		categories[s.Category] = true
		assert.NotEmpty(t, s.TestCases)
	}
	assert.True(t, categories["knapsack"])
	assert.True(t, categories["edit_distance"])
}
