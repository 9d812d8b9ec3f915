package circadian

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankenstein-ai/cognitive-core/internal/episodic"
	"github.com/frankenstein-ai/cognitive-core/pkg/vectorstore"
)

// TestPhaseBoundariesPartitionUnitIntervalExactly checks spec.md §3's
// invariant that the eight phases partition [0,1) with no gap or overlap.
func TestPhaseBoundariesPartitionUnitIntervalExactly(t *testing.T) {
	cases := []struct {
		progress float64
		want     Phase
	}{
		{0.0, Dawn},
		{0.07, Dawn},
		{0.08, MorningPeak},
		{0.25, Midday},
		{0.45, AfternoonDip},
		{0.58, SecondWind},
		{0.75, Evening},
		{0.88, WindDown},
		{0.96, Sleep},
		{0.999, Sleep},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PhaseFor(c.progress), "progress=%v", c.progress)
	}
}

func TestNewClockStartsAtBatchZeroDayZero(t *testing.T) {
	c := New(Config{BatchesPerDay: 10})
	state := c.GetState()
	assert.Equal(t, 0, state.BatchInDay)
	assert.Equal(t, 0, state.DayNumber)
	assert.Equal(t, Dawn, state.Phase)
}

func TestAdvanceBatchIncrementsBatchInDay(t *testing.T) {
	c := New(Config{BatchesPerDay: 10})
	state := c.AdvanceBatch(1, true, 100)
	assert.Equal(t, 1, state.BatchInDay)
	assert.InDelta(t, 0.1, state.SubjectiveTime, 1e-9)
}

func TestAdvanceBatchRollsOverToNextDay(t *testing.T) {
	c := New(Config{BatchesPerDay: 3})
	var state State
	for i := 0; i < 3; i++ {
		state = c.AdvanceBatch(1, true, 100)
	}
	assert.Equal(t, 0, state.BatchInDay)
	assert.Equal(t, 1, state.DayNumber)
}

func TestFatigueAccumulatesAndResetsOnNewDay(t *testing.T) {
	c := New(Config{BatchesPerDay: 3})
	var last State
	for i := 0; i < 2; i++ {
		last = c.AdvanceBatch(1, true, 100)
	}
	assert.Greater(t, last.Fatigue, fatigueDayReset)

	rolled := c.AdvanceBatch(1, true, 100)
	assert.InDelta(t, fatigueDayReset, rolled.Fatigue, 1e-9)
}

func TestIsSleepTimeTrueOnlyDuringSleepPhase(t *testing.T) {
	c := New(Config{BatchesPerDay: 25})
	assert.False(t, c.IsSleepTime())

	for i := 0; i < 24; i++ {
		c.AdvanceBatch(1, true, 100)
	}
	assert.True(t, c.IsSleepTime())
}

func TestPersistenceRoundTripsStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "circadian.json")

	c := New(Config{BatchesPerDay: 5, Path: path})
	c.AdvanceBatch(1, true, 100)
	c.AdvanceBatch(1, false, 100)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var persisted persistedState
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, 2, persisted.BatchInDay)
	assert.Equal(t, 2, persisted.TotalBatches)
	assert.NotEmpty(t, persisted.PhaseStats)

	reloaded := New(Config{BatchesPerDay: 5, Path: path})
	state := reloaded.GetState()
	assert.Equal(t, 2, state.BatchInDay)
}

func TestMissingStateFileIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.json")

	assert.NotPanics(t, func() {
		c := New(Config{BatchesPerDay: 5, Path: path})
		assert.Equal(t, 0, c.GetState().BatchInDay)
	})
}

func TestRunSleepCycleConsolidatesHighImportanceRecords(t *testing.T) {
	ctx := context.Background()
	mem := episodic.New(vectorstore.NewInMemory(), vectorstore.NewInMemory(), 0.01, nil)
	id, err := mem.Store(ctx, []float32{1, 0, 0}, "solved_thing", 10.0, 1.0, 1.0, 1.0, map[string]any{
		"score": 0.95,
	})
	require.NoError(t, err)

	c := New(Config{BatchesPerDay: 10, Seed: 1})
	_, err = c.RunSleepCycle(ctx, mem, nil)
	require.NoError(t, err)

	records, err := mem.All(ctx)
	require.NoError(t, err)
	var found bool
	for _, r := range records {
		if r.ID == id {
			found = true
			assert.Greater(t, r.Strength, 1.0)
		}
	}
	assert.True(t, found)
}

func TestRunSleepCycleProducesInsightsFromCoherentConcepts(t *testing.T) {
	ctx := context.Background()
	mem := episodic.New(vectorstore.NewInMemory(), vectorstore.NewInMemory(), 0.01, nil)

	concepts := []ConceptCode{
		{Name: "concept_a", HasCode: true, Prototype: []float64{1, 0, 0, 0}},
		{Name: "concept_b", HasCode: true, Prototype: []float64{0, 1, 0, 0}},
	}

	c := New(Config{BatchesPerDay: 10, Seed: 42})
	insights, err := c.RunSleepCycle(ctx, mem, concepts)
	require.NoError(t, err)
	// Both concepts have code (coherence=1.0) and are orthogonal
	// (novelty=1.0), so insight = 1*0.6+1*0.4 = 1.0 > insightThreshold
	// every cycle that pairs them.
	assert.NotEmpty(t, insights)
}

func TestRunSleepCycleWithFewerThanTwoConceptsYieldsNoInsights(t *testing.T) {
	ctx := context.Background()
	mem := episodic.New(vectorstore.NewInMemory(), vectorstore.NewInMemory(), 0.01, nil)

	c := New(Config{BatchesPerDay: 10, Seed: 1})
	insights, err := c.RunSleepCycle(ctx, mem, []ConceptCode{{Name: "only_one"}})
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestPhaseModifiersVaryByPhase(t *testing.T) {
	c := New(Config{BatchesPerDay: 10})
	dawnMods := c.PhaseModifiers()
	assert.Equal(t, phaseModifiers[Dawn], dawnMods)

	for i := 0; i < 3; i++ {
		c.AdvanceBatch(1, true, 100)
	}
	assert.Equal(t, phaseModifiers[c.GetState().Phase], c.PhaseModifiers())
}
