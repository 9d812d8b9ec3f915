package hdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassifyEmptyMemoryReturnsSentinel checks spec.md §4.1 failure
// semantics: empty memory yields (-1, 0, "").
func TestClassifyEmptyMemoryReturnsSentinel(t *testing.T) {
	cm := NewConceptMemory()
	hv := NewHypervector(8)
	result := cm.Classify(hv)

	assert.Equal(t, -1, result.Index)
	assert.Equal(t, 0.0, result.Similarity)
	assert.Empty(t, result.Name)
}

// TestLearnThenClassifyMatchesExactly checks spec.md §8 invariant 2: after
// learn(name, hv) with unseen name, classify(hv).name == name with
// similarity > 0.99.
func TestLearnThenClassifyMatchesExactly(t *testing.T) {
	cm := NewConceptMemory()
	enc := NewEncoder(64, 1)
	hv := enc.Encode("reverse a linked list")

	cm.Learn("reverse_list", hv)
	result := cm.Classify(hv)

	assert.Equal(t, "reverse_list", result.Name)
	assert.Greater(t, result.Similarity, 0.99)
}

func TestLearnAveragesRunningMean(t *testing.T) {
	cm := NewConceptMemory()
	enc := NewEncoder(64, 2)
	a := enc.Encode("sort an array ascending")
	b := enc.Encode("sort an array descending")

	cm.Learn("sorting", a)
	cm.Learn("sorting", b)

	concept, ok := cm.Get("sorting")
	require.True(t, ok)
	assert.Equal(t, 2, concept.SampleCount)
}

func TestNumConceptsMatchesMapSize(t *testing.T) {
	cm := NewConceptMemory()
	enc := NewEncoder(32, 3)
	cm.Learn("a", enc.Encode("alpha"))
	cm.Learn("b", enc.Encode("beta"))

	assert.Equal(t, 2, cm.NumConcepts())
	assert.ElementsMatch(t, []string{"a", "b"}, cm.Names())
}

func TestNewConceptThresholdDecaysWithConceptCount(t *testing.T) {
	cm := NewConceptMemory()
	assert.InDelta(t, 0.9, cm.NewConceptThreshold(), 1e-9)

	enc := NewEncoder(32, 4)
	for i := 0; i < 50; i++ {
		cm.Learn(string(rune('a'+i)), enc.Encode(string(rune('a'+i))))
	}
	assert.GreaterOrEqual(t, cm.NewConceptThreshold(), 0.55)
	assert.Less(t, cm.NewConceptThreshold(), 0.9)
}
