package hdc

import (
	"math"
	"sync"
	"time"
)

// Concept is a named prototype with a running sample count (spec.md §3).
type Concept struct {
	Name        string
	Prototype   *Hypervector
	SampleCount int
	LastUpdated time.Time

	// recentMembers is a bounded circular buffer of recent member vectors,
	// used by maybe_split to estimate within-concept variance (spec.md
	// §4.1 "Split"). Capacity mirrors the spacing-effect recall window —
	// large enough to see drift, small enough to stay O(1) amortised.
	recentMembers []*Hypervector
}

const recentMembersCap = 32

func (c *Concept) addRecentMember(hv *Hypervector) {
	c.recentMembers = append(c.recentMembers, hv)
	if len(c.recentMembers) > recentMembersCap {
		c.recentMembers = c.recentMembers[len(c.recentMembers)-recentMembersCap:]
	}
}

// ClassifyResult is the outcome of classifying a hypervector against the
// concept memory (spec.md §4.1 Contract).
type ClassifyResult struct {
	Index      int
	Similarity float64
	Name       string
}

// ConceptMemory is the ordered name→Concept mapping of spec.md §3, keeping
// insertion order so classification ties break deterministically.
type ConceptMemory struct {
	mu       sync.RWMutex
	order    []string
	byName   map[string]*Concept
	newSince int // solves since last maybe_split sweep
}

// NewConceptMemory returns an empty concept memory.
func NewConceptMemory() *ConceptMemory {
	return &ConceptMemory{byName: make(map[string]*Concept)}
}

// NumConcepts returns |concepts| (spec.md §3 invariant: num_concepts ==
// |concepts|).
func (cm *ConceptMemory) NumConcepts() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.order)
}

// NewConceptThreshold is the dynamic "is this a new concept" cosine
// threshold (spec.md §4.1: max(0.55, 0.9 - 0.01*log(num_concepts+1))).
func (cm *ConceptMemory) NewConceptThreshold() float64 {
	n := cm.NumConcepts()
	return math.Max(0.55, 0.9-0.01*math.Log(float64(n+1)))
}

// Classify returns the best-matching concept by cosine similarity, ties
// broken by insertion order, or the empty-memory sentinel (-1, 0, "") per
// spec.md §4.1 failure semantics.
func (cm *ConceptMemory) Classify(hv *Hypervector) ClassifyResult {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.order) == 0 {
		return ClassifyResult{Index: -1, Similarity: 0, Name: ""}
	}

	bestIdx := -1
	bestSim := math.Inf(-1)
	bestName := ""
	for i, name := range cm.order {
		c := cm.byName[name]
		sim := Cosine(hv, c.Prototype)
		if sim > bestSim {
			bestSim = sim
			bestIdx = i
			bestName = name
		}
	}
	return ClassifyResult{Index: bestIdx, Similarity: bestSim, Name: bestName}
}

// Learn inserts a new concept or averages hv into the existing prototype as
// a running mean over sample_count (spec.md §4.1 "Learn").
func (cm *ConceptMemory) Learn(name string, hv *Hypervector) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, exists := cm.byName[name]
	if !exists {
		c = &Concept{
			Name:        name,
			Prototype:   hv.Clone(),
			SampleCount: 1,
			LastUpdated: time.Now(),
		}
		c.addRecentMember(hv)
		cm.byName[name] = c
		cm.order = append(cm.order, name)
		return
	}

	n := float64(c.SampleCount)
	dim := c.Prototype.Dim()
	merged := make([]float64, dim)
	for i := 0; i < dim; i++ {
		merged[i] = (c.Prototype.Dense()[i]*n + hv.Dense()[i]) / (n + 1)
	}
	c.Prototype = normalise(merged)
	c.SampleCount++
	c.LastUpdated = time.Now()
	c.addRecentMember(hv)
}

// Get returns the named concept, if present.
func (cm *ConceptMemory) Get(name string) (*Concept, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.byName[name]
	return c, ok
}

// Names returns all concept names in insertion order.
func (cm *ConceptMemory) Names() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]string, len(cm.order))
	copy(out, cm.order)
	return out
}
