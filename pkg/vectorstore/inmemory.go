package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

type record struct {
	id        string
	embedding []float32
	metadata  map[string]any
}

// InMemory is a flat-slice, linear-cosine-scan Backend. Design Notes §9
// ("Backend plurality") calls this acceptable because retention-based
// garbage collection keeps the active working set small; it is also the
// fallback the core swaps to when a remote backend becomes unavailable
// (spec.md §7 "Backend unavailable").
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string
}

// NewInMemory returns an empty in-memory backend.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*record)}
}

func (m *InMemory) Upsert(_ context.Context, id string, embedding []float32, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[id]; !exists {
		m.order = append(m.order, id)
	}
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	mcp := make(map[string]any, len(metadata))
	for k, v := range metadata {
		mcp[k] = v
	}
	m.records[id] = &record{id: id, embedding: cp, metadata: mcp}
	return nil
}

func (m *InMemory) Query(_ context.Context, embedding []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		Match
		sim float64
	}
	all := make([]scored, 0, len(m.order))
	for _, id := range m.order {
		r := m.records[id]
		sim := cosine32(embedding, r.embedding)
		all = append(all, scored{
			Match: Match{ID: id, Metadata: copyMeta(r.metadata), Distance: 1 - sim},
			sim:   sim,
		})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].sim > all[j].sim })
	if k > len(all) {
		k = len(all)
	}
	out := make([]Match, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].Match
	}
	return out, nil
}

func (m *InMemory) UpdateMetadata(_ context.Context, id string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil
	}
	for k, v := range metadata {
		r.metadata[k] = v
	}
	return nil
}

func (m *InMemory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
		delete(m.records, id)
	}
	newOrder := m.order[:0:0]
	for _, id := range m.order {
		if _, gone := remove[id]; !gone {
			newOrder = append(newOrder, id)
		}
	}
	m.order = newOrder
	return nil
}

func (m *InMemory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cosine32(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom < 1e-12 {
		return 0
	}
	return dot / denom
}
