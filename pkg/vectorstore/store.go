// Package vectorstore defines the narrow KV/vector-search interface the
// Ebbinghaus memory is built on (spec.md §6 "Vector-store backend"), plus
// two implementations: an in-memory linear-scan backend and a Redis-backed
// backend. The core treats the persistent vector store as opaque — this
// package is the only place that knows which concrete backend is in use.
package vectorstore

import "context"

// Match is one result of a Query call: an id, its metadata, and a distance
// (lower = more similar; 1-cosine for the in-memory backend).
type Match struct {
	ID       string
	Metadata map[string]any
	Distance float64
}

// Backend is the contract every vector-store implementation must satisfy
// (spec.md §6). Embeddings have fixed dimension <=1024; callers are
// responsible for downsampling larger vectors before calling Upsert/Query.
type Backend interface {
	Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// MaxEmbeddingDim is the fixed upper bound on embedding dimension accepted
// by any Backend (spec.md §6). Downsample(v) below enforces it.
const MaxEmbeddingDim = 1024

// Downsample uniformly subsamples v down to MaxEmbeddingDim components if
// it's longer, mirroring original_source/frankenstein-ai/memory.py's
// np.linspace-based subsampling ("Begränsa dimensionalitet för ChromaDB").
// The core is responsible for calling this before Upsert/Query, per
// spec.md §6.
func Downsample(v []float32) []float32 {
	if len(v) <= MaxEmbeddingDim {
		return v
	}
	out := make([]float32, MaxEmbeddingDim)
	n := len(v)
	for i := 0; i < MaxEmbeddingDim; i++ {
		idx := i * (n - 1) / (MaxEmbeddingDim - 1)
		out[i] = v[idx]
	}
	return out
}
