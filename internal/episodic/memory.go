// Package episodic implements the Ebbinghaus episodic memory of spec.md
// §4.3: store/recall/decay/garbage-collect over a pluggable vector-store
// backend. Ported from original_source/frankenstein-ai/memory.py's
// EbbinghausMemory (ChromaDB + JSON-fallback) onto pkg/vectorstore.Backend.
package episodic

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/frankenstein-ai/cognitive-core/pkg/vectorstore"
)

// StrengthScale converts an abstract strength unit to seconds: one unit of
// strength survives about one hour (spec.md §3: "τ = one hour in seconds").
const StrengthScale = 3600.0

// MaxStrength caps runaway strength growth from the two independent
// multiplicative boosts (recall's 1.5x spacing effect and sleep
// consolidation's 1+0.3*importance) — spec.md §9 Open Questions leaves this
// undocumented in the original; this port picks 100 as the reference cap.
const MaxStrength = 100.0

// Record mirrors the Episodic Record of spec.md §3.
type Record struct {
	ID          string
	ConceptName string
	Strength    float64
	LastAccess  time.Time
	AccessCount int
	Metadata    map[string]any
}

// RecallHit is one element of a Recall result (spec.md §4.3 Contract).
type RecallHit struct {
	ID          string
	ConceptName string
	Strength    float64
	Retention   float64
	Distance    float64
}

// Stats summarises memory activity (spec.md §4.3 "Backend errors are ...
// reported as (ok=false, reason) in stats").
type Stats struct {
	ActiveMemories int
	TotalStored    int64
	TotalRecalled  int64
	TotalDecayed   int64
	BackendOK      bool
	BackendReason  string
}

// Memory is the Ebbinghaus episodic store.
type Memory struct {
	backend        vectorstore.Backend
	fallback       vectorstore.Backend
	usingFallback  bool
	decayThreshold float64
	log            *zap.SugaredLogger

	totalStored   int64
	totalRecalled int64
	totalDecayed  int64
	lastBackendOK bool
	lastReason    string
}

// New constructs a Memory over backend, with fallback used automatically on
// the first backend error (spec.md §7 "Backend unavailable: Swap to
// in-memory backend for the remainder of the process; emit one warning").
func New(backend vectorstore.Backend, fallback vectorstore.Backend, decayThreshold float64, log *zap.SugaredLogger) *Memory {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Memory{
		backend:        backend,
		fallback:       fallback,
		decayThreshold: decayThreshold,
		log:            log,
		lastBackendOK:  true,
	}
}

func (m *Memory) active() vectorstore.Backend {
	if m.usingFallback {
		return m.fallback
	}
	return m.backend
}

func (m *Memory) degrade(err error) {
	if m.usingFallback || err == nil {
		return
	}
	m.usingFallback = true
	m.lastBackendOK = false
	m.lastReason = err.Error()
	m.log.Warnw("vector-store backend unavailable, swapping to in-memory fallback for remainder of process", "error", err)
}

// Retention computes R(t) = exp(-Δt / (strength * τ)) (spec.md §3/§4.3).
func Retention(elapsed time.Duration, strength float64) float64 {
	if strength <= 0 {
		return 0
	}
	denom := strength * StrengthScale
	if denom < 0.01 {
		denom = 0.01
	}
	return math.Exp(-elapsed.Seconds() / denom)
}

// strengthFromFactors computes the initial strength of a new record
// (spec.md §4.3 Contract: "strength = base * priority * quality *
// durability"). base is chosen by the caller per outcome class: 10 for a
// freshly correct solution, 3 for partial, 0.5 for failure (spec.md §4.3).
func strengthFromFactors(base, priority, quality, durability float64) float64 {
	s := base * priority * quality * durability
	if s <= 0 {
		s = 0.01 // strength is strictly positive (spec.md §4.3 invariant)
	}
	return math.Min(s, MaxStrength)
}

// Store inserts a new episodic record (spec.md §4.3 Contract). embedding is
// downsampled by the caller's responsibility already satisfied upstream;
// Store downsamples defensively too, since the invariant is on the
// interface boundary, not on any one caller.
func (m *Memory) Store(ctx context.Context, embedding []float32, concept string, base, priority, quality, durability float64, metadata map[string]any) (string, error) {
	embedding = vectorstore.Downsample(embedding)
	id := "mem_" + uuid.NewString()
	now := time.Now()
	strength := strengthFromFactors(base, priority, quality, durability)

	meta := map[string]any{
		"concept":      concept,
		"strength":     strength,
		"last_access":  now.Unix(),
		"access_count": 0,
	}
	for k, v := range metadata {
		meta[k] = v
	}

	if err := m.active().Upsert(ctx, id, embedding, meta); err != nil {
		m.degrade(err)
		if err2 := m.active().Upsert(ctx, id, embedding, meta); err2 != nil {
			// Sentinel empty result rather than raising (spec.md §4.3
			// failure semantics).
			return "", nil
		}
	} else {
		m.lastBackendOK = true
	}

	m.totalStored++
	return id, nil
}

// Recall fetches up to n records by cosine proximity to query, applying the
// spacing-effect boost and last_access bump to every surviving hit (spec.md
// §4.3 Contract). Records whose computed retention is below decayThreshold
// are excluded even if the backend returned them.
func (m *Memory) Recall(ctx context.Context, query []float32, n int) []RecallHit {
	query = vectorstore.Downsample(query)
	matches, err := m.active().Query(ctx, query, n)
	if err != nil {
		m.degrade(err)
		matches, err = m.active().Query(ctx, query, n)
		if err != nil {
			return nil // sentinel empty result, spec.md §4.3 failure semantics
		}
	}

	now := time.Now()
	out := make([]RecallHit, 0, len(matches))
	for _, match := range matches {
		concept, _ := match.Metadata["concept"].(string)
		strength := toFloat(match.Metadata["strength"], 1.0)
		lastAccessUnix := toFloat(match.Metadata["last_access"], float64(now.Unix()))
		elapsed := now.Sub(time.Unix(int64(lastAccessUnix), 0))

		ret := Retention(elapsed, strength)
		if ret < m.decayThreshold {
			continue
		}

		newStrength := math.Min(strength*1.5, MaxStrength) // spacing effect
		accessCount := int(toFloat(match.Metadata["access_count"], 0)) + 1

		_ = m.active().UpdateMetadata(ctx, match.ID, map[string]any{
			"strength":     newStrength,
			"last_access":  now.Unix(),
			"access_count": accessCount,
		})

		out = append(out, RecallHit{
			ID:          match.ID,
			ConceptName: concept,
			Strength:    newStrength,
			Retention:   ret,
			Distance:    match.Distance,
		})
	}

	m.totalRecalled += int64(len(out))
	return out
}

// GarbageCollect deletes every record whose retention has fallen below
// decayThreshold (spec.md §4.3 Contract, §8 property 5: "garbage_collect
// monotonically decreases record count"). It is the only operation that
// deletes records outside explicit admin action.
func (m *Memory) GarbageCollect(ctx context.Context) (int, error) {
	backend := m.active()
	count, err := backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("episodic: count: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	// A generic Backend has no "list all" primitive beyond Query with a
	// large k against the zero vector; this is the approximation the
	// in-memory and Redis backends both support without a dedicated scan
	// API (neither spec.md nor pkg/vectorstore requires one).
	all, err := backend.Query(ctx, make([]float32, 1), count)
	if err != nil {
		return 0, fmt.Errorf("episodic: scan: %w", err)
	}

	var toRemove []string
	now := time.Now()
	var errs *multierror.Error
	for _, rec := range all {
		strength := toFloat(rec.Metadata["strength"], 1.0)
		lastAccessUnix := toFloat(rec.Metadata["last_access"], float64(now.Unix()))
		elapsed := now.Sub(time.Unix(int64(lastAccessUnix), 0))
		if Retention(elapsed, strength) < m.decayThreshold {
			toRemove = append(toRemove, rec.ID)
		}
	}

	if len(toRemove) == 0 {
		return 0, errs.ErrorOrNil()
	}
	if err := backend.Delete(ctx, toRemove); err != nil {
		errs = multierror.Append(errs, err)
		return 0, errs.ErrorOrNil()
	}

	m.totalDecayed += int64(len(toRemove))
	return len(toRemove), errs.ErrorOrNil()
}

// Stats returns current memory statistics, including backend health
// (spec.md §4.3 failure semantics).
func (m *Memory) Stats(ctx context.Context) Stats {
	count, _ := m.active().Count(ctx)
	return Stats{
		ActiveMemories: count,
		TotalStored:    m.totalStored,
		TotalRecalled:  m.totalRecalled,
		TotalDecayed:   m.totalDecayed,
		BackendOK:      m.lastBackendOK,
		BackendReason:  m.lastReason,
	}
}

// BumpStrength applies the sleep-consolidation strength update rules
// (spec.md §4.6 NREM consolidation): it stores newStrength, capped at
// MaxStrength, directly via UpdateMetadata and returns the backend's error.
// It never deletes a record; removal goes through Delete.
func (m *Memory) BumpStrength(ctx context.Context, id string, newStrength float64) error {
	newStrength = math.Min(newStrength, MaxStrength)
	return m.active().UpdateMetadata(ctx, id, map[string]any{"strength": newStrength})
}

// Delete removes the named records outright (sleep-consolidation deletion
// path, spec.md §4.6).
func (m *Memory) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return m.active().Delete(ctx, ids)
}

// All returns every surviving record's id/metadata, used by the sleep
// consolidation loop to iterate the full episodic store (spec.md §4.6).
func (m *Memory) All(ctx context.Context) ([]Record, error) {
	count, err := m.active().Count(ctx)
	if err != nil || count == 0 {
		return nil, err
	}
	matches, err := m.active().Query(ctx, make([]float32, 1), count)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(matches))
	for _, match := range matches {
		concept, _ := match.Metadata["concept"].(string)
		strength := toFloat(match.Metadata["strength"], 1.0)
		lastAccessUnix := toFloat(match.Metadata["last_access"], 0)
		out = append(out, Record{
			ID:          match.ID,
			ConceptName: concept,
			Strength:    strength,
			LastAccess:  time.Unix(int64(lastAccessUnix), 0),
			AccessCount: int(toFloat(match.Metadata["access_count"], 0)),
			Metadata:    match.Metadata,
		})
	}
	return out, nil
}

func toFloat(v any, def float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return def
	}
}
