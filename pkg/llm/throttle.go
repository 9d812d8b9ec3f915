package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Throttling constants from spec.md §5: "minimum inter-call gap adapts to
// observed 429 responses (base 4s, +0.5s per observed rate-limit event,
// capped near 14s)".
const (
	baseGap        = 4 * time.Second
	gapPerEvent    = 500 * time.Millisecond
	maxGap         = 14 * time.Second
	cacheTTL       = 24 * time.Hour
	maxRetries     = 3
)

type cacheEntry struct {
	response string
	storedAt time.Time
}

// RateLimitedClient decorates a Client with the throttle, retry/backoff,
// and prompt-hash response cache required by spec.md §5 and §7. Only one
// external call is in flight at a time (spec.md §5: "A single-threaded
// event loop with one concurrent external call at a time").
type RateLimitedClient struct {
	inner Client
	sem   *semaphore.Weighted

	mu          sync.Mutex
	gap         time.Duration
	lastCallAt  time.Time
	rateLimitHits int

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

// NewRateLimitedClient wraps inner with the core's throttle discipline.
func NewRateLimitedClient(inner Client) *RateLimitedClient {
	return &RateLimitedClient{
		inner: inner,
		sem:   semaphore.NewWeighted(1),
		gap:   baseGap,
		cache: make(map[string]cacheEntry),
	}
}

// Generate applies the response cache, single-flight throttle, and
// exponential-backoff retry policy of spec.md §5/§7 before delegating to
// the wrapped Client.
func (r *RateLimitedClient) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	key := cacheKey(prompt, temperature)

	r.cacheMu.Lock()
	if entry, ok := r.cache[key]; ok && time.Since(entry.storedAt) < cacheTTL {
		r.cacheMu.Unlock()
		return entry.response, nil
	}
	r.cacheMu.Unlock()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer r.sem.Release(1)

	r.waitForGap(ctx)

	var out string
	var err error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= maxRetries; attempt++ {
		out, err = r.inner.Generate(ctx, prompt, temperature)
		r.mu.Lock()
		r.lastCallAt = time.Now()
		r.mu.Unlock()

		if err == nil {
			break
		}
		if err != ErrRateLimited {
			// Non-rate-limit errors are returned without retry; the
			// executor's generation loop counts them as a failed attempt
			// (spec.md §7).
			return "", err
		}

		r.recordRateLimitEvent()
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if err == nil {
		r.cacheMu.Lock()
		r.cache[key] = cacheEntry{response: out, storedAt: time.Now()}
		r.cacheMu.Unlock()
	}
	return out, err
}

func (r *RateLimitedClient) waitForGap(ctx context.Context) {
	r.mu.Lock()
	since := time.Since(r.lastCallAt)
	gap := r.gap
	r.mu.Unlock()

	if since >= gap {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(gap - since):
	}
}

func (r *RateLimitedClient) recordRateLimitEvent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimitHits++
	newGap := baseGap + time.Duration(r.rateLimitHits)*gapPerEvent
	if newGap > maxGap {
		newGap = maxGap
	}
	r.gap = newGap
}

func cacheKey(prompt string, temperature float64) string {
	h := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s:%.3f", hex.EncodeToString(h[:]), temperature)
}
