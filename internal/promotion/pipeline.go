// Package promotion implements the S2→S1→S0 promotion pipeline of
// spec.md §4.5: fingerprinted records of winning solutions, promoted
// once they accumulate enough distinct wins, demoted on repeated
// failure. Fingerprints are hashed with cespare/xxhash (declared in the
// teacher's go.mod) and bounded per-fingerprint history uses
// hashicorp/golang-lru, the pack's reference bounded-cache library.
package promotion

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
)

// Tier is the executor stage a fingerprint's template currently serves.
type Tier int

const (
	TierS2 Tier = iota // not yet promoted: generative only
	TierS1             // promoted: served from cached memory solution
	TierS0             // promoted: served as a deterministic template
)

// Reference thresholds from spec.md §4.5.
const (
	PromoteToS1Wins      = 3 // distinct wins across >=2 strategies
	PromoteToS1Strategies = 2
	PromoteToS0Wins      = 5 // additional wins, at least one first-try
	DemoteFailureStreak  = 3
)

// maxSnippetsPerFingerprint bounds the per-fingerprint LRU of winning
// solutions (spec.md §4.5 "bounded LRU of winning snippets").
const maxSnippetsPerFingerprint = 16

// maxFingerprints bounds the outer pipeline-wide cache so long runs
// cannot grow memory unboundedly.
const maxFingerprints = 4096

// Snippet is one recorded winning solution.
type Snippet struct {
	Code        string
	Strategy    string
	FirstTry    bool
	RefCount    int
}

// entry is the per-fingerprint promotion record (spec.md §3 "Promotion
// Record").
type entry struct {
	mu             sync.Mutex
	category       string
	fingerprint    string
	tier           Tier
	strategiesSeen map[string]bool
	winsSinceS1    int
	snippets       *lru.Cache // key: code string, value: *Snippet
	consecutiveFails int
	anyFirstTry    bool
}

// Pipeline is the process-wide promotion tracker.
type Pipeline struct {
	mu      sync.Mutex
	entries *lru.Cache // key: "category\x00fingerprint", value: *entry
}

// New returns an empty Pipeline.
func New() *Pipeline {
	cache, _ := lru.New(maxFingerprints)
	return &Pipeline{entries: cache}
}

// Fingerprint normalises a description (lowercase, whitespace collapsed)
// and hashes it (spec.md §4.5 "Fingerprint").
func Fingerprint(description string) string {
	fields := strings.Fields(strings.ToLower(description))
	normalised := strings.Join(fields, " ")
	h := xxhash.Sum64String(normalised)
	return fmtHex(h)
}

func fmtHex(h uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[h&0xF]
		h >>= 4
	}
	return string(buf)
}

func entryKey(category, fingerprint string) string {
	return category + "\x00" + fingerprint
}

func (p *Pipeline) getOrCreate(category, fingerprint string) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := entryKey(category, fingerprint)
	if v, ok := p.entries.Get(key); ok {
		return v.(*entry)
	}
	cache, _ := lru.New(maxSnippetsPerFingerprint)
	e := &entry{
		category:       category,
		fingerprint:    fingerprint,
		tier:           TierS2,
		strategiesSeen: make(map[string]bool),
		snippets:       cache,
	}
	p.entries.Add(key, e)
	return e
}

// RecordSuccess records a win for (category, description) under the
// given strategy and tier-eligible code, applying promotion rules
// (spec.md §4.5 "Promotion rule").
func (p *Pipeline) RecordSuccess(category, description, code, strategy string, firstTry bool) {
	fp := Fingerprint(description)
	e := p.getOrCreate(category, fp)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFails = 0
	e.strategiesSeen[strategy] = true
	if firstTry {
		e.anyFirstTry = true
	}

	if v, ok := e.snippets.Get(code); ok {
		snip := v.(*Snippet)
		snip.RefCount++
	} else {
		e.snippets.Add(code, &Snippet{Code: code, Strategy: strategy, FirstTry: firstTry, RefCount: 1})
	}

	switch e.tier {
	case TierS2:
		if e.snippets.Len() >= PromoteToS1Wins && len(e.strategiesSeen) >= PromoteToS1Strategies {
			e.tier = TierS1
			e.winsSinceS1 = 0
		}
	case TierS1:
		e.winsSinceS1++
		if e.winsSinceS1 >= PromoteToS0Wins && e.anyFirstTry {
			e.tier = TierS0
		}
	}
}

// RecordFailure records a failed attempt; after DemoteFailureStreak
// consecutive failures on a promoted template, drop one tier (spec.md
// §4.5 "Demotion").
func (p *Pipeline) RecordFailure(category, description string) {
	fp := Fingerprint(description)
	e := p.getOrCreate(category, fp)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFails++
	if e.consecutiveFails >= DemoteFailureStreak && e.tier > TierS2 {
		e.tier--
		e.consecutiveFails = 0
	}
}

// GetS0Template returns the best-referenced snippet for a TierS0
// fingerprint, or ("", false) if none qualifies.
func (p *Pipeline) GetS0Template(category, description string) (string, bool) {
	return p.bestSnippetAtTier(category, description, TierS0)
}

// GetS1Solution returns the best-referenced snippet for a TierS1 (or
// higher) fingerprint, or ("", false) if none qualifies.
func (p *Pipeline) GetS1Solution(category, description string) (string, bool) {
	return p.bestSnippetAtTier(category, description, TierS1)
}

func (p *Pipeline) bestSnippetAtTier(category, description string, minTier Tier) (string, bool) {
	fp := Fingerprint(description)
	p.mu.Lock()
	key := entryKey(category, fp)
	v, ok := p.entries.Get(key)
	p.mu.Unlock()
	if !ok {
		return "", false
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tier < minTier {
		return "", false
	}

	var best *Snippet
	for _, k := range e.snippets.Keys() {
		v, ok := e.snippets.Peek(k)
		if !ok {
			continue
		}
		snip := v.(*Snippet)
		if best == nil || snip.RefCount > best.RefCount {
			best = snip
		}
	}
	if best == nil {
		return "", false
	}
	return best.Code, true
}

// TierOf returns the current tier for (category, description), or TierS2
// if no entry exists yet.
func (p *Pipeline) TierOf(category, description string) Tier {
	fp := Fingerprint(description)
	p.mu.Lock()
	key := entryKey(category, fp)
	v, ok := p.entries.Get(key)
	p.mu.Unlock()
	if !ok {
		return TierS2
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tier
}
