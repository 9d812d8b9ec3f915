package executor

import "sync"

// Strategy names (spec.md §3 "Strategy"). reflection_variant(*) is
// represented with the prefix reflectionVariantPrefix plus the base
// strategy name.
const (
	StrategyDeterministicS0 = "deterministic_S0"
	StrategyPromotedS0      = "promoted_S0"
	StrategyMemoryS1        = "memory_S1"
	StrategyPromotedS1      = "promoted_S1"
	StrategyDirect          = "direct"
	StrategyWithHints       = "with_hints"
	StrategyFromMemory      = "from_memory"
	StrategyStepByStep      = "step_by_step"

	reflectionVariantPrefix = "reflection_variant:"
)

// ReflectionVariant names the reflection-repaired version of a base
// strategy (spec.md §3 "reflection_variant(*)").
func ReflectionVariant(base string) string {
	return reflectionVariantPrefix + base
}

// strategyCounter is a rolling (attempts, successes) pair (spec.md §3
// "Each carries a rolling (attempts, successes) counter").
type strategyCounter struct {
	Attempts  int
	Successes int
}

// strategyStats tracks every strategy's rolling counters (spec.md §4.4
// "Strategy stats").
type strategyStats struct {
	mu     sync.Mutex
	counts map[string]*strategyCounter
}

func newStrategyStats() *strategyStats {
	return &strategyStats{counts: make(map[string]*strategyCounter)}
}

func (s *strategyStats) recordAttempt(strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counts[strategy]
	if !ok {
		c = &strategyCounter{}
		s.counts[strategy] = c
	}
	c.Attempts++
}

func (s *strategyStats) recordSuccess(strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counts[strategy]
	if !ok {
		c = &strategyCounter{}
		s.counts[strategy] = c
	}
	c.Successes++
}

// successRate returns (rate, attempts) for a strategy; rate is 0 if never
// attempted.
func (s *strategyStats) successRate(strategy string) (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counts[strategy]
	if !ok || c.Attempts == 0 {
		return 0, 0
	}
	return float64(c.Successes) / float64(c.Attempts), c.Attempts
}

// snapshot returns a copy of all strategy counters, for diagnostics.
func (s *strategyStats) snapshot() map[string]strategyCounter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]strategyCounter, len(s.counts))
	for k, v := range s.counts {
		out[k] = *v
	}
	return out
}

// edgeCasePromotion implements spec.md §4.4 "Edge-case policy": if the
// chosen strategy has >=50 attempts and <20% success, upgrade to
// with_hints.
func (s *strategyStats) edgeCasePromotion(strategy string) string {
	rate, attempts := s.successRate(strategy)
	if attempts >= 50 && rate < 0.20 {
		return StrategyWithHints
	}
	return strategy
}
