package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintNormalisesCaseAndWhitespace(t *testing.T) {
	a := Fingerprint("  Reverse   A Linked List ")
	b := Fingerprint("reverse a linked list")
	assert.Equal(t, a, b)
}

func TestFingerprintDiffersForDifferentDescriptions(t *testing.T) {
	a := Fingerprint("reverse a linked list")
	b := Fingerprint("sort an array")
	assert.NotEqual(t, a, b)
}

func TestNewEntryStartsAtTierS2(t *testing.T) {
	p := New()
	assert.Equal(t, TierS2, p.TierOf("lists", "reverse a linked list"))
}

// TestPromotesToS1AfterThreeWinsAcrossTwoStrategies checks spec.md §4.5's
// promotion rule: >=3 distinct winning snippets across >=2 strategies.
func TestPromotesToS1AfterThreeWinsAcrossTwoStrategies(t *testing.T) {
	p := New()
	desc := "reverse a linked list"

	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	assert.Equal(t, TierS2, p.TierOf("lists", desc))

	p.RecordSuccess("lists", desc, "code-b", "step_by_step", false)
	assert.Equal(t, TierS2, p.TierOf("lists", desc), "only 2 distinct snippets and 2 strategies so far")

	p.RecordSuccess("lists", desc, "code-c", "step_by_step", false)
	assert.Equal(t, TierS1, p.TierOf("lists", desc))
}

func TestDoesNotPromoteToS1WithOnlyOneStrategy(t *testing.T) {
	p := New()
	desc := "reverse a linked list"

	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	p.RecordSuccess("lists", desc, "code-b", "direct", false)
	p.RecordSuccess("lists", desc, "code-c", "direct", false)

	assert.Equal(t, TierS2, p.TierOf("lists", desc))
}

// TestPromotesToS0AfterFiveMoreWinsWithFirstTry checks spec.md §4.5:
// promoted to S0 needs PromoteToS0Wins additional wins since S1 plus at
// least one first-try win in the fingerprint's history (here the win
// that reached S1).
func TestPromotesToS0AfterFiveMoreWinsWithFirstTry(t *testing.T) {
	p := New()
	desc := "reverse a linked list"

	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	p.RecordSuccess("lists", desc, "code-b", "step_by_step", false)
	p.RecordSuccess("lists", desc, "code-c", "step_by_step", true)
	require := assert.New(t)
	require.Equal(TierS1, p.TierOf("lists", desc))

	for i := 0; i < PromoteToS0Wins; i++ {
		p.RecordSuccess("lists", desc, "code-a", "direct", false)
	}
	assert.Equal(t, TierS0, p.TierOf("lists", desc))
}

func TestDoesNotPromoteToS0WithoutAnyFirstTryWin(t *testing.T) {
	p := New()
	desc := "reverse a linked list"

	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	p.RecordSuccess("lists", desc, "code-b", "step_by_step", false)
	p.RecordSuccess("lists", desc, "code-c", "step_by_step", false)
	assert.Equal(t, TierS1, p.TierOf("lists", desc))

	for i := 0; i < PromoteToS0Wins+5; i++ {
		p.RecordSuccess("lists", desc, "code-a", "direct", false)
	}
	assert.Equal(t, TierS1, p.TierOf("lists", desc), "without any first-try win it should never reach S0")
}

// TestDemotesAfterConsecutiveFailureStreak checks spec.md §4.5's
// demotion rule: DemoteFailureStreak consecutive failures drops one tier.
func TestDemotesAfterConsecutiveFailureStreak(t *testing.T) {
	p := New()
	desc := "reverse a linked list"
	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	p.RecordSuccess("lists", desc, "code-b", "step_by_step", false)
	p.RecordSuccess("lists", desc, "code-c", "step_by_step", false)
	require := assert.New(t)
	require.Equal(TierS1, p.TierOf("lists", desc))

	for i := 0; i < DemoteFailureStreak; i++ {
		p.RecordFailure("lists", desc)
	}
	assert.Equal(t, TierS2, p.TierOf("lists", desc))
}

func TestDemotionNeverGoesBelowS2(t *testing.T) {
	p := New()
	desc := "never seen before"
	for i := 0; i < DemoteFailureStreak*3; i++ {
		p.RecordFailure("lists", desc)
	}
	assert.Equal(t, TierS2, p.TierOf("lists", desc))
}

func TestRecordSuccessResetsConsecutiveFailureStreak(t *testing.T) {
	p := New()
	desc := "reverse a linked list"
	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	p.RecordFailure("lists", desc)
	p.RecordFailure("lists", desc)
	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	p.RecordFailure("lists", desc)
	p.RecordFailure("lists", desc)

	// Only 2 consecutive fails since the last success, never reaching
	// DemoteFailureStreak, so tier must be unaffected (still S2, since
	// it never actually promoted here).
	assert.Equal(t, TierS2, p.TierOf("lists", desc))
}

func TestGetS0TemplateReturnsFalseBelowTierS0(t *testing.T) {
	p := New()
	desc := "reverse a linked list"
	p.RecordSuccess("lists", desc, "code-a", "direct", false)

	_, ok := p.GetS0Template("lists", desc)
	assert.False(t, ok)
}

func TestGetS1SolutionReturnsBestReferencedSnippetOnceS1(t *testing.T) {
	p := New()
	desc := "reverse a linked list"
	p.RecordSuccess("lists", desc, "code-a", "direct", false)
	p.RecordSuccess("lists", desc, "code-b", "step_by_step", false)
	p.RecordSuccess("lists", desc, "code-a", "direct", false) // bumps code-a's RefCount to 2
	p.RecordSuccess("lists", desc, "code-c", "step_by_step", false)

	code, ok := p.GetS1Solution("lists", desc)
	assert.True(t, ok)
	assert.Equal(t, "code-a", code)
}

func TestUnknownFingerprintReportsTierS2AndNoSolution(t *testing.T) {
	p := New()
	_, ok := p.GetS1Solution("lists", "never recorded")
	assert.False(t, ok)
	assert.Equal(t, TierS2, p.TierOf("lists", "never recorded"))
}
