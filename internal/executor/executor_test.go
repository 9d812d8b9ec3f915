package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankenstein-ai/cognitive-core/internal/aif"
	"github.com/frankenstein-ai/cognitive-core/internal/config"
	"github.com/frankenstein-ai/cognitive-core/internal/emotion"
	"github.com/frankenstein-ai/cognitive-core/internal/episodic"
	"github.com/frankenstein-ai/cognitive-core/internal/gutfeeling"
	"github.com/frankenstein-ai/cognitive-core/internal/hdc"
	"github.com/frankenstein-ai/cognitive-core/internal/promotion"
	"github.com/frankenstein-ai/cognitive-core/internal/reflection"
	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
	"github.com/frankenstein-ai/cognitive-core/pkg/llm"
	"github.com/frankenstein-ai/cognitive-core/pkg/solver"
	"github.com/frankenstein-ai/cognitive-core/pkg/vectorstore"
)

func newTestDeps(t *testing.T, sv solver.Solver, ev evaluator.Evaluator, lc llm.Client) Deps {
	t.Helper()
	cfg, _ := config.Load("")
	return Deps{
		Config:     cfg,
		Encoder:    hdc.NewEncoder(256, 1),
		Concepts:   hdc.NewConceptMemory(),
		AIF:        aif.New(aif.Config{NumStates: 4, NumObservations: 4, NumActions: 4, Seed: 1}),
		Episodic:   episodic.New(vectorstore.NewInMemory(), vectorstore.NewInMemory(), 0.01, nil),
		Gut:        gutfeeling.New(),
		Emotion:    emotion.New(),
		Promotion:  promotion.New(),
		Reflection: reflection.New(),
		Solver:     sv,
		Evaluator:  ev,
		LLM:        lc,
	}
}

func perfectResult() evaluator.Result {
	return evaluator.Result{Passed: 2, Total: 2, Score: 1.0}
}

func failResult() evaluator.Result {
	return evaluator.Result{Passed: 0, Total: 2, Score: 0.0, Feedback: "wrong answer"}
}

// TestSolveUsesDeterministicSolverFirst checks spec.md §8 seed scenario 1:
// a deterministic solver match wins at tier S0 without ever calling the LLM.
func TestSolveUsesDeterministicSolverFirst(t *testing.T) {
	task := evaluator.Task{Category: "arithmetic", Description: "add two numbers"}
	sv := solver.NewMockSolver(map[string]string{
		"arithmetic\x00add two numbers": "a,b=map(int,input().split())\nprint(a+b)",
	})
	ev := evaluator.NewMockEvaluator(perfectResult())
	lc := llm.NewMockClient() // should never be called

	deps := newTestDeps(t, sv, ev, lc)
	ex := New(deps)

	code, result, meta := ex.Solve(context.Background(), task)

	assert.Equal(t, StrategyDeterministicS0, meta.WinningStrategy)
	assert.Equal(t, "S0", meta.Tier)
	assert.NotEmpty(t, code)
	assert.True(t, result.Score >= 1.0)
	assert.Equal(t, 0, lc.CallCount())
}

// TestSolveFallsThroughToGenerationWhenNoDeterministicMatch checks that
// Solve reaches S2 generation and succeeds on the first LLM attempt.
func TestSolveFallsThroughToGenerationWhenNoDeterministicMatch(t *testing.T) {
	task := evaluator.Task{Category: "strings", Description: "reverse a string", Difficulty: 2}
	ev := evaluator.NewMockEvaluator(perfectResult())
	lc := llm.NewMockClient("```python\nprint(input()[::-1])\n```")

	deps := newTestDeps(t, nil, ev, lc)
	ex := New(deps)

	code, result, meta := ex.Solve(context.Background(), task)

	assert.Equal(t, "S2", meta.Tier)
	assert.NotEmpty(t, code)
	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, 1, lc.CallCount())
}

// TestSolveNeverRaisesAndReturnsBestAttemptOnExhaustion checks spec.md
// §4.4's failure semantics: even when every attempt fails, Solve returns
// the best-scoring observed attempt rather than panicking or erroring.
func TestSolveNeverRaisesAndReturnsBestAttemptOnExhaustion(t *testing.T) {
	task := evaluator.Task{Category: "strings", Description: "reverse a string", Difficulty: 2}
	ev := evaluator.NewMockEvaluator(failResult())
	lc := llm.NewMockClient("```python\nprint('wrong')\n```")

	deps := newTestDeps(t, nil, ev, lc)
	ex := New(deps)

	var code string
	var result evaluator.Result
	var meta SolveMetadata
	assert.NotPanics(t, func() {
		code, result, meta = ex.Solve(context.Background(), task)
	})

	assert.Equal(t, "S2", meta.Tier)
	assert.NotEmpty(t, code)
	assert.Less(t, result.Score, 1.0)
}

// TestSolveServesFromPromotedS0TemplateWhenAvailable checks the
// promoted-S0 tier is tried ahead of generation once a fingerprint has
// been promoted.
func TestSolveServesFromPromotedS0TemplateWhenAvailable(t *testing.T) {
	task := evaluator.Task{Category: "lists", Description: "reverse a linked list"}
	ev := evaluator.NewMockEvaluator(perfectResult())
	lc := llm.NewMockClient() // must not be reached

	deps := newTestDeps(t, nil, ev, lc)

	// Promote the fingerprint to S0 directly via the shared Promotion
	// pipeline, mirroring how three distinct-strategy wins plus five more
	// would accumulate in a real run.
	deps.Promotion.RecordSuccess("lists", task.Description, "code-a", "direct", false)
	deps.Promotion.RecordSuccess("lists", task.Description, "code-b", "step_by_step", true)
	deps.Promotion.RecordSuccess("lists", task.Description, "code-c", "step_by_step", false)
	for i := 0; i < promotion.PromoteToS0Wins; i++ {
		deps.Promotion.RecordSuccess("lists", task.Description, "code-a", "direct", false)
	}
	require.Equal(t, promotion.TierS0, deps.Promotion.TierOf("lists", task.Description))

	ex := New(deps)
	code, _, meta := ex.Solve(context.Background(), task)

	assert.Equal(t, StrategyPromotedS0, meta.WinningStrategy)
	assert.NotEmpty(t, code)
	assert.Equal(t, 0, lc.CallCount())
}

// TestOnSuccessCachesCodeForConceptReuse checks spec.md §4.4 step 7: a
// win's code is cached under the matched concept name for S1 memory
// reuse on a later, similar task.
func TestOnSuccessCachesCodeForConceptReuse(t *testing.T) {
	task := evaluator.Task{Category: "strings", Description: "reverse a string", Difficulty: 1}
	ev := evaluator.NewMockEvaluator(perfectResult())
	lc := llm.NewMockClient("```python\nprint(input()[::-1])\n```")

	deps := newTestDeps(t, nil, ev, lc)
	ex := New(deps)

	_, _, meta := ex.Solve(context.Background(), task)
	require.Equal(t, "S2", meta.Tier)

	code, ok := ex.CachedCodeForConcept(meta.ConceptName)
	assert.True(t, ok)
	assert.NotEmpty(t, code)
}

func TestStrategyStatsTrackAttemptsAndSuccesses(t *testing.T) {
	task := evaluator.Task{Category: "strings", Description: "reverse a string", Difficulty: 1}
	ev := evaluator.NewMockEvaluator(perfectResult())
	lc := llm.NewMockClient("```python\nprint(input()[::-1])\n```")

	deps := newTestDeps(t, nil, ev, lc)
	ex := New(deps)
	ex.Solve(context.Background(), task)

	stats := ex.StrategyStats()
	var totalAttempts int
	for _, c := range stats {
		totalAttempts += c.Attempts
	}
	assert.Greater(t, totalAttempts, 0)
}

func TestIsExactPassRequiresFullScoreAndNonZeroTotal(t *testing.T) {
	assert.True(t, isExactPass(evaluator.Result{Passed: 3, Total: 3, Score: 1.0}))
	assert.False(t, isExactPass(evaluator.Result{Passed: 0, Total: 0, Score: 1.0}))
	assert.False(t, isExactPass(evaluator.Result{Passed: 2, Total: 3, Score: 0.67}))
}
