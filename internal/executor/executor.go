// Package executor implements the tiered S0/S1/S2 solve loop of spec.md
// §4.4: deterministic and promoted templates tried first, then cached
// memory, then generative attempts with active-inference strategy
// selection and a reflection-based self-critique retry. Strategy/provider
// fallback plumbing is grounded on the teacher's
// core/llm/multi_provider.go (try-in-order with per-strategy stats
// mirroring its per-provider ProviderStats).
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

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
)

// ContextProvider supplies optional extra prompt context from an
// auxiliary cognitive module (spec.md §4.4 step 9.c "symbolic-regression
// and cross-domain modules when available"; spec.md §6 names these as
// config toggles, SymbolicRegression and CrossDomain, without specifying
// their internals — this is the minimal interface that lets either be
// wired in without the executor depending on a concrete implementation).
type ContextProvider interface {
	Context(ctx context.Context, task evaluator.Task) (string, bool)
}

// Deps bundles every subsystem the executor needs. The executor does not
// own construction of these — Core does — mirroring spec.md §5's "all
// mutable state is owned exclusively by the core" and the Design Notes
// "Cyclic references" guidance that subsystems receive handles rather
// than reaching back up.
type Deps struct {
	Config     *config.Config
	Encoder    *hdc.Encoder
	Concepts   *hdc.ConceptMemory
	AIF        *aif.Agent
	Episodic   *episodic.Memory
	Gut        *gutfeeling.Aggregator
	Emotion    *emotion.State
	Promotion  *promotion.Pipeline
	Reflection *reflection.Engine
	Solver     solver.Solver
	Evaluator  evaluator.Evaluator
	LLM        llm.Client

	SymbolicRegression ContextProvider // nil when unavailable
	CrossDomain        ContextProvider // nil when unavailable

	Log *zap.SugaredLogger
}

// SolveMetadata is the Contract's metadata return (spec.md §4.4).
type SolveMetadata struct {
	WinningStrategy string
	Tier            string
	Attempts        int
	TierTimings     map[string]time.Duration
	ConceptName     string
	ConceptIsNew    bool
	GutRecommendation string
	AIFSurprise     float64
}

// Executor runs one solve loop over a single Deps bundle.
type Executor struct {
	deps  Deps
	stats *strategyStats
	log   *zap.SugaredLogger

	conceptCodeMu sync.Mutex
	conceptCode   map[string]string // last winning code per concept name (spec.md §4.4 step 7)
}

// New returns an Executor over deps.
func New(deps Deps) *Executor {
	log := deps.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{deps: deps, stats: newStrategyStats(), log: log, conceptCode: make(map[string]string)}
}

func (ex *Executor) cachedCodeForConcept(name string) (string, bool) {
	ex.conceptCodeMu.Lock()
	defer ex.conceptCodeMu.Unlock()
	code, ok := ex.conceptCode[name]
	return code, ok
}

func (ex *Executor) cacheCodeForConcept(name, code string) {
	ex.conceptCodeMu.Lock()
	defer ex.conceptCodeMu.Unlock()
	ex.conceptCode[name] = code
}

// CachedCodeForConcept exposes the S1 memory cache for callers that need
// to know whether a concept has attached code (spec.md §4.6 "REM dreams:
// coherence from whether both concepts have attached code").
func (ex *Executor) CachedCodeForConcept(name string) (string, bool) {
	return ex.cachedCodeForConcept(name)
}

const (
	recallCount               = 3
	memorySimilarityThreshold = 0.5
)

// Solve runs the full tiered attempt order of spec.md §4.4 and returns
// the best observed (code, result, metadata) even when nothing passed
// (spec.md §4.4 "Failure semantics: Never raises").
func (ex *Executor) Solve(ctx context.Context, task evaluator.Task) (string, evaluator.Result, SolveMetadata) {
	toggles := ex.deps.Config.Toggles()
	meta := SolveMetadata{TierTimings: make(map[string]time.Duration)}

	// 1. Perception.
	hv := ex.deps.Encoder.Encode(task.Description)
	classify := hdc.ClassifyResult{Index: -1}
	if toggles.HDC {
		classify = ex.deps.Concepts.Classify(hv)
	}
	conceptName := classify.Name
	isNew := classify.Index < 0 || classify.Similarity < ex.deps.Concepts.NewConceptThreshold()
	if conceptName == "" {
		conceptName = fmt.Sprintf("%s:%d", task.Category, task.Difficulty)
	}
	meta.ConceptName = conceptName
	meta.ConceptIsNew = isNew

	// 2. Memory lookup.
	var recalls []episodic.RecallHit
	if toggles.Ebbinghaus {
		recalls = ex.deps.Episodic.Recall(ctx, hdcToEmbedding(hv), recallCount)
	}

	// 3. Gut feeling.
	gut := gutfeeling.Result{Recommendation: gutfeeling.Uncertain}
	if toggles.Gut {
		gut = ex.deps.Gut.Evaluate(gutInputsFrom(classify, isNew, recalls, ex.deps.AIF))
	}
	meta.GutRecommendation = string(gut.Recommendation)

	// 4. Emotions.
	mods := emotion.Modifiers{}
	if toggles.Emotions {
		mods = ex.deps.Emotion.Modifiers()
	}

	// 5. S0 deterministic.
	if ex.deps.Solver != nil {
		t0 := time.Now()
		if code, ok, _ := ex.deps.Solver.Solve(ctx, task.Category, task.Description); ok {
			result, err := ex.evaluate(ctx, task, code)
			meta.TierTimings["s0_deterministic"] = time.Since(t0)
			if err == nil && isExactPass(result) {
				meta.WinningStrategy = StrategyDeterministicS0
				meta.Tier = "S0"
				ex.onSuccess(ctx, task, hv, code, StrategyDeterministicS0, result, true, conceptName, isNew)
				return code, result, meta
			}
		}
	}

	// 6. S0 promoted.
	if code, ok := ex.deps.Promotion.GetS0Template(task.Category, task.Description); ok {
		t0 := time.Now()
		result, err := ex.evaluate(ctx, task, code)
		meta.TierTimings["s0_promoted"] = time.Since(t0)
		if err == nil && isExactPass(result) {
			meta.WinningStrategy = StrategyPromotedS0
			meta.Tier = "S0"
			ex.onSuccess(ctx, task, hv, code, StrategyPromotedS0, result, false, conceptName, isNew)
			return code, result, meta
		}
	}

	// 7. S1 memory.
	if gut.Recommendation == gutfeeling.Confident && !isNew && classify.Similarity >= memorySimilarityThreshold {
		if code, ok := ex.cachedCodeForConcept(conceptName); ok {
			t0 := time.Now()
			result, err := ex.evaluate(ctx, task, code)
			meta.TierTimings["s1_memory"] = time.Since(t0)
			if err == nil && isExactPass(result) {
				meta.WinningStrategy = StrategyMemoryS1
				meta.Tier = "S1"
				ex.onSuccess(ctx, task, hv, code, StrategyMemoryS1, result, false, conceptName, isNew)
				return code, result, meta
			}
		}
	}

	// 8. S1 promoted.
	if code, ok := ex.deps.Promotion.GetS1Solution(task.Category, task.Description); ok {
		t0 := time.Now()
		result, err := ex.evaluate(ctx, task, code)
		meta.TierTimings["s1_promoted"] = time.Since(t0)
		if err == nil && isExactPass(result) {
			meta.WinningStrategy = StrategyPromotedS1
			meta.Tier = "S1"
			ex.onSuccess(ctx, task, hv, code, StrategyPromotedS1, result, false, conceptName, isNew)
			return code, result, meta
		}
	}

	// 9. S2 generation.
	return ex.generationLoop(ctx, task, hv, conceptName, isNew, gut, mods, meta)
}

func hdcToEmbedding(hv *hdc.Hypervector) []float32 {
	dense := hv.Dense()
	out := make([]float32, len(dense))
	for i, v := range dense {
		out[i] = float32(v)
	}
	return out
}

func gutInputsFrom(classify hdc.ClassifyResult, isNew bool, recalls []episodic.RecallHit, agent *aif.Agent) gutfeeling.Inputs {
	var bestRetention, successRatio float64
	if len(recalls) > 0 {
		for _, r := range recalls {
			if r.Retention > bestRetention {
				bestRetention = r.Retention
			}
		}
		successRatio = 1.0 // fixed at 1.0 whenever anything is recalled; the recalled records' outcomes are not consulted
	}
	return gutfeeling.Inputs{
		HDCConfidence:      classify.Similarity,
		IsNewPattern:       isNew,
		CategorySolveRate:  0.5,
		RecentScoresEWMA:   0.5,
		CurrentStreak:      0,
		KeywordCount:       0,
		Difficulty:         1,
		BestRetention:      bestRetention,
		RecallSuccessRatio: successRatio,
		AIFSurprise:        agent.GetSurprise(),
		ExplorationWeight:  agent.ExplorationWeight(),
	}
}

func isExactPass(r evaluator.Result) bool {
	return r.Total > 0 && r.Passed == r.Total && r.Score >= 1.0
}

func (ex *Executor) evaluate(ctx context.Context, task evaluator.Task, code string) (evaluator.Result, error) {
	if ex.deps.Evaluator == nil {
		return evaluator.Result{}, fmt.Errorf("executor: no evaluator configured")
	}
	result, err := ex.deps.Evaluator.Evaluate(ctx, task, code)
	if err != nil {
		// spec.md §7 "Eval exception: Treat as score 0 with feedback 'runtime'".
		return evaluator.Result{Feedback: "runtime"}, nil
	}
	return result, nil
}

// onSuccess applies the fixed post-evaluation update order of spec.md §5:
// (1) HDC learn → (2) AIF preference/exploration → (3) episodic store →
// (4) emotion update → (5) promotion record → (6) scheduler record (the
// caller records scheduler separately, since Scheduler is keyed by
// category/difficulty known at the call site) → (7) strategy stats.
func (ex *Executor) onSuccess(ctx context.Context, task evaluator.Task, hv *hdc.Hypervector, code, strategy string, result evaluator.Result, firstTry bool, conceptName string, isNew bool) {
	toggles := ex.deps.Config.Toggles()

	if toggles.HDC {
		ex.deps.Concepts.Learn(conceptName, hv)
	}

	obs := aif.ObservationForDifficulty(task.Difficulty)
	if toggles.AIF {
		ex.deps.AIF.UpdatePreferences(obs, result.Score, true)
	}

	if toggles.Ebbinghaus {
		_, _ = ex.deps.Episodic.Store(ctx, hdcToEmbedding(hv), conceptName, 10.0, 1.0, result.Score, 1.0, map[string]any{
			"code": code, "score": result.Score, "category": task.Category,
		})
	}

	if toggles.Emotions {
		ex.deps.Emotion.ProcessResult(true, result.Score, 0, false)
	}

	ex.deps.Promotion.RecordSuccess(task.Category, task.Description, code, strategy, firstTry)
	ex.cacheCodeForConcept(conceptName, code)

	ex.stats.recordAttempt(strategy)
	ex.stats.recordSuccess(strategy)
}

// onFailure mirrors onSuccess's update order for a non-passing attempt.
func (ex *Executor) onFailure(ctx context.Context, task evaluator.Task, hv *hdc.Hypervector, strategy string, result evaluator.Result, conceptName string) {
	toggles := ex.deps.Config.Toggles()

	obs := aif.ObservationForDifficulty(task.Difficulty)
	if toggles.AIF {
		ex.deps.AIF.UpdatePreferences(obs, result.Score-1.0, false)
	}

	if toggles.Ebbinghaus && result.Score > 0 {
		_, _ = ex.deps.Episodic.Store(ctx, hdcToEmbedding(hv), conceptName, 3.0, 1.0, result.Score, 1.0, map[string]any{
			"score": result.Score, "category": task.Category,
		})
	} else if toggles.Ebbinghaus {
		_, _ = ex.deps.Episodic.Store(ctx, hdcToEmbedding(hv), conceptName, 0.5, 1.0, 0.1, 1.0, map[string]any{
			"score": result.Score, "category": task.Category,
		})
	}

	if toggles.Emotions {
		ex.deps.Emotion.ProcessResult(false, result.Score, 0, false)
	}

	ex.deps.Promotion.RecordFailure(task.Category, task.Description)
	ex.stats.recordAttempt(strategy)
}

// StrategyStats exposes strategy (attempts, successes) counters for
// diagnostics (spec.md §4.4 "Strategy stats").
func (ex *Executor) StrategyStats() map[string]strategyCounter {
	return ex.stats.snapshot()
}
