// Package core assembles every cognitive subsystem into the single-threaded
// cooperative solve loop of spec.md §5: one solve runs to completion before
// the next begins; the sleep cycle, spaced-repetition selection, and
// circadian advance all execute between solves on the same thread. Grounded
// on the teacher's aggregate Engine in orchestration/engine.go — one big
// struct holding every subsystem, built by a single constructor, dispatching
// work through narrow method calls rather than exposing its fields.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/frankenstein-ai/cognitive-core/internal/aif"
	"github.com/frankenstein-ai/cognitive-core/internal/circadian"
	"github.com/frankenstein-ai/cognitive-core/internal/config"
	"github.com/frankenstein-ai/cognitive-core/internal/emotion"
	"github.com/frankenstein-ai/cognitive-core/internal/episodic"
	"github.com/frankenstein-ai/cognitive-core/internal/executor"
	"github.com/frankenstein-ai/cognitive-core/internal/gutfeeling"
	"github.com/frankenstein-ai/cognitive-core/internal/hdc"
	"github.com/frankenstein-ai/cognitive-core/internal/promotion"
	"github.com/frankenstein-ai/cognitive-core/internal/reflection"
	"github.com/frankenstein-ai/cognitive-core/internal/scheduler"
	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
	"github.com/frankenstein-ai/cognitive-core/pkg/llm"
	"github.com/frankenstein-ai/cognitive-core/pkg/solver"
	"github.com/frankenstein-ai/cognitive-core/pkg/tasks"
	"github.com/frankenstein-ai/cognitive-core/pkg/vectorstore"
)

// fatalRestartDelay is how long Run waits before restarting the loop after
// an unrecoverable error in one solve (spec.md §7 "Fatal in main loop:
// Persist state, log, restart loop after 10 s").
const fatalRestartDelay = 10 * time.Second

// Options configures a new Core. Every external collaborator is optional;
// absent ones degrade per spec.md §7 (no solver → skip S0 deterministic,
// no vector-store → in-memory default, no LLM → every S2 generation
// attempt counts as failed, so when no earlier tier passed Solve returns
// empty code with a zero result).
type Options struct {
	ConfigPath         string
	CircadianStatePath string
	SchedulerStatePath string

	VectorStore vectorstore.Backend // primary backend; nil uses an in-memory store directly
	Solver      solver.Solver
	Evaluator   evaluator.Evaluator
	LLM         llm.Client
	Tasks       tasks.Source

	SymbolicRegression executor.ContextProvider
	CrossDomain        executor.ContextProvider

	Seed          int64
	BatchesPerDay int

	Log *zap.SugaredLogger
}

// Core owns every piece of mutable cognitive state exclusively (spec.md §5
// "Shared resource policy") and drives the solve/sleep loop.
type Core struct {
	cfg        *config.Config
	encoder    *hdc.Encoder
	concepts   *hdc.ConceptMemory
	aifAgent   *aif.Agent
	episodic   *episodic.Memory
	gut        *gutfeeling.Aggregator
	emotion    *emotion.State
	promotion  *promotion.Pipeline
	reflection *reflection.Engine
	scheduler  *scheduler.Scheduler
	clock      *circadian.Clock
	exec       *executor.Executor
	taskSource tasks.Source

	batchNum int
	log      *zap.SugaredLogger
}

// New wires every subsystem together, mirroring the teacher's NewEngine:
// construct leaves first, then the aggregate that depends on them.
func New(opts Options) (*Core, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		// spec.md §7 "Config read error: Proceed with all modules enabled".
		// config.Load already returns a default-enabled Config alongside
		// the error; only the logging is our responsibility here.
		log.Warnw("config load failed, proceeding with defaults", "path", opts.ConfigPath, "error", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = 1
	}

	primary := opts.VectorStore
	if primary == nil {
		primary = vectorstore.NewInMemory()
	}
	fallback := vectorstore.NewInMemory()

	encoder := hdc.NewEncoder(hdc.Dim, uint64(seed))
	concepts := hdc.NewConceptMemory()
	aifAgent := aif.NewCodingAgent(seed)
	episodicMem := episodic.New(primary, fallback, cfg.DecayThreshold, log.Named("episodic"))
	gut := gutfeeling.New()
	emotionState := emotion.New()
	promotionPipeline := promotion.New()
	reflectionEngine := reflection.New()
	sched := scheduler.New(opts.SchedulerStatePath, seed)
	clock := circadian.New(circadian.Config{
		BatchesPerDay: opts.BatchesPerDay,
		Seed:          seed,
		Path:          opts.CircadianStatePath,
		Log:           log,
	})

	taskSource := opts.Tasks
	if taskSource == nil {
		taskSource = tasks.NewPool(tasks.DefaultSeedTasks())
	}

	llmClient := opts.LLM
	if llmClient != nil {
		llmClient = llm.NewRateLimitedClient(llmClient)
	}

	exec := executor.New(executor.Deps{
		Config:             cfg,
		Encoder:            encoder,
		Concepts:           concepts,
		AIF:                aifAgent,
		Episodic:           episodicMem,
		Gut:                gut,
		Emotion:            emotionState,
		Promotion:          promotionPipeline,
		Reflection:         reflectionEngine,
		Solver:             opts.Solver,
		Evaluator:          opts.Evaluator,
		LLM:                llmClient,
		SymbolicRegression: opts.SymbolicRegression,
		CrossDomain:        opts.CrossDomain,
		Log:                log,
	})

	return &Core{
		cfg:        cfg,
		encoder:    encoder,
		concepts:   concepts,
		aifAgent:   aifAgent,
		episodic:   episodicMem,
		gut:        gut,
		emotion:    emotionState,
		promotion:  promotionPipeline,
		reflection: reflectionEngine,
		scheduler:  sched,
		clock:      clock,
		exec:       exec,
		taskSource: taskSource,
		log:        log,
	}, nil
}

// SolveOutcome summarises one RunOnce call for the CLI's reporting.
type SolveOutcome struct {
	Task     evaluator.Task
	Code     string
	Result   evaluator.Result
	Metadata executor.SolveMetadata
	Slept    bool
	Dreams   int
}

var errNoTask = errors.New("core: task source exhausted")

// RunOnce picks the next category (spaced-repetition priority or injected
// review), fetches its task, runs one solve, applies the post-evaluation
// updates spec.md §5 assigns to the caller (scheduler record, circadian
// advance), and — when the clock crosses into the sleep phase — runs one
// sleep consolidation cycle. It never reenters Solve while a prior solve
// is in flight (spec.md §5 "no reentrancy"): callers must not invoke it
// concurrently.
func (c *Core) RunOnce(ctx context.Context) (SolveOutcome, error) {
	if err := c.cfg.Reload(); err != nil {
		c.log.Warnw("config reload failed, keeping previous toggles", "error", err)
	}

	category, difficulty, _ := c.nextCategory()
	task, ok := c.taskSource.Next(ctx, category, difficulty)
	if !ok {
		return SolveOutcome{}, errNoTask
	}

	t0 := time.Now()
	code, result, meta := c.exec.Solve(ctx, task)
	elapsedMS := float64(time.Since(t0).Microseconds()) / 1000.0

	firstTry := meta.Attempts <= 1
	c.scheduler.RecordAttempt(task.Category, task.Difficulty, result.Score, firstTry)

	c.batchNum++
	state := c.clock.AdvanceBatch(1, isPass(result), elapsedMS)

	outcome := SolveOutcome{Task: task, Code: code, Result: result, Metadata: meta}

	if state.Phase == circadian.Sleep {
		dreams, err := c.runSleepCycle(ctx)
		if err != nil {
			c.log.Warnw("sleep cycle error", "error", err)
		}
		outcome.Slept = true
		outcome.Dreams = len(dreams)
	}

	return outcome, nil
}

func isPass(r evaluator.Result) bool {
	return r.Total > 0 && r.Passed == r.Total && r.Score >= 1.0
}

// nextCategory honours spec.md §4.9 "Scheduler injects a review batch
// every 4th top-level batch when any due category exists"; otherwise it
// takes the scheduler's top-priority category, and only when the scheduler
// has none falls through to an empty category, letting the task source
// pick whatever it has (round-robin over the whole pool).
func (c *Core) nextCategory() (category string, difficulty int, reason string) {
	if c.scheduler.ShouldInjectReview(c.batchNum) {
		if params, ok := c.scheduler.PickReviewTask(); ok {
			return params.Category, params.Difficulty, params.Reason
		}
	}
	if top := c.scheduler.NextCategories(1, nil); len(top) > 0 {
		return top[0].Category, top[0].Difficulty, top[0].Reason
	}
	return "", 1, "cold_start"
}

// runSleepCycle gathers the concept catalogue's attached-code view and
// delegates to the circadian clock (spec.md §4.6 "Sleep cycle").
func (c *Core) runSleepCycle(ctx context.Context) ([]circadian.DreamPair, error) {
	names := c.concepts.Names()
	views := make([]circadian.ConceptCode, 0, len(names))
	for _, name := range names {
		concept, ok := c.concepts.Get(name)
		if !ok {
			continue
		}
		_, hasCode := c.exec.CachedCodeForConcept(name)
		views = append(views, circadian.ConceptCode{
			Name:      name,
			HasCode:   hasCode,
			Prototype: concept.Prototype.Dense(),
		})
	}
	return c.clock.RunSleepCycle(ctx, c.episodic, views)
}

// Run loops RunOnce forever (spec.md §6 CLI surface "run (loop forever)"),
// restarting after a fatal error per spec.md §7's main-loop policy. It
// returns when ctx is cancelled.
func (c *Core) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		outcome, err := c.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, errNoTask) {
				return fmt.Errorf("core: %w", err)
			}
			c.log.Errorw("fatal error in solve loop, restarting", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fatalRestartDelay):
			}
			continue
		}

		c.log.Infow("solve complete",
			"category", outcome.Task.Category,
			"tier", outcome.Metadata.Tier,
			"strategy", outcome.Metadata.WinningStrategy,
			"score", outcome.Result.Score,
			"slept", outcome.Slept,
		)
	}
}

// Stats bundles cross-subsystem diagnostics for the CLI/status surface.
type Stats struct {
	Scheduler      scheduler.Stats
	Circadian      circadian.State
	StrategyCounts map[string]int
	NumConcepts    int
}

// Stats snapshots every subsystem's counters without mutating state.
func (c *Core) Stats() Stats {
	strategyCounts := make(map[string]int)
	for name, counter := range c.exec.StrategyStats() {
		strategyCounts[name] = counter.Attempts
	}
	return Stats{
		Scheduler:      c.scheduler.Stats(),
		Circadian:      c.clock.GetState(),
		StrategyCounts: strategyCounts,
		NumConcepts:    c.concepts.NumConcepts(),
	}
}
