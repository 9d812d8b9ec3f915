package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/frankenstein-ai/cognitive-core/internal/core"
	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
	"github.com/frankenstein-ai/cognitive-core/pkg/llm"
	"github.com/frankenstein-ai/cognitive-core/pkg/solver"
	"github.com/frankenstein-ai/cognitive-core/pkg/tasks"
)

// errInterrupted signals a clean SIGINT shutdown, mapped to exit code 130
// by run() in main.go (spec.md §6 "Exit codes: 0 clean shutdown, 130
// SIGINT, 1 fatal").
var errInterrupted = errors.New("interrupted")

// rootFlags mirrors the persistent config every subcommand shares.
type rootFlags struct {
	configPath         string
	circadianStatePath string
	schedulerStatePath string
	seed               int64
	batchesPerDay      int
}

func newRootCommand(log *zap.SugaredLogger) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "cognitive-core",
		Short: "Tiered-executor cognitive learning agent",
		Long:  "Runs the HDC/active-inference/episodic-memory learning agent described in its design spec: a cooperative solve loop with a circadian sleep cycle between batches.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "config.yaml", "module toggle config path")
	root.PersistentFlags().StringVar(&flags.circadianStatePath, "circadian-state", "circadian_state.json", "circadian state file")
	root.PersistentFlags().StringVar(&flags.schedulerStatePath, "scheduler-state", "scheduler_state.json", "scheduler state file")
	root.PersistentFlags().Int64Var(&flags.seed, "seed", 1, "deterministic RNG seed")
	root.PersistentFlags().IntVar(&flags.batchesPerDay, "batches-per-day", 48, "circadian batches per subjective day")

	root.AddCommand(newRunCommand(log, flags))
	root.AddCommand(newAblationCommand(log, flags))
	root.AddCommand(newBenchmarkCommand(log, flags))

	return root
}

// shutdownContext returns a context cancelled on SIGINT/SIGTERM, mirroring
// the teacher's cmd/autonomous_v6 signal-channel shutdown pattern but
// expressed with signal.NotifyContext.
func shutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCommand(log *zap.SugaredLogger, flags *rootFlags) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the solve loop (forever, or once with --once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := shutdownContext()
			defer cancel()

			c, err := core.New(coreOptions(flags, log, defaultCollaborators()))
			if err != nil {
				return fmt.Errorf("core init: %w", err)
			}

			if once {
				outcome, err := c.RunOnce(ctx)
				if err != nil {
					return err
				}
				reportOutcome(log, outcome)
				return nil
			}

			err = c.Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Infow("shutdown requested")
				return errInterrupted
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single solve instead of looping forever")
	return cmd
}

func newAblationCommand(log *zap.SugaredLogger, flags *rootFlags) *cobra.Command {
	var configName string
	var numTasks int

	cmd := &cobra.Command{
		Use:   "ablation",
		Short: "Run N solves under a named toggle config and report stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configName != "" {
				flags.configPath = configName
			}

			ctx, cancel := shutdownContext()
			defer cancel()

			c, err := core.New(coreOptions(flags, log, defaultCollaborators()))
			if err != nil {
				return fmt.Errorf("core init: %w", err)
			}

			solved := 0
			for i := 0; i < numTasks; i++ {
				select {
				case <-ctx.Done():
					return errInterrupted
				default:
				}
				outcome, err := c.RunOnce(ctx)
				if err != nil {
					return err
				}
				if isPass(outcome.Result) {
					solved++
				}
			}

			stats := c.Stats()
			fmt.Printf("ablation config=%s tasks=%d solved=%d solve_rate=%.2f concepts=%d\n",
				flags.configPath, numTasks, solved, float64(solved)/float64(numTasks), stats.NumConcepts)
			return nil
		},
	}

	cmd.Flags().StringVar(&configName, "config", "", "named toggle config to ablate (path to a YAML file)")
	cmd.Flags().IntVar(&numTasks, "tasks", 20, "number of solves to run")
	return cmd
}

func newBenchmarkCommand(log *zap.SugaredLogger, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark <provider> <tasks>",
		Short: "Run N solves against a named LLM provider and report aggregate stats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			numTasks, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("benchmark: tasks must be an integer: %w", err)
			}

			collaborators, err := collaboratorsForProvider(provider)
			if err != nil {
				return err
			}

			ctx, cancel := shutdownContext()
			defer cancel()

			c, err := core.New(coreOptions(flags, log, collaborators))
			if err != nil {
				return fmt.Errorf("core init: %w", err)
			}

			solved, tierCounts := 0, make(map[string]int)
			for i := 0; i < numTasks; i++ {
				select {
				case <-ctx.Done():
					return errInterrupted
				default:
				}
				outcome, err := c.RunOnce(ctx)
				if err != nil {
					return err
				}
				if isPass(outcome.Result) {
					solved++
				}
				tierCounts[outcome.Metadata.Tier]++
			}

			fmt.Printf("benchmark provider=%s tasks=%d solved=%d solve_rate=%.2f tiers=%v\n",
				provider, numTasks, solved, float64(solved)/float64(numTasks), tierCounts)
			return nil
		},
	}
	return cmd
}

func isPass(r evaluator.Result) bool {
	return r.Total > 0 && r.Passed == r.Total && r.Score >= 1.0
}

func reportOutcome(log *zap.SugaredLogger, outcome core.SolveOutcome) {
	log.Infow("solve result",
		"category", outcome.Task.Category,
		"strategy", outcome.Metadata.WinningStrategy,
		"tier", outcome.Metadata.Tier,
		"attempts", outcome.Metadata.Attempts,
		"score", outcome.Result.Score,
		"slept", outcome.Slept,
	)
}

// collaborators bundles the external-collaborator set a run uses; the CLI
// never ships a real LLM/evaluator implementation (spec.md §1 scopes
// sandboxed evaluation and provider HTTP clients out), so every profile
// here is backed by the package's deterministic mock doubles.
type collaborators struct {
	llm       llm.Client
	evaluator evaluator.Evaluator
	solver    solver.Solver
	tasks     tasks.Source
}

func defaultCollaborators() collaborators {
	return collaborators{
		llm:       llm.NewMockClient("```python\nprint(sum(int(input()) for _ in range(2)))\n```"),
		evaluator: evaluator.NewMockEvaluator(evaluator.Result{Passed: 1, Total: 1, Score: 1.0}),
		solver:    solver.NewMockSolver(nil),
		tasks:     tasks.NewPool(tasks.DefaultSeedTasks()),
	}
}

func collaboratorsForProvider(provider string) (collaborators, error) {
	switch provider {
	case "mock", "":
		return defaultCollaborators(), nil
	default:
		return collaborators{}, fmt.Errorf("benchmark: unknown provider %q (only %q is built in; real provider HTTP clients are out of scope)", provider, "mock")
	}
}

func coreOptions(flags *rootFlags, log *zap.SugaredLogger, c collaborators) core.Options {
	return core.Options{
		ConfigPath:         flags.configPath,
		CircadianStatePath: flags.circadianStatePath,
		SchedulerStatePath: flags.schedulerStatePath,
		Seed:               flags.seed,
		BatchesPerDay:      flags.batchesPerDay,
		LLM:                c.llm,
		Evaluator:          c.evaluator,
		Solver:             c.solver,
		Tasks:              c.tasks,
		Log:                log,
	}
}
