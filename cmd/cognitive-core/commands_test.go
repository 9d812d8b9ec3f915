package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
)

func TestIsPassRequiresFullScoreAndNonZeroTotal(t *testing.T) {
	assert.True(t, isPass(evaluator.Result{Passed: 3, Total: 3, Score: 1.0}))
	assert.False(t, isPass(evaluator.Result{Passed: 0, Total: 0, Score: 1.0}))
	assert.False(t, isPass(evaluator.Result{Passed: 2, Total: 3, Score: 0.67}))
	assert.False(t, isPass(evaluator.Result{Passed: 3, Total: 3, Score: 0.9}))
}

func TestCollaboratorsForProviderMockIsTheOnlyBuiltIn(t *testing.T) {
	c, err := collaboratorsForProvider("mock")
	require.NoError(t, err)
	assert.NotNil(t, c.llm)
	assert.NotNil(t, c.evaluator)
	assert.NotNil(t, c.solver)
	assert.NotNil(t, c.tasks)

	c, err = collaboratorsForProvider("")
	require.NoError(t, err)
	assert.NotNil(t, c.llm)
}

// TestCollaboratorsForProviderUnknownNameErrors checks that real provider
// HTTP clients are refused rather than silently falling back to the mock,
// since spec.md §1 scopes them out entirely.
func TestCollaboratorsForProviderUnknownNameErrors(t *testing.T) {
	_, err := collaboratorsForProvider("openai")
	assert.Error(t, err)
}

func TestNewRootCommandRegistersRunAblationAndBenchmark(t *testing.T) {
	log := zap.NewNop().Sugar()
	root := newRootCommand(log)

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"run", "ablation", "benchmark"}, names)
}

func TestNewRootCommandDefaultFlags(t *testing.T) {
	log := zap.NewNop().Sugar()
	root := newRootCommand(log)

	configFlag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "config.yaml", configFlag.DefValue)

	batchesFlag := root.PersistentFlags().Lookup("batches-per-day")
	require.NotNil(t, batchesFlag)
	assert.Equal(t, "48", batchesFlag.DefValue)
}

func TestBenchmarkCommandRequiresExactlyTwoArgs(t *testing.T) {
	log := zap.NewNop().Sugar()
	root := newRootCommand(log)
	root.SetArgs([]string{"benchmark", "mock"})
	root.SetOut(nopWriter{})
	root.SetErr(nopWriter{})

	err := root.Execute()
	assert.Error(t, err)
}

func TestCoreOptionsCarriesFlagsThrough(t *testing.T) {
	flags := &rootFlags{
		configPath:         "c.yaml",
		circadianStatePath: "circ.json",
		schedulerStatePath: "sched.json",
		seed:               7,
		batchesPerDay:      12,
	}
	log := zap.NewNop().Sugar()
	opts := coreOptions(flags, log, defaultCollaborators())

	assert.Equal(t, "c.yaml", opts.ConfigPath)
	assert.Equal(t, "circ.json", opts.CircadianStatePath)
	assert.Equal(t, "sched.json", opts.SchedulerStatePath)
	assert.Equal(t, int64(7), opts.Seed)
	assert.Equal(t, 12, opts.BatchesPerDay)
	assert.NotNil(t, opts.LLM)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
