package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadMissingFileProceedsWithAllModulesEnabled checks spec.md §7:
// "Config read error ... Proceed with all modules enabled".
func TestLoadMissingFileProceedsWithAllModulesEnabled(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(filepath.Join(dir, "does-not-exist.yaml"))

	require.Error(t, err)
	require.NotNil(t, c)
	assert.Equal(t, DefaultToggles(), c.Toggles())
	assert.Equal(t, 3, c.MaxAttempts)
}

func TestLoadEmptyPathProceedsWithDefaults(t *testing.T) {
	c, err := Load("")
	require.Error(t, err)
	assert.Equal(t, DefaultToggles(), c.Toggles())
}

func TestLoadParsesTogglesAndScalarsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
hdc: true
aif: false
ebbinghaus: true
gut: false
emotions: true
stm: true
symbolic_regression: false
cross_domain: false
reflection: true
max_attempts: 5
hard_difficulty_threshold: 9
llm_timeout_ms: 45000
evaluator_timeout_ms: 20000
decay_threshold: 0.05
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	toggles := c.Toggles()
	assert.True(t, toggles.HDC)
	assert.False(t, toggles.AIF)
	assert.False(t, toggles.Gut)
	assert.False(t, toggles.SymbolicRegression)
	assert.False(t, toggles.CrossDomain)
	assert.True(t, toggles.Reflection)

	assert.Equal(t, 5, c.MaxAttempts)
	assert.Equal(t, 9, c.HardDifficulty)
	assert.Equal(t, 45_000, c.LLMTimeoutMS)
	assert.Equal(t, 20_000, c.EvaluatorTimeout)
	assert.InDelta(t, 0.05, c.DecayThreshold, 1e-9)
}

func TestLoadMalformedYAMLReturnsErrorWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	c, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, DefaultToggles(), c.Toggles())
}

func TestReloadWithEmptyPathIsNoop(t *testing.T) {
	c, err := Load("")
	require.Error(t, err)
	assert.NoError(t, c.Reload())
	assert.Equal(t, DefaultToggles(), c.Toggles())
}

// TestReloadPicksUpChangesWrittenAfterInitialLoad checks spec.md §6:
// toggles are re-read at each solve boundary.
func TestReloadPicksUpChangesWrittenAfterInitialLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aif: true\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.Toggles().AIF)

	require.NoError(t, os.WriteFile(path, []byte("aif: false\n"), 0o644))
	require.NoError(t, c.Reload())
	assert.False(t, c.Toggles().AIF)
}

// TestReloadErrorLeavesPreviousStateUntouched checks spec.md §7: a reload
// failure keeps in-memory toggles authoritative rather than reverting to
// library defaults.
func TestReloadErrorLeavesPreviousStateUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aif: false\nmax_attempts: 7\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.False(t, c.Toggles().AIF)
	assert.Equal(t, 7, c.MaxAttempts)

	require.NoError(t, os.Remove(path))
	assert.Error(t, c.Reload())

	assert.False(t, c.Toggles().AIF)
	assert.Equal(t, 7, c.MaxAttempts)
}
