// Package config holds the single persistent toggle record described in
// spec.md §6. Toggles are re-read at the start of each solve so an operator
// can disable a cognitive subsystem without restarting the process.
package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Toggles enables or disables one cognitive subsystem. All default to true.
type Toggles struct {
	HDC               bool `yaml:"hdc"`
	AIF               bool `yaml:"aif"`
	Ebbinghaus        bool `yaml:"ebbinghaus"`
	Gut               bool `yaml:"gut"`
	Emotions          bool `yaml:"emotions"`
	STM               bool `yaml:"stm"`
	SymbolicRegression bool `yaml:"symbolic_regression"`
	CrossDomain       bool `yaml:"cross_domain"`
	Reflection        bool `yaml:"reflection"`
}

// DefaultToggles returns every module enabled, the fallback state used when
// the config file is missing or unreadable (spec.md §7: "Config read error
// ... Proceed with all modules enabled").
func DefaultToggles() Toggles {
	return Toggles{
		HDC:                true,
		AIF:                true,
		Ebbinghaus:         true,
		Gut:                true,
		Emotions:           true,
		STM:                true,
		SymbolicRegression: true,
		CrossDomain:        true,
		Reflection:         true,
	}
}

// Config is the persistent record passed by reference into the Core and
// re-read at each solve boundary.
type Config struct {
	mu      sync.RWMutex
	path    string
	toggles Toggles

	MaxAttempts      int     `yaml:"max_attempts"`
	HardDifficulty   int     `yaml:"hard_difficulty_threshold"`
	LLMTimeoutMS     int     `yaml:"llm_timeout_ms"`
	EvaluatorTimeout int     `yaml:"evaluator_timeout_ms"`
	DecayThreshold   float64 `yaml:"decay_threshold"`
}

// Load reads a YAML config from path. On any error it returns a Config with
// every module enabled and the reference defaults, per the Config read
// error policy; the error is returned for the caller to log, not to abort
// startup with.
func Load(path string) (*Config, error) {
	c := &Config{
		path:             path,
		toggles:          DefaultToggles(),
		MaxAttempts:      3,
		HardDifficulty:   7,
		LLMTimeoutMS:     30_000,
		EvaluatorTimeout: 15_000,
		DecayThreshold:   0.02,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	var onDisk struct {
		Toggles          Toggles `yaml:",inline"`
		MaxAttempts      int     `yaml:"max_attempts"`
		HardDifficulty   int     `yaml:"hard_difficulty_threshold"`
		LLMTimeoutMS     int     `yaml:"llm_timeout_ms"`
		EvaluatorTimeout int     `yaml:"evaluator_timeout_ms"`
		DecayThreshold   float64 `yaml:"decay_threshold"`
	}
	onDisk.Toggles = c.toggles
	onDisk.MaxAttempts = c.MaxAttempts
	onDisk.HardDifficulty = c.HardDifficulty
	onDisk.LLMTimeoutMS = c.LLMTimeoutMS
	onDisk.EvaluatorTimeout = c.EvaluatorTimeout
	onDisk.DecayThreshold = c.DecayThreshold

	if err := yaml.Unmarshal(raw, &onDisk); err != nil {
		return c, err
	}

	c.toggles = onDisk.Toggles
	c.MaxAttempts = onDisk.MaxAttempts
	c.HardDifficulty = onDisk.HardDifficulty
	c.LLMTimeoutMS = onDisk.LLMTimeoutMS
	c.EvaluatorTimeout = onDisk.EvaluatorTimeout
	c.DecayThreshold = onDisk.DecayThreshold
	return c, nil
}

// Reload re-reads the config file in place. Called at each solve boundary
// per spec.md §6. Errors leave the previous toggles untouched (in-memory
// state remains authoritative, per spec.md §7).
func (c *Config) Reload() error {
	if c.path == "" {
		return nil
	}
	fresh, err := Load(c.path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.toggles = fresh.toggles
	c.MaxAttempts = fresh.MaxAttempts
	c.HardDifficulty = fresh.HardDifficulty
	c.LLMTimeoutMS = fresh.LLMTimeoutMS
	c.EvaluatorTimeout = fresh.EvaluatorTimeout
	c.DecayThreshold = fresh.DecayThreshold
	c.mu.Unlock()
	return nil
}

// Toggles returns a copy of the current module toggles.
func (c *Config) Toggles() Toggles {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.toggles
}
