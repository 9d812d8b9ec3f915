// Package circadian implements the batch-advancing clock and sleep
// consolidation loop of spec.md §4.6: phase as a pure function of batch
// progress, fatigue accumulation, and NREM/REM memory consolidation.
// Grounded on the teacher's phase/cycle/step state machine in
// echobeats_scheduler.go (CognitivePhase, cycleCount, currentStep).
package circadian

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/frankenstein-ai/cognitive-core/internal/episodic"
)

// Phase is one of the eight partitions of a day's batch progress
// (spec.md §3 "Circadian State").
type Phase string

const (
	Dawn         Phase = "dawn"
	MorningPeak  Phase = "morning_peak"
	Midday       Phase = "midday"
	AfternoonDip Phase = "afternoon_dip"
	SecondWind   Phase = "second_wind"
	Evening      Phase = "evening"
	WindDown     Phase = "wind_down"
	Sleep        Phase = "sleep"
)

// phaseBoundaries partitions [0,1) exactly (spec.md §3 invariant),
// ordered by upper bound.
var phaseBoundaries = []struct {
	upper float64
	phase Phase
}{
	{0.08, Dawn},
	{0.25, MorningPeak},
	{0.45, Midday},
	{0.58, AfternoonDip},
	{0.75, SecondWind},
	{0.88, Evening},
	{0.96, WindDown},
	{1.00, Sleep},
}

// PhaseFor returns the phase for a given batch progress fraction in
// [0,1).
func PhaseFor(progress float64) Phase {
	for _, b := range phaseBoundaries {
		if progress < b.upper {
			return b.phase
		}
	}
	return Sleep
}

const (
	fatigueCostPerBatch = 0.02
	fatigueDayReset     = 0.10
)

// Modifiers are the additive nudges each phase exposes to the executor
// (spec.md §4.6 "Modifiers exposed to the executor").
type Modifiers struct {
	DifficultyPreference float64 // -3..+2
	ExplorationModifier  float64
	TemperatureModifier  float64
}

var phaseModifiers = map[Phase]Modifiers{
	Dawn:         {DifficultyPreference: -2, ExplorationModifier: -0.10, TemperatureModifier: -0.05},
	MorningPeak:  {DifficultyPreference: 2, ExplorationModifier: 0.10, TemperatureModifier: 0.05},
	Midday:       {DifficultyPreference: 1, ExplorationModifier: 0.05, TemperatureModifier: 0.0},
	AfternoonDip: {DifficultyPreference: -3, ExplorationModifier: -0.15, TemperatureModifier: -0.10},
	SecondWind:   {DifficultyPreference: 1, ExplorationModifier: 0.05, TemperatureModifier: 0.05},
	Evening:      {DifficultyPreference: 0, ExplorationModifier: 0.0, TemperatureModifier: 0.0},
	WindDown:     {DifficultyPreference: -2, ExplorationModifier: -0.10, TemperatureModifier: -0.05},
	Sleep:        {DifficultyPreference: -3, ExplorationModifier: -0.20, TemperatureModifier: -0.10},
}

// State is the derived view returned by GetState (spec.md §3 "Circadian
// State").
type State struct {
	BatchInDay     int
	DayNumber      int
	Fatigue        float64
	Phase          Phase
	SubjectiveTime float64 // batch_in_day / batches_per_day
}

// Clock owns batch/day progress and fatigue (spec.md §4.6 Contract).
type Clock struct {
	mu sync.Mutex

	batchesPerDay int
	batchInDay    int
	dayNumber     int
	fatigue       float64
	totalBatches  int
	phaseStats    map[Phase]int

	path string
	rng  *rand.Rand
	log  *zap.SugaredLogger
}

// Config seeds a Clock.
type Config struct {
	BatchesPerDay int
	Seed          int64
	Path          string // circadian state file (spec.md §6 persistence)
	Log           *zap.SugaredLogger
}

// New returns a Clock starting at batch 0 of day 0, fatigue 0.1, loading
// prior state from cfg.Path if present (spec.md §6 persistence convention:
// best-effort, never fatal).
func New(cfg Config) *Clock {
	batches := cfg.BatchesPerDay
	if batches <= 0 {
		batches = 48
	}
	c := &Clock{
		batchesPerDay: batches,
		fatigue:       fatigueDayReset,
		phaseStats:    make(map[Phase]int),
		path:          cfg.Path,
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		log:           cfg.Log,
	}
	c.load()
	return c
}

// AdvanceBatch moves the clock forward one batch and returns the
// resulting derived state (spec.md §4.6 "advance_batch(events, solved,
// time_ms) → CircadianState"). events and timeMS are accepted for
// interface-compatibility with callers that log batch telemetry; solved
// marks whether the batch ended in a successful solve.
func (c *Clock) AdvanceBatch(events int, solved bool, timeMS float64) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batchInDay++
	c.totalBatches++
	c.fatigue = math.Min(1.0, c.fatigue+fatigueCostPerBatch)

	if c.batchInDay >= c.batchesPerDay {
		c.batchInDay = 0
		c.dayNumber++
		c.fatigue = fatigueDayReset
	}

	state := c.stateLocked()
	c.phaseStats[state.Phase]++
	c.save()
	return state
}

// GetState returns the current derived view without advancing.
func (c *Clock) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Clock) stateLocked() State {
	progress := float64(c.batchInDay) / float64(c.batchesPerDay)
	return State{
		BatchInDay:     c.batchInDay,
		DayNumber:      c.dayNumber,
		Fatigue:        c.fatigue,
		Phase:          PhaseFor(progress),
		SubjectiveTime: progress,
	}
}

// IsSleepTime is true iff the current phase is Sleep (spec.md §4.6).
func (c *Clock) IsSleepTime() bool {
	return c.GetState().Phase == Sleep
}

// PhaseModifiers returns the additive nudges for the current phase
// (spec.md §4.6 "Modifiers exposed to the executor").
func (c *Clock) PhaseModifiers() Modifiers {
	return phaseModifiers[c.GetState().Phase]
}

// ConceptCode is the minimal view of a concept's attached solved code a
// REM dream pass needs to assess coherence (spec.md §4.6 "REM dreams:
// coherence from whether both concepts have attached code").
type ConceptCode struct {
	Name     string
	HasCode  bool
	Prototype []float64 // dense hypervector view, for novelty's cosine dissimilarity
}

// DreamPair is one REM-generated concept pairing.
type DreamPair struct {
	ConceptA        string
	ConceptB        string
	Novelty         float64
	Coherence       float64
	InsightPotential float64
}

const (
	cyclesPerNight        = 4
	consolidationStrength = 0.5
	remIntensity          = 0.6
	insightThreshold      = 0.6
)

// RunSleepCycle performs cyclesPerNight NREM+REM passes over the given
// memory and concept catalogue (spec.md §4.6 "Sleep cycle"). It returns
// every insight-worthy dream pair accumulated across all cycles.
func (c *Clock) RunSleepCycle(ctx context.Context, mem *episodic.Memory, concepts []ConceptCode) ([]DreamPair, error) {
	var insights []DreamPair
	for cycle := 0; cycle < cyclesPerNight; cycle++ {
		if err := c.nremPass(ctx, mem); err != nil {
			return insights, err
		}
		insights = append(insights, c.remPass(concepts)...)
	}
	if c.log != nil {
		c.log.Infow("sleep cycle complete", "cycles", cyclesPerNight, "insights", len(insights))
	}
	return insights, nil
}

// nremPass implements spec.md §4.6 "NREM consolidation": recompute
// importance for every stored record and strengthen, weaken, or delete
// it accordingly.
func (c *Clock) nremPass(ctx context.Context, mem *episodic.Memory) error {
	records, err := mem.All(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		score := toFloat(r.Metadata["score"], 0)
		accessCount := toFloat(r.Metadata["access_count"], 0)
		importance := 0.6*score + 0.4*math.Min(accessCount, 10)/10

		switch {
		case importance > 0.5:
			newStrength := r.Strength * (1 + consolidationStrength*importance*0.3)
			mem.BumpStrength(ctx, r.ID, newStrength)
		case importance < 0.2 && r.Strength < 2:
			newStrength := r.Strength * 0.7
			if newStrength < 0.1 {
				mem.Delete(ctx, []string{r.ID})
			} else {
				mem.BumpStrength(ctx, r.ID, newStrength)
			}
		}
	}
	return nil
}

// remPass implements spec.md §4.6 "REM dreams": random concept pairing,
// novelty from cosine dissimilarity, coherence from attached-code
// presence, yielding up to remIntensity*10 pairs.
func (c *Clock) remPass(concepts []ConceptCode) []DreamPair {
	if len(concepts) < 2 {
		return nil
	}
	maxPairs := int(remIntensity * 10)
	var pairs []DreamPair
	for i := 0; i < maxPairs; i++ {
		a := concepts[c.rng.Intn(len(concepts))]
		b := concepts[c.rng.Intn(len(concepts))]
		if a.Name == b.Name {
			continue
		}
		novelty := 1 - cosine(a.Prototype, b.Prototype)
		coherence := 0.0
		if a.HasCode && b.HasCode {
			coherence = 1.0
		} else if a.HasCode || b.HasCode {
			coherence = 0.5
		}
		insight := novelty*0.6 + coherence*0.4
		pairs = append(pairs, DreamPair{
			ConceptA:         a.Name,
			ConceptB:         b.Name,
			Novelty:          novelty,
			Coherence:        coherence,
			InsightPotential: insight,
		})
	}

	var insights []DreamPair
	for _, p := range pairs {
		if p.InsightPotential > insightThreshold {
			insights = append(insights, p)
		}
	}
	return insights
}

// persistedState is the circadian state file of spec.md §6: one JSON with
// `{batch_in_day, day_number, fatigue, subjective_time, total_batches,
// phase_stats}`.
type persistedState struct {
	BatchInDay     int            `json:"batch_in_day"`
	DayNumber      int            `json:"day_number"`
	Fatigue        float64        `json:"fatigue"`
	SubjectiveTime float64        `json:"subjective_time"`
	TotalBatches   int            `json:"total_batches"`
	PhaseStats     map[Phase]int  `json:"phase_stats"`
}

func (c *Clock) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return
	}
	c.batchInDay = state.BatchInDay
	c.dayNumber = state.DayNumber
	c.fatigue = state.Fatigue
	c.totalBatches = state.TotalBatches
	if state.PhaseStats != nil {
		c.phaseStats = state.PhaseStats
	}
}

// save persists state best-effort (spec.md §7 "Persistence write error:
// Warn; in-memory state remains authoritative").
func (c *Clock) save() {
	if c.path == "" {
		return
	}
	derived := c.stateLocked()
	state := persistedState{
		BatchInDay:     derived.BatchInDay,
		DayNumber:      derived.DayNumber,
		Fatigue:        derived.Fatigue,
		SubjectiveTime: derived.SubjectiveTime,
		TotalBatches:   c.totalBatches,
		PhaseStats:     c.phaseStats,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		if c.log != nil {
			c.log.Warnw("circadian state marshal failed", "error", err)
		}
		return
	}
	if dir := filepath.Dir(c.path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil && c.log != nil {
		c.log.Warnw("circadian state write failed", "error", err)
	}
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func toFloat(v any, def float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return def
	}
}
