// Package gutfeeling implements the somatic-marker signal aggregator of
// spec.md §4.7: a fast pre-LLM "gut feeling" assembled from HDC, track
// record, momentum, complexity, memory-strength, and AIF-energy signals.
// Grounded on original_source/frankenstein-ai/gut_feeling.py (docstring
// only; bodies reconstructed from spec.md's explicit formulas) and on
// the teacher's rolling-window idioms in echobeats_scheduler.go.
package gutfeeling

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Recommendation is the aggregator's verdict fed into the executor's
// strategy/attempt decisions (spec.md §4.7).
type Recommendation string

const (
	Confident Recommendation = "confident"
	Cautious  Recommendation = "cautious"
	Uncertain Recommendation = "uncertain"
)

const (
	confidentValenceThreshold = 0.25
	cautiousValenceThreshold  = -0.25
	minConfidence             = 0.4

	calibrationWindow = 20
	lowAccuracy       = 0.60
	highAccuracy       = 0.80
	weightStep         = 0.03
	minWeight          = 0.02
)

// Signal is one named contributor to the gut feeling (spec.md §3 "Gut
// Signal").
type Signal struct {
	Name   string
	Value  float64 // clipped to [-1, +1]
	Weight float64 // in [0, 1]
	Source string
}

// Result bundles the signals plus the aggregate verdict (spec.md §3
// "GutResult").
type Result struct {
	Signals        []Signal
	Valence        float64
	Confidence     float64
	Recommendation Recommendation
}

// outcome is one entry in the rolling calibration window: the valence
// this aggregator predicted, and whether the attempt actually solved.
type outcome struct {
	valence float64
	solved  bool
}

// Aggregator holds the self-calibrating signal weights and the rolling
// prediction-accuracy window (spec.md §4.7 "Weights are self-calibrating").
type Aggregator struct {
	mu      sync.Mutex
	weights map[string]float64
	window  []outcome
}

const (
	sigFamiliarity   = "familiarity"
	sigTrackRecord   = "track_record"
	sigMomentum      = "momentum"
	sigComplexity    = "complexity"
	sigMemoryStrength = "memory_strength"
	sigEnergy        = "energy"
)

// New returns an Aggregator with the reference equal-weighting split
// across the six named signals.
func New() *Aggregator {
	w := map[string]float64{
		sigFamiliarity:    1.0 / 6,
		sigTrackRecord:    1.0 / 6,
		sigMomentum:       1.0 / 6,
		sigComplexity:     1.0 / 6,
		sigMemoryStrength: 1.0 / 6,
		sigEnergy:         1.0 / 6,
	}
	return &Aggregator{weights: w}
}

// Inputs carries the raw, signal-specific observations the executor has
// on hand before an S2 generation attempt (spec.md §4.7 bullet list).
type Inputs struct {
	HDCConfidence    float64 // cosine similarity of best concept match
	IsNewPattern     bool
	CategorySolveRate float64 // Bayesian-smoothed solve rate for this category/difficulty
	RecentScoresEWMA float64 // exponentially weighted recent scores, [0,1]
	CurrentStreak    int     // consecutive successes (negative for consecutive failures)
	KeywordCount     int
	Difficulty       int
	BestRetention    float64 // from recalled episodic records
	RecallSuccessRatio float64
	AIFSurprise      float64
	ExplorationWeight float64
}

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Evaluate computes the six signal values from raw inputs, aggregates
// them with the current calibrated weights, and returns the full Result
// (spec.md §4.7 "Aggregate").
func (a *Aggregator) Evaluate(in Inputs) Result {
	a.mu.Lock()
	weights := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		weights[k] = v
	}
	a.mu.Unlock()

	familiarity := clip(in.HDCConfidence*2 - 1)
	if in.IsNewPattern {
		familiarity = clip(familiarity - 0.3)
	}

	trackRecord := clip(bayesianSmooth(in.CategorySolveRate)*2 - 1)

	streakBonus := clip(float64(in.CurrentStreak) * 0.1)
	momentum := clip((in.RecentScoresEWMA*2 - 1) + streakBonus)

	complexityRatio := 0.0
	if in.Difficulty > 0 {
		complexityRatio = float64(in.KeywordCount) / float64(in.Difficulty)
	}
	complexity := clip(1 - complexityRatio/5) // more keywords relative to difficulty => lower complexity signal

	memoryStrength := clip(in.BestRetention*0.6 + in.RecallSuccessRatio*0.4 - 0.3)

	energy := clip(in.ExplorationWeight - in.AIFSurprise*0.3)

	signals := []Signal{
		{Name: sigFamiliarity, Value: familiarity, Weight: weights[sigFamiliarity], Source: "hdc"},
		{Name: sigTrackRecord, Value: trackRecord, Weight: weights[sigTrackRecord], Source: "history"},
		{Name: sigMomentum, Value: momentum, Weight: weights[sigMomentum], Source: "streak"},
		{Name: sigComplexity, Value: complexity, Weight: weights[sigComplexity], Source: "text"},
		{Name: sigMemoryStrength, Value: memoryStrength, Weight: weights[sigMemoryStrength], Source: "ebbinghaus"},
		{Name: sigEnergy, Value: energy, Weight: weights[sigEnergy], Source: "aif"},
	}

	var weightedSum, weightSum float64
	values := make([]float64, 0, len(signals))
	for _, s := range signals {
		weightedSum += s.Weight * s.Value
		weightSum += s.Weight
		values = append(values, s.Value)
	}
	valence := 0.0
	if weightSum > 0 {
		valence = weightedSum / weightSum
	}

	sigma := stat.StdDev(values, nil)
	confidence := 1 - sigma
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	rec := Uncertain
	switch {
	case valence > confidentValenceThreshold && confidence > minConfidence:
		rec = Confident
	case valence < cautiousValenceThreshold && confidence > minConfidence:
		rec = Cautious
	}

	return Result{Signals: signals, Valence: valence, Confidence: confidence, Recommendation: rec}
}

// bayesianSmooth applies add-one (Laplace) smoothing treating rate as an
// observed proportion, pulling sparse-sample rates toward 0.5.
func bayesianSmooth(rate float64) float64 {
	const priorWeight = 2.0
	const priorMean = 0.5
	return (rate + priorWeight*priorMean) / (1 + priorWeight)
}

// RecordOutcome appends a (predicted valence, solved) pair to the rolling
// calibration window and re-tunes weights once the window is full
// (spec.md §4.7 "Weights are self-calibrating").
func (a *Aggregator) RecordOutcome(valence float64, solved bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window = append(a.window, outcome{valence: valence, solved: solved})
	if len(a.window) > calibrationWindow {
		a.window = a.window[len(a.window)-calibrationWindow:]
	}
	if len(a.window) < calibrationWindow {
		return
	}

	var correct int
	for _, o := range a.window {
		predictedSolve := o.valence > 0
		if predictedSolve == o.solved {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(a.window))

	switch {
	case accuracy < lowAccuracy:
		a.weights[sigEnergy] += weightStep
		a.weights[sigTrackRecord] = maxf(minWeight, a.weights[sigTrackRecord]-weightStep)
	case accuracy > highAccuracy:
		a.weights[sigTrackRecord] += weightStep
		a.weights[sigEnergy] = maxf(minWeight, a.weights[sigEnergy]-weightStep)
	}
	a.renormalise()
}

func (a *Aggregator) renormalise() {
	var sum float64
	for _, w := range a.weights {
		sum += w
	}
	if sum <= 0 {
		return
	}
	for k := range a.weights {
		a.weights[k] /= sum
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Weights returns a copy of the current calibrated weights, for
// diagnostics and tests.
func (a *Aggregator) Weights() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}
