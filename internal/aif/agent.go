// Package aif implements the discrete active-inference agent of spec.md
// §4.2: variational belief update, expected-free-energy action selection,
// and preference learning. Belief matrices are gonum mat types; column
// normalisation uses ScaleVec, while NaN checks and EMA updates are plain
// element loops.
package aif

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"
)

const (
	preferenceLearningRate = 0.05 // η in spec.md §4.2 "Preference update"
	priorEMAWeight         = 0.1  // the 0.1 in "prior <- 0.9*prior + 0.1*posterior"
	minExploration         = 0.15
	maxExploration         = 0.8
	explorationDecaySolved = 0.993
	explorationGrowFailed  = 1.008
	surpriseEpsilon        = 1e-9
)

// Agent is the discrete POMDP of spec.md §4.2: states, observations,
// actions, a variational belief over states, and a minimal generative
// model (an action→observation association map) used for expected
// free-energy action selection.
type Agent struct {
	mu sync.Mutex

	numStates      int
	numObservations int
	numActions     int

	prior      *mat.VecDense // state_prior, length numStates
	likelihood *mat.Dense    // numObservations x numStates, rows sum to 1
	preference *mat.VecDense // length numObservations, in [-5,5]

	// actionObsMap[a] is the observation action a is associated with
	// pursuing — the agent's minimal generative model (spec.md §4.2
	// "Action selection").
	actionObsMap []int

	explorationWeight float64
	lastSurprise       float64
	rng                *rand.Rand
}

// Config seeds an Agent's dimensions and generative model.
type Config struct {
	NumStates       int
	NumObservations int
	NumActions      int
	// ActionObsMap maps each action index to the observation it tends to
	// produce. Len must equal NumActions; if nil, actions are mapped
	// round-robin over observations.
	ActionObsMap []int
	Seed         int64
}

// New constructs an Agent with a uniform prior, a uniform-row likelihood,
// and zeroed preferences.
func New(cfg Config) *Agent {
	prior := mat.NewVecDense(cfg.NumStates, nil)
	uniform := 1.0 / float64(cfg.NumStates)
	for i := 0; i < cfg.NumStates; i++ {
		prior.SetVec(i, uniform)
	}

	likelihood := mat.NewDense(cfg.NumObservations, cfg.NumStates, nil)
	rowUniform := 1.0 / float64(cfg.NumStates)
	for o := 0; o < cfg.NumObservations; o++ {
		for s := 0; s < cfg.NumStates; s++ {
			likelihood.Set(o, s, rowUniform)
		}
	}

	preference := mat.NewVecDense(cfg.NumObservations, nil)

	actionObsMap := cfg.ActionObsMap
	if actionObsMap == nil {
		actionObsMap = make([]int, cfg.NumActions)
		for a := range actionObsMap {
			actionObsMap[a] = a % cfg.NumObservations
		}
	}

	return &Agent{
		numStates:         cfg.NumStates,
		numObservations:   cfg.NumObservations,
		numActions:        cfg.NumActions,
		prior:             prior,
		likelihood:        likelihood,
		preference:        preference,
		actionObsMap:      actionObsMap,
		explorationWeight: 0.4,
		rng:               rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Step computes the posterior for observation o, folds it into the prior
// via EMA, records the surprise, and returns the selected action index
// (spec.md §4.2 Contract).
func (a *Agent) Step(o int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.updateBelief(o)
	return a.selectAction()
}

// updateBelief implements spec.md §4.2 "Belief update": posterior ∝
// likelihood[o,:] · prior (elementwise), normalised; prior ← 0.9*prior +
// 0.1*posterior; surprise = -log max(eps, Σ posterior[s]*likelihood[o,s]).
func (a *Agent) updateBelief(o int) {
	posterior := mat.NewVecDense(a.numStates, nil)
	var sum float64
	for s := 0; s < a.numStates; s++ {
		v := a.likelihood.At(o, s) * a.prior.AtVec(s)
		posterior.SetVec(s, v)
		sum += v
	}
	if sum < 1e-12 || math.IsNaN(sum) {
		a.reinitialiseUniform()
		posterior = a.prior
		sum = 1
	} else {
		posterior.ScaleVec(1/sum, posterior)
	}

	newPrior := mat.NewVecDense(a.numStates, nil)
	for s := 0; s < a.numStates; s++ {
		v := 0.9*a.prior.AtVec(s) + priorEMAWeight*posterior.AtVec(s)
		if math.IsNaN(v) {
			a.reinitialiseUniform()
			return
		}
		newPrior.SetVec(s, v)
	}
	a.prior = newPrior

	var evidence float64
	for s := 0; s < a.numStates; s++ {
		evidence += posterior.AtVec(s) * a.likelihood.At(o, s)
	}
	a.lastSurprise = -math.Log(math.Max(surpriseEpsilon, evidence))
}

// reinitialiseUniform resets the prior to uniform on NaN (spec.md §4.2/§7
// "Belief NaN: Reinitialise prior to uniform, emit diagnostic" — the
// diagnostic emission is the caller's responsibility via Core's logger).
func (a *Agent) reinitialiseUniform() {
	uniform := 1.0 / float64(a.numStates)
	for s := 0; s < a.numStates; s++ {
		a.prior.SetVec(s, uniform)
	}
}

// selectAction runs expected-free-energy selection over all actions, mixed
// with uniform exploration weighted by exploration_weight, then samples
// (spec.md §4.2 "Action selection").
func (a *Agent) selectAction() int {
	efe := make([]float64, a.numActions)
	for act := 0; act < a.numActions; act++ {
		efe[act] = a.expectedFreeEnergy(act)
	}

	// Softmax over -EFE, temperature 1.
	probs := make([]float64, a.numActions)
	maxNegEFE := math.Inf(-1)
	for _, e := range efe {
		if -e > maxNegEFE {
			maxNegEFE = -e
		}
	}
	var z float64
	for i, e := range efe {
		probs[i] = math.Exp(-e - maxNegEFE)
		z += probs[i]
	}
	for i := range probs {
		probs[i] /= z
	}

	// Mix with uniform exploration.
	uniform := 1.0 / float64(a.numActions)
	for i := range probs {
		probs[i] = (1-a.explorationWeight)*probs[i] + a.explorationWeight*uniform
	}

	return sample(a.rng, probs)
}

// expectedFreeEnergy estimates EFE(a) = -E[log preference(o|a)] - weighted
// epistemic gain, using the minimal generative model where action a tends
// to lead to actionObsMap[a] (spec.md §4.2).
func (a *Agent) expectedFreeEnergy(action int) float64 {
	predictedObs := a.actionObsMap[action]
	pragmatic := -a.preference.AtVec(predictedObs)

	// Epistemic gain: how much the predicted observation's likelihood row
	// diverges from uniform (a crude entropy-reduction proxy) — more
	// divergence means observing it is more informative about the hidden
	// state.
	var entropy float64
	for s := 0; s < a.numStates; s++ {
		p := a.likelihood.At(predictedObs, s)
		if p > 1e-12 {
			entropy -= p * math.Log(p)
		}
	}
	maxEntropy := math.Log(float64(a.numStates))
	epistemic := maxEntropy - entropy // higher = more informative

	return pragmatic - a.explorationWeight*epistemic
}

func sample(rng *rand.Rand, probs []float64) int {
	r := rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if r <= cum {
			return i
		}
	}
	return len(probs) - 1
}

// GetSurprise returns the Shannon surprise of the most recent observation
// under the prior (spec.md §4.2 Contract).
func (a *Agent) GetSurprise() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSurprise
}

// ExplorationWeight returns the current exploration weight.
func (a *Agent) ExplorationWeight() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.explorationWeight
}

// UpdatePreferences nudges preference[o] toward reward (spec.md §4.2
// "Preference update": preference[o] <- clamp(preference[o] + η*reward,
// -5, 5)), then applies the exploration dynamics of §4.2 based on whether
// the observation represents a solved or failed attempt.
func (a *Agent) UpdatePreferences(o int, reward float64, solved bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := a.preference.AtVec(o) + preferenceLearningRate*reward
	v = math.Max(-5, math.Min(5, v))
	a.preference.SetVec(o, v)

	if solved {
		a.explorationWeight = math.Max(minExploration, a.explorationWeight*explorationDecaySolved)
	} else {
		a.explorationWeight = math.Min(maxExploration, a.explorationWeight*explorationGrowFailed)
	}
}

// LearnAssociation reinforces the action→observation generative model by
// setting actionObsMap[a] toward observation o when o follows choosing a
// repeatedly — used by the executor to let AIF's strategy choice adapt to
// which strategy actually tends to solve which observation class.
func (a *Agent) LearnAssociation(action, observation int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if action >= 0 && action < len(a.actionObsMap) {
		a.actionObsMap[action] = observation
	}
}
