package aif

// Strategy selection constants (spec.md §4.2 "Strategies" and the
// executor's §4.4 step 5 "AIF strategy selection"). Observations are
// difficulty bands; actions are executor strategies.
const (
	ObsEasy = iota
	ObsMedium
	ObsHard
	numObservationBands
)

const (
	ActionDirect = iota
	ActionDecompose
	ActionAnalogical
	ActionExploratory
	numStrategyActions
)

// ObservationForDifficulty buckets a 1-10 difficulty rating into the
// coarse band AIF reasons over.
func ObservationForDifficulty(difficulty int) int {
	switch {
	case difficulty <= 3:
		return ObsEasy
	case difficulty <= 7:
		return ObsMedium
	default:
		return ObsHard
	}
}

// StrategyName renders an action index as the prompt-facing strategy
// label the executor embeds in its generation prompt.
func StrategyName(action int) string {
	switch action {
	case ActionDirect:
		return "direct"
	case ActionDecompose:
		return "decompose"
	case ActionAnalogical:
		return "analogical"
	case ActionExploratory:
		return "exploratory"
	default:
		return "direct"
	}
}

// NewCodingAgent builds the Agent sized for the executor's three
// difficulty-band observations and four generation strategies, with
// actions seeded round-robin over bands until experience reshapes the
// association map via LearnAssociation.
func NewCodingAgent(seed int64) *Agent {
	return New(Config{
		NumStates:       numObservationBands,
		NumObservations: numObservationBands,
		NumActions:      numStrategyActions,
		Seed:            seed,
	})
}
