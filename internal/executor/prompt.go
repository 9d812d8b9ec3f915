package executor

import (
	"fmt"
	"strings"

	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
)

// knownHardCategories carries template hints for tasks historically prone
// to off-by-one and state-transition bugs (spec.md §4.4 step 9.c: "e.g.
// knapsack, edit distance").
var knownHardCategories = map[string]string{
	"knapsack":      "Classic 0/1 knapsack: build a DP table dp[i][w]; remember capacity w can be 0.",
	"edit distance": "Levenshtein DP: dp[i][0]=i, dp[0][j]=j; consider substitution cost carefully.",
	"edit_distance": "Levenshtein DP: dp[i][0]=i, dp[0][j]=j; consider substitution cost carefully.",
}

// promptInputs carries everything the prompt builder needs (spec.md §4.4
// step 9.c).
type promptInputs struct {
	Task             evaluator.Task
	Strategy         string
	AttemptNum       int
	Cautious         bool
	MemorySnippets   []string
	ReflectionHints  []string
	ExtraContext     []string // symbolic-regression/cross-domain context, when enabled
}

// buildPrompt assembles the S2 generation prompt (spec.md §4.4 step 9.c).
func buildPrompt(in promptInputs) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TASK: %s\n\n", in.Task.Description)

	maxCases := 5
	if in.Cautious {
		maxCases = len(in.Task.TestCases)
	}
	cases := in.Task.TestCases
	if len(cases) > maxCases {
		cases = cases[:maxCases]
	}
	if len(cases) > 0 {
		b.WriteString("TEST CASES:\n")
		for i, tc := range cases {
			fmt.Fprintf(&b, "  %d. input: %q -> expected: %q\n", i+1, tc.Input, tc.Expected)
		}
		b.WriteString("\n")
	}

	if in.Strategy == StrategyFromMemory && len(in.MemorySnippets) > 0 {
		b.WriteString("SIMILAR SOLVED SNIPPETS:\n")
		for _, s := range in.MemorySnippets {
			fmt.Fprintf(&b, "```python\n%s\n```\n", s)
		}
		b.WriteString("\n")
	}

	if len(in.ReflectionHints) > 0 {
		b.WriteString("HINTS FROM PRIOR ATTEMPTS:\n")
		for _, h := range in.ReflectionHints {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
		b.WriteString("\n")
	}

	key := strings.ToLower(in.Task.Category + " " + in.Task.Title)
	for name, hint := range knownHardCategories {
		if strings.Contains(key, name) {
			fmt.Fprintf(&b, "TEMPLATE HINT: %s\n\n", hint)
		}
	}

	for _, ctx := range in.ExtraContext {
		fmt.Fprintf(&b, "ADDITIONAL CONTEXT: %s\n\n", ctx)
	}

	switch in.Strategy {
	case StrategyStepByStep:
		b.WriteString("Work through the problem step by step before writing code. ")
	case StrategyWithHints:
		b.WriteString("Pay close attention to the hints and test cases above. ")
	case StrategyDirect:
		b.WriteString("Write a direct, minimal solution. ")
	}

	b.WriteString("Respond with a single fenced ```python``` code block containing a complete solution that reads from stdin and prints the answer.")

	return b.String()
}

// temperatureFor implements spec.md §4.4 step 9.d: clamp(0.1, base_temp +
// emotion_delta + 0.15*attempt_num, 0.9).
func temperatureFor(baseTemp, emotionDelta float64, attemptNum int) float64 {
	t := baseTemp + emotionDelta + 0.15*float64(attemptNum)
	if t < 0.1 {
		return 0.1
	}
	if t > 0.9 {
		return 0.9
	}
	return t
}

// baseTemperatureFor varies base temperature by gut recommendation (spec.md
// §4.4 step 9.d: "base_temp varies by gut recommendation").
func baseTemperatureFor(recommendation string) float64 {
	switch recommendation {
	case "confident":
		return 0.2
	case "cautious":
		return 0.5
	default:
		return 0.35
	}
}
