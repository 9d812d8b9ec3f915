package executor

import (
	"context"
	"time"

	"github.com/frankenstein-ai/cognitive-core/internal/aif"
	"github.com/frankenstein-ai/cognitive-core/internal/emotion"
	"github.com/frankenstein-ai/cognitive-core/internal/gutfeeling"
	"github.com/frankenstein-ai/cognitive-core/internal/hdc"
	"github.com/frankenstein-ai/cognitive-core/internal/reflection"
	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
)

const slowAttemptMS = 8_000.0

// generationLoop runs spec.md §4.4 step 9: AIF strategy selection, up to
// max_attempts + emotion-granted extra attempts of prompt-build →
// generate → extract → evaluate. Whenever reflection.ShouldReflect fires
// or an attempt took longer than slowAttemptMS, the reflection engine's
// issue descriptions are added as hints to the next attempt's prompt (not
// after the last attempt). It never raises — on exhaustion it returns the best-scoring
// attempt observed (spec.md §4.4 failure semantics).
func (ex *Executor) generationLoop(
	ctx context.Context,
	task evaluator.Task,
	hv *hdc.Hypervector,
	conceptName string,
	isNew bool,
	gut gutfeeling.Result,
	mods emotion.Modifiers,
	meta SolveMetadata,
) (string, evaluator.Result, SolveMetadata) {
	toggles := ex.deps.Config.Toggles()
	t0 := time.Now()

	maxAttempts := ex.deps.Config.MaxAttempts + mods.ExtraAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	obs := aif.ObservationForDifficulty(task.Difficulty)
	strategy := StrategyDirect
	if toggles.AIF {
		action := ex.deps.AIF.Step(obs)
		strategy = strategyFromAIFAction(action)
	}
	if mods.StrategyPreference != "" {
		strategy = mods.StrategyPreference
	}
	if gut.Recommendation == gutfeeling.Cautious && strategy == StrategyDirect {
		strategy = StrategyWithHints
	}
	strategy = ex.stats.edgeCasePromotion(strategy)

	var memorySnippets []string
	if strategy == StrategyFromMemory {
		if snippet, ok := ex.deps.Promotion.GetS1Solution(task.Category, task.Description); ok {
			memorySnippets = append(memorySnippets, snippet)
		}
	}

	var extraContext []string
	if toggles.SymbolicRegression && ex.deps.SymbolicRegression != nil {
		if c, ok := ex.deps.SymbolicRegression.Context(ctx, task); ok {
			extraContext = append(extraContext, c)
		}
	}
	if toggles.CrossDomain && ex.deps.CrossDomain != nil {
		if c, ok := ex.deps.CrossDomain.Context(ctx, task); ok {
			extraContext = append(extraContext, c)
		}
	}

	baseTemp := baseTemperatureFor(string(gut.Recommendation))

	var (
		bestCode   string
		bestResult evaluator.Result
		bestScore  = -1.0
		hints      []string
		usedReflection bool
	)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		currentStrategy := strategy
		if usedReflection {
			currentStrategy = ReflectionVariant(strategy)
		}

		prompt := buildPrompt(promptInputs{
			Task:            task,
			Strategy:        strategy,
			AttemptNum:      attempt,
			Cautious:        gut.Recommendation == gutfeeling.Cautious,
			MemorySnippets:  memorySnippets,
			ReflectionHints: hints,
			ExtraContext:    extraContext,
		})

		temp := temperatureFor(baseTemp, mods.TemperatureDelta, attempt)

		attemptStart := time.Now()
		var raw string
		var err error
		if ex.deps.LLM != nil {
			raw, err = ex.deps.LLM.Generate(ctx, prompt, temp)
		}
		attemptElapsedMS := float64(time.Since(attemptStart).Microseconds()) / 1000.0

		ex.stats.recordAttempt(currentStrategy)

		if err != nil || raw == "" {
			// spec.md §7 "LLM returns none/error: Count as a failed
			// attempt, try the next strategy/attempt."
			continue
		}

		code := ExtractCode(raw)
		result, _ := ex.evaluate(ctx, task, code)

		if result.Score > bestScore {
			bestScore, bestCode, bestResult = result.Score, code, result
		}

		if isExactPass(result) {
			meta.WinningStrategy = currentStrategy
			meta.Tier = "S2"
			meta.Attempts = attempt + 1
			meta.AIFSurprise = ex.deps.AIF.GetSurprise()
			meta.TierTimings["s2_generation"] = time.Since(t0)
			ex.onSuccess(ctx, task, hv, code, currentStrategy, result, attempt == 0 && !usedReflection, conceptName, isNew)
			if toggles.AIF {
				ex.deps.AIF.LearnAssociation(strategyToAIFAction(strategy), obs)
			}
			if toggles.Gut {
				ex.deps.Gut.RecordOutcome(gut.Valence, true)
			}
			ex.deps.Reflection.RecordFixOutcome(usedReflection)
			return code, result, meta
		}

		if toggles.Reflection && attempt+1 < maxAttempts {
			testCasesInfo := renderTestCasesInfo(task)
			if ex.deps.Reflection.ShouldReflect(attemptElapsedMS, result.Score, attempt) || attemptElapsedMS > slowAttemptMS {
				refl := ex.deps.Reflection.Reflect(code, task.Description, testCasesInfo, result.Feedback, attemptElapsedMS)
				hints = issueDescriptions(refl.Issues)
				usedReflection = refl.CritiquePrompt != ""
			}
		}
	}

	meta.Attempts = maxAttempts
	meta.Tier = "S2"
	meta.WinningStrategy = strategy
	meta.AIFSurprise = ex.deps.AIF.GetSurprise()
	meta.TierTimings["s2_generation"] = time.Since(t0)

	ex.onFailure(ctx, task, hv, strategy, bestResult, conceptName)
	if toggles.Gut {
		ex.deps.Gut.RecordOutcome(gut.Valence, false)
	}
	ex.deps.Reflection.RecordFixOutcome(false)

	return bestCode, bestResult, meta
}

func strategyFromAIFAction(action int) string {
	switch action {
	case aif.ActionDirect:
		return StrategyDirect
	case aif.ActionDecompose:
		return StrategyStepByStep
	case aif.ActionAnalogical:
		return StrategyFromMemory
	case aif.ActionExploratory:
		return StrategyWithHints
	default:
		return StrategyDirect
	}
}

func strategyToAIFAction(strategy string) int {
	switch strategy {
	case StrategyDirect:
		return aif.ActionDirect
	case StrategyStepByStep:
		return aif.ActionDecompose
	case StrategyFromMemory:
		return aif.ActionAnalogical
	case StrategyWithHints:
		return aif.ActionExploratory
	default:
		return aif.ActionDirect
	}
}

func renderTestCasesInfo(task evaluator.Task) string {
	var out string
	for i, tc := range task.TestCases {
		if i >= 5 {
			break
		}
		out += "input: " + tc.Input + " -> expected: " + tc.Expected + "\n"
	}
	return out
}

func issueDescriptions(issues []reflection.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Description)
	}
	return out
}
