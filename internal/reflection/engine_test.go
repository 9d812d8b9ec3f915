package reflection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldReflectFalseWhenFullyScored(t *testing.T) {
	e := New()
	assert.False(t, e.ShouldReflect(500, 1.0, 0))
}

func TestShouldReflectTrueWhenSlow(t *testing.T) {
	e := New()
	assert.True(t, e.ShouldReflect(slowThresholdMS+1, 0.0, 0))
}

func TestShouldReflectTrueOnSecondAttemptWithImperfectScore(t *testing.T) {
	e := New()
	assert.True(t, e.ShouldReflect(100, 0.5, 2))
}

func TestShouldReflectTrueOnPartialScore(t *testing.T) {
	e := New()
	assert.True(t, e.ShouldReflect(100, 0.4, 0))
}

func TestShouldReflectFalseOnZeroScoreFirstAttempt(t *testing.T) {
	e := New()
	assert.False(t, e.ShouldReflect(100, 0.0, 0))
}

// TestReflectFlagsMissingStdinRead checks reflection_loop.py's input
// parsing check: code with no input()/sys.stdin is a critical issue.
func TestReflectFlagsMissingStdinRead(t *testing.T) {
	e := New()
	code := "print(1 + 1)"
	result := e.Reflect(code, "add two numbers", "", "", 100)

	require.NotEmpty(t, result.Issues)
	var found bool
	for _, issue := range result.Issues {
		if issue.Category == CategoryInputParsing && issue.Severity == SeverityCritical {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotEmpty(t, result.CritiquePrompt)
}

func TestReflectFlagsMissingPrintCall(t *testing.T) {
	e := New()
	code := "a = int(input())\nb = int(input())\nresult = a + b"
	result := e.Reflect(code, "add two numbers", "", "", 100)

	var found bool
	for _, issue := range result.Issues {
		if issue.Category == CategoryOutputFormat && strings.Contains(issue.Description, "print") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReflectNoIssuesYieldsEmptyCritiquePrompt(t *testing.T) {
	e := New()
	code := "s = input()\nprint(s)"
	result := e.Reflect(code, "echo the input line back", "", "", 100)
	assert.Empty(t, result.CritiquePrompt)
	assert.Empty(t, result.Issues)
}

func TestReflectFlagsDivisionWithoutZeroCheck(t *testing.T) {
	e := New()
	code := "a = int(input())\nb = int(input())\nprint(a / b)"
	result := e.Reflect(code, "divide two numbers", "", "", 100)

	var found bool
	for _, issue := range result.Issues {
		if issue.LineHint == "division" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReflectFlagsFeedbackDrivenTimeout(t *testing.T) {
	e := New()
	code := "a = int(input())\nprint(a)"
	result := e.Reflect(code, "echo a number", "", "Timeout: exceeded time limit", 100)

	var found bool
	for _, issue := range result.Issues {
		if issue.Category == CategoryPerformance {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReflectFlagsFeedbackDrivenIndexError(t *testing.T) {
	e := New()
	code := "a = int(input())\nprint(a)"
	result := e.Reflect(code, "echo a number", "", "IndexError: list index out of range", 100)

	var found bool
	for _, issue := range result.Issues {
		if issue.Category == CategoryOffByOne {
			found = true
		}
	}
	assert.True(t, found)
}

// TestReflectConfidenceDropsWithCriticalIssues checks spec.md's
// confidence-before/after bookkeeping: more critical issues lowers
// confidence_before, and a non-empty critique bumps confidence_after up.
func TestReflectConfidenceDropsWithCriticalIssues(t *testing.T) {
	e := New()
	code := "print(1)"
	result := e.Reflect(code, "read a number and print it", "", "", 100)

	assert.Less(t, result.ConfidenceBefore, 1.0)
	assert.GreaterOrEqual(t, result.ConfidenceAfter, result.ConfidenceBefore)
}

func TestStatsAggregatesAcrossReflectCalls(t *testing.T) {
	e := New()
	e.Reflect("print(1)", "add two numbers", "", "", 100)
	e.Reflect("a = int(input())\nprint(a)", "echo", "", "", 100)
	e.RecordFixOutcome(true)
	e.RecordFixOutcome(false)

	stats := e.Stats()
	assert.Equal(t, 2, stats.ReflectionsTriggered)
	assert.Greater(t, stats.IssuesFound, 0)
	assert.Equal(t, 1, stats.IssuesFixed)
}

func TestRecordFixOutcomeIgnoresUnfixedCalls(t *testing.T) {
	e := New()
	e.RecordFixOutcome(false)
	e.RecordFixOutcome(false)
	assert.Equal(t, 0, e.Stats().IssuesFixed)
}
