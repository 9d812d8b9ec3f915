// Package reflection implements the self-critique loop of spec.md §4.4
// step 9.g: static analysis of generated code for input-parsing,
// edge-case, output-format, logic, and off-by-one risks, producing a
// critique prompt when issues are found. Ported directly from
// original_source/frankenstein-ai/reflection_loop.py. Lookahead-style
// checks (the division guard) use github.com/dlclark/regexp2, since
// Go's stdlib regexp (RE2) cannot express negative lookahead.
package reflection

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// Severity levels for a ReflectionIssue.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Issue categories.
const (
	CategoryInputParsing = "input_parsing"
	CategoryEdgeCase     = "edge_case"
	CategoryOutputFormat = "output_format"
	CategoryLogic        = "logic"
	CategoryOffByOne     = "off_by_one"
	CategoryPerformance  = "performance"
	CategorySyntax       = "syntax"
)

// Issue is one identified problem in generated code (spec.md §4.4
// "ReflectionIssue").
type Issue struct {
	Severity      string
	Category      string
	Description   string
	LineHint      string
	SuggestedFix  string
}

// Result is the outcome of a reflection pass (spec.md §4.4
// "ReflectionResult").
type Result struct {
	ShouldReflect      bool
	ElapsedMS          float64
	Issues             []Issue
	CritiquePrompt     string
	ConfidenceBefore   float64
	ConfidenceAfter    float64
	ReflectionTimeMS   float64
}

const slowThresholdMS = 10_000.0

var (
	inputPatterns = []*regexp.Regexp{
		regexp.MustCompile(`input\(\)`),
		regexp.MustCompile(`sys\.stdin`),
		regexp.MustCompile(`int\(input\(\)\)`),
		regexp.MustCompile(`float\(input\(\)\)`),
		regexp.MustCompile(`input\(\)\.split\(\)`),
		regexp.MustCompile(`map\(int,\s*input\(\)\.split\(\)\)`),
	}

	// divisionRisk needs negative lookahead ("/" not followed by "/" or
	// "0") that RE2 cannot express; this is the one check that requires
	// regexp2.
	divisionRisk = regexp2.MustCompile(`/(?!/)(?!0)`, regexp2.None)

	rangeLen      = regexp.MustCompile(`range\(.*len\(`)
	indexMinusOne = regexp.MustCompile(`\[.*-\s*1\]`)
	whileTrue     = regexp.MustCompile(`while\s+True`)
	popCall       = regexp.MustCompile(`\.pop\(`)
	intConversion = regexp.MustCompile(`\bint\(.*\)`)
	floatConversion = regexp.MustCompile(`float\(.*\)`)
	largeExponent = regexp.MustCompile(`\*\*\s*\d{2,}`)

	boolCompareTrue = regexp.MustCompile(`if\s+.*==\s*True`)
	bareExcept      = regexp.MustCompile(`except\s*:`)
	globalVar       = regexp.MustCompile(`global\s+`)
	evalUsage       = regexp.MustCompile(`eval\(`)
	execUsage       = regexp.MustCompile(`exec\(`)

	rangeCall      = regexp.MustCompile(`range\(([^)]+)\)`)
	assignmentVars = regexp.MustCompile(`(?m)^(\w+)\s*=`)

	decimalMention = regexp.MustCompile(`(\d+)\s*decimal`)
	nameErrorVar   = regexp.MustCompile(`name '(\w+)' is not defined`)
)

var skipUnusedVarNames = map[string]bool{
	"_": true, "i": true, "j": true, "k": true, "n": true, "m": true, "t": true,
}

// Engine is the self-critique analyser (spec.md §4.4 step 9.g).
type Engine struct {
	thresholdMS float64

	mu                   sync.Mutex
	reflectionsTriggered int
	issuesFound          int
	issuesFixed          int
	totalReflectionTimeMS float64
	categoryCounts       map[string]int
}

// New returns an Engine with the reference 10-second threshold.
func New() *Engine {
	return &Engine{thresholdMS: slowThresholdMS, categoryCounts: make(map[string]int)}
}

// ShouldReflect decides whether reflection should activate (spec.md
// §4.4 step 9.g / reflection_loop.py's should_reflect).
func (e *Engine) ShouldReflect(elapsedMS, score float64, attemptNum int) bool {
	if score >= 1.0 {
		return false
	}
	if elapsedMS > e.thresholdMS {
		return true
	}
	if attemptNum >= 2 && score < 1.0 {
		return true
	}
	if score > 0 && score < 1.0 {
		return true
	}
	return false
}

// Reflect runs the full static-analysis pass over code and, if issues
// are found, builds a critique prompt (spec.md §4.4 step 9.g).
func (e *Engine) Reflect(code, taskDescription, testCasesInfo, feedback string, elapsedMS float64) Result {
	start := time.Now()

	e.mu.Lock()
	e.reflectionsTriggered++
	e.mu.Unlock()

	var issues []Issue
	issues = append(issues, checkInputParsing(code, taskDescription)...)
	issues = append(issues, checkEdgeCases(code)...)
	issues = append(issues, checkOutputFormat(code, taskDescription, feedback)...)
	issues = append(issues, checkLogic(code)...)
	issues = append(issues, checkOffByOne(code, feedback)...)
	issues = append(issues, checkAgainstFeedback(feedback)...)

	e.mu.Lock()
	e.issuesFound += len(issues)
	for _, issue := range issues {
		e.categoryCounts[issue.Category]++
	}
	e.mu.Unlock()

	var critiquePrompt string
	if len(issues) > 0 {
		critiquePrompt = buildCritiquePrompt(code, issues, taskDescription, testCasesInfo)
	}

	var criticalCount, warningCount int
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			criticalCount++
		case SeverityWarning:
			warningCount++
		}
	}
	confidenceBefore := maxf(0, 1-float64(criticalCount)*0.3-float64(warningCount)*0.1)
	confidenceAfter := confidenceBefore
	if critiquePrompt != "" {
		confidenceAfter = minf(1, confidenceBefore+0.2)
	}

	reflectionTimeMS := float64(time.Since(start).Microseconds()) / 1000.0
	e.mu.Lock()
	e.totalReflectionTimeMS += reflectionTimeMS
	e.mu.Unlock()

	return Result{
		ShouldReflect:    true,
		ElapsedMS:        elapsedMS,
		Issues:           issues,
		CritiquePrompt:   critiquePrompt,
		ConfidenceBefore: confidenceBefore,
		ConfidenceAfter:  confidenceAfter,
		ReflectionTimeMS: reflectionTimeMS,
	}
}

// RecordFixOutcome tallies whether a critique-driven retry actually
// produced a correct solution.
func (e *Engine) RecordFixOutcome(fixed bool) {
	if !fixed {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.issuesFixed++
}

func checkInputParsing(code, description string) []Issue {
	var issues []Issue

	hasInput := false
	for _, p := range inputPatterns {
		if p.MatchString(code) {
			hasInput = true
			break
		}
	}
	if !hasInput && !strings.Contains(code, "input()") && !strings.Contains(code, "sys.stdin") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategoryInputParsing,
			Description:  "code does not read from stdin: input() or sys.stdin missing",
			SuggestedFix: "add an input() call to read the data",
		})
	}

	inputCount := len(regexp.MustCompile(`input\(\)`).FindAllString(code, -1))
	descLower := strings.ToLower(description)
	if strings.Contains(descLower, "n rader") || strings.Contains(descLower, "n lines") {
		if !strings.Contains(code, "for") && !strings.Contains(code, "while") && inputCount < 3 {
			issues = append(issues, Issue{
				Severity:     SeverityWarning,
				Category:     CategoryInputParsing,
				Description:  "task requires reading multiple lines but code has few input() calls and no loop",
				SuggestedFix: "use a loop to read N lines",
			})
		}
	}

	needsFloat := false
	for _, kw := range []string{"decimal", "float", "0.01", ".2f", "round"} {
		if strings.Contains(descLower, kw) {
			needsFloat = true
			break
		}
	}
	if needsFloat && !strings.Contains(code, "float(") && strings.Contains(code, "int(input") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategoryInputParsing,
			Description:  "task requires float values but code reads int",
			SuggestedFix: "replace int(input()) with float(input())",
		})
	}

	return issues
}

func checkEdgeCases(code string) []Issue {
	var issues []Issue

	type risk struct {
		name string
		desc string
		match bool
	}

	divisionMatch, _ := divisionRisk.MatchString(code)

	risks := []risk{
		{"division", "division without a zero check", divisionMatch},
		{"index_minus_one", "index -1 — potential off-by-one", indexMinusOne.MatchString(code)},
		{"range_len", "range(len()) — check start/stop", rangeLen.MatchString(code)},
		{"infinite_loop", "infinite loop — is there a break?", whileTrue.MatchString(code)},
		{"pop_empty", "pop() on a potentially empty list", popCall.MatchString(code)},
		{"int_conversion", "int() — is ValueError handled?", intConversion.MatchString(code)},
		{"float_conversion", "float() — is ValueError handled?", floatConversion.MatchString(code)},
		{"large_exponent", "large exponent — may overflow", largeExponent.MatchString(code)},
	}

	for _, r := range risks {
		if !r.match {
			continue
		}
		switch r.name {
		case "division":
			if !strings.Contains(code, "/ 0") && (strings.Contains(code, "if") || strings.Contains(code, "max(")) {
				continue
			}
		case "infinite_loop":
			if strings.Contains(code, "break") {
				continue
			}
		case "pop_empty":
			if strings.Contains(code, "if ") && strings.Contains(code, "len(") {
				continue
			}
		}
		issues = append(issues, Issue{Severity: SeverityWarning, Category: CategoryEdgeCase, Description: r.desc, LineHint: r.name})
	}

	return issues
}

func checkOutputFormat(code, description, feedback string) []Issue {
	var issues []Issue

	if !strings.Contains(code, "print(") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategoryOutputFormat,
			Description:  "code has no print() call — output is missing",
			SuggestedFix: "add a print() call to write the result",
		})
	}

	fbLower := strings.ToLower(feedback)
	if strings.Contains(fbLower, "expected") && strings.Contains(fbLower, "got") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategoryOutputFormat,
			Description:  "output does not match expected — check format (spaces, newlines, decimals)",
			SuggestedFix: "compare your output with expected output character by character",
		})
	}

	descLower := strings.ToLower(description)
	if m := decimalMention.FindStringSubmatch(descLower); m != nil {
		formatPattern := fmt.Sprintf(":.%sf", m[1])
		if !strings.Contains(code, formatPattern) && !strings.Contains(code, "round(") {
			issues = append(issues, Issue{
				Severity:     SeverityWarning,
				Category:     CategoryOutputFormat,
				Description:  fmt.Sprintf("task requires %s decimals but code lacks formatting", m[1]),
				SuggestedFix: fmt.Sprintf("use f'{value:.%sf}' or round(value, %s)", m[1], m[1]),
			})
		}
	}

	return issues
}

func checkLogic(code string) []Issue {
	var issues []Issue

	type check struct {
		name  string
		desc  string
		match bool
	}
	checks := []check{
		{"bool_compare", "comparing with True — use 'if x:' instead", boolCompareTrue.MatchString(code)},
		{"bare_except", "bare except — catches everything including SystemExit", bareExcept.MatchString(code)},
		{"global_var", "global variable — potential side effect", globalVar.MatchString(code)},
		{"eval_usage", "eval() — security risk and unpredictable", evalUsage.MatchString(code)},
		{"exec_usage", "exec() — security risk", execUsage.MatchString(code)},
	}
	for _, c := range checks {
		if c.match {
			issues = append(issues, Issue{Severity: SeverityInfo, Category: CategoryLogic, Description: c.desc, LineHint: c.name})
		}
	}

	for _, m := range assignmentVars.FindAllStringSubmatch(code, -1) {
		v := m[1]
		if skipUnusedVarNames[v] {
			continue
		}
		uses := len(regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`).FindAllString(code, -1))
		if uses <= 1 {
			issues = append(issues, Issue{
				Severity:    SeverityInfo,
				Category:    CategoryLogic,
				Description: fmt.Sprintf("variable '%s' is assigned but never used", v),
				LineHint:    v,
			})
		}
	}

	return issues
}

func checkOffByOne(code, feedback string) []Issue {
	var issues []Issue

	for _, m := range rangeCall.FindAllStringSubmatch(code, -1) {
		parts := strings.Split(m[1], ",")
		if len(parts) < 2 {
			continue
		}
		start := strings.TrimSpace(parts[0])
		stop := strings.TrimSpace(parts[1])
		if strings.Contains(stop, "len(") && start == "1" {
			issues = append(issues, Issue{
				Severity:    SeverityWarning,
				Category:    CategoryOffByOne,
				Description: "range(1, len(...)) — missing the last element? should it be range(1, len(...)+1)?",
				LineHint:    fmt.Sprintf("range(%s)", m[1]),
			})
		}
	}

	if strings.Contains(code, "[-1]") && feedback != "" && strings.Contains(strings.ToLower(feedback), "index") {
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			Category:    CategoryOffByOne,
			Description: "uses [-1] index — may fail on an empty list",
			LineHint:    "[-1]",
		})
	}

	return issues
}

func checkAgainstFeedback(feedback string) []Issue {
	var issues []Issue
	fbLower := strings.ToLower(feedback)

	if strings.Contains(fbLower, "timeout") || strings.Contains(fbLower, "timed out") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategoryPerformance,
			Description:  "code takes too long — optimise the algorithm",
			SuggestedFix: "switch to a more efficient algorithm (e.g. O(n) instead of O(n^2))",
		})
	}

	if strings.Contains(fbLower, "syntax") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategorySyntax,
			Description:  "syntax error in the code",
			SuggestedFix: "check indentation, parentheses, colons",
		})
	}

	if strings.Contains(fbLower, "nameerror") {
		if m := nameErrorVar.FindStringSubmatch(feedback); m != nil {
			issues = append(issues, Issue{
				Severity:     SeverityCritical,
				Category:     CategoryLogic,
				Description:  fmt.Sprintf("variable '%s' is used but not defined", m[1]),
				SuggestedFix: fmt.Sprintf("define '%s' before it is used", m[1]),
			})
		}
	}

	if strings.Contains(fbLower, "indexerror") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategoryOffByOne,
			Description:  "IndexError — index out of the list's bounds",
			SuggestedFix: "check the list length before indexing",
		})
	}

	if strings.Contains(fbLower, "valueerror") {
		issues = append(issues, Issue{
			Severity:     SeverityCritical,
			Category:     CategoryInputParsing,
			Description:  "ValueError — incorrect type conversion",
			SuggestedFix: "check the input data has the right format before converting",
		})
	}

	return issues
}

func buildCritiquePrompt(code string, issues []Issue, taskDescription, testCasesInfo string) string {
	var b strings.Builder
	b.WriteString("SELF-CRITIQUE — your solution has identified problems. FIX ALL:\n\n")

	var critical, warnings []Issue
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			critical = append(critical, i)
		case SeverityWarning:
			warnings = append(warnings, i)
		}
	}

	if len(critical) > 0 {
		b.WriteString("CRITICAL PROBLEMS (MUST be fixed):\n")
		for i, issue := range critical {
			fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, issue.Category, issue.Description)
			if issue.SuggestedFix != "" {
				fmt.Fprintf(&b, "     FIX: %s\n", issue.SuggestedFix)
			}
		}
		b.WriteString("\n")
	}

	if len(warnings) > 0 {
		b.WriteString("WARNINGS (SHOULD be fixed):\n")
		for i, issue := range warnings {
			fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, issue.Category, issue.Description)
			if issue.SuggestedFix != "" {
				fmt.Fprintf(&b, "     FIX: %s\n", issue.SuggestedFix)
			}
		}
		b.WriteString("\n")
	}

	if testCasesInfo != "" {
		info := testCasesInfo
		if len(info) > 500 {
			info = info[:500]
		}
		fmt.Fprintf(&b, "MENTAL DRY RUN — do this BEFORE writing fixed code:\n"+
			"For each test case below:\n"+
			"  a) follow the code line by line with the test case's input\n"+
			"  b) write down every variable's value\n"+
			"  c) compare your output with the expected output\n"+
			"  d) if they do NOT match — find EXACTLY which line is wrong\n\n"+
			"TEST CASES TO SIMULATE:\n%s\n\n", info)
	}

	b.WriteString("INSTRUCTIONS:\n" +
		"1. read through your code carefully\n" +
		"2. fix ALL critical problems\n" +
		"3. RUN the code mentally against EVERY test case above\n" +
		"4. check output format EXACTLY (decimals, spaces, newlines)\n" +
		"5. if the output does NOT match — rewrite the solution from scratch\n" +
		"6. answer with the COMPLETE fixed code in a ```python``` block\n\n")

	desc := taskDescription
	if len(desc) > 500 {
		desc = desc[:500]
	}
	fmt.Fprintf(&b, "YOUR CURRENT CODE:\n```python\n%s\n```\n\n", code)
	fmt.Fprintf(&b, "TASK: %s\n\n", desc)
	b.WriteString("Answer ONLY with fixed ```python``` code:")

	return b.String()
}

// Stats mirrors reflection_loop.py's get_stats.
type Stats struct {
	ReflectionsTriggered int
	IssuesFound          int
	IssuesFixed          int
	FixRate              float64
	AvgReflectionTimeMS  float64
	CategoryCounts       map[string]int
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	denom := e.reflectionsTriggered
	if denom == 0 {
		denom = 1
	}
	counts := make(map[string]int, len(e.categoryCounts))
	for k, v := range e.categoryCounts {
		counts[k] = v
	}
	return Stats{
		ReflectionsTriggered: e.reflectionsTriggered,
		IssuesFound:          e.issuesFound,
		IssuesFixed:          e.issuesFixed,
		FixRate:              float64(e.issuesFixed) / float64(denom),
		AvgReflectionTimeMS:  e.totalReflectionTimeMS / float64(denom),
		CategoryCounts:       counts,
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
