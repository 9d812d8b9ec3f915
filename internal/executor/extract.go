package executor

import (
	"regexp"
	"strings"
)

var (
	fencedPython = regexp.MustCompile("(?s)```python\\s*\\n(.*?)```")
	fencedAny    = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\s*\\n(.*?)```")
)

// ExtractCode pulls candidate code from raw LLM output, robustly (spec.md
// §4.4 step 9.e): prefer a fenced python block, fall back to any fenced
// block, else a heuristic scan for contiguous lines that look like
// executable statements.
func ExtractCode(raw string) string {
	if m := fencedPython.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedAny.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return heuristicExtract(raw)
}

// heuristicExtract finds the longest contiguous run of lines that look
// like code (assignments, control flow, calls, imports) and returns it,
// on the theory that an LLM reply without fences still usually emits
// one unbroken block of code somewhere in its response.
func heuristicExtract(raw string) string {
	lines := strings.Split(raw, "\n")
	var bestStart, bestEnd, curStart int
	inRun := false

	flush := func(end int) {
		if inRun && end-curStart > bestEnd-bestStart {
			bestStart, bestEnd = curStart, end
		}
		inRun = false
	}

	for i, line := range lines {
		if looksLikeCode(line) {
			if !inRun {
				curStart = i
				inRun = true
			}
		} else if strings.TrimSpace(line) == "" {
			// blank lines don't break a run
			continue
		} else {
			flush(i)
		}
	}
	flush(len(lines))

	if bestEnd <= bestStart {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[bestStart:bestEnd], "\n"))
}

func looksLikeCode(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	codeMarkers := []string{
		"def ", "class ", "import ", "from ", "return", "print(", "if ", "elif ",
		"else:", "for ", "while ", "=", "try:", "except", "with ",
	}
	for _, m := range codeMarkers {
		if strings.Contains(trimmed, m) {
			return true
		}
	}
	return false
}
