package tasks

import "github.com/frankenstein-ai/cognitive-core/pkg/evaluator"

// DefaultSeedTasks returns a small built-in catalogue covering spec.md §8's
// seed-test categories, used when the CLI is given no task file — enough
// for `run --once`/`benchmark` to have something to solve out of the box.
func DefaultSeedTasks() []evaluator.Task {
	return []evaluator.Task{
		{
			ID:          "sum-two-ints",
			Category:    "arithmetic",
			Title:       "Sum two integers",
			Description: "Read two integers, print their sum.",
			Difficulty:  1,
			TestCases: []evaluator.TestCase{
				{Input: "2\n3\n", Expected: "5"},
				{Input: "10\n-4\n", Expected: "6"},
				{Input: "0\n0\n", Expected: "0"},
			},
		},
		{
			ID:          "knapsack-01",
			Category:    "knapsack",
			Title:       "0/1 knapsack",
			Description: "Read capacity and item weights/values, print the maximum achievable value.",
			Difficulty:  6,
			TestCases: []evaluator.TestCase{
				{Input: "50\n3\n10 60\n20 100\n30 120\n", Expected: "220"},
			},
		},
		{
			ID:          "edit-distance",
			Category:    "edit_distance",
			Title:       "Levenshtein distance",
			Description: "Read two strings, print their edit distance.",
			Difficulty:  6,
			TestCases: []evaluator.TestCase{
				{Input: "kitten\nsitting\n", Expected: "3"},
				{Input: "flaw\nlawn\n", Expected: "2"},
			},
		},
		{
			ID:          "reverse-string",
			Category:    "strings",
			Title:       "Reverse a string",
			Description: "Read a line, print it reversed.",
			Difficulty:  2,
			TestCases: []evaluator.TestCase{
				{Input: "hello\n", Expected: "olleh"},
			},
		},
	}
}
