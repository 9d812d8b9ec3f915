// Package tasks supplies the evaluator.Task instances the core solves.
// spec.md §6 names the three required external collaborators (LLM,
// evaluator, vector store) but leaves task provisioning to the
// implementer; this package is the minimal registry the CLI's run/
// ablation/benchmark commands need, grounded on the teacher's
// map[string]*Task task registry in orchestration/engine.go.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/frankenstein-ai/cognitive-core/pkg/evaluator"
)

// Source supplies the next task for a (category, difficulty) pair chosen
// by the scheduler. Returns ok=false when the category is exhausted.
type Source interface {
	Next(ctx context.Context, category string, difficulty int) (evaluator.Task, bool)
}

// Pool is an in-memory Source that round-robins through a fixed catalogue
// per category, looping once exhausted (so a `run` loop never starves).
type Pool struct {
	mu       sync.Mutex
	byCat    map[string][]evaluator.Task
	cursor   map[string]int
	all      []evaluator.Task
}

// NewPool groups tasks by category for round-robin selection.
func NewPool(all []evaluator.Task) *Pool {
	p := &Pool{
		byCat:  make(map[string][]evaluator.Task),
		cursor: make(map[string]int),
		all:    all,
	}
	for _, t := range all {
		p.byCat[t.Category] = append(p.byCat[t.Category], t)
	}
	return p
}

// LoadPoolFromFile reads a JSON array of evaluator.Task from path.
func LoadPoolFromFile(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tasks: read %s: %w", path, err)
	}
	var all []evaluator.Task
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("tasks: parse %s: %w", path, err)
	}
	return NewPool(all), nil
}

// Next returns the next task in category, round-robin, ignoring
// difficulty when no exact match exists in-category (the scheduler's
// difficulty is advisory, not a hard filter, since the pool may not carry
// every difficulty for every category).
func (p *Pool) Next(_ context.Context, category string, difficulty int) (evaluator.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.byCat[category]
	if len(bucket) == 0 {
		bucket = p.all
		category = ""
	}
	if len(bucket) == 0 {
		return evaluator.Task{}, false
	}

	if exact := filterByDifficulty(bucket, difficulty); len(exact) > 0 {
		bucket = exact
	}

	idx := p.cursor[category] % len(bucket)
	p.cursor[category] = idx + 1
	return bucket[idx], true
}

// All returns every task in the pool.
func (p *Pool) All() []evaluator.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]evaluator.Task, len(p.all))
	copy(out, p.all)
	return out
}

func filterByDifficulty(bucket []evaluator.Task, difficulty int) []evaluator.Task {
	var out []evaluator.Task
	for _, t := range bucket {
		if t.Difficulty == difficulty {
			out = append(out, t)
		}
	}
	return out
}
