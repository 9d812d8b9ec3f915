// Package scheduler implements the spaced-repetition task scheduler of
// spec.md §4.9: per-category SM-2 style intervals and priority-ranked
// review selection. Ported directly from
// original_source/frankenstein-ai/spaced_repetition.py.
package scheduler

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	minInterval = 120.0
	maxInterval = 86400.0
	historySize = 20
)

// CategoryRecord tracks spaced-repetition state for one task category
// (direct port of spaced_repetition.py's CategoryRecord).
type CategoryRecord struct {
	Category             string    `json:"category"`
	Difficulty           int       `json:"difficulty"`
	Attempted            int       `json:"attempted"`
	Solved               int       `json:"solved"`
	FirstTry             int       `json:"first_try"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	LastAttempted        float64   `json:"last_attempted"`
	LastSolved           float64   `json:"last_solved"`
	LastFailed           float64   `json:"last_failed"`
	IntervalSeconds      float64   `json:"interval_seconds"`
	EasinessFactor       float64   `json:"easiness_factor"`
	RepetitionCount      int       `json:"repetition_count"`
	RecentScores         []float64 `json:"recent_scores"`
}

func newRecord(category string, difficulty int) *CategoryRecord {
	return &CategoryRecord{
		Category:        category,
		Difficulty:      difficulty,
		IntervalSeconds: 300.0,
		EasinessFactor:  2.5,
	}
}

// SolveRate is the lifetime solved/attempted ratio.
func (r *CategoryRecord) SolveRate() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Solved) / float64(r.Attempted)
}

// RecentSolveRate is more responsive than SolveRate: the fraction of the
// last 20 scores that hit 1.0.
func (r *CategoryRecord) RecentSolveRate() float64 {
	if len(r.RecentScores) == 0 {
		return 0
	}
	var solved int
	for _, s := range r.RecentScores {
		if s >= 1.0 {
			solved++
		}
	}
	return float64(solved) / float64(len(r.RecentScores))
}

func (r *CategoryRecord) effectiveRate() float64 {
	if len(r.RecentScores) >= 5 {
		return r.RecentSolveRate()
	}
	return r.SolveRate()
}

// InLearningZone is true when the effective solve rate sits in [0.3, 0.7].
func (r *CategoryRecord) InLearningZone() bool {
	rate := r.effectiveRate()
	return rate >= 0.3 && rate <= 0.7
}

// IsWeak is true when attempted >= 3 and the effective rate is < 0.7.
func (r *CategoryRecord) IsWeak() bool {
	if r.Attempted < 3 {
		return false
	}
	return r.effectiveRate() < 0.7
}

// IsMastered is true when attempted >= 10 and the solve rate is > 0.9; the
// rate is the recent-window rate once at least 10 recent scores exist and
// the all-time rate before that.
func (r *CategoryRecord) IsMastered() bool {
	if r.Attempted < 10 {
		return false
	}
	rate := r.SolveRate()
	if len(r.RecentScores) >= 10 {
		rate = r.RecentSolveRate()
	}
	return rate > 0.9
}

// CategoryPriority is one ranked entry from NextCategories.
type CategoryPriority struct {
	Category   string
	Difficulty int
	Priority   float64
	Reason     string
	SolveRate  float64
	Interval   float64
}

// Scheduler is the process-wide spaced-repetition tracker.
type Scheduler struct {
	mu      sync.Mutex
	records map[string]*CategoryRecord
	path    string
	rng     *rand.Rand
	nowFn   func() time.Time
}

// New returns a Scheduler, loading prior state from path if it exists
// (spec.md §6 persistence convention: best-effort, never fatal).
func New(path string, seed int64) *Scheduler {
	s := &Scheduler{
		records: make(map[string]*CategoryRecord),
		path:    path,
		rng:     rand.New(rand.NewSource(seed)),
		nowFn:   time.Now,
	}
	s.load()
	return s
}

func (s *Scheduler) getOrCreate(category string, difficulty int) *CategoryRecord {
	if r, ok := s.records[category]; ok {
		return r
	}
	r := newRecord(category, difficulty)
	s.records[category] = r
	return r
}

// RecordAttempt records one task attempt's outcome and advances the SM-2
// interval/easiness state (spec.md §4.9).
func (s *Scheduler) RecordAttempt(category string, difficulty int, score float64, firstTry bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := float64(s.nowFn().Unix())
	rec := s.getOrCreate(category, difficulty)

	rec.Attempted++
	rec.LastAttempted = now
	rec.RecentScores = append(rec.RecentScores, score)
	if len(rec.RecentScores) > historySize {
		rec.RecentScores = rec.RecentScores[len(rec.RecentScores)-historySize:]
	}

	if score >= 1.0 {
		rec.Solved++
		rec.LastSolved = now
		rec.ConsecutiveSuccesses++
		rec.ConsecutiveFailures = 0
		if firstTry {
			rec.FirstTry++
		}
		s.updateIntervalSuccess(rec)
	} else {
		rec.LastFailed = now
		rec.ConsecutiveFailures++
		rec.ConsecutiveSuccesses = 0
		s.updateIntervalFailure(rec)
	}

	s.save()
}

// updateIntervalSuccess mirrors spaced_repetition.py's
// _update_interval_success: easiness and interval both ratchet forward
// on success (spec.md §4.9 SM-2 formulas).
func (s *Scheduler) updateIntervalSuccess(rec *CategoryRecord) {
	rate := rec.effectiveRate()
	quality := rate * 5.0

	rec.EasinessFactor = math.Max(1.3, rec.EasinessFactor+0.1-(5.0-quality)*(0.08+(5.0-quality)*0.02))

	rec.RepetitionCount++
	switch rec.RepetitionCount {
	case 1:
		rec.IntervalSeconds = 300.0
	case 2:
		rec.IntervalSeconds = 600.0
	default:
		rec.IntervalSeconds *= rec.EasinessFactor
	}
	rec.IntervalSeconds = math.Max(minInterval, math.Min(rec.IntervalSeconds, maxInterval))
}

// updateIntervalFailure resets repetition progress and shrinks the
// interval so the category is revisited sooner (spec.md §4.9).
func (s *Scheduler) updateIntervalFailure(rec *CategoryRecord) {
	rec.RepetitionCount = 0
	rec.IntervalSeconds = math.Max(minInterval, rec.IntervalSeconds*0.4)
}

// computePriority mirrors spaced_repetition.py's _compute_priority
// exactly (spec.md §4.9 "Priority").
func (s *Scheduler) computePriority(rec *CategoryRecord, now float64) (float64, string) {
	rate := rec.effectiveRate()

	weakness := 1.0 - rate

	timeSince := 3600.0
	if rec.LastAttempted != 0 {
		timeSince = now - rec.LastAttempted
	}
	overdueRatio := timeSince / math.Max(rec.IntervalSeconds, 1.0)
	urgency := 1.0 / (1.0 + math.Exp(-2.0*(overdueRatio-1.0)))

	zoneBonus := 1.0
	if rec.InLearningZone() {
		zoneBonus = 2.0
	}

	failBonus := 1.0 + math.Min(float64(rec.ConsecutiveFailures)*0.3, 1.5)

	staleness := 1.0
	if rec.Attempted < 3 {
		staleness = 0.5
	}

	priority := weakness * urgency * zoneBonus * failBonus * staleness

	var reason string
	switch {
	case rec.InLearningZone():
		reason = "learning_zone"
	case rec.ConsecutiveFailures >= 3:
		reason = "consecutive_failures"
	case overdueRatio > 1.5:
		reason = "overdue"
	case rate < 0.5:
		reason = "weak"
	default:
		reason = "review"
	}

	return priority, reason
}

// NextCategories returns the top n categories ranked by review priority,
// excluding any in exclude (spec.md §4.9, get_next_categories).
func (s *Scheduler) NextCategories(n int, exclude map[string]bool) []CategoryPriority {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return nil
	}
	now := float64(s.nowFn().Unix())

	var scored []CategoryPriority
	for cat, rec := range s.records {
		if exclude != nil && exclude[cat] {
			continue
		}
		if rec.Attempted < 2 {
			continue
		}
		priority, reason := s.computePriority(rec, now)
		if priority <= 0 {
			continue
		}
		scored = append(scored, CategoryPriority{
			Category:   cat,
			Difficulty: rec.Difficulty,
			Priority:   priority,
			Reason:     reason,
			SolveRate:  rec.RecentSolveRate(),
			Interval:   rec.IntervalSeconds,
		})
	}

	sortByPriorityDesc(scored)
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

func sortByPriorityDesc(scored []CategoryPriority) {
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Priority > scored[j-1].Priority; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
}

// DueCategories returns categories past their review interval and not
// yet mastered (spec.md §4.9, get_due_categories).
func (s *Scheduler) DueCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := float64(s.nowFn().Unix())
	var due []string
	for cat, rec := range s.records {
		if rec.Attempted < 2 {
			continue
		}
		timeSince := now - rec.LastAttempted
		if timeSince >= rec.IntervalSeconds && !rec.IsMastered() {
			due = append(due, cat)
		}
	}
	return due
}

// ShouldInjectReview is true every 4th batch, but only when a due
// category exists (spec.md §4.9 "Scheduler injects a review batch every
// 4th top-level batch when any due category exists").
func (s *Scheduler) ShouldInjectReview(batchNum int) bool {
	if batchNum%4 != 0 {
		return false
	}
	return len(s.DueCategories()) > 0
}

// ReviewTaskParams is the chosen (category, difficulty, reason) for an
// injected review task.
type ReviewTaskParams struct {
	Category   string
	Difficulty int
	Reason     string
}

// PickReviewTask samples one category from the top-5 priority list,
// weighted by priority (spec.md §4.9, pick_review_task_params).
func (s *Scheduler) PickReviewTask() (ReviewTaskParams, bool) {
	candidates := s.NextCategories(5, nil)
	if len(candidates) == 0 {
		return ReviewTaskParams{}, false
	}

	var total float64
	for _, c := range candidates {
		total += c.Priority
	}
	if total <= 0 {
		c := candidates[0]
		return ReviewTaskParams{Category: c.Category, Difficulty: c.Difficulty, Reason: c.Reason}, true
	}

	s.mu.Lock()
	r := s.rng.Float64() * total
	s.mu.Unlock()

	var cum float64
	for _, c := range candidates {
		cum += c.Priority
		if r <= cum {
			return ReviewTaskParams{Category: c.Category, Difficulty: c.Difficulty, Reason: c.Reason}, true
		}
	}
	last := candidates[len(candidates)-1]
	return ReviewTaskParams{Category: last.Category, Difficulty: last.Difficulty, Reason: last.Reason}, true
}

// Stats summarises scheduler state for logging/status endpoints (spec.md
// §4.9, get_stats).
type Stats struct {
	TotalCategories        int
	WeakCategories         int
	LearningZoneCategories int
	MasteredCategories     int
	DueForReview           int
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	st.TotalCategories = len(s.records)
	for _, r := range s.records {
		if r.IsWeak() {
			st.WeakCategories++
		}
		if r.InLearningZone() {
			st.LearningZoneCategories++
		}
		if r.IsMastered() {
			st.MasteredCategories++
		}
	}
	st.DueForReview = len(s.dueCategoriesLocked())
	return st
}

func (s *Scheduler) dueCategoriesLocked() []string {
	now := float64(s.nowFn().Unix())
	var due []string
	for cat, rec := range s.records {
		if rec.Attempted < 2 {
			continue
		}
		timeSince := now - rec.LastAttempted
		if timeSince >= rec.IntervalSeconds && !rec.IsMastered() {
			due = append(due, cat)
		}
	}
	return due
}

type persistedState struct {
	Records  []*CategoryRecord `json:"records"`
	LastSaved float64          `json:"last_saved"`
}

func (s *Scheduler) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return
	}
	for _, rec := range state.Records {
		s.records[rec.Category] = rec
	}
}

func (s *Scheduler) save() {
	if s.path == "" {
		return
	}
	records := make([]*CategoryRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	state := persistedState{Records: records, LastSaved: float64(s.nowFn().Unix())}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	_ = os.WriteFile(s.path, data, 0o644)
}
