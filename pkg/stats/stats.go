// Package stats provides the lightweight trackers the client and load
// driver use to record what happened during a run: event counters, duration
// accumulators, category counts, and numeric aggregates.
package stats

import (
	"fmt"
	"sort"
	"time"
)

// IncrementalTracker counts occurrences of an event.
type IncrementalTracker struct {
	count int64
}

// NewIncrementalTracker returns a zeroed counter.
func NewIncrementalTracker() *IncrementalTracker {
	return &IncrementalTracker{}
}

// Increment adds one to the counter.
func (t *IncrementalTracker) Increment() {
	t.count++
}

// Add adds n to the counter.
func (t *IncrementalTracker) Add(n int64) {
	t.count += n
}

// Count returns the current total.
func (t *IncrementalTracker) Count() int64 {
	return t.count
}

// Merge folds another counter into this one.
func (t *IncrementalTracker) Merge(other *IncrementalTracker) {
	t.count += other.count
}

// TimeTracker accumulates the durations of repeated start/stop intervals.
type TimeTracker struct {
	started time.Time
	running bool

	total time.Duration
	count int64
	min   time.Duration
	max   time.Duration
}

// NewTimeTracker returns an idle tracker.
func NewTimeTracker() *TimeTracker {
	return &TimeTracker{}
}

// Start begins a new interval. Calling Start while an interval is running
// restarts it.
func (t *TimeTracker) Start() {
	t.started = time.Now()
	t.running = true
}

// Stop ends the current interval and records its duration. Stop without a
// matching Start is ignored.
func (t *TimeTracker) Stop() {
	if !t.running {
		return
	}
	t.record(time.Since(t.started))
	t.running = false
}

func (t *TimeTracker) record(d time.Duration) {
	t.total += d
	t.count++
	if t.count == 1 || d < t.min {
		t.min = d
	}
	if d > t.max {
		t.max = d
	}
}

// Count returns the number of recorded intervals.
func (t *TimeTracker) Count() int64 {
	return t.count
}

// Total returns the sum of all recorded intervals.
func (t *TimeTracker) Total() time.Duration {
	return t.total
}

// Min returns the shortest recorded interval, or 0 when nothing was
// recorded.
func (t *TimeTracker) Min() time.Duration {
	return t.min
}

// Max returns the longest recorded interval.
func (t *TimeTracker) Max() time.Duration {
	return t.max
}

// Average returns the mean interval duration, or 0 when nothing was
// recorded.
func (t *TimeTracker) Average() time.Duration {
	if t.count == 0 {
		return 0
	}
	return t.total / time.Duration(t.count)
}

// Merge folds another tracker's recorded intervals into this one. Any
// interval still running on either tracker is not carried over.
func (t *TimeTracker) Merge(other *TimeTracker) {
	if other.count == 0 {
		return
	}
	if t.count == 0 || other.min < t.min {
		t.min = other.min
	}
	if other.max > t.max {
		t.max = other.max
	}
	t.total += other.total
	t.count += other.count
}

// CategoricalTracker counts occurrences per category, for example response
// status codes.
type CategoricalTracker struct {
	counts map[string]int64
}

// NewCategoricalTracker returns an empty tracker.
func NewCategoricalTracker() *CategoricalTracker {
	return &CategoricalTracker{counts: map[string]int64{}}
}

// Increment adds one occurrence of the category.
func (t *CategoricalTracker) Increment(category string) {
	t.counts[category]++
}

// Count returns the number of occurrences recorded for the category.
func (t *CategoricalTracker) Count(category string) int64 {
	return t.counts[category]
}

// Total returns the number of occurrences across all categories.
func (t *CategoricalTracker) Total() int64 {
	var total int64
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Categories returns the recorded category names, sorted.
func (t *CategoricalTracker) Categories() []string {
	names := make([]string, 0, len(t.counts))
	for name := range t.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the per-category counts.
func (t *CategoricalTracker) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Merge folds another tracker's counts into this one.
func (t *CategoricalTracker) Merge(other *CategoricalTracker) {
	for k, v := range other.counts {
		t.counts[k] += v
	}
}

// ValueTracker aggregates a numeric series, for example response sizes.
type ValueTracker struct {
	total int64
	count int64
	min   int64
	max   int64
}

// NewValueTracker returns an empty tracker.
func NewValueTracker() *ValueTracker {
	return &ValueTracker{}
}

// Add records one value.
func (t *ValueTracker) Add(value int64) {
	t.total += value
	t.count++
	if t.count == 1 || value < t.min {
		t.min = value
	}
	if value > t.max {
		t.max = value
	}
}

// Count returns the number of recorded values.
func (t *ValueTracker) Count() int64 {
	return t.count
}

// Total returns the sum of recorded values.
func (t *ValueTracker) Total() int64 {
	return t.total
}

// Min returns the smallest recorded value, or 0 when nothing was recorded.
func (t *ValueTracker) Min() int64 {
	return t.min
}

// Max returns the largest recorded value.
func (t *ValueTracker) Max() int64 {
	return t.max
}

// Average returns the mean value, or 0 when nothing was recorded.
func (t *ValueTracker) Average() float64 {
	if t.count == 0 {
		return 0
	}
	return float64(t.total) / float64(t.count)
}

// Merge folds another tracker's values into this one.
func (t *ValueTracker) Merge(other *ValueTracker) {
	if other.count == 0 {
		return
	}
	if t.count == 0 || other.min < t.min {
		t.min = other.min
	}
	if other.max > t.max {
		t.max = other.max
	}
	t.total += other.total
	t.count += other.count
}

func (t *ValueTracker) String() string {
	return fmt.Sprintf("count=%d total=%d min=%d max=%d avg=%.1f",
		t.count, t.total, t.min, t.max, t.Average())
}
