// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package schedule describes the repeating execution windows of a job.
//
// A schedule with start time S, end time E and interval I has
// floor((E-S-1)/I)+1 executions. Execution i, shifted by a start delay d,
// occupies [S+d+i*I, S+d+i*I+duration). All times are unix milliseconds.
package schedule

import (
	"errors"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

var (
	ErrZeroInterval            = errors.New("schedule interval must be greater than zero")
	ErrZeroDuration            = errors.New("schedule duration must be greater than zero")
	ErrDurationExceedsInterval = errors.New("schedule duration exceeds interval")
	ErrEmptySchedule           = errors.New("schedule end time must be after start time")
)

// Schedule is immutable once stored with a job registration.
type Schedule struct {
	Duration      uint64 `serialize:"true" json:"duration"`
	StartTime     uint64 `serialize:"true" json:"startTime"`
	EndTime       uint64 `serialize:"true" json:"endTime"`
	Interval      uint64 `serialize:"true" json:"interval"`
	MaxStartDelay uint64 `serialize:"true" json:"maxStartDelay"`
}

// Validate rejects schedules the marketplace cannot plan.
func (s Schedule) Validate() error {
	switch {
	case s.Interval == 0:
		return ErrZeroInterval
	case s.Duration == 0:
		return ErrZeroDuration
	case s.Duration > s.Interval:
		return ErrDurationExceedsInterval
	case s.EndTime <= s.StartTime:
		return ErrEmptySchedule
	}
	return nil
}

// ExecutionCount returns the number of executions, 0 if the schedule is
// empty or malformed.
func (s Schedule) ExecutionCount() uint64 {
	if s.Interval == 0 || s.EndTime <= s.StartTime {
		return 0
	}
	return (s.EndTime-s.StartTime-1)/s.Interval + 1
}

// Iter returns an iterator over the start times of all executions shifted by
// [startDelay]. It returns false if shifting overflows.
func (s Schedule) Iter(startDelay uint64) (*Iterator, bool) {
	if s.Interval == 0 {
		return nil, false
	}
	start, err := safemath.Add64(s.StartTime, startDelay)
	if err != nil {
		return nil, false
	}
	end, err := safemath.Add64(s.EndTime, startDelay)
	if err != nil {
		return nil, false
	}
	return &Iterator{next: start, end: end, interval: s.Interval}, true
}

// NthStartTime returns the start of execution [index] shifted by [startDelay].
func (s Schedule) NthStartTime(startDelay, index uint64) (uint64, bool) {
	if index >= s.ExecutionCount() {
		return 0, false
	}
	start, err := safemath.Add64(s.StartTime, startDelay)
	if err != nil {
		return 0, false
	}
	offset, err := safemath.Mul64(index, s.Interval)
	if err != nil {
		return 0, false
	}
	t, err := safemath.Add64(start, offset)
	if err != nil {
		return 0, false
	}
	return t, true
}

// CurrentExecutionIndex returns the index of the execution window [now] falls
// into, clamped to the last execution. It returns false before the first
// execution starts.
func (s Schedule) CurrentExecutionIndex(startDelay, now uint64) (uint64, bool) {
	count := s.ExecutionCount()
	if count == 0 {
		return 0, false
	}
	start, err := safemath.Add64(s.StartTime, startDelay)
	if err != nil || now < start {
		return 0, false
	}
	index := (now - start) / s.Interval
	if index >= count {
		index = count - 1
	}
	return index, true
}

// NextExecutionIndex returns the index of the first execution starting after
// [now]. It returns false once no execution is left.
func (s Schedule) NextExecutionIndex(startDelay, now uint64) (uint64, bool) {
	count := s.ExecutionCount()
	if count == 0 {
		return 0, false
	}
	start, err := safemath.Add64(s.StartTime, startDelay)
	if err != nil {
		return 0, false
	}
	if now < start {
		return 0, true
	}
	index := (now-start)/s.Interval + 1
	if index >= count {
		return 0, false
	}
	return index, true
}

// Range returns [actualStart, actualEnd) spanning every execution window.
func (s Schedule) Range(startDelay uint64) (uint64, uint64, bool) {
	start, err := safemath.Add64(s.StartTime, startDelay)
	if err != nil {
		return 0, 0, false
	}
	count := s.ExecutionCount()
	if count == 0 {
		return start, start, true
	}
	last, ok := s.NthStartTime(startDelay, count-1)
	if !ok {
		return 0, 0, false
	}
	end, err := safemath.Add64(last, s.Duration)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// Overlaps reports whether [a, b) intersects any execution window. It runs in
// constant time regardless of the number of executions.
func (s Schedule) Overlaps(startDelay, a, b uint64) bool {
	if b <= a || s.Duration == 0 {
		return false
	}
	count := s.ExecutionCount()
	if count == 0 {
		return false
	}
	start, err := safemath.Add64(s.StartTime, startDelay)
	if err != nil || b <= start {
		return false
	}
	first, ok := s.firstEndingAfter(start, a)
	if !ok || first >= count {
		return false
	}
	// start + first*interval cannot overflow: it is bounded by the last start,
	// which Range would have rejected otherwise.
	firstStart, ok := s.NthStartTime(startDelay, first)
	return ok && firstStart < b
}

// OverlapsSchedule reports whether any execution of [s] shifted by
// [startDelay] intersects any execution of [other] shifted by [otherDelay].
func (s Schedule) OverlapsSchedule(startDelay uint64, other Schedule, otherDelay uint64) bool {
	aStart, aEnd, ok := s.Range(startDelay)
	if !ok || aStart == aEnd {
		return false
	}
	bStart, bEnd, ok := other.Range(otherDelay)
	if !ok || bStart == bEnd {
		return false
	}
	if aEnd <= bStart || bEnd <= aStart {
		return false
	}

	// Walk the sparser schedule and probe the other one in constant time.
	walk, walkDelay, probe, probeDelay := s, startDelay, other, otherDelay
	if other.ExecutionCount() < s.ExecutionCount() {
		walk, walkDelay, probe, probeDelay = other, otherDelay, s, startDelay
	}
	lo := max(aStart, bStart)
	hi := min(aEnd, bEnd)

	walkStart := walk.StartTime + walkDelay
	index, ok := walk.firstEndingAfter(walkStart, lo)
	if !ok {
		return false
	}
	count := walk.ExecutionCount()
	for ; index < count; index++ {
		execStart, ok := walk.NthStartTime(walkDelay, index)
		if !ok || execStart >= hi {
			return false
		}
		if probe.Overlaps(probeDelay, execStart, execStart+walk.Duration) {
			return true
		}
	}
	return false
}

// firstEndingAfter returns the smallest execution index whose window ends
// after [a], given the shifted first start [start].
func (s Schedule) firstEndingAfter(start, a uint64) (uint64, bool) {
	firstEnd, err := safemath.Add64(start, s.Duration)
	if err != nil || a < firstEnd {
		return 0, true
	}
	if s.Interval == 0 {
		return 0, false
	}
	return (a-firstEnd)/s.Interval + 1, true
}

// Iterator yields execution start times. It is finite; build a new one with
// Schedule.Iter to restart.
type Iterator struct {
	next     uint64
	end      uint64
	interval uint64
	done     bool
}

// Next returns the next start time, or false when exhausted.
func (it *Iterator) Next() (uint64, bool) {
	if it.done || it.next >= it.end {
		return 0, false
	}
	current := it.next
	next, err := safemath.Add64(it.next, it.interval)
	if err != nil {
		it.done = true
	} else {
		it.next = next
	}
	return current, true
}

// Collect drains the iterator.
func (it *Iterator) Collect() []uint64 {
	var starts []uint64
	for {
		t, ok := it.Next()
		if !ok {
			return starts
		}
		starts = append(starts, t)
	}
}
