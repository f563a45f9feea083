// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schedule

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcreteSchedule(t *testing.T) {
	require := require.New(t)

	s := Schedule{Duration: 2, StartTime: 0, EndTime: 15, Interval: 5, MaxStartDelay: 2}
	require.NoError(s.Validate())
	require.Equal(uint64(3), s.ExecutionCount())

	it, ok := s.Iter(0)
	require.True(ok)
	require.Equal([]uint64{0, 5, 10}, it.Collect())

	it, ok = s.Iter(2)
	require.True(ok)
	require.Equal([]uint64{2, 7, 12}, it.Collect())

	require.True(s.Overlaps(0, 5, 6))
	require.False(s.Overlaps(0, 7, 8))

	start, end, ok := s.Range(2)
	require.True(ok)
	require.Equal(uint64(2), start)
	require.Equal(uint64(14), end)
}

func TestExecutionCountEdges(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		expected uint64
	}{
		{"end before start", Schedule{StartTime: 10, EndTime: 5, Interval: 1, Duration: 1}, 0},
		{"end equals start", Schedule{StartTime: 10, EndTime: 10, Interval: 1, Duration: 1}, 0},
		{"single", Schedule{StartTime: 10, EndTime: 11, Interval: 100, Duration: 1}, 1},
		{"exact multiple", Schedule{StartTime: 0, EndTime: 20, Interval: 10, Duration: 1}, 2},
		{"zero interval", Schedule{StartTime: 0, EndTime: 20, Interval: 0, Duration: 1}, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.schedule.ExecutionCount())
		})
	}
}

func TestIterOverflow(t *testing.T) {
	require := require.New(t)

	s := Schedule{Duration: 1, StartTime: 0, EndTime: math.MaxUint64, Interval: 1}
	_, ok := s.Iter(1)
	require.False(ok)

	// The last start sits right below the end; stepping past it must not wrap.
	s = Schedule{Duration: 1, StartTime: math.MaxUint64 - 3, EndTime: math.MaxUint64, Interval: 2}
	it, ok := s.Iter(0)
	require.True(ok)
	require.Equal([]uint64{math.MaxUint64 - 3, math.MaxUint64 - 1}, it.Collect())
}

func TestNthStartTime(t *testing.T) {
	require := require.New(t)

	s := Schedule{Duration: 2, StartTime: 100, EndTime: 150, Interval: 10}
	v, ok := s.NthStartTime(3, 4)
	require.True(ok)
	require.Equal(uint64(143), v)

	_, ok = s.NthStartTime(0, 5)
	require.False(ok)
}

func TestExecutionIndexes(t *testing.T) {
	require := require.New(t)

	s := Schedule{Duration: 2, StartTime: 100, EndTime: 150, Interval: 10}

	_, ok := s.CurrentExecutionIndex(0, 99)
	require.False(ok)

	index, ok := s.CurrentExecutionIndex(0, 100)
	require.True(ok)
	require.Equal(uint64(0), index)

	index, ok = s.CurrentExecutionIndex(5, 126)
	require.True(ok)
	require.Equal(uint64(2), index)

	// clamped to the last execution
	index, ok = s.CurrentExecutionIndex(0, 10_000)
	require.True(ok)
	require.Equal(uint64(4), index)

	index, ok = s.NextExecutionIndex(0, 50)
	require.True(ok)
	require.Equal(uint64(0), index)

	index, ok = s.NextExecutionIndex(0, 115)
	require.True(ok)
	require.Equal(uint64(2), index)

	_, ok = s.NextExecutionIndex(0, 140)
	require.False(ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		err      error
	}{
		{"valid", Schedule{Duration: 5, StartTime: 0, EndTime: 100, Interval: 10}, nil},
		{"zero interval", Schedule{Duration: 5, StartTime: 0, EndTime: 100}, ErrZeroInterval},
		{"zero duration", Schedule{StartTime: 0, EndTime: 100, Interval: 10}, ErrZeroDuration},
		{"duration exceeds interval", Schedule{Duration: 11, StartTime: 0, EndTime: 100, Interval: 10}, ErrDurationExceedsInterval},
		{"empty", Schedule{Duration: 5, StartTime: 100, EndTime: 100, Interval: 10}, ErrEmptySchedule},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.ErrorIs(t, test.schedule.Validate(), test.err)
		})
	}
}

func TestOverlapsEdges(t *testing.T) {
	require := require.New(t)

	s := Schedule{Duration: 2, StartTime: 0, EndTime: 15, Interval: 5}
	require.False(s.Overlaps(0, 6, 6))
	require.False(s.Overlaps(0, 6, 5))
	// inverted ranges never overlap, even around an execution
	require.False(s.Overlaps(0, 11, 0))
	require.False(Schedule{Duration: 2, StartTime: 10, EndTime: 10, Interval: 5}.Overlaps(0, 0, 100))
	require.True(s.Overlaps(0, 11, 100))
	require.False(s.Overlaps(0, 12, 100))
	require.True(s.Overlaps(3, 0, 4))
	require.False(s.Overlaps(3, 0, 3))
}

func randomSchedule(r *rand.Rand) Schedule {
	interval := uint64(r.Intn(20) + 1)
	start := uint64(r.Intn(50))
	return Schedule{
		Duration:      uint64(r.Intn(int(interval)) + 1),
		StartTime:     start,
		EndTime:       start + uint64(r.Intn(120)),
		Interval:      interval,
		MaxStartDelay: uint64(r.Intn(10)),
	}
}

func TestExecutionCountMatchesIter(t *testing.T) {
	r := rand.New(rand.NewSource(1)) //nolint:gosec
	for i := 0; i < 2000; i++ {
		s := randomSchedule(r)
		it, ok := s.Iter(0)
		require.True(t, ok)
		require.Len(t, it.Collect(), int(s.ExecutionCount()), "schedule %+v", s)
	}
}

func bruteOverlaps(s Schedule, delay, a, b uint64) bool {
	if b <= a {
		return false
	}
	it, ok := s.Iter(delay)
	if !ok {
		return false
	}
	for _, start := range it.Collect() {
		if start < b && a < start+s.Duration {
			return true
		}
	}
	return false
}

func TestOverlapsMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(2)) //nolint:gosec
	for i := 0; i < 5000; i++ {
		s := randomSchedule(r)
		delay := uint64(r.Intn(int(s.MaxStartDelay) + 1))
		a := uint64(r.Intn(200))
		b := uint64(r.Intn(200))
		require.Equal(t, bruteOverlaps(s, delay, a, b), s.Overlaps(delay, a, b), "schedule %+v delay %d range [%d,%d)", s, delay, a, b)
	}
}

func TestOverlapsScheduleMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(3)) //nolint:gosec
	for i := 0; i < 3000; i++ {
		s := randomSchedule(r)
		other := randomSchedule(r)
		delay := uint64(r.Intn(5))
		otherDelay := uint64(r.Intn(5))

		expected := false
		it, _ := s.Iter(delay)
		for _, start := range it.Collect() {
			if bruteOverlaps(other, otherDelay, start, start+s.Duration) {
				expected = true
				break
			}
		}
		require.Equal(t, expected, s.OverlapsSchedule(delay, other, otherDelay), "%+v/%d vs %+v/%d", s, delay, other, otherDelay)
		require.Equal(t, expected, other.OverlapsSchedule(otherDelay, s, delay))
	}
}
