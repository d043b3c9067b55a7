package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrgeo/pkg/errors"
)

func TestDateRangeBounds(t *testing.T) {
	r := DateRange{StartYear: 2008, EndYear: 2010}

	start, end := r.Bounds()
	assert.Equal(t, time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	// 2008 is a leap year
	assert.Equal(t, 366+365+365, r.Days())
}

func TestWindowsPartitionRange(t *testing.T) {
	r := DateRange{StartYear: 2010, EndYear: 2020}
	s := Scheduler{Cap: 4000}

	windows, err := s.Windows(r)
	require.NoError(t, err)
	require.NotEmpty(t, windows)

	start, end := r.Bounds()
	assert.Equal(t, start, windows[0].Start)
	assert.Equal(t, end, windows[len(windows)-1].End)

	// No gaps, no overlaps
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].End, windows[i].Start)
	}
	for _, w := range windows {
		assert.True(t, w.Start.Before(w.End))
	}
}

func TestWindowsDeterministic(t *testing.T) {
	r := DateRange{StartYear: 2010, EndYear: 2020}
	s := Scheduler{Cap: 4000}

	first, err := s.Windows(r)
	require.NoError(t, err)
	second, err := s.Windows(r)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 2010..2020 inclusive is 4018 days; with the default density of one
	// observation per day a cap of 4000 yields a 4000-day window plus the
	// 18-day remainder.
	require.Len(t, first, 2)
	assert.Equal(t, 4000, first[0].Days())
	assert.Equal(t, 18, first[1].Days())
}

func TestWindowsRespectDensity(t *testing.T) {
	r := DateRange{StartYear: 2019, EndYear: 2019}
	s := Scheduler{Cap: 400, Density: 10}

	windows, err := s.Windows(r)
	require.NoError(t, err)

	// 400 cap / 10 per day = 40-day windows over 365 days
	assert.Equal(t, 40, s.Timestep())
	require.Len(t, windows, 10)
	for _, w := range windows[:len(windows)-1] {
		assert.Equal(t, 40, w.Days())
	}
	assert.Equal(t, 5, windows[len(windows)-1].Days())
}

func TestTimestepNeverBelowOneDay(t *testing.T) {
	s := Scheduler{Cap: 10, Density: 100000}
	assert.Equal(t, 1, s.Timestep())

	windows, err := s.Windows(DateRange{StartYear: 2020, EndYear: 2020})
	require.NoError(t, err)
	assert.Len(t, windows, 366) // leap year, one window per day
}

func TestWindowsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		r    DateRange
		s    Scheduler
	}{
		{"zero cap", DateRange{StartYear: 2010, EndYear: 2020}, Scheduler{Cap: 0}},
		{"negative cap", DateRange{StartYear: 2010, EndYear: 2020}, Scheduler{Cap: -5}},
		{"inverted range", DateRange{StartYear: 2020, EndYear: 2010}, Scheduler{Cap: 4000}},
		{"zero years", DateRange{}, Scheduler{Cap: 4000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := tt.s.Windows(tt.r)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
			assert.Nil(t, windows)
		})
	}
}

func TestSingleYearRangeIsValid(t *testing.T) {
	windows, err := Scheduler{Cap: 4000}.Windows(DateRange{StartYear: 2015, EndYear: 2015})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 365, windows[0].Days())
}
