package schedule

import (
	"time"

	"flickrgeo/pkg/errors"
)

// DefaultCap is the per-query observation cap documented for the Flickr
// search API. It is a default rather than a constant of the code because
// the documented value has varied; the cap is configurable end to end.
const DefaultCap = 4000

// DefaultDensity is the assumed number of observations per day when the
// caller has no better estimate.
const DefaultDensity = 1.0

// DateRange is an inclusive range of calendar years
type DateRange struct {
	StartYear int
	EndYear   int
}

// Validate checks that the range is non-empty and the years plausible
func (r DateRange) Validate() error {
	if r.StartYear <= 0 || r.EndYear <= 0 {
		return errors.InvalidArgument("date range years must be positive, got %d..%d", r.StartYear, r.EndYear)
	}
	if r.StartYear > r.EndYear {
		return errors.InvalidArgument("date range start year %d after end year %d", r.StartYear, r.EndYear)
	}
	return nil
}

// Bounds returns the half-open UTC interval covered by the range:
// January 1 of the start year up to (but excluding) January 1 of the year
// after the end year.
func (r DateRange) Bounds() (time.Time, time.Time) {
	start := time.Date(r.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(r.EndYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, end
}

// Days returns the total number of days in the range
func (r DateRange) Days() int {
	start, end := r.Bounds()
	return int(end.Sub(start).Hours() / 24)
}

// Window is a half-open time interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the window length in whole days
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// Scheduler pre-computes time windows for a bounded-result search. It never
// observes actual result counts: it chooses a static timestep such that a
// window's expected volume stays at or under the cap, assuming observations
// are spread roughly uniformly at Density per day.
type Scheduler struct {
	// Cap is the maximum number of records a single query may return
	Cap int
	// Density is the expected number of observations per day across the
	// range. Zero or negative means DefaultDensity.
	Density float64
}

// Timestep returns the window length, in days, the scheduler will use
func (s Scheduler) Timestep() int {
	density := s.Density
	if density <= 0 {
		density = DefaultDensity
	}
	step := int(float64(s.Cap) / density)
	if step < 1 {
		step = 1
	}
	return step
}

// Windows partitions the date range into contiguous half-open windows of
// the scheduler's timestep, the last one clipped to the range end. The
// windows cover the range with no gaps and no overlaps, and the result is
// deterministic for a given (range, cap, density).
func (s Scheduler) Windows(r DateRange) ([]Window, error) {
	if s.Cap <= 0 {
		return nil, errors.InvalidArgument("observation cap must be positive, got %d", s.Cap)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	start, end := r.Bounds()
	step := time.Duration(s.Timestep()) * 24 * time.Hour

	var windows []Window
	for cur := start; cur.Before(end); cur = cur.Add(step) {
		next := cur.Add(step)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cur, End: next})
	}

	return windows, nil
}
