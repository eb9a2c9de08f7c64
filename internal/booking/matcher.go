package booking

import (
	"errors"
	"sort"
	"time"
)

// ErrInsufficientAvailability means no contiguous run of free slots covers
// the requested duration from the requested start.
var ErrInsufficientAvailability = errors.New("not enough contiguous free slots")

// MatchRun finds the run of free slots that backs a booking attempt.
//
// slots must be one doctor's free slots ordered ascending by start time.
// The run must begin with a slot whose start equals start exactly; a start
// that falls inside a slot is rejected, not snapped. From there the run is
// extended greedily with zero-gap neighbours until it covers need. The last
// slot is consumed whole even when the run overshoots need.
func MatchRun(slots []*Slot, start time.Time, need time.Duration) ([]*Slot, error) {
	if need <= 0 {
		return nil, ErrInsufficientAvailability
	}

	first := -1
	for i, s := range slots {
		if s.StartTime.Equal(start) {
			first = i
			break
		}
	}
	if first == -1 {
		return nil, ErrInsufficientAvailability
	}

	run := []*Slot{slots[first]}
	covered := slots[first].Duration()

	for i := first + 1; covered < need && i < len(slots); i++ {
		next := slots[i]
		if !next.StartTime.Equal(run[len(run)-1].EndTime) {
			break
		}
		run = append(run, next)
		covered += next.Duration()
	}

	if covered < need {
		return nil, ErrInsufficientAvailability
	}
	return run, nil
}

// DayStartTimes applies MatchRun with every free slot as a candidate start
// and collects the starts that yield a valid run. O(n·k) over a day's slots.
func DayStartTimes(slots []*Slot, need time.Duration) []time.Time {
	var starts []time.Time
	for _, s := range slots {
		if _, err := MatchRun(slots, s.StartTime, need); err == nil {
			starts = append(starts, s.StartTime)
		}
	}
	return starts
}

// FreeDates returns the distinct dates (DateLayout) on which at least one
// valid run exists. need == 0 means any free slot qualifies, for the
// "free dates without a chosen service" view.
func FreeDates(slots []*Slot, need time.Duration) []string {
	byDate := make(map[string][]*Slot)
	for _, s := range slots {
		d := s.StartTime.Format(DateLayout)
		byDate[d] = append(byDate[d], s)
	}

	var dates []string
	for d, daySlots := range byDate {
		if need == 0 || len(DayStartTimes(daySlots, need)) > 0 {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}
