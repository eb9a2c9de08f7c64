package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AvailabilityCache caches derived availability views per doctor. Stale
// entries are acceptable; the booking transaction re-validates against live
// slot rows.
type AvailabilityCache interface {
	GetDates(ctx context.Context, doctorID uuid.UUID, serviceID *uuid.UUID) ([]string, bool)
	SetDates(ctx context.Context, doctorID uuid.UUID, serviceID *uuid.UUID, dates []string)
	GetTimes(ctx context.Context, doctorID, serviceID uuid.UUID, date string) ([]string, bool)
	SetTimes(ctx context.Context, doctorID, serviceID uuid.UUID, date string, times []string)
	InvalidateDoctor(ctx context.Context, doctorID uuid.UUID)
}

type noopCache struct{}

func (noopCache) GetDates(context.Context, uuid.UUID, *uuid.UUID) ([]string, bool) { return nil, false }
func (noopCache) SetDates(context.Context, uuid.UUID, *uuid.UUID, []string)        {}
func (noopCache) GetTimes(context.Context, uuid.UUID, uuid.UUID, string) ([]string, bool) {
	return nil, false
}
func (noopCache) SetTimes(context.Context, uuid.UUID, uuid.UUID, string, []string) {}
func (noopCache) InvalidateDoctor(context.Context, uuid.UUID)                      {}

// FreeDates returns the upcoming dates on which the doctor can be booked.
// Without a service any free slot makes a date available; with a service the
// date needs at least one contiguous run covering the service duration.
func (s *Scheduler) FreeDates(ctx context.Context, doctorID uuid.UUID, serviceID *uuid.UUID) ([]string, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	var need time.Duration
	if serviceID != nil {
		svc, err := s.repo.GetServiceByID(ctx, *serviceID)
		if err != nil {
			return nil, err
		}
		need = svc.Duration()
	}

	if dates, ok := s.cache.GetDates(ctx, doctorID, serviceID); ok {
		return dates, nil
	}

	slots, err := s.repo.ListFreeSlots(ctx, doctorID, s.clk.Now(), nil)
	if err != nil {
		return nil, err
	}

	dates := FreeDates(slots, need)
	s.cache.SetDates(ctx, doctorID, serviceID, dates)
	return dates, nil
}

// FreeStartTimes returns the bookable start times (ClockLayout) for a doctor,
// service and date: the day-level scan of the contiguity matcher.
func (s *Scheduler) FreeStartTimes(ctx context.Context, doctorID, serviceID uuid.UUID, date string) ([]string, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	svc, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	if times, ok := s.cache.GetTimes(ctx, doctorID, serviceID, date); ok {
		return times, nil
	}

	slots, err := s.repo.ListFreeSlots(ctx, doctorID, s.clk.Now(), &day)
	if err != nil {
		return nil, err
	}

	starts := DayStartTimes(slots, svc.Duration())
	times := make([]string, 0, len(starts))
	for _, t := range starts {
		times = append(times, t.Format(ClockLayout))
	}

	s.cache.SetTimes(ctx, doctorID, serviceID, date, times)
	return times, nil
}
