package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSlot inserts one free slot for the doctor. The slot must not overlap
// any existing slot of that doctor.
func (s *Scheduler) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, ErrInvalidTimeRange
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	slot := &Slot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreateSlot(txCtx, slot)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateDoctor(ctx, doctorID)
	return slot, nil
}

// CreateSlots applies CreateSlot per range. Ranges that conflict with
// existing slots (or with earlier ranges in the same batch) are skipped, not
// fatal; the created subset is returned so callers can tell a fully applied
// batch from a partial one. A malformed range fails the whole call.
func (s *Scheduler) CreateSlots(ctx context.Context, doctorID uuid.UUID, ranges []SlotRange) ([]*Slot, error) {
	for _, r := range ranges {
		if r.Start.IsZero() || r.End.IsZero() || !r.Start.Before(r.End) {
			return nil, ErrInvalidTimeRange
		}
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	var created []*Slot

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		for _, r := range ranges {
			slot := &Slot{
				ID:        uuid.New(),
				DoctorID:  doctorID,
				StartTime: r.Start,
				EndTime:   r.End,
			}
			if err := s.repo.CreateSlot(txCtx, slot); err != nil {
				if errors.Is(err, ErrSlotConflict) {
					continue
				}
				return err
			}
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		s.cache.InvalidateDoctor(ctx, doctorID)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("requested", len(ranges)).
		Int("created", len(created)).
		Msg("slots created")

	return created, nil
}

// GenerateDaySlots cuts the [dayStart, dayEnd) working window into step-sized
// ranges and creates them like CreateSlots. A zero step falls back to the
// configured slot granularity. A trailing remainder shorter than step is not
// turned into a slot.
func (s *Scheduler) GenerateDaySlots(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time, step time.Duration) ([]*Slot, error) {
	if step <= 0 {
		step = s.step
	}
	if dayStart.IsZero() || dayEnd.IsZero() || !dayStart.Before(dayEnd) {
		return nil, ErrInvalidTimeRange
	}

	var ranges []SlotRange
	for cur := dayStart; !cur.Add(step).After(dayEnd); cur = cur.Add(step) {
		ranges = append(ranges, SlotRange{Start: cur, End: cur.Add(step)})
	}
	if len(ranges) == 0 {
		return nil, ErrInvalidTimeRange
	}

	return s.CreateSlots(ctx, doctorID, ranges)
}

// DeleteSlots deletes the doctor's unbooked slots among ids. Booked or
// foreign slots are silently excluded; the count actually deleted is
// returned.
func (s *Scheduler) DeleteSlots(ctx context.Context, doctorID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return 0, err
	}

	unique := dedupe(ids)
	if len(unique) == 0 {
		return 0, nil
	}

	deleted, err := s.repo.DeleteFreeSlots(ctx, doctorID, unique)
	if err != nil {
		return 0, fmt.Errorf("delete slots: %w", err)
	}

	if deleted > 0 {
		s.cache.InvalidateDoctor(ctx, doctorID)
	}
	return deleted, nil
}

// ListFreeSlots returns the doctor's unbooked slots ordered by start time.
// A nil from defaults to now; a non-nil date restricts to that calendar day.
func (s *Scheduler) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from *time.Time, date *time.Time) ([]*Slot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	start := s.clk.Now()
	if from != nil {
		start = *from
	}

	return s.repo.ListFreeSlots(ctx, doctorID, start, date)
}

// ListSlots returns the doctor's full slot inventory, booked and free.
func (s *Scheduler) ListSlots(ctx context.Context, doctorID uuid.UUID) ([]*Slot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListSlots(ctx, doctorID)
}

func (s *Scheduler) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetSlotByID(ctx, id)
}
