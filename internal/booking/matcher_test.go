package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(DateTimeLayout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}

// quarterSlots builds contiguous 15-minute free slots beginning at start.
func quarterSlots(t *testing.T, doctorID uuid.UUID, start string, count int) []*Slot {
	t.Helper()
	cur := mustTime(t, start)
	slots := make([]*Slot, 0, count)
	for i := 0; i < count; i++ {
		end := cur.Add(15 * time.Minute)
		slots = append(slots, &Slot{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			StartTime: cur,
			EndTime:   end,
		})
		cur = end
	}
	return slots
}

func TestMatchRun_ExactStart(t *testing.T) {
	doctorID := uuid.New()
	slots := quarterSlots(t, doctorID, "2025-09-01T09:00:00", 4) // 09:00-10:00

	run, err := MatchRun(slots, mustTime(t, "2025-09-01T09:00:00"), 30*time.Minute)
	if err != nil {
		t.Fatalf("MatchRun: %v", err)
	}
	if len(run) != 2 {
		t.Fatalf("run length = %d, want 2", len(run))
	}
	if got, want := run[1].EndTime, mustTime(t, "2025-09-01T09:30:00"); !got.Equal(want) {
		t.Errorf("run end = %s, want %s", got, want)
	}
}

func TestMatchRun_StartMustHitSlotBoundary(t *testing.T) {
	doctorID := uuid.New()
	slots := quarterSlots(t, doctorID, "2025-09-01T09:00:00", 4)

	// 09:05 falls inside a slot; it must be rejected, not snapped.
	_, err := MatchRun(slots, mustTime(t, "2025-09-01T09:05:00"), 30*time.Minute)
	if !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("err = %v, want ErrInsufficientAvailability", err)
	}
}

func TestMatchRun_BreaksAtGap(t *testing.T) {
	doctorID := uuid.New()
	slots := []*Slot{
		{ID: uuid.New(), DoctorID: doctorID, StartTime: mustTime(t, "2025-09-01T09:00:00"), EndTime: mustTime(t, "2025-09-01T09:15:00")},
		// gap 09:15-09:30
		{ID: uuid.New(), DoctorID: doctorID, StartTime: mustTime(t, "2025-09-01T09:30:00"), EndTime: mustTime(t, "2025-09-01T09:45:00")},
	}

	_, err := MatchRun(slots, mustTime(t, "2025-09-01T09:00:00"), 30*time.Minute)
	if !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("err = %v, want ErrInsufficientAvailability", err)
	}
}

func TestMatchRun_OvershootConsumesLastSlot(t *testing.T) {
	doctorID := uuid.New()
	slots := quarterSlots(t, doctorID, "2025-09-01T09:00:00", 3)

	// 20 minutes needs two 15-minute slots; the appointment runs to 09:30.
	run, err := MatchRun(slots, mustTime(t, "2025-09-01T09:00:00"), 20*time.Minute)
	if err != nil {
		t.Fatalf("MatchRun: %v", err)
	}
	if len(run) != 2 {
		t.Fatalf("run length = %d, want 2", len(run))
	}
	if got, want := run[1].EndTime, mustTime(t, "2025-09-01T09:30:00"); !got.Equal(want) {
		t.Errorf("run end = %s, want %s", got, want)
	}
}

func TestMatchRun_ZeroDuration(t *testing.T) {
	doctorID := uuid.New()
	slots := quarterSlots(t, doctorID, "2025-09-01T09:00:00", 1)

	if _, err := MatchRun(slots, mustTime(t, "2025-09-01T09:00:00"), 0); !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("err = %v, want ErrInsufficientAvailability", err)
	}
}

func TestDayStartTimes(t *testing.T) {
	doctorID := uuid.New()
	slots := quarterSlots(t, doctorID, "2025-09-01T09:00:00", 3) // 09:00, 09:15, 09:30

	starts := DayStartTimes(slots, 30*time.Minute)
	if len(starts) != 2 {
		t.Fatalf("starts = %v, want 2 entries", starts)
	}
	if !starts[0].Equal(mustTime(t, "2025-09-01T09:00:00")) || !starts[1].Equal(mustTime(t, "2025-09-01T09:15:00")) {
		t.Errorf("starts = %v, want [09:00 09:15]", starts)
	}
}

func TestDayStartTimes_GapSplitsRuns(t *testing.T) {
	doctorID := uuid.New()
	slots := append(
		quarterSlots(t, doctorID, "2025-09-01T09:00:00", 2), // 09:00-09:30
		quarterSlots(t, doctorID, "2025-09-01T11:00:00", 1)..., // 11:00-11:15
	)

	starts := DayStartTimes(slots, 30*time.Minute)
	if len(starts) != 1 {
		t.Fatalf("starts = %v, want only 09:00", starts)
	}
	if !starts[0].Equal(mustTime(t, "2025-09-01T09:00:00")) {
		t.Errorf("start = %s, want 09:00", starts[0])
	}
}

func TestFreeDates(t *testing.T) {
	doctorID := uuid.New()
	slots := append(
		quarterSlots(t, doctorID, "2025-09-01T09:00:00", 2), // enough for 30m
		quarterSlots(t, doctorID, "2025-09-02T09:00:00", 1)..., // only 15m
	)

	withService := FreeDates(slots, 30*time.Minute)
	if len(withService) != 1 || withService[0] != "2025-09-01" {
		t.Errorf("FreeDates(30m) = %v, want [2025-09-01]", withService)
	}

	anySlot := FreeDates(slots, 0)
	if len(anySlot) != 2 {
		t.Errorf("FreeDates(0) = %v, want both dates", anySlot)
	}
}

func TestFreeDates_Empty(t *testing.T) {
	if dates := FreeDates(nil, 30*time.Minute); len(dates) != 0 {
		t.Errorf("FreeDates(nil) = %v, want empty", dates)
	}
}
