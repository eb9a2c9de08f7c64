package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbook/booking-api/internal/clock"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	// ErrInvalidTimeRange covers malformed time input: start >= end,
	// zero timestamps, unparseable dates.
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrEmptyBatch       = errors.New("empty id batch")
	ErrInvalidRole      = errors.New("role must be doctor or patient")
	// ErrNotOwner means a cancellation batch referenced appointments that
	// are not owned by the requester or are no longer active. The whole
	// batch is rejected.
	ErrNotOwner = errors.New("appointments not owned by requester or not active")
)

type Scheduler struct {
	repo  Repository
	cache AvailabilityCache
	clk   clock.Clock
	step  time.Duration
	log   zerolog.Logger
}

func NewScheduler(repo Repository, cache AvailabilityCache, clk clock.Clock, step time.Duration, log zerolog.Logger) *Scheduler {
	if cache == nil {
		cache = noopCache{}
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if step <= 0 {
		step = 15 * time.Minute
	}
	return &Scheduler{
		repo:  repo,
		cache: cache,
		clk:   clk,
		step:  step,
		log:   log,
	}
}

// Book reserves a contiguous run of free slots covering the service duration
// starting exactly at start, and records the appointment. The free-slot read,
// the run match, the slot booking and the appointment insert happen inside
// one transaction with the candidate slot rows locked, so two bookings
// racing for overlapping runs cannot both succeed.
func (s *Scheduler) Book(ctx context.Context, doctorID, patientID, serviceID uuid.UUID, start time.Time) (*Appointment, error) {
	if start.IsZero() {
		return nil, ErrInvalidTimeRange
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	svc, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}

	var appt *Appointment

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slots, err := s.repo.ListFreeSlotsForUpdate(txCtx, doctorID, start)
		if err != nil {
			return fmt.Errorf("load free slots: %w", err)
		}

		run, err := MatchRun(slots, start, svc.Duration())
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(run))
		for i, slot := range run {
			ids[i] = slot.ID
		}
		if err := s.repo.MarkSlotsBooked(txCtx, ids); err != nil {
			return err
		}

		a := &Appointment{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			PatientID: patientID,
			ServiceID: serviceID,
			StartTime: start,
			EndTime:   run[len(run)-1].EndTime,
			Status:    StatusActive,
		}
		if err := s.repo.CreateAppointment(txCtx, a); err != nil {
			return err
		}

		appt = a
		s.logEvent(txCtx, a.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"service_id": serviceID.String(),
			"slot_count": len(run),
			"end_time":   a.EndTime.Format(DateTimeLayout),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateDoctor(ctx, doctorID)
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctorID.String()).
		Time("start", appt.StartTime).
		Time("end", appt.EndTime).
		Msg("appointment booked")

	return appt, nil
}

// Cancel cancels a batch of appointments owned by the requester. Validation
// is all-or-nothing: if any requested id is missing, foreign, or no longer
// active, nothing is mutated. On success each appointment's backing slots
// are freed and its status becomes cancelled.
func (s *Scheduler) Cancel(ctx context.Context, requesterID uuid.UUID, role Role, ids []uuid.UUID) ([]Appointment, error) {
	if role != RoleDoctor && role != RolePatient {
		return nil, ErrInvalidRole
	}

	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil, ErrEmptyBatch
	}

	var cancelled []Appointment

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		owned, err := s.repo.ListActiveAppointmentsOwned(txCtx, unique, requesterID, role)
		if err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}
		if len(owned) != len(unique) {
			return ErrNotOwner
		}

		for _, appt := range owned {
			freed, err := s.repo.ReleaseSlotsInWindow(txCtx, appt.DoctorID, appt.StartTime, appt.EndTime)
			if err != nil {
				return err
			}

			updated, err := s.repo.UpdateAppointmentStatus(txCtx, appt.ID, StatusActive, StatusCancelled)
			if err != nil {
				return fmt.Errorf("cancel appointment %s: %w", appt.ID, err)
			}

			cancelled = append(cancelled, *updated)
			s.logEvent(txCtx, appt.ID, EventAppointmentCancelled, map[string]any{
				"requester_id": requesterID.String(),
				"role":         string(role),
				"slots_freed":  freed,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{})
	for _, appt := range cancelled {
		if _, ok := seen[appt.DoctorID]; ok {
			continue
		}
		seen[appt.DoctorID] = struct{}{}
		s.cache.InvalidateDoctor(ctx, appt.DoctorID)
	}

	s.log.Info().
		Int("count", len(cancelled)).
		Str("requester_id", requesterID.String()).
		Str("role", string(role)).
		Msg("appointments cancelled")

	return cancelled, nil
}

// CompletePastAppointments is intended to be called by the worker
// periodically. Completed appointments keep their slots consumed; only
// cancellation releases slots.
func (s *Scheduler) CompletePastAppointments(ctx context.Context) (int, error) {
	now := s.clk.Now()

	var completed []Appointment
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		completed, err = s.repo.CompletePastAppointments(txCtx, now)
		if err != nil {
			return fmt.Errorf("complete past appointments: %w", err)
		}
		for _, appt := range completed {
			s.logEvent(txCtx, appt.ID, EventAppointmentCompleted, map[string]any{
				"end_time": appt.EndTime.Format(DateTimeLayout),
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(completed), nil
}

// Reads

func (s *Scheduler) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Scheduler) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListAppointmentsByPatient(ctx, patientID)
}

func (s *Scheduler) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]AppointmentDetail, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListAppointmentsByDoctor(ctx, doctorID)
}

func (s *Scheduler) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.repo.ListDoctors(ctx)
}

func (s *Scheduler) ListServices(ctx context.Context) ([]Service, error) {
	return s.repo.ListServices(ctx)
}

func (s *Scheduler) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	return s.repo.GetServiceByID(ctx, id)
}

func (s *Scheduler) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clk.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
