package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// dbtx is satisfied by both the pool and a pgx transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PgRepository) db(ctx context.Context) dbtx {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.FullName,
		&d.Specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FullName,
		&p.PhoneNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.DurationMinutes,
		&s.PriceCents,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.IsBooked,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.ServiceID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectSlots(rows pgx.Rows) ([]*Slot, error) {
	defer rows.Close()

	var result []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Reference data

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db(ctx).QueryRow(ctx, `
		SELECT id, full_name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db(ctx).Query(ctx, `
		SELECT id, full_name, specialty, created_at, updated_at
		FROM doctors
		ORDER BY full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db(ctx).QueryRow(ctx, `
		SELECT id, full_name, phone_number, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.db(ctx).QueryRow(ctx, `
		SELECT id, name, description, duration_minutes, price_cents
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := r.db(ctx).Query(ctx, `
		SELECT id, name, description, duration_minutes, price_cents
		FROM services
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, slot *Slot) error {
	var taken bool
	err := r.db(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM slots
			WHERE doctor_id = $1
			  AND start_time < $3
			  AND end_time > $2
		)
	`, slot.DoctorID, slot.StartTime, slot.EndTime).Scan(&taken)
	if err != nil {
		return fmt.Errorf("check slot overlap: %w", err)
	}
	if taken {
		return ErrSlotConflict
	}

	row := r.db(ctx).QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, now(), now())
		RETURNING id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
	`, slot.ID, slot.DoctorID, slot.StartTime, slot.EndTime)

	created, err := scanSlot(row)
	if err != nil {
		// The unique (doctor_id, start_time) constraint backstops two
		// writers racing past the overlap check.
		if isUniqueViolation(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert slot: %w", err)
	}

	*slot = *created
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db(ctx).QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) DeleteFreeSlots(ctx context.Context, doctorID uuid.UUID, ids []uuid.UUID) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		DELETE FROM slots
		WHERE doctor_id = $1
		  AND id = ANY($2)
		  AND NOT is_booked
	`, doctorID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from time.Time, date *time.Time) ([]*Slot, error) {
	query := `
		SELECT id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1
		  AND NOT is_booked
		  AND start_time >= $2`
	args := []any{doctorID, from}

	if date != nil {
		query += `
		  AND start_time::date = $3::date`
		args = append(args, *date)
	}
	query += `
		ORDER BY start_time`

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListFreeSlotsForUpdate(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*Slot, error) {
	rows, err := r.db(ctx).Query(ctx, `
		SELECT id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1
		  AND NOT is_booked
		  AND start_time >= $2
		ORDER BY start_time
		FOR UPDATE
	`, doctorID, from)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListSlots(ctx context.Context, doctorID uuid.UUID) ([]*Slot, error) {
	rows, err := r.db(ctx).Query(ctx, `
		SELECT id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1
		ORDER BY start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) MarkSlotsBooked(ctx context.Context, ids []uuid.UUID) error {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE slots
		SET is_booked = TRUE,
		    updated_at = now()
		WHERE id = ANY($1)
		  AND NOT is_booked
	`, ids)
	if err != nil {
		return fmt.Errorf("mark slots booked: %w", err)
	}
	if got := tag.RowsAffected(); got != int64(len(ids)) {
		return fmt.Errorf("mark slots booked: expected %d slots, updated %d", len(ids), got)
	}
	return nil
}

func (r *PgRepository) ReleaseSlotsInWindow(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE slots
		SET is_booked = FALSE,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND start_time >= $2
		  AND end_time <= $3
		  AND is_booked
	`, doctorID, start, end)
	if err != nil {
		return 0, fmt.Errorf("release slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) error {
	row := r.db(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, service_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, doctor_id, patient_id, service_id, start_time, end_time, status, created_at, updated_at
	`, appt.ID, appt.DoctorID, appt.PatientID, appt.ServiceID, appt.StartTime, appt.EndTime, appt.Status)

	created, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	*appt = *created
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db(ctx).QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, service_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveAppointmentsOwned(ctx context.Context, ids []uuid.UUID, ownerID uuid.UUID, role Role) ([]Appointment, error) {
	ownerCol := "patient_id"
	if role == RoleDoctor {
		ownerCol = "doctor_id"
	}

	rows, err := r.db(ctx).Query(ctx, `
		SELECT id, doctor_id, patient_id, service_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE id = ANY($1)
		  AND `+ownerCol+` = $2
		  AND status = 'active'
		FOR UPDATE
	`, ids, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db(ctx).QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, doctor_id, patient_id, service_id, start_time, end_time, status, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CompletePastAppointments(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.db(ctx).Query(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE status = 'active'
		  AND end_time <= $1
		RETURNING id, doctor_id, patient_id, service_id, start_time, end_time, status, created_at, updated_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const appointmentDetailQuery = `
	SELECT a.id, a.doctor_id, a.patient_id, a.service_id, a.start_time, a.end_time, a.status, a.created_at, a.updated_at,
	       d.id, d.full_name, d.specialty, d.created_at, d.updated_at,
	       p.id, p.full_name, p.phone_number, p.created_at, p.updated_at,
	       s.id, s.name, s.description, s.duration_minutes, s.price_cents
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN patients p ON p.id = a.patient_id
	JOIN services s ON s.id = a.service_id`

func collectAppointmentDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var det AppointmentDetail
		var d Doctor
		var p Patient
		var s Service

		err := rows.Scan(
			&det.ID, &det.DoctorID, &det.PatientID, &det.ServiceID,
			&det.StartTime, &det.EndTime, &det.Status, &det.CreatedAt, &det.UpdatedAt,
			&d.ID, &d.FullName, &d.Specialty, &d.CreatedAt, &d.UpdatedAt,
			&p.ID, &p.FullName, &p.PhoneNumber, &p.CreatedAt, &p.UpdatedAt,
			&s.ID, &s.Name, &s.Description, &s.DurationMinutes, &s.PriceCents,
		)
		if err != nil {
			return nil, err
		}

		det.Doctor = &d
		det.Patient = &p
		det.Service = &s
		result = append(result, det)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.db(ctx).Query(ctx, appointmentDetailQuery+`
	WHERE a.patient_id = $1
	ORDER BY a.start_time
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointmentDetails(rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.db(ctx).Query(ctx, appointmentDetailQuery+`
	WHERE a.doctor_id = $1
	ORDER BY a.start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectAppointmentDetails(rows)
}

// Events

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
