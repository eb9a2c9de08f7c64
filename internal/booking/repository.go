package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotConflict means a new slot overlaps an existing one for the
	// same doctor; the slot is not created.
	ErrSlotConflict = errors.New("slot overlaps an existing slot")
)

// Repository contains all DB interactions needed by the service.
// Mutating methods participate in the transaction carried by ctx when one
// was opened with WithTx.
type Repository interface {
	// WithTx runs fn inside a single transaction, committing on nil and
	// rolling back on error. Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)
	ListServices(ctx context.Context) ([]Service, error)

	// CreateSlot inserts a free slot after checking the doctor's existing
	// slots for overlap. Returns ErrSlotConflict when [start, end) is taken.
	CreateSlot(ctx context.Context, slot *Slot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// DeleteFreeSlots removes the given slots when they belong to the doctor
	// and are not booked; others are left untouched. Returns the number deleted.
	DeleteFreeSlots(ctx context.Context, doctorID uuid.UUID, ids []uuid.UUID) (int64, error)
	// ListFreeSlots returns unbooked slots starting at or after from, ordered
	// ascending by start. A non-nil date restricts to that calendar date.
	ListFreeSlots(ctx context.Context, doctorID uuid.UUID, from time.Time, date *time.Time) ([]*Slot, error)
	// ListFreeSlotsForUpdate is ListFreeSlots without the date filter, with
	// the returned rows locked for the duration of the transaction.
	ListFreeSlotsForUpdate(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*Slot, error)
	ListSlots(ctx context.Context, doctorID uuid.UUID) ([]*Slot, error)
	MarkSlotsBooked(ctx context.Context, ids []uuid.UUID) error
	// ReleaseSlotsInWindow frees every booked slot of the doctor whose
	// [start, end) lies within the window. Returns the number freed.
	ReleaseSlotsInWindow(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (int64, error)

	CreateAppointment(ctx context.Context, appt *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListActiveAppointmentsOwned returns, locked for update, the subset of
	// ids that are active and owned by ownerID in the given role.
	ListActiveAppointmentsOwned(ctx context.Context, ids []uuid.UUID, ownerID uuid.UUID, role Role) ([]Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// CompletePastAppointments transitions active appointments whose end has
	// passed to completed and returns them.
	CompletePastAppointments(ctx context.Context, now time.Time) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]AppointmentDetail, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
