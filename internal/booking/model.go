package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusActive    AppointmentStatus = "active"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Role identifies which side of an appointment a caller acts as.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Layouts for the naive local timestamps used on the wire. No time zone
// conversion happens anywhere in this service.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
	ClockLayout    = "15:04"
)

type Doctor struct {
	ID        uuid.UUID
	FullName  string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID          uuid.UUID
	FullName    string
	PhoneNumber *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Service is immutable reference data: what is being booked and how long it takes.
type Service struct {
	ID              uuid.UUID
	Name            string
	Description     *string
	DurationMinutes int
	PriceCents      *int64
}

func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Slot is the smallest indivisible bookable time unit of one doctor.
// Slots are never split or merged after creation; they are only marked
// booked/free or deleted while free.
type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	IsBooked  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// SlotRange is a requested [Start, End) window for slot creation.
type SlotRange struct {
	Start time.Time
	End   time.Time
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	ServiceID uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppointmentDetail is an appointment hydrated with its reference data,
// for the read endpoints consumed by the chat shells.
type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
	Service *Service
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
