package api

import (
	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/booking"
)

type CreateSlotRequest struct {
	DoctorID string `json:"doctor_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

type GenerateSlotsRequest struct {
	DoctorID          string `json:"doctor_id"`
	Day               string `json:"day"`        // 2006-01-02
	StartTime         string `json:"start_time"` // 15:04
	EndTime           string `json:"end_time"`   // 15:04
	SlotLengthMinutes int    `json:"slot_length_minutes,omitempty"`
}

type DeleteSlotsRequest struct {
	DoctorID string   `json:"doctor_id"`
	SlotIDs  []string `json:"slot_ids"`
}

type DeleteSlotsResponse struct {
	Deleted int64 `json:"deleted"`
}

type SlotResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	IsBooked bool      `json:"is_booked"`
}

type SlotsCreatedResponse struct {
	Requested int            `json:"requested"`
	Created   int            `json:"created"`
	Slots     []SlotResponse `json:"slots"`
}

type BookAppointmentRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	ServiceID string `json:"service_id"`
	Start     string `json:"start"`
}

type CancelAppointmentsRequest struct {
	RequesterID    string   `json:"requester_id"`
	Role           string   `json:"role"`
	AppointmentIDs []string `json:"appointment_ids"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	ServiceID uuid.UUID `json:"service_id"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Status    string    `json:"status"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Doctor  *DoctorResponse  `json:"doctor,omitempty"`
	Patient *PatientSummary  `json:"patient,omitempty"`
	Service *ServiceResponse `json:"service,omitempty"`
}

type CancelAppointmentsResponse struct {
	Cancelled []AppointmentResponse `json:"cancelled"`
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type PatientSummary struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"full_name"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      *int64    `json:"price_cents,omitempty"`
}

type DatesResponse struct {
	DoctorID string   `json:"doctor_id"`
	Dates    []string `json:"dates"`
}

type TimesResponse struct {
	DoctorID string   `json:"doctor_id"`
	Date     string   `json:"date"`
	Times    []string `json:"times"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func slotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:       s.ID,
		DoctorID: s.DoctorID,
		Start:    s.StartTime.Format(booking.DateTimeLayout),
		End:      s.EndTime.Format(booking.DateTimeLayout),
		IsBooked: s.IsBooked,
	}
}

func slotResponses(slots []*booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse(s))
	}
	return out
}

func appointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		ServiceID: a.ServiceID,
		Start:     a.StartTime.Format(booking.DateTimeLayout),
		End:       a.EndTime.Format(booking.DateTimeLayout),
		Status:    string(a.Status),
	}
}

func doctorResponse(d *booking.Doctor) *DoctorResponse {
	if d == nil {
		return nil
	}
	return &DoctorResponse{ID: d.ID, FullName: d.FullName, Specialty: d.Specialty}
}

func patientSummary(p *booking.Patient) *PatientSummary {
	if p == nil {
		return nil
	}
	return &PatientSummary{ID: p.ID, FullName: p.FullName, PhoneNumber: p.PhoneNumber}
}

func serviceResponse(s *booking.Service) *ServiceResponse {
	if s == nil {
		return nil
	}
	return &ServiceResponse{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
	}
}

func appointmentDetailResponse(det booking.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: appointmentResponse(&det.Appointment),
		Doctor:              doctorResponse(det.Doctor),
		Patient:             patientSummary(det.Patient),
		Service:             serviceResponse(det.Service),
	}
}
