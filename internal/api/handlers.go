package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/booking"
)

func bookAppointmentHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		start, err := time.Parse(booking.DateTimeLayout, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be formatted as 2006-01-02T15:04:05")
			return
		}

		appt, err := sched.Book(r.Context(), doctorID, patientID, serviceID, start)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt))
	}
}

func cancelAppointmentsHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelAppointmentsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		requesterID, err := uuid.Parse(req.RequesterID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a valid UUID")
			return
		}

		ids := make([]uuid.UUID, 0, len(req.AppointmentIDs))
		for _, raw := range req.AppointmentIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment ids must be valid UUIDs")
				return
			}
			ids = append(ids, id)
		}

		cancelled, err := sched.Cancel(r.Context(), requesterID, booking.Role(req.Role), ids)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := CancelAppointmentsResponse{Cancelled: make([]AppointmentResponse, 0, len(cancelled))}
		for i := range cancelled {
			resp.Cancelled = append(resp.Cancelled, appointmentResponse(&cancelled[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listAppointmentsHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientParam := r.URL.Query().Get("patient_id")
		doctorParam := r.URL.Query().Get("doctor_id")

		var (
			details []booking.AppointmentDetail
			err     error
		)

		switch {
		case patientParam != "":
			patientID, parseErr := uuid.Parse(patientParam)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			details, err = sched.ListAppointmentsByPatient(r.Context(), patientID)
		case doctorParam != "":
			doctorID, parseErr := uuid.Parse(doctorParam)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			details, err = sched.ListAppointmentsByDoctor(r.Context(), doctorID)
		default:
			writeError(w, http.StatusBadRequest, "missing_owner", "patient_id or doctor_id query parameter is required")
			return
		}

		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]AppointmentDetailResponse, 0, len(details))
		for _, det := range details {
			resp = append(resp, appointmentDetailResponse(det))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, booking.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "empty_batch", err.Error())
	case errors.Is(err, booking.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, booking.ErrInsufficientAvailability):
		writeError(w, http.StatusConflict, "insufficient_availability", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
