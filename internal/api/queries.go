package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/booking"
)

func freeDatesHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var serviceID *uuid.UUID
		if raw := r.URL.Query().Get("service_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
				return
			}
			serviceID = &id
		}

		dates, err := sched.FreeDates(r.Context(), doctorID, serviceID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DatesResponse{DoctorID: doctorID.String(), Dates: dates})
	}
}

func freeTimesHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(r.URL.Query().Get("service_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter is required")
			return
		}

		times, err := sched.FreeStartTimes(r.Context(), doctorID, serviceID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TimesResponse{DoctorID: doctorID.String(), Date: date, Times: times})
	}
}

func listDoctorsHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := sched.ListDoctors(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]*DoctorResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, doctorResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listServicesHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := sched.ListServices(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]*ServiceResponse, 0, len(services))
		for i := range services {
			resp = append(resp, serviceResponse(&services[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getServiceHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "id must be a valid UUID")
			return
		}

		svc, err := sched.GetService(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, serviceResponse(svc))
	}
}
