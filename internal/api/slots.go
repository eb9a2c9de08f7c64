package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/booking"
)

func createSlotHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		start, err := time.Parse(booking.DateTimeLayout, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be formatted as 2006-01-02T15:04:05")
			return
		}
		end, err := time.Parse(booking.DateTimeLayout, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be formatted as 2006-01-02T15:04:05")
			return
		}

		slot, err := sched.CreateSlot(r.Context(), doctorID, start, end)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, slotResponse(slot))
	}
}

func generateSlotsHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		day, err := time.Parse(booking.DateLayout, req.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", "day must be formatted as 2006-01-02")
			return
		}
		dayStart, err := combineDayClock(day, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be formatted as 15:04")
			return
		}
		dayEnd, err := combineDayClock(day, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be formatted as 15:04")
			return
		}

		if req.SlotLengthMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_slot_length", "slot_length_minutes must be positive")
			return
		}
		step := time.Duration(req.SlotLengthMinutes) * time.Minute

		created, err := sched.GenerateDaySlots(r.Context(), doctorID, dayStart, dayEnd, step)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := SlotsCreatedResponse{
			Requested: requestedCount(dayStart, dayEnd, step),
			Created:   len(created),
			Slots:     slotResponses(created),
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func deleteSlotsHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		ids := make([]uuid.UUID, 0, len(req.SlotIDs))
		for _, raw := range req.SlotIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot ids must be valid UUIDs")
				return
			}
			ids = append(ids, id)
		}

		deleted, err := sched.DeleteSlots(r.Context(), doctorID, ids)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DeleteSlotsResponse{Deleted: deleted})
	}
}

func listSlotsHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		slots, err := sched.ListSlots(r.Context(), doctorID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponses(slots))
	}
}

func listFreeSlotsHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var from *time.Time
		if raw := r.URL.Query().Get("from"); raw != "" {
			parsed, err := time.Parse(booking.DateTimeLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be formatted as 2006-01-02T15:04:05")
				return
			}
			from = &parsed
		}

		var date *time.Time
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, err := time.Parse(booking.DateLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as 2006-01-02")
				return
			}
			date = &parsed
		}

		slots, err := sched.ListFreeSlots(r.Context(), doctorID, from, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponses(slots))
	}
}

func getSlotHandler(sched *booking.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		slot, err := sched.GetSlot(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponse(slot))
	}
}

// combineDayClock merges a calendar day with a 15:04 clock value into one
// naive timestamp.
func combineDayClock(day time.Time, clockValue string) (time.Time, error) {
	c, err := time.Parse(booking.ClockLayout, clockValue)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location()), nil
}

func requestedCount(start, end time.Time, step time.Duration) int {
	if step <= 0 || !start.Before(end) {
		return 0
	}
	return int(end.Sub(start) / step)
}
