package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbook/booking-api/internal/booking"
	"github.com/medbook/booking-api/internal/clock"
)

// stubRepo implements only the repository methods the handlers under test
// reach. Everything else panics through the embedded nil interface, which
// would fail the test loudly.
type stubRepo struct {
	booking.Repository

	doctor  *booking.Doctor
	patient *booking.Patient
	service *booking.Service
	slots   []*booking.Slot
	appts   map[uuid.UUID]*booking.Appointment
	owned   []booking.Appointment

	slotConflict bool
	released     int64
}

func (r *stubRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *stubRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*booking.Doctor, error) {
	if r.doctor != nil && r.doctor.ID == id {
		return r.doctor, nil
	}
	return nil, booking.ErrDoctorNotFound
}

func (r *stubRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*booking.Patient, error) {
	if r.patient != nil && r.patient.ID == id {
		return r.patient, nil
	}
	return nil, booking.ErrPatientNotFound
}

func (r *stubRepo) GetServiceByID(_ context.Context, id uuid.UUID) (*booking.Service, error) {
	if r.service != nil && r.service.ID == id {
		return r.service, nil
	}
	return nil, booking.ErrServiceNotFound
}

func (r *stubRepo) ListDoctors(context.Context) ([]booking.Doctor, error) {
	if r.doctor == nil {
		return nil, nil
	}
	return []booking.Doctor{*r.doctor}, nil
}

func (r *stubRepo) ListServices(context.Context) ([]booking.Service, error) {
	if r.service == nil {
		return nil, nil
	}
	return []booking.Service{*r.service}, nil
}

func (r *stubRepo) CreateSlot(_ context.Context, slot *booking.Slot) error {
	if r.slotConflict {
		return booking.ErrSlotConflict
	}
	slot.ID = uuid.New()
	r.slots = append(r.slots, slot)
	return nil
}

func (r *stubRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*booking.Slot, error) {
	for _, s := range r.slots {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, booking.ErrSlotNotFound
}

func (r *stubRepo) ListFreeSlots(_ context.Context, doctorID uuid.UUID, from time.Time, date *time.Time) ([]*booking.Slot, error) {
	var out []*booking.Slot
	for _, s := range r.slots {
		if s.DoctorID != doctorID || s.IsBooked || s.StartTime.Before(from) {
			continue
		}
		if date != nil && s.StartTime.Format(booking.DateLayout) != date.Format(booking.DateLayout) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *stubRepo) ListFreeSlotsForUpdate(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*booking.Slot, error) {
	return r.ListFreeSlots(ctx, doctorID, from, nil)
}

func (r *stubRepo) ListSlots(_ context.Context, doctorID uuid.UUID) ([]*booking.Slot, error) {
	var out []*booking.Slot
	for _, s := range r.slots {
		if s.DoctorID == doctorID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) MarkSlotsBooked(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		for _, s := range r.slots {
			if s.ID == id {
				s.IsBooked = true
			}
		}
	}
	return nil
}

func (r *stubRepo) ReleaseSlotsInWindow(_ context.Context, doctorID uuid.UUID, start, end time.Time) (int64, error) {
	var n int64
	for _, s := range r.slots {
		if s.DoctorID == doctorID && s.IsBooked && !s.StartTime.Before(start) && !s.EndTime.After(end) {
			s.IsBooked = false
			n++
		}
	}
	r.released += n
	return n, nil
}

func (r *stubRepo) CreateAppointment(_ context.Context, appt *booking.Appointment) error {
	appt.ID = uuid.New()
	if r.appts == nil {
		r.appts = make(map[uuid.UUID]*booking.Appointment)
	}
	r.appts[appt.ID] = appt
	return nil
}

func (r *stubRepo) ListActiveAppointmentsOwned(context.Context, []uuid.UUID, uuid.UUID, booking.Role) ([]booking.Appointment, error) {
	return r.owned, nil
}

func (r *stubRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to booking.AppointmentStatus) (*booking.Appointment, error) {
	appt, ok := r.appts[id]
	if !ok || appt.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}
	appt.Status = to
	return appt, nil
}

func (r *stubRepo) InsertEvent(context.Context, booking.EventLog) error {
	return nil
}

func apiTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(booking.DateTimeLayout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func newTestRouter(t *testing.T, repo *stubRepo) http.Handler {
	t.Helper()
	clk := clock.NewFixed(apiTime(t, "2025-08-31T08:00:00"))
	sched := booking.NewScheduler(repo, nil, clk, 15*time.Minute, zerolog.Nop())
	return NewRouter(RouterConfig{Scheduler: sched, Logger: zerolog.Nop(), Env: "test", Version: "test"})
}

func newTestRepo(t *testing.T) *stubRepo {
	t.Helper()
	repo := &stubRepo{
		doctor:  &booking.Doctor{ID: uuid.New(), FullName: "Dr. Reed"},
		patient: &booking.Patient{ID: uuid.New(), FullName: "Ana Silva"},
		service: &booking.Service{ID: uuid.New(), Name: "Consultation", DurationMinutes: 30},
	}
	for i := 0; i < 4; i++ {
		start := apiTime(t, "2025-09-01T09:00:00").Add(time.Duration(i) * 15 * time.Minute)
		repo.slots = append(repo.slots, &booking.Slot{
			ID:        uuid.New(),
			DoctorID:  repo.doctor.ID,
			StartTime: start,
			EndTime:   start.Add(15 * time.Minute),
		})
	}
	return repo
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBookAppointmentCreated(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  repo.doctor.ID.String(),
		PatientID: repo.patient.ID.String(),
		ServiceID: repo.service.ID.String(),
		Start:     "2025-09-01T09:00:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp AppointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Start != "2025-09-01T09:00:00" || resp.End != "2025-09-01T09:30:00" {
		t.Fatalf("appointment window = %s..%s", resp.Start, resp.End)
	}
	if resp.Status != string(booking.StatusActive) {
		t.Fatalf("status = %s", resp.Status)
	}
}

func TestBookAppointmentInsufficientSlots(t *testing.T) {
	repo := newTestRepo(t)
	repo.slots = repo.slots[:1] // one 15-minute slot cannot cover 30 minutes
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  repo.doctor.ID.String(),
		PatientID: repo.patient.ID.String(),
		ServiceID: repo.service.ID.String(),
		Start:     "2025-09-01T09:00:00",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "insufficient_availability" {
		t.Fatalf("error code = %s", resp.Error)
	}
}

func TestBookAppointmentUnknownDoctor(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  uuid.NewString(),
		PatientID: repo.patient.ID.String(),
		ServiceID: repo.service.ID.String(),
		Start:     "2025-09-01T09:00:00",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestBookAppointmentBadTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  repo.doctor.ID.String(),
		PatientID: repo.patient.ID.String(),
		ServiceID: repo.service.ID.String(),
		Start:     "2025-09-01 09:00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCancelAppointmentsForeignRequester(t *testing.T) {
	repo := newTestRepo(t)
	repo.owned = nil // requester owns none of the ids
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments/cancel", CancelAppointmentsRequest{
		RequesterID:    uuid.NewString(),
		Role:           "patient",
		AppointmentIDs: []string{uuid.NewString()},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusForbidden, rec.Body.String())
	}
}

func TestCancelAppointmentsBadRole(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments/cancel", CancelAppointmentsRequest{
		RequesterID:    repo.patient.ID.String(),
		Role:           "admin",
		AppointmentIDs: []string{uuid.NewString()},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCancelAppointmentsReleasesSlots(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", BookAppointmentRequest{
		DoctorID:  repo.doctor.ID.String(),
		PatientID: repo.patient.ID.String(),
		ServiceID: repo.service.ID.String(),
		Start:     "2025-09-01T09:00:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("book status = %d; body %s", rec.Code, rec.Body.String())
	}
	var booked AppointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &booked); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	repo.owned = []booking.Appointment{*repo.appts[booked.ID]}
	rec = doJSON(t, router, http.MethodPost, "/appointments/cancel", CancelAppointmentsRequest{
		RequesterID:    repo.patient.ID.String(),
		Role:           "patient",
		AppointmentIDs: []string{booked.ID.String()},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d; body %s", rec.Code, rec.Body.String())
	}
	if repo.released != 2 {
		t.Fatalf("released %d slots, want 2", repo.released)
	}

	var resp CancelAppointmentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Cancelled) != 1 || resp.Cancelled[0].Status != string(booking.StatusCancelled) {
		t.Fatalf("cancelled = %+v", resp.Cancelled)
	}
}

func TestListAppointmentsRequiresOwner(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodGet, "/appointments", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateSlotConflictMapsTo409(t *testing.T) {
	repo := newTestRepo(t)
	repo.slotConflict = true
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/slots", CreateSlotRequest{
		DoctorID: repo.doctor.ID.String(),
		Start:    "2025-09-01T09:00:00",
		End:      "2025-09-01T09:15:00",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestCreateSlotInvertedRange(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/slots", CreateSlotRequest{
		DoctorID: repo.doctor.ID.String(),
		Start:    "2025-09-01T10:00:00",
		End:      "2025-09-01T09:00:00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGenerateSlots(t *testing.T) {
	repo := newTestRepo(t)
	repo.slots = nil
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/slots/generate", GenerateSlotsRequest{
		DoctorID:          repo.doctor.ID.String(),
		Day:               "2025-09-02",
		StartTime:         "09:00",
		EndTime:           "10:00",
		SlotLengthMinutes: 15,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}

	var resp SlotsCreatedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Requested != 4 || resp.Created != 4 {
		t.Fatalf("requested/created = %d/%d, want 4/4", resp.Requested, resp.Created)
	}
	if resp.Slots[0].Start != "2025-09-02T09:00:00" {
		t.Fatalf("first slot starts at %s", resp.Slots[0].Start)
	}
}

func TestFreeTimesForDate(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	target := fmt.Sprintf("/availability/times?doctor_id=%s&service_id=%s&date=2025-09-01",
		repo.doctor.ID, repo.service.ID)
	rec := doJSON(t, router, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}

	var resp TimesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// 4 quarter-hour slots and a 30-minute service leave three start times.
	want := []string{"09:00", "09:15", "09:30"}
	if len(resp.Times) != len(want) {
		t.Fatalf("times = %v, want %v", resp.Times, want)
	}
	for i := range want {
		if resp.Times[i] != want[i] {
			t.Fatalf("times[%d] = %s, want %s", i, resp.Times[i], want[i])
		}
	}
}

func TestFreeTimesMissingDate(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	target := fmt.Sprintf("/availability/times?doctor_id=%s&service_id=%s", repo.doctor.ID, repo.service.ID)
	rec := doJSON(t, router, http.MethodGet, target, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFreeDates(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	target := fmt.Sprintf("/availability/dates?doctor_id=%s&service_id=%s", repo.doctor.ID, repo.service.ID)
	rec := doJSON(t, router, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}

	var resp DatesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Dates) != 1 || resp.Dates[0] != "2025-09-01" {
		t.Fatalf("dates = %v", resp.Dates)
	}
}

func TestLivenessEndpoint(t *testing.T) {
	repo := newTestRepo(t)
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rid := rec.Header().Get("X-Request-ID"); rid == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
}
