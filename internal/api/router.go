package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medbook/booking-api/internal/booking"
)

type RouterConfig struct {
	Scheduler *booking.Scheduler
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/doctors", listDoctorsHandler(cfg.Scheduler))
	r.Get("/services", listServicesHandler(cfg.Scheduler))
	r.Get("/services/{id}", getServiceHandler(cfg.Scheduler))

	r.Post("/slots", createSlotHandler(cfg.Scheduler))
	r.Post("/slots/generate", generateSlotsHandler(cfg.Scheduler))
	r.Delete("/slots", deleteSlotsHandler(cfg.Scheduler))
	r.Get("/slots", listSlotsHandler(cfg.Scheduler))
	r.Get("/slots/free", listFreeSlotsHandler(cfg.Scheduler))
	r.Get("/slots/{id}", getSlotHandler(cfg.Scheduler))

	r.Get("/availability/dates", freeDatesHandler(cfg.Scheduler))
	r.Get("/availability/times", freeTimesHandler(cfg.Scheduler))

	r.Post("/appointments", bookAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/cancel", cancelAppointmentsHandler(cfg.Scheduler))
	r.Get("/appointments", listAppointmentsHandler(cfg.Scheduler))

	return r
}
