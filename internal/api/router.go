package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-scheduling/internal/metrics"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
	"github.com/clinicdesk/clinic-scheduling/internal/stats"
	"github.com/clinicdesk/clinic-scheduling/internal/waitingroom"
)

type RouterConfig struct {
	Scheduling  *scheduling.Service
	WaitingRoom *waitingroom.Engine
	Stats       *stats.Service
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Metrics     *metrics.HTTPMetrics
	Logger      zerolog.Logger
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Scheduling endpoints
	r.Get("/availability", checkAvailabilityHandler(cfg.Scheduling))
	r.Post("/bookings", createBookingHandler(cfg.Scheduling))
	r.Get("/bookings", listBookingsHandler(cfg.Scheduling))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Scheduling))
	r.Put("/bookings/{id}", updateBookingHandler(cfg.Scheduling))

	// Waiting-room endpoints
	r.Get("/waiting-room/roster", rosterHandler(cfg.WaitingRoom))
	r.Get("/waiting-room/states", listStatesHandler(cfg.WaitingRoom))
	r.Post("/waiting-room/patients/{patientID}/state", setStateHandler(cfg.WaitingRoom))
	r.Post("/waiting-room/state/bulk", bulkStateHandler(cfg.WaitingRoom))
	r.Get("/waiting-room/stats", dailyStatsHandler(cfg.Stats))

	return r
}
