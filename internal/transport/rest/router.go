package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Logger         *slog.Logger
	Appointments   *AppointmentsHandler
	JWTSecret      string
	RequestTimeout time.Duration
	MetricsHandler http.Handler
	Metrics        requestRecorder
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		api.Use(Authenticate(cfg.JWTSecret))

		api.Get("/professionals", cfg.Appointments.ListProfessionals)
		api.Route("/appointments", func(r chi.Router) {
			r.Get("/", cfg.Appointments.List)
			r.Post("/", cfg.Appointments.Book)
			r.Delete("/{id}", cfg.Appointments.Cancel)
			r.Post("/{id}/complete", cfg.Appointments.Complete)
			r.Patch("/{id}/complete", cfg.Appointments.Complete)
		})
	})

	return r
}
