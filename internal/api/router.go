// Package api serves the job server's HTTP interface
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unalkalkan/narrator/internal/health"
	"github.com/unalkalkan/narrator/internal/job"
	"github.com/unalkalkan/narrator/internal/provider"
)

// Info is served at /api/v1/info
type Info struct {
	Version        string   `json:"version"`
	StorageAdapter string   `json:"storage_adapter"`
	Providers      []string `json:"providers"`
	InputFormats   []string `json:"input_formats"`
	OutputFormats  []string `json:"output_formats"`
}

// Deps are the services the router exposes
type Deps struct {
	Jobs        *job.Service
	Providers   *provider.Registry
	Health      *health.Handler
	Info        Info
	MaxUploadMB int
	Logger      *slog.Logger
}

// NewRouter wires the health, voice and job endpoints
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jobs := NewJobsHandler(d.Jobs, d.MaxUploadMB, logger)
	voices := NewVoicesHandler(d.Providers, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger.With("component", "http")))

	r.Get("/health", d.Health.HealthHandler())
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
			info := d.Info
			info.Providers = d.Providers.List()
			respondJSON(w, info, http.StatusOK)
		})
		r.Get("/voices", voices.ListVoices)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobs.CreateJob)
			r.Get("/", jobs.ListJobs)
			r.Get("/{id}", jobs.GetJob)
			r.Delete("/{id}", jobs.DeleteJob)
			r.Get("/{id}/events", jobs.StreamEvents)
			r.Get("/{id}/download", jobs.DownloadOutput)
		})
	})

	return r
}
