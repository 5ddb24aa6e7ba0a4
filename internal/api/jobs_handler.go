package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unalkalkan/narrator/internal/job"
	"github.com/unalkalkan/narrator/internal/progress"
	"github.com/unalkalkan/narrator/pkg/types"
)

const (
	defaultMaxUploadMB = 200
	multipartMemory    = 32 << 20
	eventPollInterval  = 500 * time.Millisecond
)

// JobsHandler handles conversion job endpoints
type JobsHandler struct {
	jobs         *job.Service
	maxUpload    int64
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(jobs *job.Service, maxUploadMB int, logger *slog.Logger) *JobsHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsHandler{
		jobs:         jobs,
		maxUpload:    int64(maxUploadMB) << 20,
		pollInterval: eventPollInterval,
		logger:       logger.With("component", "api"),
	}
}

// Event is one line of the NDJSON progress stream. Exactly one field is
// set: a job snapshot when the job changes state, or a progress update.
type Event struct {
	Job      *types.Job       `json:"job,omitempty"`
	Progress *progress.Update `json:"progress,omitempty"`
}

// CreateJob handles POST /api/v1/jobs
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if status := statusFor(err); status == http.StatusRequestEntityTooLarge {
			respondError(w, fmt.Sprintf("Upload exceeds %d MB", h.maxUpload>>20), status)
			return
		}
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var speed float64
	if s := r.FormValue("speed"); s != "" {
		speed, err = strconv.ParseFloat(s, 64)
		if err != nil {
			respondError(w, fmt.Sprintf("Invalid speed %q", s), http.StatusBadRequest)
			return
		}
	}
	chapters, err := parseChapters(r.FormValue("chapters"))
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	created, err := h.jobs.Create(r.Context(), job.CreateRequest{
		Filename:     header.Filename,
		Input:        file,
		Voice:        r.FormValue("voice"),
		Speed:        speed,
		OutputFormat: r.FormValue("format"),
		Chapters:     chapters,
	})
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, created, http.StatusCreated)
}

// parseChapters reads a comma-separated list of chapter positions
func parseChapters(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid chapter %q: %w", part, types.ErrInvalidInput)
		}
		out = append(out, n)
	}
	return out, nil
}

// ListJobs handles GET /api/v1/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context())
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Status == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}

	respondJSON(w, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	}, http.StatusOK)
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	respondJSON(w, j, http.StatusOK)
}

// DeleteJob handles DELETE /api/v1/jobs/{id}
func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadOutput handles GET /api/v1/jobs/{id}/download
func (h *JobsHandler) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	rc, j, err := h.jobs.OpenOutput(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType(j.OutputFormat))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": path.Base(j.OutputKey),
	}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", "job", j.ID, "error", err)
	}
}

func contentType(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "m4b", "m4a":
		return "audio/mp4"
	case "aac":
		return "audio/aac"
	}
	return "application/octet-stream"
}

// StreamEvents handles GET /api/v1/jobs/{id}/events. It writes the job,
// then progress updates while a worker in this process runs it, then the
// final job once it stops. Jobs running elsewhere are polled.
func (h *JobsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	current, err := h.jobs.Get(ctx, id)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	send := func(ev Event) bool {
		if err := enc.Encode(ev); err != nil {
			return false
		}
		_ = rc.Flush()
		return true
	}

	if !send(Event{Job: current}) {
		return
	}

	last := current
	for !current.Terminal() {
		if updates, unsubscribe, ok := h.jobs.Subscribe(id); ok {
			streamed := forward(ctx, updates, send)
			unsubscribe()
			if !streamed {
				return
			}
		} else if !sleep(ctx, h.pollInterval) {
			return
		}

		current, err = h.jobs.Get(ctx, id)
		if err != nil {
			// Deleted while streaming
			return
		}
		if current.Status != last.Status || !current.Progress.UpdatedAt.Equal(last.Progress.UpdatedAt) {
			if !send(Event{Job: current}) {
				return
			}
			last = current
		}
	}
}

// forward relays updates until the channel closes. It returns false when
// the client went away.
func forward(ctx context.Context, updates <-chan progress.Update, send func(Event) bool) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case u, open := <-updates:
			if !open {
				return true
			}
			if !send(Event{Progress: &u}) {
				return false
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
