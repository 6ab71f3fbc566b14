package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/service"
)

// JobHandler serves the job board. Posting and removal are enforced as
// admin-only by the service, not by routing.
type JobHandler struct {
	jobs   *service.JobService
	logger *slog.Logger
}

func NewJobHandler(jobs *service.JobService, logger *slog.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger}
}

// HTTP: GET /api/jobs?year=
func (h *JobHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var q repository.JobQuery
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err := model.ParseTargetYear(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("year", err.Error()))
			return
		}
		q.TargetYear = year
	}

	jobs, err := h.jobs.List(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// HTTP: GET /api/jobs/{id}
func (h *JobHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HTTP: POST /api/jobs
func (h *JobHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.JobInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.jobs.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// HTTP: DELETE /api/jobs/{id}
func (h *JobHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
