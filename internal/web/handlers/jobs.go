package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-migrator/internal/executor"
)

// JobsHandler serves the job inspection endpoints.
type JobsHandler struct {
	rt *Runtime
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(rt *Runtime) *JobsHandler {
	return &JobsHandler{rt: rt}
}

// List handles GET /jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.rt.jobs.ListJobs())
}

// Get handles GET /jobs/{jobId}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Cancel handles POST /jobs/{jobId}/cancel. Cancellation is cooperative: the
// in-flight item completes, the rest are skipped.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// Events handles GET /jobs/{jobId}/events as an SSE stream.
func (h *JobsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamJobEvents(w, r, h.rt.jobs.GetJob)
}

func (h *JobsHandler) lookup(w http.ResponseWriter, r *http.Request) *executor.Job {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.rt.jobs.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}
