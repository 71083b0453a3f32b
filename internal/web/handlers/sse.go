package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-migrator/internal/executor"
)

// isJobTerminal returns true if the job status is a terminal state.
func isJobTerminal(status executor.JobStatus) bool {
	return status == executor.JobStatusCompleted ||
		status == executor.JobStatusFailed ||
		status == executor.JobStatusCancelled
}

// setupSSEConnection validates the request, finds the job, and sets up SSE
// headers. On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter, r *http.Request, lookupJob func(string) *executor.Job) (*executor.Job, http.Flusher, bool) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil, nil, false
	}

	job := lookupJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, nil, false
	}

	return job, flusher, true
}

// streamJobEvents streams job events until the job completes, the client
// disconnects, or the event channel closes. The first event is a status
// snapshot so a late subscriber sees the progress made so far.
func streamJobEvents(w http.ResponseWriter, r *http.Request, lookupJob func(string) *executor.Job) {
	job, flusher, ok := setupSSEConnection(w, r, lookupJob)
	if !ok {
		return
	}

	eventCh := job.AddListener()
	defer job.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", job.Snapshot())
	if isJobTerminal(job.GetStatus()) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if isJobTerminal(job.GetStatus()) {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
