// Package executor applies migration operations against the Immich API. Jobs
// run strictly sequentially, one API call at a time, and support cooperative
// cancellation: the in-flight item finishes, the rest are skipped.
package executor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-migrator/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobKind names the operation a job applies.
type JobKind string

// Job kinds.
const (
	JobKindRename      JobKind = "rename"
	JobKindAssign      JobKind = "assign_unclustered"
	JobKindCreateFaces JobKind = "create_faces"
	JobKindMerge       JobKind = "merge_clusters"
	JobKindFix         JobKind = "fix_clusters"
)

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for
// async jobs. Embed this in job structs to get AddListener, RemoveListener,
// and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// ItemStatus is the outcome of one job item.
type ItemStatus string

// Item outcomes. Every item ends in exactly one of these, so the three
// counts always add up to the job total.
const (
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
	ItemSkipped ItemStatus = "skipped"
)

// ErrorKind classifies a failed or skipped item.
type ErrorKind string

// Error kinds.
const (
	ErrKindNotFound     ErrorKind = "not_found"
	ErrKindAlreadyNamed ErrorKind = "already_named"
	ErrKindCreateFailed ErrorKind = "create_failed"
	ErrKindAssignFailed ErrorKind = "assign_failed"
	ErrKindNetwork      ErrorKind = "network"
	ErrKindTimeout      ErrorKind = "timeout"
	ErrKindCancelled    ErrorKind = "cancelled"
	ErrKindOther        ErrorKind = "other"
)

// ItemResult records the outcome of one operation item.
type ItemResult struct {
	Index       int        `json:"index"`
	Description string     `json:"description"`
	Status      ItemStatus `json:"status"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Job represents one apply run.
type Job struct {
	EventBroadcaster

	ID          string       `json:"id"`
	Kind        JobKind      `json:"kind"`
	DryRun      bool         `json:"dry_run"`
	Status      JobStatus    `json:"status"`
	Total       int          `json:"total"`
	Processed   int          `json:"processed"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	Items       []ItemResult `json:"items"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// GetStatus returns the current job status.
func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Cancel requests cooperative cancellation. The item currently in flight
// completes and is counted, everything after it is skipped.
func (j *Job) Cancel() {
	j.mu.RLock()
	cancel := j.cancel
	j.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	j.SendEvent(JobEvent{Type: "cancelling", Message: "cancellation requested"})
}

// Snapshot returns a copy of the job safe for serialization while the run is
// still mutating it.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	snapshot := Job{
		ID:          j.ID,
		Kind:        j.Kind,
		DryRun:      j.DryRun,
		Status:      j.Status,
		Total:       j.Total,
		Processed:   j.Processed,
		Succeeded:   j.Succeeded,
		Failed:      j.Failed,
		Skipped:     j.Skipped,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	snapshot.Items = make([]ItemResult, len(j.Items))
	copy(snapshot.Items, j.Items)
	return snapshot
}

func (j *Job) setRunning(cancel context.CancelFunc) {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.cancel = cancel
	j.mu.Unlock()
}

func (j *Job) recordItem(result ItemResult) {
	j.mu.Lock()
	j.Items = append(j.Items, result)
	j.Processed++
	switch result.Status {
	case ItemSuccess:
		j.Succeeded++
	case ItemFailed:
		j.Failed++
	case ItemSkipped:
		j.Skipped++
	}
	processed, total := j.Processed, j.Total
	j.mu.Unlock()

	j.SendEvent(JobEvent{
		Type: "progress",
		Data: map[string]any{
			"processed": processed,
			"total":     total,
			"item":      result,
		},
	})
}

func (j *Job) finish(cancelled bool, runErr error) {
	j.mu.Lock()
	now := time.Now()
	j.CompletedAt = &now
	j.cancel = nil
	switch {
	case cancelled:
		j.Status = JobStatusCancelled
	case runErr != nil:
		j.Status = JobStatusFailed
		j.Error = runErr.Error()
	default:
		j.Status = JobStatusCompleted
	}
	status := j.Status
	j.mu.Unlock()

	j.SendEvent(JobEvent{Type: string(status), Message: "job finished"})
}

// JobManager tracks apply jobs by ID.
type JobManager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// CreateJob registers a new job in pending state.
func (m *JobManager) CreateJob(id string, kind JobKind, total int, dryRun bool) *Job {
	job := &Job{
		ID:        id,
		Kind:      kind,
		DryRun:    dryRun,
		Status:    JobStatusPending,
		Total:     total,
		StartedAt: time.Now(),
	}
	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()
	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	return jobs
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}
