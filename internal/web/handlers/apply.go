package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-migrator/internal/executor"
	"github.com/kozaktomas/face-migrator/internal/facematch"
)

// ApplyHandler serves the five apply endpoints. Batches run synchronously;
// the response carries the full structured result. Each run also registers a
// job, so a second client can follow the progress on /jobs/{id}/events.
type ApplyHandler struct {
	rt *Runtime
}

// NewApplyHandler creates an apply handler.
func NewApplyHandler(rt *Runtime) *ApplyHandler {
	return &ApplyHandler{rt: rt}
}

// ApplyResults partitions the item records by outcome.
type ApplyResults struct {
	Success []executor.ItemResult `json:"success"`
	Failed  []executor.ItemResult `json:"failed"`
	Skipped []executor.ItemResult `json:"skipped"`
}

// ApplyResponse is the synchronous response of an apply endpoint.
type ApplyResponse struct {
	JobID        string       `json:"job_id"`
	DryRun       bool         `json:"dry_run"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	FailedCount  int          `json:"failed_count"`
	SkippedCount int          `json:"skipped_count"`
	Results      ApplyResults `json:"results"`
}

func buildApplyResponse(job executor.Job) ApplyResponse {
	resp := ApplyResponse{
		JobID:        job.ID,
		DryRun:       job.DryRun,
		Total:        job.Total,
		SuccessCount: job.Succeeded,
		FailedCount:  job.Failed,
		SkippedCount: job.Skipped,
		Results: ApplyResults{
			Success: []executor.ItemResult{},
			Failed:  []executor.ItemResult{},
			Skipped: []executor.ItemResult{},
		},
	}
	for _, item := range job.Items {
		switch item.Status {
		case executor.ItemSuccess:
			resp.Results.Success = append(resp.Results.Success, item)
		case executor.ItemFailed:
			resp.Results.Failed = append(resp.Results.Failed, item)
		case executor.ItemSkipped:
			resp.Results.Skipped = append(resp.Results.Skipped, item)
		}
	}
	return resp
}

// run registers a job, executes the batch and writes the structured result.
// A completed non-dry run invalidates the analysis caches, so the next run
// sees the applied labels.
func (h *ApplyHandler) run(
	w http.ResponseWriter,
	r *http.Request,
	kind executor.JobKind,
	total int,
	dryRun bool,
	execute func(context.Context, *executor.Executor, *executor.Job),
) {
	client, err := h.rt.apiClient()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	job := h.rt.jobs.CreateJob(uuid.New().String(), kind, total, dryRun)
	log.Printf("apply %s: job %s, %d items, dry_run=%t", kind, job.ID, total, dryRun)
	execute(r.Context(), executor.New(client), job)

	if !dryRun {
		h.rt.coordinator.Invalidate()
	}
	respondJSON(w, http.StatusOK, buildApplyResponse(job.Snapshot()))
}

// runLocal registers a job and executes an acknowledgement-only batch. No
// target connection is needed and nothing remote changes, so the analysis
// caches stay valid.
func (h *ApplyHandler) runLocal(
	w http.ResponseWriter,
	r *http.Request,
	kind executor.JobKind,
	total int,
	dryRun bool,
	execute func(context.Context, *executor.Executor, *executor.Job),
) {
	job := h.rt.jobs.CreateJob(uuid.New().String(), kind, total, dryRun)
	log.Printf("apply %s: job %s, %d items, dry_run=%t", kind, job.ID, total, dryRun)
	execute(r.Context(), executor.New(nil), job)
	respondJSON(w, http.StatusOK, buildApplyResponse(job.Snapshot()))
}

// Rename handles POST /apply.
func (h *ApplyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Matches []struct {
			SourcePersonID   int64  `json:"src_person_id"`
			SourcePersonName string `json:"src_person_name"`
			ClusterID        string `json:"cluster_id"`
		} `json:"matches"`
		DryRun bool `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Matches) == 0 {
		respondError(w, http.StatusBadRequest, "no matches given")
		return
	}

	items := make([]executor.RenameItem, 0, len(req.Matches))
	for _, m := range req.Matches {
		if m.ClusterID == "" || m.SourcePersonName == "" {
			respondError(w, http.StatusBadRequest, "cluster_id and src_person_name are required")
			return
		}
		items = append(items, executor.RenameItem{
			ClusterID: m.ClusterID,
			NewName:   m.SourcePersonName,
		})
	}

	h.run(w, r, executor.JobKindRename, len(items), req.DryRun,
		func(ctx context.Context, exec *executor.Executor, job *executor.Job) {
			exec.RunRename(ctx, job, items)
		})
}

// AssignUnclustered handles POST /apply/unclustered.
func (h *ApplyHandler) AssignUnclustered(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []struct {
			SourcePersonID   int64    `json:"src_person_id"`
			SourcePersonName string   `json:"src_person_name"`
			FaceIDs          []string `json:"face_ids"`
		} `json:"items"`
		DryRun bool `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "no items given")
		return
	}

	total := 0
	groups := make([]executor.AssignGroup, 0, len(req.Items))
	for _, item := range req.Items {
		if item.SourcePersonName == "" || len(item.FaceIDs) == 0 {
			respondError(w, http.StatusBadRequest, "src_person_name and face_ids are required")
			return
		}
		faces := make([]executor.AssignItem, 0, len(item.FaceIDs))
		for _, faceID := range item.FaceIDs {
			faces = append(faces, executor.AssignItem{FaceID: faceID})
		}
		groups = append(groups, executor.AssignGroup{
			PersonID:   h.existingPersonID(r.Context(), item.SourcePersonName),
			PersonName: item.SourcePersonName,
			Items:      faces,
		})
		total += len(faces)
	}

	h.run(w, r, executor.JobKindAssign, total, req.DryRun,
		func(ctx context.Context, exec *executor.Executor, job *executor.Job) {
			exec.RunAssign(ctx, job, groups)
		})
}

// CreateFaces handles POST /create-faces/apply. Face coordinates arrive in
// pixels of the original image and pass through unchanged.
func (h *ApplyHandler) CreateFaces(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourcePersonID   int64  `json:"src_person_id"`
		SourcePersonName string `json:"src_person_name"`
		Faces            []struct {
			AssetID     string `json:"asset_id"`
			X           int    `json:"x"`
			Y           int    `json:"y"`
			Width       int    `json:"width"`
			Height      int    `json:"height"`
			ImageWidth  int    `json:"image_width"`
			ImageHeight int    `json:"image_height"`
		} `json:"faces"`
		DryRun bool `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.SourcePersonName == "" || len(req.Faces) == 0 {
		respondError(w, http.StatusBadRequest, "src_person_name and faces are required")
		return
	}

	items := make([]executor.CreateFaceItem, 0, len(req.Faces))
	for _, face := range req.Faces {
		if face.AssetID == "" || face.Width <= 0 || face.Height <= 0 {
			respondError(w, http.StatusBadRequest, "each face needs asset_id and a positive rectangle")
			return
		}
		items = append(items, executor.CreateFaceItem{
			AssetID:     face.AssetID,
			X:           face.X,
			Y:           face.Y,
			Width:       face.Width,
			Height:      face.Height,
			ImageWidth:  face.ImageWidth,
			ImageHeight: face.ImageHeight,
		})
	}
	groups := []executor.CreateFaceGroup{{
		PersonID:   h.existingPersonID(r.Context(), req.SourcePersonName),
		PersonName: req.SourcePersonName,
		Items:      items,
	}}

	h.run(w, r, executor.JobKindCreateFaces, len(items), req.DryRun,
		func(ctx context.Context, exec *executor.Executor, job *executor.Job) {
			exec.RunCreateFaces(ctx, job, groups)
		})
}

// Merge handles POST /apply/merge. Merges are acknowledgement-only: the
// target service has no cluster-merge API, so the job records each item as
// done without touching the server.
func (h *ApplyHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items  []executor.MergeItem `json:"items"`
		DryRun bool                 `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "no items given")
		return
	}
	for _, item := range req.Items {
		if item.SourcePersonName == "" || len(item.ClusterIDs) == 0 {
			respondError(w, http.StatusBadRequest, "src_person_name and cluster_ids are required")
			return
		}
	}

	items := req.Items
	h.runLocal(w, r, executor.JobKindMerge, len(items), req.DryRun,
		func(ctx context.Context, exec *executor.Executor, job *executor.Job) {
			exec.RunMerge(ctx, job, items)
		})
}

// Fix handles POST /apply/fix, the acknowledgement path for validation
// issues.
func (h *ApplyHandler) Fix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items  []executor.FixItem `json:"items"`
		DryRun bool               `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "no items given")
		return
	}
	for _, item := range req.Items {
		if item.ClusterID == "" {
			respondError(w, http.StatusBadRequest, "cluster_id is required")
			return
		}
	}

	items := req.Items
	h.runLocal(w, r, executor.JobKindFix, len(items), req.DryRun,
		func(ctx context.Context, exec *executor.Executor, job *executor.Job) {
			exec.RunFix(ctx, job, items)
		})
}

// existingPersonID resolves a source person name against the target store's
// person names, so the executor reuses an existing person instead of
// creating a duplicate. An unreadable target store resolves to nothing; the
// executor then falls back to creation.
func (h *ApplyHandler) existingPersonID(ctx context.Context, name string) string {
	_, tgt, err := h.rt.coordinator.Snapshots(ctx)
	if err != nil {
		return ""
	}
	nameMode := h.rt.cfg.Snapshot().Matching.NameMatchMode
	return tgt.PersonNames[facematch.NormalizePersonName(name, nameMode)]
}
