package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/kozaktomas/face-migrator/internal/immichapi"
)

// ImmichAPI is the slice of the Immich client the executor needs. The
// concrete client satisfies it; tests substitute a fake.
type ImmichAPI interface {
	GetPeople(ctx context.Context) ([]immichapi.Person, error)
	CreatePerson(ctx context.Context, name string) (*immichapi.Person, error)
	RenamePerson(ctx context.Context, personID, name string) (*immichapi.Person, error)
	AssignFace(ctx context.Context, faceID, personID string) error
	CreateFace(ctx context.Context, req immichapi.CreateFaceRequest) error
}

// RenameItem names one target cluster after a source person.
type RenameItem struct {
	ClusterID string `json:"cluster_id"`
	NewName   string `json:"new_name"`
}

// AssignItem moves one unclustered face to a person.
type AssignItem struct {
	FaceID string `json:"face_id"`
}

// AssignGroup is one person's worth of face assignments. When PersonID is
// empty a person named PersonName is created first; a failed creation fails
// every item in the group.
type AssignGroup struct {
	PersonID   string       `json:"person_id,omitempty"`
	PersonName string       `json:"person_name"`
	Items      []AssignItem `json:"items"`
}

// CreateFaceItem describes one face region to create.
type CreateFaceItem struct {
	AssetID     string `json:"asset_id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`
}

// CreateFaceGroup is one person's worth of face creations, with the same
// person preamble as AssignGroup.
type CreateFaceGroup struct {
	PersonID   string           `json:"person_id,omitempty"`
	PersonName string           `json:"person_name"`
	Items      []CreateFaceItem `json:"items"`
}

// MergeItem acknowledges that one source person spreads over several target
// clusters. The target service has no merge call; the item is bookkeeping.
type MergeItem struct {
	SourcePersonID   int64    `json:"src_person_id"`
	SourcePersonName string   `json:"src_person_name"`
	ClusterIDs       []string `json:"cluster_ids"`
}

// FixItem acknowledges a cluster whose matches conflict across source
// persons. Like MergeItem, this never reaches the target service.
type FixItem struct {
	ClusterID string `json:"cluster_id"`
	Note      string `json:"note,omitempty"`
}

// Executor applies operations one API call at a time.
type Executor struct {
	api ImmichAPI
}

// New creates an executor over the given API client.
func New(api ImmichAPI) *Executor {
	return &Executor{api: api}
}

// RunRename applies cluster renames. Clusters that already carry a name are
// refused and counted as skipped, never overwritten.
func (e *Executor) RunRename(ctx context.Context, job *Job, items []RenameItem) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setRunning(cancel)

	clusterNames, err := e.clusterNames(ctx, job)
	if err != nil {
		job.finish(false, err)
		return
	}

	cancelled := false
	for i, item := range items {
		if ctx.Err() != nil {
			cancelled = true
			job.recordItem(skippedItem(i, describeRename(item), ErrKindCancelled, "job cancelled"))
			continue
		}

		result := ItemResult{Index: i, Description: describeRename(item)}
		current, known := clusterNames[item.ClusterID]
		switch {
		case !known:
			result.Status = ItemFailed
			result.ErrorKind = ErrKindNotFound
			result.Error = fmt.Sprintf("cluster %s not found on server", item.ClusterID)
		case current != "":
			result.Status = ItemSkipped
			result.ErrorKind = ErrKindAlreadyNamed
			result.Error = fmt.Sprintf("cluster already named %q", current)
		case job.DryRun:
			result.Status = ItemSuccess
		default:
			if _, err := e.api.RenamePerson(ctx, item.ClusterID, item.NewName); err != nil {
				result.Status = ItemFailed
				result.ErrorKind = classifyError(err, ErrKindOther)
				result.Error = err.Error()
			} else {
				result.Status = ItemSuccess
			}
		}
		job.recordItem(result)
	}

	job.finish(cancelled, nil)
}

// RunAssign assigns unclustered faces to persons, creating missing persons
// first.
func (e *Executor) RunAssign(ctx context.Context, job *Job, groups []AssignGroup) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setRunning(cancel)

	index := 0
	cancelled := false
	for _, group := range groups {
		personID, personErr := e.ensurePerson(ctx, job, group.PersonID, group.PersonName, &cancelled)
		for _, item := range group.Items {
			description := fmt.Sprintf("assign face %s to %s", item.FaceID, group.PersonName)
			switch {
			case cancelled || ctx.Err() != nil:
				cancelled = true
				job.recordItem(skippedItem(index, description, ErrKindCancelled, "job cancelled"))
			case personErr != nil:
				job.recordItem(ItemResult{
					Index:       index,
					Description: description,
					Status:      ItemFailed,
					ErrorKind:   classifyError(personErr, ErrKindCreateFailed),
					Error:       personErr.Error(),
				})
			case job.DryRun:
				job.recordItem(ItemResult{Index: index, Description: description, Status: ItemSuccess})
			default:
				result := ItemResult{Index: index, Description: description, Status: ItemSuccess}
				if err := e.api.AssignFace(ctx, item.FaceID, personID); err != nil {
					result.Status = ItemFailed
					result.ErrorKind = classifyError(err, ErrKindAssignFailed)
					result.Error = err.Error()
				}
				job.recordItem(result)
			}
			index++
		}
	}

	job.finish(cancelled, nil)
}

// RunCreateFaces creates face regions on assets, creating missing persons
// first.
func (e *Executor) RunCreateFaces(ctx context.Context, job *Job, groups []CreateFaceGroup) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setRunning(cancel)

	index := 0
	cancelled := false
	for _, group := range groups {
		personID, personErr := e.ensurePerson(ctx, job, group.PersonID, group.PersonName, &cancelled)
		for _, item := range group.Items {
			description := fmt.Sprintf("create face on asset %s for %s", item.AssetID, group.PersonName)
			switch {
			case cancelled || ctx.Err() != nil:
				cancelled = true
				job.recordItem(skippedItem(index, description, ErrKindCancelled, "job cancelled"))
			case personErr != nil:
				job.recordItem(ItemResult{
					Index:       index,
					Description: description,
					Status:      ItemFailed,
					ErrorKind:   classifyError(personErr, ErrKindCreateFailed),
					Error:       personErr.Error(),
				})
			case job.DryRun:
				job.recordItem(ItemResult{Index: index, Description: description, Status: ItemSuccess})
			default:
				result := ItemResult{Index: index, Description: description, Status: ItemSuccess}
				err := e.api.CreateFace(ctx, immichapi.CreateFaceRequest{
					AssetID:     item.AssetID,
					PersonID:    personID,
					X:           item.X,
					Y:           item.Y,
					Width:       item.Width,
					Height:      item.Height,
					ImageWidth:  item.ImageWidth,
					ImageHeight: item.ImageHeight,
				})
				if err != nil {
					result.Status = ItemFailed
					result.ErrorKind = classifyError(err, ErrKindCreateFailed)
					result.Error = err.Error()
				}
				job.recordItem(result)
			}
			index++
		}
	}

	job.finish(cancelled, nil)
}

// RunMerge acknowledges merge candidates. The target service offers no
// cluster-merge API, so each item is marked done in the progress stream
// without any remote call.
func (e *Executor) RunMerge(ctx context.Context, job *Job, items []MergeItem) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setRunning(cancel)

	cancelled := false
	for i, item := range items {
		description := fmt.Sprintf("acknowledge merge of %s across clusters %s",
			item.SourcePersonName, strings.Join(item.ClusterIDs, ", "))
		if ctx.Err() != nil {
			cancelled = true
			job.recordItem(skippedItem(i, description, ErrKindCancelled, "job cancelled"))
			continue
		}
		job.recordItem(ItemResult{Index: i, Description: description, Status: ItemSuccess})
	}

	job.finish(cancelled, nil)
}

// RunFix acknowledges validation issues, with the same local-only semantics
// as RunMerge.
func (e *Executor) RunFix(ctx context.Context, job *Job, items []FixItem) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setRunning(cancel)

	cancelled := false
	for i, item := range items {
		description := fmt.Sprintf("acknowledge conflicting matches on cluster %s", item.ClusterID)
		if item.Note != "" {
			description += ": " + item.Note
		}
		if ctx.Err() != nil {
			cancelled = true
			job.recordItem(skippedItem(i, description, ErrKindCancelled, "job cancelled"))
			continue
		}
		job.recordItem(ItemResult{Index: i, Description: description, Status: ItemSuccess})
	}

	job.finish(cancelled, nil)
}

// ensurePerson resolves the person a group's items attach to, creating one
// when the group has no existing person. Dry runs report the would-be person
// without calling the API.
func (e *Executor) ensurePerson(ctx context.Context, job *Job, personID, personName string, cancelled *bool) (string, error) {
	if *cancelled || ctx.Err() != nil {
		*cancelled = true
		return "", nil
	}
	if personID != "" {
		return personID, nil
	}
	if job.DryRun {
		return "dry-run", nil
	}
	person, err := e.api.CreatePerson(ctx, personName)
	if err != nil {
		return "", fmt.Errorf("create person %q: %w", personName, err)
	}
	log.Printf("created person %s (%s)", personName, person.ID)
	job.SendEvent(JobEvent{
		Type:    "person_created",
		Message: personName,
		Data:    map[string]string{"person_id": person.ID, "name": personName},
	})
	return person.ID, nil
}

// clusterNames fetches the current server-side person names so renames can
// refuse clusters someone already named.
func (e *Executor) clusterNames(ctx context.Context, job *Job) (map[string]string, error) {
	if job.DryRun {
		// Dry runs still fetch, the refusal check is part of the preview.
		log.Printf("dry run: fetching people for rename preview")
	}
	people, err := e.api.GetPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch people: %w", err)
	}
	names := make(map[string]string, len(people))
	for _, p := range people {
		names[p.ID] = p.Name
	}
	return names, nil
}

func describeRename(item RenameItem) string {
	return fmt.Sprintf("rename cluster %s to %q", item.ClusterID, item.NewName)
}

func skippedItem(index int, description string, kind ErrorKind, message string) ItemResult {
	return ItemResult{
		Index:       index,
		Description: description,
		Status:      ItemSkipped,
		ErrorKind:   kind,
		Error:       message,
	}
}

// classifyError maps an API error to an error kind, falling back to the
// operation-specific kind for plain HTTP failures.
func classifyError(err error, fallback ErrorKind) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrKindTimeout
	case isNetworkError(err):
		return ErrKindNetwork
	case immichapi.IsNotFoundError(err):
		return ErrKindNotFound
	default:
		return fallback
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
