package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-migrator/internal/immichapi"
)

type fakeAPI struct {
	people []immichapi.Person

	createdPersons []string
	renames        map[string]string
	assigns        map[string]string
	createdFaces   []immichapi.CreateFaceRequest

	peopleErr       error
	createPersonErr error
	assignErr       error
	createFaceErr   error

	onAssign func()
}

func newFakeAPI(people ...immichapi.Person) *fakeAPI {
	return &fakeAPI{
		people:  people,
		renames: make(map[string]string),
		assigns: make(map[string]string),
	}
}

func (f *fakeAPI) GetPeople(ctx context.Context) ([]immichapi.Person, error) {
	if f.peopleErr != nil {
		return nil, f.peopleErr
	}
	return f.people, nil
}

func (f *fakeAPI) CreatePerson(ctx context.Context, name string) (*immichapi.Person, error) {
	if f.createPersonErr != nil {
		return nil, f.createPersonErr
	}
	f.createdPersons = append(f.createdPersons, name)
	return &immichapi.Person{ID: "new-" + name, Name: name}, nil
}

func (f *fakeAPI) RenamePerson(ctx context.Context, personID, name string) (*immichapi.Person, error) {
	f.renames[personID] = name
	return &immichapi.Person{ID: personID, Name: name}, nil
}

func (f *fakeAPI) AssignFace(ctx context.Context, faceID, personID string) error {
	if f.onAssign != nil {
		f.onAssign()
	}
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigns[faceID] = personID
	return nil
}

func (f *fakeAPI) CreateFace(ctx context.Context, req immichapi.CreateFaceRequest) error {
	if f.createFaceErr != nil {
		return f.createFaceErr
	}
	f.createdFaces = append(f.createdFaces, req)
	return nil
}

func checkCounts(t *testing.T, job *Job) {
	t.Helper()
	if job.Succeeded+job.Failed+job.Skipped != job.Total {
		t.Errorf("counts must add up: %d + %d + %d != %d",
			job.Succeeded, job.Failed, job.Skipped, job.Total)
	}
	if job.Processed != job.Total {
		t.Errorf("processed %d of %d items", job.Processed, job.Total)
	}
}

func TestRunRename(t *testing.T) {
	api := newFakeAPI(
		immichapi.Person{ID: "c1", Name: ""},
		immichapi.Person{ID: "c2", Name: "Taken"},
	)
	manager := NewJobManager()
	items := []RenameItem{
		{ClusterID: "c1", NewName: "Alice"},
		{ClusterID: "c2", NewName: "Bob"},
		{ClusterID: "c3", NewName: "Carol"},
	}
	job := manager.CreateJob("j1", JobKindRename, len(items), false)

	New(api).RunRename(context.Background(), job, items)

	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.GetStatus())
	}
	checkCounts(t, job)
	if job.Succeeded != 1 || job.Skipped != 1 || job.Failed != 1 {
		t.Fatalf("expected 1/1/1 success/skip/fail, got %d/%d/%d", job.Succeeded, job.Skipped, job.Failed)
	}
	if api.renames["c1"] != "Alice" {
		t.Error("expected c1 renamed to Alice")
	}
	if _, ok := api.renames["c2"]; ok {
		t.Error("already-named cluster must never be renamed")
	}
	if job.Items[1].ErrorKind != ErrKindAlreadyNamed {
		t.Errorf("expected already_named, got %s", job.Items[1].ErrorKind)
	}
	if job.Items[2].ErrorKind != ErrKindNotFound {
		t.Errorf("expected not_found for unknown cluster, got %s", job.Items[2].ErrorKind)
	}
}

func TestRunRenameDryRun(t *testing.T) {
	api := newFakeAPI(immichapi.Person{ID: "c1", Name: ""})
	manager := NewJobManager()
	items := []RenameItem{{ClusterID: "c1", NewName: "Alice"}}
	job := manager.CreateJob("j1", JobKindRename, len(items), true)

	New(api).RunRename(context.Background(), job, items)

	if job.Succeeded != 1 {
		t.Fatalf("dry run should report success, got %d", job.Succeeded)
	}
	if len(api.renames) != 0 {
		t.Error("dry run must not call the rename API")
	}
}

func TestRunAssignCreatesPersonOnce(t *testing.T) {
	api := newFakeAPI()
	manager := NewJobManager()
	groups := []AssignGroup{
		{
			PersonName: "Alice",
			Items:      []AssignItem{{FaceID: "f1"}, {FaceID: "f2"}},
		},
		{
			PersonID:   "existing-bob",
			PersonName: "Bob",
			Items:      []AssignItem{{FaceID: "f3"}},
		},
	}
	job := manager.CreateJob("j1", JobKindAssign, 3, false)

	New(api).RunAssign(context.Background(), job, groups)

	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.GetStatus())
	}
	checkCounts(t, job)
	if job.Succeeded != 3 {
		t.Fatalf("expected 3 successes, got %d", job.Succeeded)
	}
	if len(api.createdPersons) != 1 || api.createdPersons[0] != "Alice" {
		t.Fatalf("expected exactly one person created for Alice, got %v", api.createdPersons)
	}
	if api.assigns["f1"] != "new-Alice" || api.assigns["f2"] != "new-Alice" {
		t.Error("Alice's faces must go to the newly created person")
	}
	if api.assigns["f3"] != "existing-bob" {
		t.Error("Bob's face must reuse the existing person")
	}
}

func TestRunAssignPersonCreationFailure(t *testing.T) {
	api := newFakeAPI()
	api.createPersonErr = errors.New("server error, status 500")
	manager := NewJobManager()
	groups := []AssignGroup{
		{PersonName: "Alice", Items: []AssignItem{{FaceID: "f1"}, {FaceID: "f2"}}},
	}
	job := manager.CreateJob("j1", JobKindAssign, 2, false)

	New(api).RunAssign(context.Background(), job, groups)

	checkCounts(t, job)
	if job.Failed != 2 {
		t.Fatalf("all items of the group must fail when person creation fails, got %d failed", job.Failed)
	}
	for _, item := range job.Items {
		if item.ErrorKind != ErrKindCreateFailed {
			t.Errorf("expected create_failed, got %s", item.ErrorKind)
		}
	}
	if len(api.assigns) != 0 {
		t.Error("no assignment may happen after person creation failed")
	}
}

func TestRunAssignCancellation(t *testing.T) {
	api := newFakeAPI()
	manager := NewJobManager()
	groups := []AssignGroup{
		{
			PersonID:   "p1",
			PersonName: "Alice",
			Items:      []AssignItem{{FaceID: "f1"}, {FaceID: "f2"}, {FaceID: "f3"}},
		},
	}
	job := manager.CreateJob("j1", JobKindAssign, 3, false)

	executor := New(api)
	// Cancel while the first item is in flight. It completes, the rest are
	// skipped.
	api.onAssign = func() {
		api.onAssign = nil
		job.Cancel()
	}
	executor.RunAssign(context.Background(), job, groups)

	if job.GetStatus() != JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", job.GetStatus())
	}
	checkCounts(t, job)
	if job.Succeeded != 1 {
		t.Errorf("the in-flight item must complete, got %d successes", job.Succeeded)
	}
	if job.Skipped != 2 {
		t.Errorf("remaining items must be skipped, got %d", job.Skipped)
	}
	for _, item := range job.Items[1:] {
		if item.ErrorKind != ErrKindCancelled {
			t.Errorf("expected cancelled kind, got %s", item.ErrorKind)
		}
	}
	if len(api.assigns) != 1 {
		t.Errorf("only one API call may have happened, got %d", len(api.assigns))
	}
}

func TestRunCreateFaces(t *testing.T) {
	api := newFakeAPI()
	manager := NewJobManager()
	groups := []CreateFaceGroup{
		{
			PersonID:   "p1",
			PersonName: "Alice",
			Items: []CreateFaceItem{
				{AssetID: "a1", X: 100, Y: 50, Width: 200, Height: 250, ImageWidth: 1920, ImageHeight: 1080},
			},
		},
	}
	job := manager.CreateJob("j1", JobKindCreateFaces, 1, false)

	New(api).RunCreateFaces(context.Background(), job, groups)

	checkCounts(t, job)
	if job.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %d", job.Succeeded)
	}
	req := api.createdFaces[0]
	if req.PersonID != "p1" || req.AssetID != "a1" {
		t.Errorf("unexpected create request %+v", req)
	}
	if req.X != 100 || req.Y != 50 || req.Width != 200 || req.Height != 250 {
		t.Errorf("pixel coordinates must pass through unchanged, got %+v", req)
	}
}

func TestRunMerge(t *testing.T) {
	manager := NewJobManager()
	items := []MergeItem{
		{SourcePersonID: 1, SourcePersonName: "Alice", ClusterIDs: []string{"c1", "c2"}},
		{SourcePersonID: 2, SourcePersonName: "Bob", ClusterIDs: []string{"c3", "c4", "c5"}},
	}
	job := manager.CreateJob("j1", JobKindMerge, len(items), false)

	// Merges never reach the target service, so no API client is needed.
	New(nil).RunMerge(context.Background(), job, items)

	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.GetStatus())
	}
	checkCounts(t, job)
	if job.Succeeded != 2 {
		t.Fatalf("every acknowledgement must succeed, got %d", job.Succeeded)
	}
	if got := job.Items[0].Description; got != `acknowledge merge of Alice across clusters c1, c2` {
		t.Errorf("unexpected description %q", got)
	}
}

func TestRunMergeCancelled(t *testing.T) {
	manager := NewJobManager()
	items := []MergeItem{
		{SourcePersonName: "Alice", ClusterIDs: []string{"c1", "c2"}},
	}
	job := manager.CreateJob("j1", JobKindMerge, len(items), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	New(nil).RunMerge(ctx, job, items)

	if job.GetStatus() != JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", job.GetStatus())
	}
	checkCounts(t, job)
	if job.Skipped != 1 {
		t.Errorf("cancelled items must be skipped, got %d", job.Skipped)
	}
	if job.Items[0].ErrorKind != ErrKindCancelled {
		t.Errorf("expected cancelled kind, got %s", job.Items[0].ErrorKind)
	}
}

func TestRunFix(t *testing.T) {
	manager := NewJobManager()
	items := []FixItem{
		{ClusterID: "c1"},
		{ClusterID: "c2", Note: "split between Alice and Bob"},
	}
	job := manager.CreateJob("j1", JobKindFix, len(items), false)

	New(nil).RunFix(context.Background(), job, items)

	if job.GetStatus() != JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.GetStatus())
	}
	checkCounts(t, job)
	if job.Succeeded != 2 {
		t.Fatalf("every acknowledgement must succeed, got %d", job.Succeeded)
	}
	if got := job.Items[1].Description; got != "acknowledge conflicting matches on cluster c2: split between Alice and Bob" {
		t.Errorf("note must be carried into the description, got %q", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback ErrorKind
		want     ErrorKind
	}{
		{"timeout", context.DeadlineExceeded, ErrKindOther, ErrKindTimeout},
		{"not found", errors.New("request failed with status 404"), ErrKindAssignFailed, ErrKindNotFound},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrKindOther, ErrKindNetwork},
		{"plain failure", errors.New("status 500"), ErrKindAssignFailed, ErrKindAssignFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err, tt.fallback); got != tt.want {
				t.Errorf("classifyError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestJobManager(t *testing.T) {
	manager := NewJobManager()
	job := manager.CreateJob("j1", JobKindRename, 5, false)
	if manager.GetJob("j1") != job {
		t.Fatal("expected to retrieve the created job")
	}
	if manager.GetJob("missing") != nil {
		t.Fatal("unknown job id must return nil")
	}
	if got := len(manager.ListJobs()); got != 1 {
		t.Fatalf("expected 1 job listed, got %d", got)
	}
	manager.DeleteJob("j1")
	if manager.GetJob("j1") != nil {
		t.Fatal("deleted job must be gone")
	}
}
