package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
	"github.com/kozaktomas/face-migrator/internal/store/mock"
)

func coordinatorFixture() (*Coordinator, *mock.SourceReader, *mock.TargetReader) {
	p1 := photo("a.jpg", 100)
	src := testSource(store.SourcePerson{
		ID: 1, Name: "Alice",
		Faces: []store.SourceFace{
			{ID: 10, PersonID: 1, Photo: p1, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
		},
	})
	tgt := testTarget(
		[]store.TargetFace{
			{ID: "f1", AssetID: "a1", ClusterID: "c1", Photo: p1, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
		},
		[]store.Cluster{{ID: "c1", Name: "", FaceCount: 1}},
		[]store.TargetAsset{{ID: "a1", Photo: p1, Width: 1000, Height: 800}},
	)
	source := mock.NewSourceReader(src)
	target := mock.NewTargetReader(tgt)
	return NewCoordinator(source, target, facematch.NameMatchFold), source, target
}

func TestCoordinatorCachesSnapshots(t *testing.T) {
	coord, source, target := coordinatorFixture()
	ctx := context.Background()

	bundle, err := coord.Run(ctx, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.Stats.RawMatches != 1 {
		t.Fatalf("expected 1 raw match, got %d", bundle.Stats.RawMatches)
	}
	if bundle.Stats.PassingMatches != 1 {
		t.Errorf("identical rectangles must pass defaults, got %d passing", bundle.Stats.PassingMatches)
	}
	if len(bundle.RenameApplicable) != 1 {
		t.Errorf("unnamed cluster should be rename applicable, got %d", len(bundle.RenameApplicable))
	}

	// A threshold change must not hit the stores again.
	if _, err := coord.Run(ctx, Thresholds{MinIoU: 0.9, MaxCenterDist: 0.1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.SnapshotCalls != 1 || target.SnapshotCalls != 1 {
		t.Errorf("expected cached snapshots, got %d/%d reads", source.SnapshotCalls, target.SnapshotCalls)
	}

	coord.Invalidate()
	if _, err := coord.Run(ctx, DefaultThresholds()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.SnapshotCalls != 2 || target.SnapshotCalls != 2 {
		t.Errorf("expected re-read after invalidation, got %d/%d reads", source.SnapshotCalls, target.SnapshotCalls)
	}
}

func TestCoordinatorSourceError(t *testing.T) {
	coord, source, _ := coordinatorFixture()
	source.SnapshotError = store.ErrUnreachable

	_, err := coord.Run(context.Background(), DefaultThresholds())
	if !errors.Is(err, store.ErrUnreachable) {
		t.Fatalf("expected wrapped ErrUnreachable, got %v", err)
	}
}

func TestCoordinatorThresholdChangeChangesBuckets(t *testing.T) {
	coord, _, _ := coordinatorFixture()
	ctx := context.Background()

	loose, err := coord.Run(ctx, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loose.Matches) != 1 {
		t.Fatalf("expected 1 pair at default thresholds, got %d", len(loose.Matches))
	}

	strict, err := coord.Run(ctx, Thresholds{MinIoU: 1.1, MaxCenterDist: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(strict.Matches) != 0 {
		t.Errorf("impossible thresholds must drop all pairs, got %d", len(strict.Matches))
	}
	if strict.Stats.RawMatches != 1 {
		t.Errorf("raw match list is threshold independent, got %d", strict.Stats.RawMatches)
	}
}

func TestMatchDetailsFor(t *testing.T) {
	coord, _, _ := coordinatorFixture()

	details, err := coord.MatchDetailsFor(context.Background(), 1, "c1", DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.SourcePersonName != "Alice" {
		t.Errorf("expected person name Alice, got %q", details.SourcePersonName)
	}
	if len(details.Details) != 1 {
		t.Fatalf("expected 1 match detail, got %d", len(details.Details))
	}
	d := details.Details[0]
	if !d.Passing {
		t.Error("identical rectangles must pass default thresholds")
	}
	if len(d.SourceBBox) != 4 || len(d.TargetBBox) != 4 {
		t.Errorf("expected both rectangles populated, got %v / %v", d.SourceBBox, d.TargetBBox)
	}
}

func TestMissingPeople(t *testing.T) {
	p1 := photo("a.jpg", 100)
	p2 := photo("b.jpg", 200)
	src := testSource(
		store.SourcePerson{
			ID: 1, Name: "Alice",
			Faces: []store.SourceFace{
				{ID: 10, PersonID: 1, Photo: p1, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
			},
		},
		store.SourcePerson{
			ID: 2, Name: "Bob",
			Faces: []store.SourceFace{
				{ID: 20, PersonID: 2, Photo: p2, BBox: []float64{0.5, 0.5, 0.7, 0.7}},
			},
		},
	)
	tgt := testTarget(
		[]store.TargetFace{
			{ID: "f1", AssetID: "a1", ClusterID: "c1", Photo: p1, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
		},
		[]store.Cluster{{ID: "c1", FaceCount: 1}},
		[]store.TargetAsset{{ID: "a1", Photo: p1, Width: 1000, Height: 800}},
	)
	tgt.PersonNames = map[string]string{"alice": "person-uuid-1"}
	coord := NewCoordinator(mock.NewSourceReader(src), mock.NewTargetReader(tgt), facematch.NameMatchFold)

	report, err := coord.MissingPeople(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total != 1 {
		t.Fatalf("expected 1 missing person, got %d", report.Total)
	}
	missing := report.Persons[0]
	if missing.SourcePersonID != 2 {
		t.Errorf("expected Bob missing, got person %d", missing.SourcePersonID)
	}
	if missing.Diagnosis != DiagnosisPhotosNotInTarget {
		t.Errorf("Bob's photo is absent from the target, got diagnosis %s", missing.Diagnosis)
	}
	if missing.PhotosChecked != 1 || missing.PhotosInTarget != 0 {
		t.Errorf("expected 1 checked / 0 in target, got %d/%d", missing.PhotosChecked, missing.PhotosInTarget)
	}
}

func TestMissingPeopleDiagnosisIoUMismatch(t *testing.T) {
	p1 := photo("a.jpg", 100)
	src := testSource(store.SourcePerson{
		ID: 1, Name: "Alice",
		Faces: []store.SourceFace{
			{ID: 10, PersonID: 1, Photo: p1, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
		},
	})
	tgt := testTarget(
		[]store.TargetFace{
			// Face exists on the photo but far away from Alice's.
			{ID: "f1", AssetID: "a1", ClusterID: "c1", Photo: p1, BBox: []float64{0.7, 0.7, 0.9, 0.9}},
		},
		[]store.Cluster{{ID: "c1", FaceCount: 1}},
		[]store.TargetAsset{{ID: "a1", Photo: p1, Width: 1000, Height: 800}},
	)
	coord := NewCoordinator(mock.NewSourceReader(src), mock.NewTargetReader(tgt), facematch.NameMatchFold)

	report, err := coord.MissingPeople(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total != 1 {
		t.Fatalf("expected 1 missing person, got %d", report.Total)
	}
	if got := report.Persons[0].Diagnosis; got != DiagnosisIoUMismatch {
		t.Errorf("photo and faces exist, expected iou_mismatch, got %s", got)
	}
}
