package analysis

import (
	"math"
	"testing"

	"github.com/kozaktomas/face-migrator/internal/store"
)

func photo(name string, size int64) store.PhotoKey {
	return store.NewPhotoKey(name, size)
}

func testSource(persons ...store.SourcePerson) *store.SourceSnapshot {
	return &store.SourceSnapshot{Persons: persons}
}

func testTarget(faces []store.TargetFace, clusters []store.Cluster, assets []store.TargetAsset) *store.TargetSnapshot {
	return &store.TargetSnapshot{
		Faces:       faces,
		Clusters:    clusters,
		Assets:      assets,
		PersonNames: map[string]string{},
	}
}

func TestJoin(t *testing.T) {
	p1 := photo("a.jpg", 100)
	p2 := photo("b.jpg", 200)
	p3 := photo("c.jpg", 300)
	p4 := photo("d.jpg", 400)

	src := testSource(store.SourcePerson{
		ID:   1,
		Name: "Alice",
		Faces: []store.SourceFace{
			{ID: 10, PersonID: 1, Photo: p1, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
			{ID: 11, PersonID: 1, Photo: p2, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
			{ID: 12, PersonID: 1, Photo: p3, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
		},
	})
	tgt := testTarget(
		[]store.TargetFace{
			{ID: "f1", AssetID: "a1", Photo: p1, BBox: []float64{0.1, 0.1, 0.3, 0.3}},
		},
		nil,
		[]store.TargetAsset{
			{ID: "a1", Photo: p1, Width: 1000, Height: 800},
			{ID: "a2", Photo: p2, Width: 1000, Height: 800},
			{ID: "a4", Photo: p4, Width: 1000, Height: 800},
		},
	)

	join := Join(src, tgt)

	if got := len(join.Common); got != 2 {
		t.Errorf("expected 2 common photos, got %d", got)
	}
	if _, ok := join.Common[p1]; !ok {
		t.Error("expected a.jpg in common set")
	}
	if _, ok := join.Common[p2]; !ok {
		t.Error("expected b.jpg in common set, asset without faces should still join")
	}
	if join.SourceOnly != 1 {
		t.Errorf("expected 1 source-only photo, got %d", join.SourceOnly)
	}
	if join.TargetOnly != 1 {
		t.Errorf("expected 1 target-only photo, got %d", join.TargetOnly)
	}
}

func TestJoinCaseInsensitiveFilenames(t *testing.T) {
	src := testSource(store.SourcePerson{
		ID:   1,
		Name: "Alice",
		Faces: []store.SourceFace{
			{ID: 10, PersonID: 1, Photo: photo("IMG_001.JPG", 500), BBox: []float64{0.1, 0.1, 0.3, 0.3}},
		},
	})
	tgt := testTarget(nil, nil, []store.TargetAsset{
		{ID: "a1", Photo: photo("img_001.jpg", 500), Width: 1000, Height: 800},
	})

	join := Join(src, tgt)
	if len(join.Common) != 1 {
		t.Fatalf("expected case-insensitive filenames to join, got %d common", len(join.Common))
	}
}

func TestMatchManyToMany(t *testing.T) {
	p1 := photo("a.jpg", 100)
	src := testSource(store.SourcePerson{
		ID:   1,
		Name: "Alice",
		Faces: []store.SourceFace{
			{ID: 10, PersonID: 1, Photo: p1, BBox: []float64{0.1, 0.1, 0.5, 0.5}},
			{ID: 11, PersonID: 1, Photo: p1, BBox: []float64{0.2, 0.2, 0.6, 0.6}},
		},
	})
	tgt := testTarget(
		[]store.TargetFace{
			{ID: "f1", AssetID: "a1", ClusterID: "c1", Photo: p1, BBox: []float64{0.1, 0.1, 0.5, 0.5}},
			{ID: "f2", AssetID: "a1", ClusterID: "c1", Photo: p1, BBox: []float64{0.3, 0.3, 0.7, 0.7}},
			{ID: "f3", AssetID: "a1", ClusterID: "c1", Photo: p1, BBox: []float64{0.8, 0.8, 0.95, 0.95}},
		},
		[]store.Cluster{{ID: "c1", Name: "", FaceCount: 3}},
		[]store.TargetAsset{{ID: "a1", Photo: p1, Width: 1000, Height: 800}},
	)

	matches := Match(src, tgt, Join(src, tgt))

	// Face 10 overlaps f1 and f2; face 11 overlaps f1 and f2. f3 overlaps
	// neither, so it must not appear.
	if len(matches) != 4 {
		t.Fatalf("expected 4 raw matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.TargetFaceID == "f3" {
			t.Error("non-overlapping face f3 must not be matched")
		}
		if m.IoU <= 0 {
			t.Errorf("match %d->%s emitted with IoU %f", m.SourceFaceID, m.TargetFaceID, m.IoU)
		}
	}

	exact := matches[0]
	if exact.SourceFaceID != 10 || exact.TargetFaceID != "f1" {
		t.Fatalf("expected deterministic order starting with 10->f1, got %d->%s", exact.SourceFaceID, exact.TargetFaceID)
	}
	if math.Abs(exact.IoU-1.0) > 1e-9 {
		t.Errorf("identical rectangles should have IoU 1.0, got %f", exact.IoU)
	}
	if exact.CenterDist > 1e-9 {
		t.Errorf("identical rectangles should have zero center distance, got %f", exact.CenterDist)
	}
}

func TestMatchDeterministicAcrossRuns(t *testing.T) {
	var persons []store.SourcePerson
	var faces []store.TargetFace
	var assets []store.TargetAsset
	person := store.SourcePerson{ID: 1, Name: "Alice"}
	for i := 0; i < 30; i++ {
		p := photo("img.jpg", int64(i))
		person.Faces = append(person.Faces, store.SourceFace{
			ID: int64(100 + i), PersonID: 1, Photo: p, BBox: []float64{0.1, 0.1, 0.4, 0.4},
		})
		faces = append(faces, store.TargetFace{
			ID: "f" + string(rune('a'+i%26)) + string(rune('0'+i/26)), AssetID: "a", ClusterID: "c1",
			Photo: p, BBox: []float64{0.15, 0.15, 0.45, 0.45},
		})
		assets = append(assets, store.TargetAsset{ID: "a", Photo: p, Width: 100, Height: 100})
	}
	persons = append(persons, person)
	src := testSource(persons...)
	tgt := testTarget(faces, []store.Cluster{{ID: "c1", FaceCount: 30}}, assets)
	join := Join(src, tgt)

	first := Match(src, tgt, join)
	for run := 0; run < 3; run++ {
		again := Match(src, tgt, join)
		if len(again) != len(first) {
			t.Fatalf("run %d: match count changed from %d to %d", run, len(first), len(again))
		}
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("run %d: match %d differs between runs", run, i)
			}
		}
	}
}

func TestThresholdsPass(t *testing.T) {
	thresholds := Thresholds{MinIoU: 0.30, MaxCenterDist: 0.40}
	tests := []struct {
		name string
		iou  float64
		dist float64
		want bool
	}{
		{"both pass", 0.50, 0.10, true},
		{"iou at boundary", 0.30, 0.10, true},
		{"dist at boundary", 0.50, 0.40, true},
		{"iou too low", 0.29, 0.10, false},
		{"dist too high", 0.50, 0.41, false},
		{"both fail", 0.10, 0.90, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := RawFaceMatch{IoU: tt.iou, CenterDist: tt.dist}
			if got := thresholds.Pass(m); got != tt.want {
				t.Errorf("Pass(iou=%f, dist=%f) = %v, want %v", tt.iou, tt.dist, got, tt.want)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	tgt := testTarget(nil, []store.Cluster{
		{ID: "c1", Name: "", FaceCount: 10},
		{ID: "c2", Name: "Bob", FaceCount: 4},
	}, nil)
	thresholds := DefaultThresholds()

	var matches []RawFaceMatch
	for i := 0; i < 5; i++ {
		matches = append(matches, RawFaceMatch{
			SourcePersonID: 1, SourcePersonName: "Alice", SourceFaceID: int64(10 + i),
			ClusterID: "c1", TargetFaceID: "f1", FileName: "a.jpg",
			IoU: 0.50, CenterDist: 0.10,
		})
	}
	matches = append(matches,
		RawFaceMatch{
			SourcePersonID: 2, SourcePersonName: "Bob", SourceFaceID: 20,
			ClusterID: "c2", ClusterName: "Bob", TargetFaceID: "f2", FileName: "b.jpg",
			IoU: 0.36, CenterDist: 0.20,
		},
		RawFaceMatch{
			SourcePersonID: 2, SourcePersonName: "Bob", SourceFaceID: 21,
			ClusterID: "c2", ClusterName: "Bob", TargetFaceID: "f3", FileName: "c.jpg",
			IoU: 0.36, CenterDist: 0.20,
		},
		// Below IoU threshold, must be excluded.
		RawFaceMatch{
			SourcePersonID: 3, SourcePersonName: "Carol", SourceFaceID: 30,
			ClusterID: "c1", TargetFaceID: "f4", FileName: "d.jpg",
			IoU: 0.10, CenterDist: 0.10,
		},
		// Unclustered, must be excluded from pair aggregates.
		RawFaceMatch{
			SourcePersonID: 1, SourcePersonName: "Alice", SourceFaceID: 15,
			ClusterID: "", TargetFaceID: "f5", FileName: "e.jpg",
			IoU: 0.80, CenterDist: 0.05,
		},
	)

	aggregates := Aggregate(matches, thresholds, tgt)
	if len(aggregates) != 2 {
		t.Fatalf("expected 2 pair aggregates, got %d", len(aggregates))
	}

	first := aggregates[0]
	if first.SourcePersonID != 1 || first.ClusterID != "c1" {
		t.Fatalf("expected Alice/c1 first by count, got person %d cluster %s", first.SourcePersonID, first.ClusterID)
	}
	if first.Count != 5 {
		t.Errorf("expected 5 matches for Alice/c1, got %d", first.Count)
	}
	if first.Confidence != ConfidenceHigh {
		t.Errorf("5 matches at 0.50 mean IoU should grade high, got %s", first.Confidence)
	}
	if first.TotalFacesInCluster != 10 {
		t.Errorf("expected cluster face total 10, got %d", first.TotalFacesInCluster)
	}

	second := aggregates[1]
	if second.Confidence != ConfidenceMedium {
		t.Errorf("2 matches at 0.36 mean IoU should grade medium, got %s", second.Confidence)
	}
}

func TestGradeConfidence(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		meanIoU float64
		want    Confidence
	}{
		{"high", 5, 0.40, ConfidenceHigh},
		{"high count low iou", 5, 0.39, ConfidenceMedium},
		{"medium", 2, 0.35, ConfidenceMedium},
		{"single match", 1, 0.90, ConfidenceLow},
		{"low iou", 3, 0.20, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeConfidence(tt.count, tt.meanIoU); got != tt.want {
				t.Errorf("GradeConfidence(%d, %f) = %s, want %s", tt.count, tt.meanIoU, got, tt.want)
			}
		})
	}
}

func TestSamplePhotosDistinctAndLimited(t *testing.T) {
	samples := []sampleMatch{
		{fileName: "low.jpg", iou: 0.10},
		{fileName: "best.jpg", iou: 0.90},
		{fileName: "best.jpg", iou: 0.85},
		{fileName: "b.jpg", iou: 0.70},
		{fileName: "c.jpg", iou: 0.60},
		{fileName: "d.jpg", iou: 0.50},
		{fileName: "e.jpg", iou: 0.40},
	}
	photos := samplePhotos(samples)
	if len(photos) != 5 {
		t.Fatalf("expected sample list capped at 5, got %d", len(photos))
	}
	if photos[0] != "best.jpg" {
		t.Errorf("expected best overlap first, got %s", photos[0])
	}
	for i, p := range photos {
		for j := i + 1; j < len(photos); j++ {
			if p == photos[j] {
				t.Errorf("duplicate sample photo %s", p)
			}
		}
	}
	if photos[len(photos)-1] == "low.jpg" {
		t.Error("lowest overlap should be crowded out by the cap")
	}
}
