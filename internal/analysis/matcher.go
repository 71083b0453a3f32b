package analysis

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// sourceFaceRef carries the owning person alongside a face for matching.
type sourceFaceRef struct {
	person *store.SourcePerson
	face   *store.SourceFace
}

// Match enumerates, for every common photo, the Cartesian product of source
// and target faces on that photo and emits one RawFaceMatch per pair with
// IoU > 0. Matching is many-to-many; nothing is deduplicated here and no
// threshold is applied. Photos are processed in parallel, results are
// returned in deterministic order (photo, source face, target face).
func Match(src *store.SourceSnapshot, tgt *store.TargetSnapshot, join *JoinResult) []RawFaceMatch {
	return MatchWithProgress(src, tgt, join, nil)
}

// MatchWithProgress is Match with a callback invoked after each photo
// finishes, so the CLI can drive a progress bar. The callback may run
// concurrently from the worker goroutines.
func MatchWithProgress(
	src *store.SourceSnapshot,
	tgt *store.TargetSnapshot,
	join *JoinResult,
	progress func(done, total int),
) []RawFaceMatch {
	sourceByPhoto := make(map[store.PhotoKey][]sourceFaceRef)
	for i := range src.Persons {
		person := &src.Persons[i]
		for j := range person.Faces {
			face := &person.Faces[j]
			if _, ok := join.Common[face.Photo]; ok {
				sourceByPhoto[face.Photo] = append(sourceByPhoto[face.Photo], sourceFaceRef{person: person, face: face})
			}
		}
	}

	targetByPhoto := make(map[store.PhotoKey][]*store.TargetFace)
	for i := range tgt.Faces {
		face := &tgt.Faces[i]
		if _, ok := join.Common[face.Photo]; ok {
			targetByPhoto[face.Photo] = append(targetByPhoto[face.Photo], face)
		}
	}

	clusterNames := make(map[string]string, len(tgt.Clusters))
	for _, c := range tgt.Clusters {
		clusterNames[c.ID] = c.Name
	}

	photos := make([]store.PhotoKey, 0, len(join.Common))
	for key := range join.Common {
		photos = append(photos, key)
	}
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].FileName != photos[j].FileName {
			return photos[i].FileName < photos[j].FileName
		}
		return photos[i].FileSize < photos[j].FileSize
	})

	// The per-photo products are independent, so fan out across photos and
	// stitch results back together in photo order.
	perPhoto := make([][]RawFaceMatch, len(photos))
	workers := min(runtime.NumCPU(), len(photos))
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	var done atomic.Int64
	work := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				perPhoto[idx] = matchPhoto(photos[idx], sourceByPhoto[photos[idx]], targetByPhoto[photos[idx]], clusterNames)
				if progress != nil {
					progress(int(done.Add(1)), len(photos))
				}
			}
		}()
	}
	for idx := range photos {
		work <- idx
	}
	close(work)
	wg.Wait()

	var matches []RawFaceMatch
	for _, photoMatches := range perPhoto {
		matches = append(matches, photoMatches...)
	}
	return matches
}

// matchPhoto computes all overlapping pairs on a single photo.
func matchPhoto(
	photo store.PhotoKey,
	sources []sourceFaceRef,
	targets []*store.TargetFace,
	clusterNames map[string]string,
) []RawFaceMatch {
	if len(sources) == 0 || len(targets) == 0 {
		return nil
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].face.ID < sources[j].face.ID })
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

	var matches []RawFaceMatch
	for _, s := range sources {
		for _, t := range targets {
			iou := facematch.ComputeIoU(s.face.BBox, t.BBox)
			if iou <= 0 {
				continue
			}
			matches = append(matches, RawFaceMatch{
				SourcePersonID:   s.person.ID,
				SourcePersonName: s.person.Name,
				SourceFaceID:     s.face.ID,
				ClusterID:        t.ClusterID,
				ClusterName:      clusterNames[t.ClusterID],
				TargetFaceID:     t.ID,
				AssetID:          t.AssetID,
				Photo:            photo,
				FileName:         photo.FileName,
				IoU:              iou,
				CenterDist:       facematch.CenterDistance(s.face.BBox, t.BBox),
			})
		}
	}
	return matches
}
