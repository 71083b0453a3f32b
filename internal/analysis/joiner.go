package analysis

import "github.com/kozaktomas/face-migrator/internal/store"

// JoinResult is the photo-set intersection of the two stores. Photos present
// on only one side are counted, not enumerated; the counts are the user's
// main tool for spotting import or path-mapping gaps.
type JoinResult struct {
	Common     map[store.PhotoKey]struct{}
	SourceOnly int
	TargetOnly int
}

// Join intersects the photo sets of the two snapshots on PhotoKey. The source
// side contributes photos that carry at least one usable face; the target
// side contributes all image assets, so photos the target never detected a
// face on still join (they matter for face creation).
func Join(src *store.SourceSnapshot, tgt *store.TargetSnapshot) *JoinResult {
	sourcePhotos := make(map[store.PhotoKey]struct{})
	for _, person := range src.Persons {
		for _, face := range person.Faces {
			if face.Photo.Valid() {
				sourcePhotos[face.Photo] = struct{}{}
			}
		}
	}

	targetPhotos := make(map[store.PhotoKey]struct{}, len(tgt.Assets))
	for _, asset := range tgt.Assets {
		if asset.Photo.Valid() {
			targetPhotos[asset.Photo] = struct{}{}
		}
	}
	for _, face := range tgt.Faces {
		if face.Photo.Valid() {
			targetPhotos[face.Photo] = struct{}{}
		}
	}

	result := &JoinResult{Common: make(map[store.PhotoKey]struct{})}
	for key := range sourcePhotos {
		if _, ok := targetPhotos[key]; ok {
			result.Common[key] = struct{}{}
		} else {
			result.SourceOnly++
		}
	}
	for key := range targetPhotos {
		if _, ok := sourcePhotos[key]; !ok {
			result.TargetOnly++
		}
	}

	return result
}
