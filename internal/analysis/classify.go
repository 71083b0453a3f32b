package analysis

import (
	"sort"

	"github.com/kozaktomas/face-migrator/internal/constants"
	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// RenameApplicable filters the pair aggregates down to those whose target
// cluster has no name yet, i.e. the ones a rename operation can act on.
func RenameApplicable(aggregates []PairAggregate) []PairAggregate {
	applicable := make([]PairAggregate, 0)
	for _, a := range aggregates {
		if a.ClusterName == "" {
			applicable = append(applicable, a)
		}
	}
	return applicable
}

// AssignUnclustered groups passing matches against unclustered target faces
// by source person. Each target face appears at most once per group; when a
// face matched several faces of the same person the best overlap wins.
func AssignUnclustered(
	matches []RawFaceMatch,
	thresholds Thresholds,
	src *store.SourceSnapshot,
	tgt *store.TargetSnapshot,
	nameMode facematch.NameMatchMode,
) []AssignGroup {
	type faceBest struct {
		match RawFaceMatch
		bbox  []float64
	}
	byPerson := make(map[int64]map[string]faceBest)
	personNames := make(map[int64]string)

	sourceBBoxes := sourceBBoxIndex(src)

	for _, m := range matches {
		if m.ClusterID != "" || !thresholds.Pass(m) {
			continue
		}
		faces, ok := byPerson[m.SourcePersonID]
		if !ok {
			faces = make(map[string]faceBest)
			byPerson[m.SourcePersonID] = faces
			personNames[m.SourcePersonID] = m.SourcePersonName
		}
		if best, ok := faces[m.TargetFaceID]; !ok || m.IoU > best.match.IoU {
			faces[m.TargetFaceID] = faceBest{match: m, bbox: sourceBBoxes[m.SourceFaceID]}
		}
	}

	targetBBoxes := make(map[string][]float64, len(tgt.Faces))
	for i := range tgt.Faces {
		targetBBoxes[tgt.Faces[i].ID] = tgt.Faces[i].BBox
	}

	groups := make([]AssignGroup, 0, len(byPerson))
	for personID, faces := range byPerson {
		group := AssignGroup{
			SourcePersonID:   personID,
			SourcePersonName: personNames[personID],
		}

		entries := make([]faceBest, 0, len(faces))
		for _, fb := range faces {
			entries = append(entries, fb)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].match.TargetFaceID < entries[j].match.TargetFaceID
		})

		sumIoU := 0.0
		samples := make([]sampleMatch, 0, len(entries))
		for _, fb := range entries {
			m := fb.match
			group.FaceIDs = append(group.FaceIDs, m.TargetFaceID)
			group.Faces = append(group.Faces, AssignPreviewFace{
				FaceID:     m.TargetFaceID,
				AssetID:    m.AssetID,
				FileName:   m.FileName,
				SourceBBox: fb.bbox,
				TargetBBox: targetBBoxes[m.TargetFaceID],
				IoU:        m.IoU,
			})
			sumIoU += m.IoU
			samples = append(samples, sampleMatch{fileName: m.FileName, iou: m.IoU})
		}
		group.FaceCount = len(group.FaceIDs)
		group.MeanIoU = sumIoU / float64(group.FaceCount)
		group.SamplePhotos = samplePhotos(samples)

		normalized := facematch.NormalizePersonName(group.SourcePersonName, nameMode)
		if existing, ok := tgt.PersonNames[normalized]; ok {
			group.ExistingPersonID = existing
		} else {
			group.NeedsPersonCreation = true
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].FaceCount != groups[j].FaceCount {
			return groups[i].FaceCount > groups[j].FaceCount
		}
		return groups[i].SourcePersonID < groups[j].SourcePersonID
	})
	return groups
}

// MergeCandidates finds source persons whose passing matches land on several
// clusters with enough support each, suggesting the target split one identity
// across clusters. Confidence is the ratio of the second-largest cluster's
// match count to the largest, so an even split scores close to 1.
func MergeCandidates(matches []RawFaceMatch, thresholds Thresholds, minMatches int) []MergeCandidate {
	type personClusters struct {
		name     string
		clusters map[string]*MergeCluster
	}
	byPerson := make(map[int64]*personClusters)
	for _, m := range matches {
		if m.ClusterID == "" || !thresholds.Pass(m) {
			continue
		}
		pc, ok := byPerson[m.SourcePersonID]
		if !ok {
			pc = &personClusters{name: m.SourcePersonName, clusters: make(map[string]*MergeCluster)}
			byPerson[m.SourcePersonID] = pc
		}
		mc, ok := pc.clusters[m.ClusterID]
		if !ok {
			mc = &MergeCluster{ClusterID: m.ClusterID, ClusterName: m.ClusterName}
			pc.clusters[m.ClusterID] = mc
		}
		mc.MatchedCount++
	}

	candidates := make([]MergeCandidate, 0)
	for personID, pc := range byPerson {
		qualifying := make([]MergeCluster, 0, len(pc.clusters))
		for _, mc := range pc.clusters {
			if mc.MatchedCount >= minMatches {
				qualifying = append(qualifying, *mc)
			}
		}
		if len(qualifying) < 2 {
			continue
		}
		sort.Slice(qualifying, func(i, j int) bool {
			if qualifying[i].MatchedCount != qualifying[j].MatchedCount {
				return qualifying[i].MatchedCount > qualifying[j].MatchedCount
			}
			return qualifying[i].ClusterID < qualifying[j].ClusterID
		})
		total := 0
		for _, q := range qualifying {
			total += q.MatchedCount
		}
		candidates = append(candidates, MergeCandidate{
			SourcePersonID:   personID,
			SourcePersonName: pc.name,
			Clusters:         qualifying,
			TotalMatches:     total,
			Confidence:       float64(qualifying[1].MatchedCount) / float64(qualifying[0].MatchedCount),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TotalMatches != candidates[j].TotalMatches {
			return candidates[i].TotalMatches > candidates[j].TotalMatches
		}
		return candidates[i].SourcePersonID < candidates[j].SourcePersonID
	})
	return candidates
}

// ValidationIssues flags clusters that several source persons project onto.
// The issue is an error when the runner-up person has enough faces, in both
// absolute count and share of the cluster, to suggest the cluster genuinely
// mixes identities rather than carrying a stray match.
func ValidationIssues(matches []RawFaceMatch, thresholds Thresholds, tgt *store.TargetSnapshot) []ValidationIssue {
	type clusterPersons struct {
		name    string
		persons map[int64]*ValidationPerson
	}
	byCluster := make(map[string]*clusterPersons)
	for _, m := range matches {
		if m.ClusterID == "" || !thresholds.Pass(m) {
			continue
		}
		cp, ok := byCluster[m.ClusterID]
		if !ok {
			cp = &clusterPersons{name: m.ClusterName, persons: make(map[int64]*ValidationPerson)}
			byCluster[m.ClusterID] = cp
		}
		vp, ok := cp.persons[m.SourcePersonID]
		if !ok {
			vp = &ValidationPerson{SourcePersonID: m.SourcePersonID, SourcePersonName: m.SourcePersonName}
			cp.persons[m.SourcePersonID] = vp
		}
		vp.FaceCount++
	}

	issues := make([]ValidationIssue, 0)
	for clusterID, cp := range byCluster {
		if len(cp.persons) < 2 {
			continue
		}
		persons := make([]ValidationPerson, 0, len(cp.persons))
		matched := 0
		for _, vp := range cp.persons {
			persons = append(persons, *vp)
			matched += vp.FaceCount
		}
		sort.Slice(persons, func(i, j int) bool {
			if persons[i].FaceCount != persons[j].FaceCount {
				return persons[i].FaceCount > persons[j].FaceCount
			}
			return persons[i].SourcePersonID < persons[j].SourcePersonID
		})

		totalFaces := 0
		if cluster, ok := tgt.ClusterByID(clusterID); ok {
			totalFaces = cluster.FaceCount
		}

		severity := SeverityWarning
		minority := persons[1].FaceCount
		if minority >= constants.ValidationErrorMinMinorityFaces &&
			totalFaces > 0 &&
			float64(minority) >= constants.ValidationErrorMinMinorityShare*float64(totalFaces) {
			severity = SeverityError
		}

		issues = append(issues, ValidationIssue{
			ClusterID:           clusterID,
			ClusterName:         cp.name,
			Severity:            severity,
			MatchedFaces:        matched,
			TotalFacesInCluster: totalFaces,
			Persons:             persons,
		})
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Severity != issues[j].Severity {
			return issues[i].Severity == SeverityError
		}
		if issues[i].MatchedFaces != issues[j].MatchedFaces {
			return issues[i].MatchedFaces > issues[j].MatchedFaces
		}
		return issues[i].ClusterID < issues[j].ClusterID
	})
	return issues
}

// CreateFaceGroups finds source faces on common photos that no target face
// overlaps sufficiently, grouped by source person. These are the regions the
// target's detector missed and the create-face operation can add, provided
// the photo resolves to a known image asset.
func CreateFaceGroups(
	src *store.SourceSnapshot,
	tgt *store.TargetSnapshot,
	join *JoinResult,
	matches []RawFaceMatch,
	thresholds Thresholds,
	nameMode facematch.NameMatchMode,
) []CreateFaceGroup {
	covered := make(map[int64]struct{})
	for _, m := range matches {
		if m.IoU >= thresholds.MinIoU {
			covered[m.SourceFaceID] = struct{}{}
		}
	}

	groups := make([]CreateFaceGroup, 0)
	for i := range src.Persons {
		person := &src.Persons[i]
		var candidates []CreateFaceCandidate
		for j := range person.Faces {
			face := &person.Faces[j]
			if _, ok := join.Common[face.Photo]; !ok {
				continue
			}
			if _, ok := covered[face.ID]; ok {
				continue
			}
			asset, ok := tgt.AssetByKey(face.Photo)
			if !ok {
				continue
			}
			candidates = append(candidates, CreateFaceCandidate{
				SourceFaceID: face.ID,
				AssetID:      asset.ID,
				FileName:     face.Photo.FileName,
				BBox:         face.BBox,
				Pixel:        toPixelRect(face.BBox, asset.Width, asset.Height),
			})
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].SourceFaceID < candidates[j].SourceFaceID
		})

		group := CreateFaceGroup{
			SourcePersonID:   person.ID,
			SourcePersonName: person.Name,
			Faces:            candidates,
			FaceCount:        len(candidates),
		}
		normalized := facematch.NormalizePersonName(person.Name, nameMode)
		if existing, ok := tgt.PersonNames[normalized]; ok {
			group.ExistingPersonID = existing
		} else {
			group.NeedsPersonCreation = true
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].FaceCount != groups[j].FaceCount {
			return groups[i].FaceCount > groups[j].FaceCount
		}
		return groups[i].SourcePersonID < groups[j].SourcePersonID
	})
	return groups
}

// toPixelRect converts a relative corner bbox into pixel coordinates of the
// original image.
func toPixelRect(bbox []float64, width, height int) PixelRect {
	x := int(bbox[0] * float64(width))
	y := int(bbox[1] * float64(height))
	return PixelRect{
		X:           x,
		Y:           y,
		Width:       int(bbox[2]*float64(width)) - x,
		Height:      int(bbox[3]*float64(height)) - y,
		ImageWidth:  width,
		ImageHeight: height,
	}
}

// sourceBBoxIndex maps source face IDs to their rectangles for preview
// rendering.
func sourceBBoxIndex(src *store.SourceSnapshot) map[int64][]float64 {
	index := make(map[int64][]float64)
	for i := range src.Persons {
		for j := range src.Persons[i].Faces {
			face := &src.Persons[i].Faces[j]
			index[face.ID] = face.BBox
		}
	}
	return index
}
