package analysis

import (
	"sort"

	"github.com/kozaktomas/face-migrator/internal/constants"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// pairKey identifies one (source person, target cluster) pair.
type pairKey struct {
	personID  int64
	clusterID string
}

type pairAccumulator struct {
	personName  string
	clusterName string
	count       int
	sumIoU      float64
	sumDist     float64
	samples     []sampleMatch
}

type sampleMatch struct {
	fileName string
	iou      float64
}

// Aggregate groups passing clustered matches by (source person, target
// cluster) and summarizes each pair. Unclustered target faces are handled
// separately by the assign bucket. The result is sorted by match count
// descending, then mean IoU descending, then person and cluster IDs.
func Aggregate(matches []RawFaceMatch, thresholds Thresholds, tgt *store.TargetSnapshot) []PairAggregate {
	accs := make(map[pairKey]*pairAccumulator)
	for _, m := range matches {
		if m.ClusterID == "" || !thresholds.Pass(m) {
			continue
		}
		key := pairKey{personID: m.SourcePersonID, clusterID: m.ClusterID}
		acc, ok := accs[key]
		if !ok {
			acc = &pairAccumulator{personName: m.SourcePersonName, clusterName: m.ClusterName}
			accs[key] = acc
		}
		acc.count++
		acc.sumIoU += m.IoU
		acc.sumDist += m.CenterDist
		acc.samples = append(acc.samples, sampleMatch{fileName: m.FileName, iou: m.IoU})
	}

	aggregates := make([]PairAggregate, 0, len(accs))
	for key, acc := range accs {
		meanIoU := acc.sumIoU / float64(acc.count)
		totalFaces := 0
		if cluster, ok := tgt.ClusterByID(key.clusterID); ok {
			totalFaces = cluster.FaceCount
		}
		aggregates = append(aggregates, PairAggregate{
			SourcePersonID:      key.personID,
			SourcePersonName:    acc.personName,
			ClusterID:           key.clusterID,
			ClusterName:         acc.clusterName,
			Count:               acc.count,
			MeanIoU:             meanIoU,
			MeanCenterDist:      acc.sumDist / float64(acc.count),
			Confidence:          GradeConfidence(acc.count, meanIoU),
			SamplePhotos:        samplePhotos(acc.samples),
			TotalFacesInCluster: totalFaces,
		})
	}

	sort.Slice(aggregates, func(i, j int) bool {
		a, b := aggregates[i], aggregates[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.MeanIoU != b.MeanIoU {
			return a.MeanIoU > b.MeanIoU
		}
		if a.SourcePersonID != b.SourcePersonID {
			return a.SourcePersonID < b.SourcePersonID
		}
		return a.ClusterID < b.ClusterID
	})
	return aggregates
}

// samplePhotos picks up to SamplePhotoLimit distinct filenames, best
// overlapping matches first.
func samplePhotos(samples []sampleMatch) []string {
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].iou > samples[j].iou })

	seen := make(map[string]struct{}, constants.SamplePhotoLimit)
	photos := make([]string, 0, constants.SamplePhotoLimit)
	for _, s := range samples {
		if _, ok := seen[s.fileName]; ok {
			continue
		}
		seen[s.fileName] = struct{}{}
		photos = append(photos, s.fileName)
		if len(photos) == constants.SamplePhotoLimit {
			break
		}
	}
	return photos
}
