package analysis

import (
	"context"
	"sort"
)

// MatchDetail is one raw match between a person and a cluster, enriched with
// both rectangles so the UI can draw the overlap.
type MatchDetail struct {
	SourceFaceID int64     `json:"src_face_id"`
	TargetFaceID string    `json:"target_face_id"`
	AssetID      string    `json:"asset_id"`
	FileName     string    `json:"filename"`
	SourceBBox   []float64 `json:"src_rect"`
	TargetBBox   []float64 `json:"target_rect"`
	IoU          float64   `json:"iou"`
	CenterDist   float64   `json:"center_dist"`
	Passing      bool      `json:"passing"`
}

// MatchDetails lists every raw match between one source person and one
// target cluster, best overlaps first. Non-passing matches are included and
// flagged so the user can see what a threshold change would admit.
type MatchDetails struct {
	SourcePersonID   int64         `json:"src_person_id"`
	SourcePersonName string        `json:"src_person_name"`
	ClusterID        string        `json:"cluster_id"`
	ClusterName      string        `json:"cluster_name,omitempty"`
	Thresholds       Thresholds    `json:"thresholds"`
	Details          []MatchDetail `json:"matches"`
}

// MatchDetailsFor collects the raw matches for one (person, cluster) pair.
func (c *Coordinator) MatchDetailsFor(ctx context.Context, personID int64, clusterID string, thresholds Thresholds) (*MatchDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureMatchesLocked(ctx); err != nil {
		return nil, err
	}

	sourceBBoxes := sourceBBoxIndex(c.src)
	targetBBoxes := make(map[string][]float64, len(c.tgt.Faces))
	for i := range c.tgt.Faces {
		targetBBoxes[c.tgt.Faces[i].ID] = c.tgt.Faces[i].BBox
	}

	result := &MatchDetails{
		SourcePersonID: personID,
		ClusterID:      clusterID,
		Thresholds:     thresholds,
	}
	if cluster, ok := c.tgt.ClusterByID(clusterID); ok {
		result.ClusterName = cluster.Name
	}
	for _, m := range c.matches {
		if m.SourcePersonID != personID || m.ClusterID != clusterID {
			continue
		}
		result.SourcePersonName = m.SourcePersonName
		result.Details = append(result.Details, MatchDetail{
			SourceFaceID: m.SourceFaceID,
			TargetFaceID: m.TargetFaceID,
			AssetID:      m.AssetID,
			FileName:     m.FileName,
			SourceBBox:   sourceBBoxes[m.SourceFaceID],
			TargetBBox:   targetBBoxes[m.TargetFaceID],
			IoU:          m.IoU,
			CenterDist:   m.CenterDist,
			Passing:      thresholds.Pass(m),
		})
	}
	if result.SourcePersonName == "" {
		result.SourcePersonName = c.personName(personID)
	}

	sort.Slice(result.Details, func(i, j int) bool {
		if result.Details[i].IoU != result.Details[j].IoU {
			return result.Details[i].IoU > result.Details[j].IoU
		}
		return result.Details[i].TargetFaceID < result.Details[j].TargetFaceID
	})
	return result, nil
}

func (c *Coordinator) personName(personID int64) string {
	for i := range c.src.Persons {
		if c.src.Persons[i].ID == personID {
			return c.src.Persons[i].Name
		}
	}
	return ""
}
