// Package analysis implements the matching pipeline: joining the two stores'
// photo sets, computing geometric correspondences between face rectangles,
// deriving descriptive statistics, and classifying person-to-cluster
// relationships into actionable operations.
package analysis

import (
	"github.com/kozaktomas/face-migrator/internal/constants"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// Thresholds are the tunable matching parameters. A raw match passes iff
// IoU >= MinIoU and centerDist <= MaxCenterDist.
type Thresholds struct {
	MinIoU        float64 `json:"min_iou"`
	MaxCenterDist float64 `json:"max_center_dist"`
}

// DefaultThresholds returns the documented fallback thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinIoU:        constants.DefaultMinIoU,
		MaxCenterDist: constants.DefaultMaxCenterDist,
	}
}

// Pass reports whether a raw match passes these thresholds.
func (t Thresholds) Pass(m RawFaceMatch) bool {
	return m.IoU >= t.MinIoU && m.CenterDist <= t.MaxCenterDist
}

// RawFaceMatch is one geometric correspondence between a source face and a
// target face on the same photo. Matches are many-to-many: one source face
// may pair with several target faces and vice versa. No threshold is applied
// at emission; downstream consumers filter.
type RawFaceMatch struct {
	SourcePersonID   int64          `json:"src_person_id"`
	SourcePersonName string         `json:"src_person_name"`
	SourceFaceID     int64          `json:"src_face_id"`
	ClusterID        string         `json:"cluster_id,omitempty"`
	ClusterName      string         `json:"cluster_name,omitempty"`
	TargetFaceID     string         `json:"target_face_id"`
	AssetID          string         `json:"asset_id"`
	Photo            store.PhotoKey `json:"-"`
	FileName         string         `json:"filename"`
	IoU              float64        `json:"iou"`
	CenterDist       float64        `json:"center_dist"`
}

// Confidence grades how well-supported a person-to-cluster pair is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// GradeConfidence applies the confidence rule to a pair's match count and mean IoU.
func GradeConfidence(count int, meanIoU float64) Confidence {
	switch {
	case count >= constants.HighConfidenceMinCount && meanIoU >= constants.HighConfidenceMinIoU:
		return ConfidenceHigh
	case count >= constants.MediumConfidenceMinCount && meanIoU >= constants.MediumConfidenceMinIoU:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// PairAggregate summarizes all passing raw matches between one source person
// and one target cluster.
type PairAggregate struct {
	SourcePersonID   int64      `json:"src_person_id"`
	SourcePersonName string     `json:"src_person_name"`
	ClusterID        string     `json:"cluster_id"`
	ClusterName      string     `json:"cluster_name,omitempty"`
	Count            int        `json:"face_matches"`
	MeanIoU          float64    `json:"avg_iou"`
	MeanCenterDist   float64    `json:"avg_center_dist"`
	Confidence       Confidence `json:"confidence"`
	SamplePhotos     []string   `json:"sample_photos"`
	TotalFacesInCluster int     `json:"total_faces_in_cluster"`
}

// AssignGroup collects the unclustered target faces that matched one source
// person's faces.
type AssignGroup struct {
	SourcePersonID      int64               `json:"src_person_id"`
	SourcePersonName    string              `json:"src_person_name"`
	FaceIDs             []string            `json:"face_ids"`
	FaceCount           int                 `json:"face_count"`
	MeanIoU             float64             `json:"avg_iou"`
	ExistingPersonID    string              `json:"existing_person_id,omitempty"`
	NeedsPersonCreation bool                `json:"needs_person_creation"`
	SamplePhotos        []string            `json:"sample_photos"`
	Faces               []AssignPreviewFace `json:"faces"`
}

// AssignPreviewFace is a per-face preview entry for the assign bucket.
type AssignPreviewFace struct {
	FaceID     string    `json:"face_id"`
	AssetID    string    `json:"asset_id"`
	FileName   string    `json:"filename"`
	SourceBBox []float64 `json:"src_rect"`
	TargetBBox []float64 `json:"target_rect"`
	IoU        float64   `json:"iou"`
}

// MergeCluster is one cluster involved in a merge candidate.
type MergeCluster struct {
	ClusterID    string `json:"cluster_id"`
	ClusterName  string `json:"cluster_name,omitempty"`
	MatchedCount int    `json:"matched_count"`
}

// MergeCandidate is a source person whose matches span several clusters,
// suggesting the target split one identity.
type MergeCandidate struct {
	SourcePersonID   int64          `json:"src_person_id"`
	SourcePersonName string         `json:"src_person_name"`
	Clusters         []MergeCluster `json:"clusters"`
	TotalMatches     int            `json:"total_matches"`
	Confidence       float64        `json:"confidence"`
}

// ValidationPerson is one source person's share of a disputed cluster.
type ValidationPerson struct {
	SourcePersonID   int64  `json:"src_person_id"`
	SourcePersonName string `json:"src_person_name"`
	FaceCount        int    `json:"face_count"`
}

// ValidationIssue flags a cluster onto which several source persons project.
type ValidationIssue struct {
	ClusterID           string             `json:"cluster_id"`
	ClusterName         string             `json:"cluster_name,omitempty"`
	Severity            string             `json:"severity"`
	MatchedFaces        int                `json:"matched_faces"`
	TotalFacesInCluster int                `json:"total_faces_in_cluster"`
	Persons             []ValidationPerson `json:"persons"`
}

// Validation issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// PixelRect is a face rectangle in pixels of the original image, for the
// create-face API which speaks pixel coordinates.
type PixelRect struct {
	X           int `json:"x"`
	Y           int `json:"y"`
	Width       int `json:"width"`
	Height      int `json:"height"`
	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`
}

// CreateFaceCandidate is a source face on a common photo with no target face
// overlapping it at the current IoU threshold.
type CreateFaceCandidate struct {
	SourceFaceID int64     `json:"src_face_id"`
	AssetID      string    `json:"asset_id"`
	FileName     string    `json:"filename"`
	BBox         []float64 `json:"src_rect"`
	Pixel        PixelRect `json:"pixel_rect"`
}

// CreateFaceGroup groups create-face candidates by source person.
type CreateFaceGroup struct {
	SourcePersonID      int64                 `json:"src_person_id"`
	SourcePersonName    string                `json:"src_person_name"`
	Faces               []CreateFaceCandidate `json:"faces"`
	FaceCount           int                   `json:"face_count"`
	ExistingPersonID    string                `json:"existing_person_id,omitempty"`
	NeedsPersonCreation bool                  `json:"needs_person_creation"`
}

// PipelineStats reports the sizes observed along the pipeline. The photo-join
// counts are the main tool for diagnosing path or import mismatches.
type PipelineStats struct {
	SourcePersons    int `json:"source_persons"`
	SourceFaces      int `json:"source_faces"`
	TargetClusters   int `json:"target_clusters"`
	TargetFaces      int `json:"target_faces"`
	CommonPhotos     int `json:"common_photos"`
	SourceOnlyPhotos int `json:"source_only_photos"`
	TargetOnlyPhotos int `json:"target_only_photos"`
	RawMatches       int `json:"raw_matches"`
	PassingMatches   int `json:"passing_matches"`
	MalformedSource  int `json:"malformed_source_faces"`
	MalformedTarget  int `json:"malformed_target_faces"`
}

// Bundle is the immutable result of one full analysis run at a given pair of
// thresholds.
type Bundle struct {
	Thresholds        Thresholds        `json:"thresholds"`
	Stats             PipelineStats     `json:"stats"`
	Statistics        Statistics        `json:"statistics"`
	Matches           []PairAggregate   `json:"matches"`
	RenameApplicable  []PairAggregate   `json:"rename_applicable"`
	AssignUnclustered []AssignGroup     `json:"assign_unclustered"`
	MergeCandidates   []MergeCandidate  `json:"merge_candidates"`
	ValidationIssues  []ValidationIssue `json:"validation_issues"`
	CreateFaceGroups  []CreateFaceGroup `json:"create_face_groups"`
}
