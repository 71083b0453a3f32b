// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching thresholds
const (
	// DefaultMinIoU is the minimum Intersection over Union for a raw match to pass
	DefaultMinIoU = 0.30

	// DefaultMaxCenterDist is the maximum normalized center distance for a raw match to pass
	DefaultMaxCenterDist = 0.40

	// DefaultMinMatches is the minimum matched-face count for a cluster to take part
	// in merge-candidate detection
	DefaultMinMatches = 2

	// DefaultMinPhotosInCluster is the minimum face count for a target cluster to be
	// considered during analysis
	DefaultMinPhotosInCluster = 1
)

// Confidence grading
const (
	// HighConfidenceMinCount is the minimum matched-face count for a high-confidence pair
	HighConfidenceMinCount = 5

	// HighConfidenceMinIoU is the minimum mean IoU for a high-confidence pair
	HighConfidenceMinIoU = 0.40

	// MediumConfidenceMinCount is the minimum matched-face count for a medium-confidence pair
	MediumConfidenceMinCount = 2

	// MediumConfidenceMinIoU is the minimum mean IoU for a medium-confidence pair
	MediumConfidenceMinIoU = 0.35
)

// Statistics
const (
	// HistogramBins is the number of bins for metric histograms over [0, 1]
	HistogramBins = 20
)

// Validation severity knobs
const (
	// ValidationErrorMinMinorityFaces is the minimum minority-person face count
	// for a cluster validation issue to be graded error
	ValidationErrorMinMinorityFaces = 2

	// ValidationErrorMinMinorityShare is the minimum minority share of the cluster
	// total for a validation issue to be graded error
	ValidationErrorMinMinorityShare = 0.10
)

// Reporting limits
const (
	// SamplePhotoLimit is the maximum number of sample photos attached to a
	// pair aggregate or preview entry
	SamplePhotoLimit = 5

	// DiagnosticsPersonLimit is the maximum number of persons listed in one
	// diagnostics report
	DiagnosticsPersonLimit = 50

	// DiagnosticsPhotoLimit is the maximum number of photos sampled per person
	// during diagnostics
	DiagnosticsPhotoLimit = 20
)

// Image fallbacks
const (
	// FallbackImageWidth is used when the target store has no pixel dimensions for an asset
	FallbackImageWidth = 1920

	// FallbackImageHeight is used when the target store has no pixel dimensions for an asset
	FallbackImageHeight = 1080
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for progress event channels
	EventChannelBuffer = 100
)
