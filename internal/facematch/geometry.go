package facematch

import "math"

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)

	// Calculate union.
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// CenterDistance calculates the Euclidean distance between the centers of two
// bounding boxes, normalized by the diagonal of the unit square (sqrt 2) so
// the result always falls in [0, 1] for boxes in relative coordinates.
func CenterDistance(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 1
	}

	cx1 := (bbox1[0] + bbox1[2]) / 2
	cy1 := (bbox1[1] + bbox1[3]) / 2
	cx2 := (bbox2[0] + bbox2[2]) / 2
	cy2 := (bbox2[1] + bbox2[3]) / 2

	dist := math.Hypot(cx2-cx1, cy2-cy1)
	return dist / math.Sqrt2
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}

// ConvertLegacyRect converts a Windows Photos face rectangle to [x1, y1, x2, y2]
// corner format in relative coordinates.
//
// The legacy store reports (top, left, width, height) where "top" is the BOTTOM
// edge of the rectangle. The actual top edge is top - height.
func ConvertLegacyRect(top, left, width, height float64) []float64 {
	return []float64{
		left,
		top - height,
		left + width,
		top,
	}
}

// CornerBBoxFromXYWH converts an (x, y, w, h) rectangle to [x1, y1, x2, y2] corner format.
// This is useful for IoU calculations which expect corner coordinates.
func CornerBBoxFromXYWH(x, y, w, h float64) []float64 {
	return []float64{
		x,
		y,
		x + w,
		y + h,
	}
}

// ValidRelativeBBox reports whether bbox is a well-formed [x1, y1, x2, y2]
// rectangle with positive area inside the unit square. Degenerate rectangles
// are dropped by the readers before matching.
func ValidRelativeBBox(bbox []float64) bool {
	if len(bbox) != 4 {
		return false
	}
	x1, y1, x2, y2 := bbox[0], bbox[1], bbox[2], bbox[3]
	if x1 < 0 || y1 < 0 || x2 > 1 || y2 > 1 {
		return false
	}
	return x2 > x1 && y2 > y1
}
