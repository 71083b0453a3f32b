// Package store defines the store-neutral data model shared by the legacy
// (Windows Photos) reader and the Immich reader, plus the reader interfaces
// the analysis pipeline consumes.
package store

import "strings"

// PhotoKey identifies the same photo across both stores. It combines the
// lowercased file basename with the byte size; neither side exposes a
// content hash or a reliable mtime, so this pair is the strongest stable
// identity available. Lowercasing makes the key safe on case-insensitive
// filesystems.
type PhotoKey struct {
	FileName string
	FileSize int64
}

// NewPhotoKey builds a PhotoKey from a raw filename and size.
func NewPhotoKey(fileName string, fileSize int64) PhotoKey {
	return PhotoKey{
		FileName: strings.ToLower(fileName),
		FileSize: fileSize,
	}
}

// Valid reports whether the key carries enough information to join on.
func (k PhotoKey) Valid() bool {
	return k.FileName != "" && k.FileSize > 0
}

// SourceFace is a single labeled face rectangle from the legacy store.
type SourceFace struct {
	ID       int64
	PersonID int64
	Photo    PhotoKey
	// BBox is [x1, y1, x2, y2] in relative coordinates, already converted
	// from the legacy bottom-anchored representation.
	BBox       []float64
	FolderPath string
}

// SourcePerson is a named person from the legacy store with all usable faces.
// Persons whose names collapse to the same normalized form are merged into
// one entry; Name keeps the variant that owned the most faces.
type SourcePerson struct {
	ID    int64
	Name  string
	Faces []SourceFace
}

// OrphanPerson is a named legacy person with no Face rows at all. A person
// whose face rows are all unusable is not listed here. It cannot be migrated
// and is reported for diagnostics only.
type OrphanPerson struct {
	ID        int64
	Name      string
	ItemCount int
}

// SourceTotals summarizes the legacy store.
type SourceTotals struct {
	TotalPersons       int `json:"total_persons"`
	NamedPersons       int `json:"named_persons"`
	UniqueNamedPersons int `json:"unique_named_persons"`
	TotalFaces         int `json:"total_faces"`
	TotalItems         int `json:"total_items"`
}

// SourceSnapshot is the immutable result of one legacy-store read.
type SourceSnapshot struct {
	Persons        []SourcePerson
	Orphans        []OrphanPerson
	Totals         SourceTotals
	MalformedFaces int
}

// TargetAsset is a photo known to the Immich store.
type TargetAsset struct {
	ID     string
	Photo  PhotoKey
	Width  int
	Height int
}

// TargetFace is a face detection from the Immich store. ClusterID is empty
// when the face is unclustered.
type TargetFace struct {
	ID        string
	AssetID   string
	ClusterID string
	Photo     PhotoKey
	// BBox is [x1, y1, x2, y2] in relative coordinates, normalized from the
	// stored pixel bounding box using the face row's image dimensions.
	BBox        []float64
	ImageWidth  int
	ImageHeight int
}

// Cluster is an Immich person record seen as a face cluster. Name is empty
// for unnamed clusters. FaceCount is the cluster's total face count in the
// store, not just the faces that matched anything.
type Cluster struct {
	ID        string
	Name      string
	FaceCount int
}

// TargetTotals summarizes the Immich store.
type TargetTotals struct {
	TotalPersons       int `json:"total_persons"`
	NamedPersons       int `json:"named_persons"`
	UniqueNamedPersons int `json:"unique_named_persons"`
	UnnamedPersons     int `json:"unnamed_persons"`
	TotalFaces         int `json:"total_faces"`
	TotalAssets        int `json:"total_assets"`
}

// TargetSnapshot is the immutable result of one Immich-store read.
type TargetSnapshot struct {
	Faces    []TargetFace
	Clusters []Cluster
	Assets   []TargetAsset
	// PersonNames maps normalized display names to person IDs so the
	// classifier can decide whether applying a label needs person creation.
	PersonNames    map[string]string
	Totals         TargetTotals
	MalformedFaces int
}

// ClusterByID returns the cluster with the given ID, if present.
func (s *TargetSnapshot) ClusterByID(id string) (Cluster, bool) {
	for _, c := range s.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return Cluster{}, false
}

// AssetByKey returns the asset with the given PhotoKey, if present.
func (s *TargetSnapshot) AssetByKey(key PhotoKey) (TargetAsset, bool) {
	for _, a := range s.Assets {
		if a.Photo == key {
			return a, true
		}
	}
	return TargetAsset{}, false
}
