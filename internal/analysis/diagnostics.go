package analysis

import (
	"context"
	"sort"

	"github.com/kozaktomas/face-migrator/internal/constants"
	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// Diagnosis categories for a missing person, from worst to mildest: their
// photos never made it into the target, the target detected no faces on
// them, it detected faces on only some, or faces exist but none lines up
// geometrically.
const (
	DiagnosisPhotosNotInTarget = "photos_not_in_immich"
	DiagnosisNoFaceDetection   = "no_face_detection"
	DiagnosisPartialDetection  = "partial_detection"
	DiagnosisIoUMismatch       = "iou_mismatch"
)

// MissingPhotoSample is one checked photo of a missing person.
type MissingPhotoSample struct {
	FileName string `json:"filename"`
	InTarget bool   `json:"in_immich"`
	HasFaces bool   `json:"has_faces"`
}

// MissingPerson is a source person with no same-named person on the target.
// The photo counts narrow down why the migration cannot place them.
type MissingPerson struct {
	SourcePersonID   int64                `json:"src_person_id"`
	SourcePersonName string               `json:"src_person_name"`
	FaceCount        int                  `json:"face_count"`
	PhotosChecked    int                  `json:"photos_checked"`
	PhotosInTarget   int                  `json:"photos_in_immich"`
	PhotosWithFaces  int                  `json:"photos_with_faces"`
	Diagnosis        string               `json:"diagnosis"`
	SamplePhotos     []MissingPhotoSample `json:"sample_photos"`
}

// MissingPeopleReport lists the source persons the target knows nothing
// about.
type MissingPeopleReport struct {
	Total   int             `json:"total"`
	Limited bool            `json:"limited"`
	Persons []MissingPerson `json:"persons"`
}

// OrphanPeopleReport lists named source persons that have no face rows.
type OrphanPeopleReport struct {
	Total   int                  `json:"total"`
	Limited bool                 `json:"limited"`
	Persons []store.OrphanPerson `json:"persons"`
}

// MissingPeople reports source persons whose name does not exist on the
// target side, each with a diagnosis of where their photos got stuck.
func (c *Coordinator) MissingPeople(ctx context.Context) (*MissingPeopleReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureMatchesLocked(ctx); err != nil {
		return nil, err
	}

	facePhotos := make(map[store.PhotoKey]struct{}, len(c.tgt.Faces))
	for i := range c.tgt.Faces {
		facePhotos[c.tgt.Faces[i].Photo] = struct{}{}
	}
	assetPhotos := make(map[store.PhotoKey]struct{}, len(c.tgt.Assets))
	for i := range c.tgt.Assets {
		assetPhotos[c.tgt.Assets[i].Photo] = struct{}{}
	}

	missing := make([]MissingPerson, 0)
	for i := range c.src.Persons {
		person := &c.src.Persons[i]
		normalized := facematch.NormalizePersonName(person.Name, c.nameMode)
		if _, ok := c.tgt.PersonNames[normalized]; ok {
			continue
		}
		missing = append(missing, c.diagnosePersonLocked(person, assetPhotos, facePhotos))
	}

	sort.Slice(missing, func(i, j int) bool {
		if missing[i].FaceCount != missing[j].FaceCount {
			return missing[i].FaceCount > missing[j].FaceCount
		}
		return missing[i].SourcePersonID < missing[j].SourcePersonID
	})

	report := &MissingPeopleReport{Total: len(missing)}
	if len(missing) > constants.DiagnosticsPersonLimit {
		missing = missing[:constants.DiagnosticsPersonLimit]
		report.Limited = true
	}
	report.Persons = missing
	return report, nil
}

// diagnosePersonLocked samples the person's photos and classifies why the
// target has nothing for them.
func (c *Coordinator) diagnosePersonLocked(
	person *store.SourcePerson,
	assetPhotos, facePhotos map[store.PhotoKey]struct{},
) MissingPerson {
	result := MissingPerson{
		SourcePersonID:   person.ID,
		SourcePersonName: person.Name,
		FaceCount:        len(person.Faces),
	}

	seen := make(map[store.PhotoKey]struct{})
	for j := range person.Faces {
		key := person.Faces[j].Photo
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if len(seen) > constants.DiagnosticsPhotoLimit {
			break
		}

		_, inTarget := assetPhotos[key]
		_, hasFaces := facePhotos[key]
		result.PhotosChecked++
		if inTarget {
			result.PhotosInTarget++
		}
		if hasFaces {
			result.PhotosWithFaces++
		}
		if len(result.SamplePhotos) < constants.SamplePhotoLimit {
			result.SamplePhotos = append(result.SamplePhotos, MissingPhotoSample{
				FileName: key.FileName,
				InTarget: inTarget,
				HasFaces: hasFaces,
			})
		}
	}

	switch {
	case result.PhotosInTarget == 0:
		result.Diagnosis = DiagnosisPhotosNotInTarget
	case result.PhotosWithFaces == 0:
		result.Diagnosis = DiagnosisNoFaceDetection
	case result.PhotosWithFaces < result.PhotosInTarget:
		result.Diagnosis = DiagnosisPartialDetection
	default:
		result.Diagnosis = DiagnosisIoUMismatch
	}
	return result
}

// OrphanPeople reports named source persons that have no face row.
func (c *Coordinator) OrphanPeople(ctx context.Context) (*OrphanPeopleReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureMatchesLocked(ctx); err != nil {
		return nil, err
	}

	orphans := make([]store.OrphanPerson, len(c.src.Orphans))
	copy(orphans, c.src.Orphans)
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].ItemCount != orphans[j].ItemCount {
			return orphans[i].ItemCount > orphans[j].ItemCount
		}
		return orphans[i].ID < orphans[j].ID
	})

	report := &OrphanPeopleReport{Total: len(orphans)}
	if len(orphans) > constants.DiagnosticsPersonLimit {
		orphans = orphans[:constants.DiagnosticsPersonLimit]
		report.Limited = true
	}
	report.Persons = orphans
	return report, nil
}
