package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

type faceRow struct {
	personID   int64
	personName string
	faceID     int64
	fileName   sql.NullString
	fileSize   sql.NullInt64
	top        sql.NullFloat64
	left       sql.NullFloat64
	width      sql.NullFloat64
	height     sql.NullFloat64
	folderPath sql.NullString
}

// Snapshot reads all named persons with their face rectangles. Persons whose
// names collapse to the same normalized form are merged; the display name is
// taken from the variant owning the most faces. Faces with missing or
// degenerate rectangles are dropped and tallied.
func (r *Reader) Snapshot(ctx context.Context) (*store.SourceSnapshot, error) {
	rows, err := r.queryFaceRows(ctx)
	if err != nil {
		return nil, err
	}

	totals, err := r.totals(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &store.SourceSnapshot{Totals: *totals}

	variants := make(map[int64]*personVariant)
	var variantOrder []int64
	seenFaces := make(map[int64]bool)

	for _, row := range rows {
		v, ok := variants[row.personID]
		if !ok {
			v = &personVariant{id: row.personID, name: row.personName}
			variants[row.personID] = v
			variantOrder = append(variantOrder, row.personID)
		}

		face, ok := convertFace(row)
		if !ok {
			snapshot.MalformedFaces++
			continue
		}
		if seenFaces[face.ID] {
			return nil, fmt.Errorf("%w: face %d appears twice", store.ErrIdentifierCollision, face.ID)
		}
		seenFaces[face.ID] = true
		v.faces = append(v.faces, face)
	}

	snapshot.Persons = r.mergeVariants(variants, variantOrder)

	orphans, err := r.queryOrphans(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Orphans = orphans

	if len(snapshot.Persons) == 0 && len(rows) > 0 {
		return nil, store.ErrEmptyRead
	}

	return snapshot, nil
}

func (r *Reader) queryFaceRows(ctx context.Context) ([]faceRow, error) {
	query := `
		SELECT
			p.Person_Id,
			p.Person_Name,
			f.Face_Id,
			i.Item_FileName,
			i.Item_FileSize,
			f.Face_Rect_Top,
			f.Face_Rect_Left,
			f.Face_Rect_Width,
			f.Face_Rect_Height,
			fld.Folder_Path
		FROM Person p
		JOIN Face f ON f.Face_PersonId = p.Person_Id
		JOIN Item i ON f.Face_ItemId = i.Item_Id
		LEFT JOIN Folder fld ON i.Item_ParentFolderId = fld.Folder_Id
		WHERE p.Person_Name IS NOT NULL AND TRIM(p.Person_Name) != ''
		ORDER BY p.Person_Id, f.Face_Id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query faces: %v", store.ErrSchema, err)
	}
	defer rows.Close()

	var result []faceRow
	for rows.Next() {
		var row faceRow
		if err := rows.Scan(
			&row.personID, &row.personName, &row.faceID,
			&row.fileName, &row.fileSize,
			&row.top, &row.left, &row.width, &row.height,
			&row.folderPath,
		); err != nil {
			return nil, fmt.Errorf("scan face row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face rows: %w", err)
	}

	return result, nil
}

// convertFace turns a raw row into a SourceFace, converting the legacy
// bottom-anchored rectangle to corner format. Returns false when the row
// cannot produce a usable face.
func convertFace(row faceRow) (store.SourceFace, bool) {
	if !row.fileName.Valid || !row.fileSize.Valid || row.fileSize.Int64 <= 0 {
		return store.SourceFace{}, false
	}
	if !row.top.Valid || !row.left.Valid || !row.width.Valid || !row.height.Valid {
		return store.SourceFace{}, false
	}

	bbox := facematch.ConvertLegacyRect(
		row.top.Float64, row.left.Float64,
		row.width.Float64, row.height.Float64,
	)
	if !facematch.ValidRelativeBBox(bbox) {
		return store.SourceFace{}, false
	}

	face := store.SourceFace{
		ID:       row.faceID,
		PersonID: row.personID,
		Photo:    store.NewPhotoKey(row.fileName.String, row.fileSize.Int64),
		BBox:     bbox,
	}
	if row.folderPath.Valid {
		face.FolderPath = row.folderPath.String
	}
	return face, true
}

// personVariant is one Person row before name-equivalent rows are merged.
type personVariant struct {
	id    int64
	name  string
	faces []store.SourceFace
}

// mergeVariants collapses person rows with equivalent names into single
// persons, keyed by the normalized name, keeping deterministic order.
func (r *Reader) mergeVariants(variants map[int64]*personVariant, order []int64) []store.SourcePerson {
	type merged struct {
		best    *store.SourcePerson
		bestLen int
	}
	byName := make(map[string]*merged)
	var nameOrder []string

	for _, id := range order {
		v := variants[id]
		if len(v.faces) == 0 {
			continue
		}
		key := facematch.NormalizePersonName(v.name, r.nameMode)
		if key == "" {
			continue
		}

		m, ok := byName[key]
		if !ok {
			m = &merged{}
			byName[key] = m
			nameOrder = append(nameOrder, key)
		}
		if m.best == nil {
			m.best = &store.SourcePerson{ID: v.id, Name: v.name, Faces: v.faces}
			m.bestLen = len(v.faces)
			continue
		}
		m.best.Faces = append(m.best.Faces, v.faces...)
		if len(v.faces) > m.bestLen {
			m.best.ID = v.id
			m.best.Name = v.name
			m.bestLen = len(v.faces)
		}
	}

	persons := make([]store.SourcePerson, 0, len(nameOrder))
	for _, key := range nameOrder {
		persons = append(persons, *byName[key].best)
	}
	sort.Slice(persons, func(i, j int) bool {
		if len(persons[i].Faces) != len(persons[j].Faces) {
			return len(persons[i].Faces) > len(persons[j].Faces)
		}
		return persons[i].ID < persons[j].ID
	})
	return persons
}

func (r *Reader) queryOrphans(ctx context.Context) ([]store.OrphanPerson, error) {
	query := `
		SELECT p.Person_Id, p.Person_Name, COALESCE(p.Person_ItemCount, 0)
		FROM Person p
		WHERE p.Person_Name IS NOT NULL AND TRIM(p.Person_Name) != ''
		  AND NOT EXISTS (SELECT 1 FROM Face f WHERE f.Face_PersonId = p.Person_Id)
		ORDER BY p.Person_Id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query orphans: %v", store.ErrSchema, err)
	}
	defer rows.Close()

	var orphans []store.OrphanPerson
	for rows.Next() {
		var o store.OrphanPerson
		if err := rows.Scan(&o.ID, &o.Name, &o.ItemCount); err != nil {
			return nil, fmt.Errorf("scan orphan row: %w", err)
		}
		orphans = append(orphans, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orphan rows: %w", err)
	}

	return orphans, nil
}
