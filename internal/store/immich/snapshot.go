package immich

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-migrator/internal/constants"
	"github.com/kozaktomas/face-migrator/internal/facematch"
	"github.com/kozaktomas/face-migrator/internal/store"
)

// Snapshot reads all non-deleted faces, persons and image assets. Faces whose
// pixel bounding box cannot be normalized are dropped and tallied.
func (r *Reader) Snapshot(ctx context.Context) (*store.TargetSnapshot, error) {
	totals, err := r.totals(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &store.TargetSnapshot{
		Totals:      *totals,
		PersonNames: make(map[string]string),
	}

	if err := r.loadFaces(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := r.loadClusters(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := r.loadAssets(ctx, snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (r *Reader) loadFaces(ctx context.Context, snapshot *store.TargetSnapshot) error {
	query := `
		SELECT
			af.id,
			af."assetId",
			af."personId",
			a."originalFileName",
			e."fileSizeInByte",
			af."boundingBoxX1",
			af."boundingBoxY1",
			af."boundingBoxX2",
			af."boundingBoxY2",
			af."imageWidth",
			af."imageHeight"
		FROM asset_face af
		JOIN asset a ON af."assetId" = a.id
		LEFT JOIN asset_exif e ON a.id = e."assetId"
		WHERE af."deletedAt" IS NULL
		  AND a."deletedAt" IS NULL
		ORDER BY af.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: query faces: %v", store.ErrSchema, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var (
			faceID, assetID    string
			personID, fileName sql.NullString
			fileSize           sql.NullInt64
			x1, y1, x2, y2     sql.NullFloat64
			imgW, imgH         sql.NullInt64
		)
		if err := rows.Scan(
			&faceID, &assetID, &personID, &fileName, &fileSize,
			&x1, &y1, &x2, &y2, &imgW, &imgH,
		); err != nil {
			return fmt.Errorf("scan face row: %w", err)
		}

		if seen[faceID] {
			return fmt.Errorf("%w: face %s appears twice", store.ErrIdentifierCollision, faceID)
		}
		seen[faceID] = true

		face, ok := convertFace(faceID, assetID, personID, fileName, fileSize, x1, y1, x2, y2, imgW, imgH)
		if !ok {
			snapshot.MalformedFaces++
			continue
		}
		snapshot.Faces = append(snapshot.Faces, face)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate face rows: %w", err)
	}

	return nil
}

// convertFace normalizes a pixel bounding box into relative corner format.
// Faces without a usable photo key or with a degenerate rectangle are dropped.
func convertFace(
	faceID, assetID string,
	personID, fileName sql.NullString,
	fileSize sql.NullInt64,
	x1, y1, x2, y2 sql.NullFloat64,
	imgW, imgH sql.NullInt64,
) (store.TargetFace, bool) {
	if !fileName.Valid || !fileSize.Valid || fileSize.Int64 <= 0 {
		return store.TargetFace{}, false
	}
	if !x1.Valid || !y1.Valid || !x2.Valid || !y2.Valid {
		return store.TargetFace{}, false
	}

	width := int(imgW.Int64)
	height := int(imgH.Int64)
	if width <= 0 || height <= 0 {
		return store.TargetFace{}, false
	}

	bbox := facematch.ConvertPixelBBoxToRelative(
		[]float64{x1.Float64, y1.Float64, x2.Float64, y2.Float64},
		width, height,
	)
	if !facematch.ValidRelativeBBox(bbox) {
		return store.TargetFace{}, false
	}

	face := store.TargetFace{
		ID:          faceID,
		AssetID:     assetID,
		Photo:       store.NewPhotoKey(fileName.String, fileSize.Int64),
		BBox:        bbox,
		ImageWidth:  width,
		ImageHeight: height,
	}
	if personID.Valid {
		face.ClusterID = personID.String
	}
	return face, true
}

func (r *Reader) loadClusters(ctx context.Context, snapshot *store.TargetSnapshot) error {
	query := `
		SELECT
			p.id,
			p.name,
			COUNT(af.id) AS face_count
		FROM person p
		LEFT JOIN asset_face af ON af."personId" = p.id AND af."deletedAt" IS NULL
		WHERE p."isHidden" = false
		GROUP BY p.id, p.name
		ORDER BY p.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: query persons: %v", store.ErrSchema, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c    store.Cluster
			name sql.NullString
		)
		if err := rows.Scan(&c.ID, &name, &c.FaceCount); err != nil {
			return fmt.Errorf("scan person row: %w", err)
		}
		if name.Valid {
			c.Name = name.String
		}
		snapshot.Clusters = append(snapshot.Clusters, c)

		if normalized := facematch.NormalizePersonName(c.Name, r.nameMode); normalized != "" {
			if _, exists := snapshot.PersonNames[normalized]; !exists {
				snapshot.PersonNames[normalized] = c.ID
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate person rows: %w", err)
	}

	return nil
}

func (r *Reader) loadAssets(ctx context.Context, snapshot *store.TargetSnapshot) error {
	query := `
		SELECT
			a.id,
			a."originalFileName",
			e."fileSizeInByte",
			COALESCE(e."exifImageWidth", $1),
			COALESCE(e."exifImageHeight", $2)
		FROM asset a
		LEFT JOIN asset_exif e ON a.id = e."assetId"
		WHERE a."deletedAt" IS NULL
		  AND a.type = 'IMAGE'
		ORDER BY a.id
	`

	rows, err := r.db.QueryContext(ctx, query, constants.FallbackImageWidth, constants.FallbackImageHeight)
	if err != nil {
		return fmt.Errorf("%w: query assets: %v", store.ErrSchema, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       string
			fileName sql.NullString
			fileSize sql.NullInt64
			w, h     int
		)
		if err := rows.Scan(&id, &fileName, &fileSize, &w, &h); err != nil {
			return fmt.Errorf("scan asset row: %w", err)
		}
		if !fileName.Valid || !fileSize.Valid || fileSize.Int64 <= 0 {
			continue
		}
		snapshot.Assets = append(snapshot.Assets, store.TargetAsset{
			ID:     id,
			Photo:  store.NewPhotoKey(fileName.String, fileSize.Int64),
			Width:  w,
			Height: h,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate asset rows: %w", err)
	}

	return nil
}
