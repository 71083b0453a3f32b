package immichapi

import (
	"context"
	"fmt"
)

// Face is an Immich face record as returned by the face endpoints.
type Face struct {
	ID       string `json:"id"`
	PersonID string `json:"personId"`
}

// AssignFace moves an existing face to the given person.
func (c *Client) AssignFace(ctx context.Context, faceID, personID string) error {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	body := map[string]string{"id": faceID}
	if _, err := doPutJSON[Face](ctx, c, "faces/"+personID, body); err != nil {
		return fmt.Errorf("assign face %s to person %s: %w", faceID, personID, err)
	}
	return nil
}

// CreateFaceRequest describes a face to create on the server. Coordinates are
// in pixels of the original image.
type CreateFaceRequest struct {
	AssetID     string `json:"assetId"`
	PersonID    string `json:"personId"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageWidth  int    `json:"imageWidth"`
	ImageHeight int    `json:"imageHeight"`
}

// CreateFace creates a new face region on an asset, attached to a person.
func (c *Client) CreateFace(ctx context.Context, req CreateFaceRequest) error {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	if _, err := doPostJSON[map[string]any](ctx, c, "faces", req); err != nil {
		return fmt.Errorf("create face on asset %s: %w", req.AssetID, err)
	}
	return nil
}

// GetAssetThumbnail fetches a thumbnail for an asset.
func (c *Client) GetAssetThumbnail(ctx context.Context, assetID, size string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	endpoint := "assets/" + assetID + "/thumbnail"
	if size != "" {
		endpoint += "?size=" + size
	}
	return doGetRaw(ctx, c, endpoint)
}
