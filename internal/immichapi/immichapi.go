// Package immichapi is a client for the Immich HTTP API. It covers the small
// surface the migration needs: person create and rename, face assignment,
// face creation, and thumbnail fetching.
package immichapi

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// Per-call timeouts. Mutations get more headroom than the ping because the
// server may re-index thumbnails synchronously.
const (
	pingTimeout     = 10 * time.Second
	mutationTimeout = 30 * time.Second
)

// Client represents a client for the Immich API.
type Client struct {
	Url       string
	parsedURL *url.URL
	apiKey    string
}

// NewClient creates a new Immich API client. The key is sent as the
// x-api-key header on every request.
func NewClient(rawURL, apiKey string) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("Immich API URL is required")
	}
	apiURL := strings.TrimSuffix(rawURL, "/") + "/api"
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Immich URL: %w", err)
	}
	return &Client{Url: apiURL, parsedURL: parsed, apiKey: apiKey}, nil
}

// resolveURL builds a full URL from the base API URL and the given path segments.
// If the last segment contains a query string (e.g. "people?withHidden=true"),
// it is split so JoinPath only receives the path portion.
func (c *Client) resolveURL(pathSegments ...string) string {
	if len(pathSegments) == 0 {
		return c.parsedURL.String()
	}
	last := pathSegments[len(pathSegments)-1]
	if pathPart, query, ok := strings.Cut(last, "?"); ok {
		pathSegments[len(pathSegments)-1] = pathPart
		result := c.parsedURL.JoinPath(pathSegments...)
		result.RawQuery = query
		return result.String()
	}
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// readErrorBody reads the response body for error messages.
// Returns a placeholder message if reading fails (we're already in an error
// path). Bodies longer than 200 bytes are truncated.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		return "(could not read error body)"
	}
	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

type pingResponse struct {
	Res string `json:"res"`
}

// Ping verifies the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp, err := doGetJSON[pingResponse](ctx, c, "server/ping")
	if err != nil {
		return fmt.Errorf("Immich API ping failed: %w", err)
	}
	if resp.Res != "pong" {
		return fmt.Errorf("Immich API ping returned %q", resp.Res)
	}
	return nil
}
