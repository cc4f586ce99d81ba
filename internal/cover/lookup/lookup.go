package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tunepress/internal/config"
)

// ErrNotFound signals that no cover art exists for the queried release.
// Network and timeout failures return ordinary errors instead; both are
// non-fatal and fall through the resolver chain.
var ErrNotFound = errors.New("cover not found")

// maxImageBytes caps the downloaded image size.
const maxImageBytes = 20 << 20

// Client queries the MusicBrainz release search and the Cover Art Archive.
type Client struct {
	searchBase  string
	archiveBase string
	userAgent   string
	httpClient  *http.Client
}

// NewClient constructs a Client from configuration.
func NewClient(cfg config.Covers) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		searchBase:  strings.TrimRight(cfg.SearchBaseURL, "/") + "/",
		archiveBase: strings.TrimRight(cfg.ArchiveBaseURL, "/") + "/",
		userAgent:   cfg.UserAgent,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// FetchAlbumCover returns the front cover image bytes for (artist, album).
// The artist-qualified query is tried first, then album-only as a fallback.
func (c *Client) FetchAlbumCover(ctx context.Context, artist, album string) ([]byte, error) {
	album = strings.TrimSpace(album)
	if album == "" {
		return nil, ErrNotFound
	}

	queries := make([]string, 0, 2)
	if artist = strings.TrimSpace(artist); artist != "" {
		queries = append(queries, fmt.Sprintf("release:%q AND artist:%q", album, artist))
	}
	queries = append(queries, fmt.Sprintf("release:%q", album))

	var lastErr error
	for _, query := range queries {
		releaseID, err := c.searchRelease(ctx, query)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			lastErr = err
			continue
		}
		data, err := c.fetchArchiveImage(ctx, releaseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			lastErr = err
			continue
		}
		return data, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

func (c *Client) searchRelease(ctx context.Context, query string) (string, error) {
	endpoint := c.searchBase + "?" + url.Values{
		"query": []string{query},
		"fmt":   []string{"json"},
		"limit": []string{"1"},
	}.Encode()

	var payload struct {
		Releases []struct {
			ID string `json:"id"`
		} `json:"releases"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return "", err
	}
	if len(payload.Releases) == 0 || payload.Releases[0].ID == "" {
		return "", ErrNotFound
	}
	return payload.Releases[0].ID, nil
}

func (c *Client) fetchArchiveImage(ctx context.Context, releaseID string) ([]byte, error) {
	var payload struct {
		Images []struct {
			Front bool   `json:"front"`
			Image string `json:"image"`
		} `json:"images"`
	}
	if err := c.getJSON(ctx, c.archiveBase+releaseID, &payload); err != nil {
		return nil, err
	}
	if len(payload.Images) == 0 {
		return nil, ErrNotFound
	}

	imageURL := payload.Images[0].Image
	for _, img := range payload.Images {
		if img.Front && img.Image != "" {
			imageURL = img.Image
			break
		}
	}
	if imageURL == "" {
		return nil, ErrNotFound
	}
	return c.getBytes(ctx, imageURL)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) getBytes(ctx context.Context, endpoint string) ([]byte, error) {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, image/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}
	return resp.Body, nil
}
