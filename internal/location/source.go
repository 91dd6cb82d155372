package location

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// FileSource reads a GeoJSON file from disk.
type FileSource struct {
	Path string
}

// Name implements Source.
func (f FileSource) Name() string { return "file:" + f.Path }

// Fetch implements Source.
func (f FileSource) Fetch(_ context.Context) ([]Record, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return ParseFeatureCollection(data)
}

// HTTPSource downloads a GeoJSON document.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Name implements Source.
func (h HTTPSource) Name() string { return "http:" + h.URL }

// Fetch implements Source.
func (h HTTPSource) Fetch(ctx context.Context) ([]Record, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // nolint:errcheck // Close in defer, error not actionable

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, h.URL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return ParseFeatureCollection(data)
}
