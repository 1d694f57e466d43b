package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/cwbudde/vkprobe/internal/snapshot"
)

// Client fetches snapshots from a running vkprobe server.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchSnapshot captures a fresh snapshot through the remote server.
func (c *Client) FetchSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	url := c.baseURL + "/api/v1/snapshot"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return snapshot.Decode(resp.Body, snapshot.FormatJSON)
}

// FetchSnapshot fetches one snapshot from the server at baseURL.
func FetchSnapshot(ctx context.Context, baseURL string) (*snapshot.Snapshot, error) {
	return NewClient(baseURL).FetchSnapshot(ctx)
}
