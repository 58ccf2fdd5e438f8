package gdacs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const userAgent = "CrisisRelay/1.0 (crisis coordination dashboard)"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client downloads and parses GDACS RSS feeds.
type Client struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Client with the given HTTP client.
func New(client HTTPClient) *Client {
	return &Client{
		client:  client,
		timeout: 15 * time.Second,
	}
}

// SetTimeout overrides the default per-fetch timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Fetch downloads and parses the feed at url. Any non-2xx status is a
// failure; there is no partial success at the transport level.
func (c *Client) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}
