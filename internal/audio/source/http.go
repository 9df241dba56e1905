package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kailas-cloud/audiosearch/internal/domain"
)

// HTTPFetcher downloads audio over http and https.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// WithClient replaces the underlying HTTP client.
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

// Open issues a GET for uri and returns the response body.
func (f *HTTPFetcher) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: %w", uri, domain.ErrNotFound)
	case resp.StatusCode >= 300:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %d", uri, resp.StatusCode)
	}
	return resp.Body, nil
}
