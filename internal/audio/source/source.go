// Package source opens audio bytes behind a document URI.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrUnsupportedScheme is returned for URIs whose scheme has no registered fetcher.
var ErrUnsupportedScheme = errors.New("unsupported uri scheme")

// Fetcher opens the bytes addressed by a URI.
type Fetcher interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Router dispatches URIs to fetchers by scheme. Bare paths use the "file" scheme.
type Router struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

// NewRouter creates a router with local files registered.
func NewRouter() *Router {
	r := &Router{fetchers: make(map[string]Fetcher)}
	r.Handle("file", NewFileFetcher(""))
	return r
}

// Handle registers f for scheme, replacing any previous fetcher.
func (r *Router) Handle(scheme string, f Fetcher) *Router {
	r.mu.Lock()
	r.fetchers[strings.ToLower(scheme)] = f
	r.mu.Unlock()
	return r
}

// Schemes returns the registered schemes.
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fetchers))
	for s := range r.fetchers {
		out = append(out, s)
	}
	return out
}

// Open resolves uri through the fetcher registered for its scheme.
func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if uri == "" {
		return nil, errors.New("empty uri")
	}
	scheme := Scheme(uri)
	r.mu.RLock()
	f, ok := r.fetchers[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return f.Open(ctx, uri)
}

// Scheme returns the lower-cased scheme of uri, or "file" for bare paths.
func Scheme(uri string) string {
	s, _, ok := strings.Cut(uri, "://")
	if !ok || s == "" {
		return "file"
	}
	return strings.ToLower(s)
}

// splitBucketKey parses "<scheme>://bucket/key/parts".
func splitBucketKey(uri string) (bucket, key string, err error) {
	_, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "", "", fmt.Errorf("invalid object uri %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("object uri %q must be <scheme>://bucket/key", uri)
	}
	return bucket, key, nil
}
