package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/audiosearch/internal/domain"
)

// ErrOutsideRoot is returned for paths that resolve outside the fetcher root.
var ErrOutsideRoot = errors.New("path outside file root")

// FileFetcher opens local files. With a root set, relative paths resolve
// against it and no path may leave it; without one any readable path opens.
type FileFetcher struct {
	root string
}

// NewFileFetcher creates a local file fetcher.
func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{root: root}
}

// Open opens a bare path or a file:// URI.
func (f *FileFetcher) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.resolve(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", p, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return file, nil
}

func (f *FileFetcher) resolve(p string) (string, error) {
	if f.root == "" {
		return p, nil
	}
	root, err := filepath.Abs(f.root)
	if err != nil {
		return "", fmt.Errorf("file root %s: %w", f.root, err)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("open %s: %w", p, ErrOutsideRoot)
	}
	return filepath.Clean(p), nil
}
