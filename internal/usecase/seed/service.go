// Package seed indexes the audio files matching a glob at startup.
package seed

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
)

// Indexer runs the index flow over a batch of root documents.
type Indexer interface {
	Index(ctx context.Context, docs []*document.Document, params map[string]any) (batch.Report, error)
}

// Result summarizes a seeding run. Duplicates counts files skipped because an
// earlier file already produced the same ID.
type Result struct {
	Files      int
	Indexed    int
	Failed     int
	Duplicates int
	Chunks     int
}

var unsafeID = regexp.MustCompile(`[^a-zA-Z0-9_.:-]+`)

// Service feeds files to the indexer in fixed-size batches.
type Service struct {
	indexer   Indexer
	batchSize int
	logger    *zap.Logger
}

// New creates a seeding service.
func New(indexer Indexer, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{indexer: indexer, batchSize: batchSize, logger: logger}
}

// Run indexes every file matching glob. An empty glob is a no-op.
// Per-file failures are logged and counted; only call-level errors stop the run.
func (s *Service) Run(ctx context.Context, glob string) (Result, error) {
	if glob == "" {
		return Result{}, nil
	}
	docs, res, err := s.collect(glob)
	if err != nil {
		return Result{}, err
	}

	for start := 0; start < len(docs); start += s.batchSize {
		part := docs[start:min(start+s.batchSize, len(docs))]
		report, err := s.indexer.Index(ctx, part, nil)
		if err != nil {
			return res, fmt.Errorf("seed batch at %d: %w", start, err)
		}
		for _, f := range report.Failed() {
			s.logger.Warn("Seed file failed",
				zap.String("id", f.ID()),
				zap.String("path", part[f.Offset()].URI),
				zap.Error(f.Err()),
			)
		}
		res.Indexed += report.Succeeded()
		res.Failed += len(report.Failed())
		res.Chunks += report.TotalChunks()
	}

	s.logger.Info("Seed indexing finished",
		zap.String("glob", glob),
		zap.Int("files", res.Files),
		zap.Int("indexed", res.Indexed),
		zap.Int("failed", res.Failed),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("chunks", res.Chunks),
	)
	return res, nil
}

// collect expands glob into root documents with absolute URIs, so a file
// fetcher with its own root does not re-anchor them. Files are taken in
// lexical order; a file whose ID was already taken is skipped.
func (s *Service) collect(glob string) ([]*document.Document, Result, error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, Result{}, fmt.Errorf("seed glob %q: %w", glob, err)
	}
	sort.Strings(paths)

	res := Result{Files: len(paths)}
	docs := make([]*document.Document, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, Result{}, fmt.Errorf("seed path %q: %w", p, err)
		}
		id := IDFromPath(abs)
		if prev, ok := seen[id]; ok {
			s.logger.Warn("Seed file skipped, duplicate id",
				zap.String("id", id),
				zap.String("path", abs),
				zap.String("kept", prev),
			)
			res.Duplicates++
			continue
		}
		seen[id] = abs
		docs = append(docs, document.New(id, abs))
	}
	return docs, res, nil
}

// IDFromPath derives a document ID from a file name without its extension.
func IDFromPath(p string) string {
	base := filepath.Base(p)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	id = strings.Trim(unsafeID.ReplaceAllString(id, "_"), "_")
	if len(id) > document.MaxIDLength {
		id = id[:document.MaxIDLength]
	}
	return id
}
