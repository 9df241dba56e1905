// Package pipeline wires segmentation, embedding, indexing, retrieval and ranking
// into the named "index" and "search" operations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
	"github.com/kailas-cloud/audiosearch/internal/metrics"
	"github.com/kailas-cloud/audiosearch/internal/usecase/rank"
	"github.com/kailas-cloud/audiosearch/internal/usecase/segment"
)

// Operation names routed by Run.
const (
	OpIndex  = "index"
	OpSearch = "search"
)

// Parameter names read by the pipeline itself. Segmenter and ranker
// parameters travel in the same map.
const (
	ParamTopK        = "top_k"
	ParamExcludeSelf = "exclude_self"
)

// Defaults.
const (
	DefaultTopK    = 10
	DefaultWorkers = 4
	MaxBatchSize   = 100
)

// Config holds the orchestration knobs.
type Config struct {
	TopK         int // chunks retrieved per query chunk and parents kept per query
	Workers      int
	MaxBatchSize int
}

// Service runs the index and search flows over a batch of root documents.
type Service struct {
	seg    Segmenter
	embed  Embedder
	index  ChunkIndex
	ranker Ranker
	cfg    Config
	logger *zap.Logger
}

// New creates a pipeline service.
func New(seg Segmenter, embed Embedder, index ChunkIndex, ranker Ranker, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = MaxBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{seg: seg, embed: embed, index: index, ranker: ranker, cfg: cfg, logger: logger}
}

// Run dispatches a named operation.
func (s *Service) Run(ctx context.Context, op string, docs []*document.Document, params map[string]any) (batch.Report, error) {
	switch op {
	case OpIndex:
		return s.Index(ctx, docs, params)
	case OpSearch:
		return s.Search(ctx, docs, params)
	default:
		return batch.Report{}, fmt.Errorf("%w: %q", domain.ErrUnknownOperation, op)
	}
}

// Index segments, embeds and stores every document. Per-document failures are
// reported in the returned Report.
func (s *Service) Index(ctx context.Context, docs []*document.Document, params map[string]any) (batch.Report, error) {
	start := time.Now()
	report, err := s.runIndex(ctx, docs, params)
	s.observe(OpIndex, start, report, err)
	return report, err
}

func (s *Service) runIndex(ctx context.Context, docs []*document.Document, params map[string]any) (batch.Report, error) {
	p, err := s.parseParams(params)
	if err != nil {
		return batch.Report{}, err
	}
	if err := s.checkBatch(docs); err != nil {
		return batch.Report{}, err
	}

	report, err := s.seg.Segment(ctx, docs, p.segment)
	if err != nil {
		return report, fmt.Errorf("segment: %w", err)
	}

	err = s.forEachSegmented(ctx, docs, &report, func(ctx context.Context, doc *document.Document) error {
		if err := s.embedChunks(ctx, doc); err != nil {
			return err
		}
		if err := s.index.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		return nil
	})
	return report, err
}

// Search segments and embeds the query documents, retrieves the nearest indexed
// chunks for each query chunk and ranks them into parent-level matches.
func (s *Service) Search(ctx context.Context, docs []*document.Document, params map[string]any) (batch.Report, error) {
	start := time.Now()
	report, err := s.runSearch(ctx, docs, params)
	s.observe(OpSearch, start, report, err)
	return report, err
}

func (s *Service) runSearch(ctx context.Context, docs []*document.Document, params map[string]any) (batch.Report, error) {
	p, err := s.parseParams(params)
	if err != nil {
		return batch.Report{}, err
	}
	if err := s.checkBatch(docs); err != nil {
		return batch.Report{}, err
	}

	report, err := s.seg.Segment(ctx, docs, p.segment)
	if err != nil {
		return report, fmt.Errorf("segment: %w", err)
	}

	err = s.forEachSegmented(ctx, docs, &report, func(ctx context.Context, doc *document.Document) error {
		if err := s.embedChunks(ctx, doc); err != nil {
			return err
		}
		exclude := ""
		if p.excludeSelf {
			exclude = doc.ID
		}
		for _, c := range doc.Chunks {
			matches, err := s.index.Search(ctx, c.Embedding, p.topK, exclude)
			if err != nil {
				return fmt.Errorf("retrieve chunk %s: %w", c.ID, err)
			}
			c.Matches = matches
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if err := s.ranker.Rank(ctx, docs, p.rank); err != nil {
		return report, fmt.Errorf("rank: %w", err)
	}
	return report, nil
}

// Delete removes an indexed document and its chunks.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Service) checkBatch(docs []*document.Document) error {
	if len(docs) > s.cfg.MaxBatchSize {
		return fmt.Errorf("%w: batch size %d exceeds %d", domain.ErrInvalidConfig, len(docs), s.cfg.MaxBatchSize)
	}
	return nil
}

// forEachSegmented runs fn for every document the segmenter accepted and
// downgrades its result to an error when fn fails.
func (s *Service) forEachSegmented(
	ctx context.Context,
	docs []*document.Document,
	report *batch.Report,
	fn func(context.Context, *document.Document) error,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, res := range report.Results {
		if res.Status() != batch.StatusOK {
			continue
		}
		doc := docs[i]
		g.Go(func() error {
			err := gctx.Err()
			if err == nil {
				err = fn(gctx, doc)
			}
			if err != nil {
				s.logger.Warn("Document failed after segmentation",
					zap.String("id", doc.ID),
					zap.Int("offset", i),
					zap.Error(err),
				)
				doc.Chunks = nil
				report.Results[i] = batch.NewError(i, doc.ID, domain.NewDocumentError(doc.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func (s *Service) embedChunks(ctx context.Context, doc *document.Document) error {
	for _, c := range doc.Chunks {
		sr, ok := c.SampleRate()
		if !ok {
			return fmt.Errorf("chunk %s: %w: missing sample_rate", c.ID, domain.ErrEmbeddingFailed)
		}
		vec, err := s.embed.Embed(ctx, c.Waveform, sr)
		if err != nil {
			return fmt.Errorf("chunk %s: %w: %w", c.ID, domain.ErrEmbeddingFailed, err)
		}
		c.Embedding = vec
	}
	return nil
}

func (s *Service) observe(op string, start time.Time, report batch.Report, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case len(report.Failed()) > 0:
		status = "partial"
	}
	metrics.PipelineOperationsTotal.WithLabelValues(op, status).Inc()
	metrics.PipelineOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("operation", op),
		zap.Int("documents", len(report.Results)),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("chunks", report.TotalChunks()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.logger.Error("Pipeline operation failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("Pipeline operation completed", fields...)
}

type params struct {
	segment     segment.Overrides
	rank        rank.Overrides
	topK        int
	excludeSelf bool
}

// parseParams splits a request parameter map into per-component overrides.
// The ranker reads the index metric and keeps top_k parents unless told otherwise.
func (s *Service) parseParams(raw map[string]any) (params, error) {
	var p params
	var err error
	if p.segment, err = segment.OverridesFromParams(raw); err != nil {
		return params{}, err
	}
	if p.rank, err = rank.OverridesFromParams(raw); err != nil {
		return params{}, err
	}

	t := tags.FromMap(raw)
	p.topK = s.cfg.TopK
	if v, ok := t.Get(ParamTopK); ok && v != nil {
		f, ok := t.Float(ParamTopK)
		if !ok || f < 1 || f != float64(int(f)) {
			return params{}, fmt.Errorf("%w: %s must be a positive integer, got %v", domain.ErrInvalidConfig, ParamTopK, v)
		}
		p.topK = int(f)
	}
	if v, ok := t.Get(ParamExcludeSelf); ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return params{}, fmt.Errorf("%w: %s must be a boolean", domain.ErrInvalidConfig, ParamExcludeSelf)
		}
		p.excludeSelf = b
	}

	if p.rank.Metric == nil {
		m := s.index.Metric()
		p.rank.Metric = &m
	}
	if p.rank.Limit == nil {
		limit := p.topK
		p.rank.Limit = &limit
	}
	if err := s.ranker.Validate(p.rank); err != nil {
		return params{}, fmt.Errorf("rank: %w", err)
	}
	return p, nil
}

// IsClientError reports whether err stems from request input rather than the backend.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidConfig) ||
		errors.Is(err, domain.ErrUnknownRanking) ||
		errors.Is(err, domain.ErrUnknownOperation)
}
