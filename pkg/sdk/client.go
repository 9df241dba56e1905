package audiosearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/audiosearch/internal/audio/decode"
	"github.com/kailas-cloud/audiosearch/internal/audio/source"
	"github.com/kailas-cloud/audiosearch/internal/db"
	dbRedis "github.com/kailas-cloud/audiosearch/internal/db/redis"
	"github.com/kailas-cloud/audiosearch/internal/domain"
	dombatch "github.com/kailas-cloud/audiosearch/internal/domain/batch"
	domdoc "github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/domain/ranking"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
	"github.com/kailas-cloud/audiosearch/internal/embed/mel"
	chunkrepo "github.com/kailas-cloud/audiosearch/internal/repository/chunk"
	"github.com/kailas-cloud/audiosearch/internal/repository/embcache"
	healthuc "github.com/kailas-cloud/audiosearch/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/audiosearch/internal/usecase/pipeline"
	rankuc "github.com/kailas-cloud/audiosearch/internal/usecase/rank"
	segmentuc "github.com/kailas-cloud/audiosearch/internal/usecase/segment"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "audiosearch:"
	defaultHTTPTimeout      = 30 * time.Second
)

// pipelineUseCase is the internal interface for the index/search flows.
type pipelineUseCase interface {
	Index(ctx context.Context, docs []*domdoc.Document, params map[string]any) (dombatch.Report, error)
	Search(ctx context.Context, docs []*domdoc.Document, params map[string]any) (dombatch.Report, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type storeHandle interface {
	Ping(ctx context.Context) error
	Close()
}

// Client is the audiosearch SDK entry point.
type Client struct {
	store     storeHandle
	pipeline  pipelineUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the database and ensures the chunk index exists.
// The provided context is used for the readiness check and index setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("audiosearch: database address required (use WithValkey or WithRedis)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("audiosearch: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("audiosearch: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("audiosearch: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	log := zap.NewNop()

	prefix := cfg.keyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	emb, err := buildEmbedder(cfg, store, prefix)
	if err != nil {
		return nil, err
	}

	distance, err := db.ParseDistance(cfg.distance)
	if err != nil {
		return nil, fmt.Errorf("audiosearch: %w", err)
	}
	repo := chunkrepo.New(store, prefix, chunkrepo.IndexConfig{
		Dimensions:     emb.Dimensions(),
		Algorithm:      db.VectorHNSW,
		Distance:       distance,
		M:              cfg.hnswM,
		EFConstruction: cfg.hnswEFConstr,
	})
	if cfg.resetIndex {
		if err := repo.Reset(ctx); err != nil {
			return nil, fmt.Errorf("audiosearch: reset index: %w", err)
		}
	}
	if err := repo.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("audiosearch: ensure index: %w", err)
	}

	sampleRate := cfg.sampleRate
	if sampleRate <= 0 {
		sampleRate = domain.DefaultPipelineConfig().TargetSampleRate
	}
	decoder := decode.New(buildRouter(cfg), sampleRate, log)

	segCfg := segmentuc.DefaultConfig()
	if cfg.chunkDuration > 0 {
		segCfg.ChunkDuration = cfg.chunkDuration
	}
	if cfg.chunkStride > 0 {
		segCfg.ChunkStride = cfg.chunkStride
	}
	if cfg.workers > 0 {
		segCfg.Workers = cfg.workers
	}
	seg, err := segmentuc.New(segCfg, decoder, log)
	if err != nil {
		return nil, fmt.Errorf("audiosearch: %w", err)
	}

	rankCfg := rankuc.Config{
		Metric:  repo.Metric(),
		Ranking: ranking.Policy(cfg.ranking),
		Workers: cfg.workers,
	}
	ranker, err := rankuc.New(rankCfg, log)
	if err != nil {
		return nil, fmt.Errorf("audiosearch: %w", err)
	}

	pipe := pipelineuc.New(seg, emb, repo, ranker, pipelineuc.Config{
		TopK:         cfg.topK,
		Workers:      cfg.workers,
		MaxBatchSize: cfg.maxBatchSize,
	}, log)

	return &Client{
		store:     store,
		pipeline:  pipe,
		healthSvc: healthuc.New(store, repo, emb),
		obs:       obs,
	}, nil
}

// sdkEmbedder is what the pipeline and health check need from an embedder.
type sdkEmbedder interface {
	Embedder
	HealthCheck(ctx context.Context) error
}

func buildEmbedder(cfg *clientConfig, store db.Store, prefix string) (sdkEmbedder, error) {
	var inner Embedder = cfg.embedder
	if inner == nil {
		m, err := mel.New(mel.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("audiosearch: %w", err)
		}
		inner = m
	}
	if cfg.cacheTTL > 0 {
		inner = embcache.New(inner, store, prefix, cfg.cacheTTL, nil, nil)
	}
	return &embedderAdapter{inner: inner}, nil
}

func buildRouter(cfg *clientConfig) *source.Router {
	timeout := cfg.httpTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	r := source.NewRouter().
		Handle("file", source.NewFileFetcher(cfg.fileRoot))
	web := source.NewHTTPFetcher(timeout)
	r.Handle("http", web).Handle("https", web)
	for scheme, f := range cfg.fetchers {
		r.Handle(strings.ToLower(scheme), f)
	}
	return r
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, batchStats{}, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Index segments, embeds and stores docs. Per-document failures are returned
// in IndexResult.Items; err is set only when the whole call fails.
func (c *Client) Index(ctx context.Context, docs []Document, opts ...CallOption) (res IndexResult, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("index", start, batchStats{total: len(docs), failed: len(res.Failed())}, err)
	}()

	report, err := c.pipeline.Index(ctx, toDomain(docs), buildParams(opts))
	if err != nil {
		return IndexResult{}, fmt.Errorf("index: %w", err)
	}
	return IndexResult{
		Items:   itemsFromReport(report),
		Indexed: report.Succeeded(),
		Chunks:  report.TotalChunks(),
	}, nil
}

// Search ranks indexed recordings against each query document.
// The result slice is parallel to docs.
func (c *Client) Search(ctx context.Context, docs []Document, opts ...CallOption) (res []SearchResult, err error) {
	start := time.Now()
	defer func() {
		failed := 0
		for _, r := range res {
			if r.Err != nil {
				failed++
			}
		}
		c.obs.observe("search", start, batchStats{total: len(docs), failed: failed}, err)
	}()

	in := toDomain(docs)
	report, err := c.pipeline.Search(ctx, in, buildParams(opts))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	items := itemsFromReport(report)
	out := make([]SearchResult, len(in))
	for i, d := range in {
		if i < len(items) {
			out[i].ItemResult = items[i]
		}
		if out[i].Err != nil {
			continue
		}
		out[i].Matches = matchesFromDomain(d.Matches)
	}
	return out, nil
}

// Delete removes an indexed recording and all of its chunks.
func (c *Client) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, batchStats{}, err) }()

	if err = c.pipeline.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Count returns the number of indexed recordings.
func (c *Client) Count(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("count", start, batchStats{}, err) }()

	n, err = c.pipeline.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// embedderAdapter exposes a public Embedder to the internal health check.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Dimensions() int { return a.inner.Dimensions() }

func (a *embedderAdapter) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	v, err := a.inner.Embed(ctx, samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return v, nil
}

func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedder health: %w", err)
		}
	}
	return nil
}

// toDomain converts caller documents. Documents without a source are passed
// through and fail individually with ErrMissingSource.
func toDomain(docs []Document) []*domdoc.Document {
	out := make([]*domdoc.Document, len(docs))
	for i, d := range docs {
		doc := domdoc.New(d.ID, d.URI)
		if len(d.Tags) > 0 {
			doc.Tags = tags.FromMap(d.Tags)
		}
		if len(d.Waveform) > 0 {
			doc.Waveform = d.Waveform
			if d.SampleRate > 0 {
				doc.Tags.Set(domain.TagSampleRate, d.SampleRate)
			}
		}
		out[i] = doc
	}
	return out
}

func itemsFromReport(r dombatch.Report) []ItemResult {
	items := make([]ItemResult, len(r.Results))
	for i, res := range r.Results {
		items[i] = ItemResult{
			ID:     res.ID(),
			Offset: res.Offset(),
			Chunks: res.Chunks(),
			Err:    res.Err(),
		}
	}
	return items
}

func matchesFromDomain(ms []*domdoc.Document) []Match {
	out := make([]Match, 0, len(ms))
	for _, m := range ms {
		match := Match{ID: m.ID, URI: m.URI, Scores: make(map[string]float64, len(m.Scores))}
		for k, v := range m.Scores {
			match.Scores[k] = v
		}
		match.BegInMs, match.EndInMs, _ = m.Span()
		out = append(out, match)
	}
	return out
}
