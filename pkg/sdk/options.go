package audiosearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey" or "redis"
	addrs    []string
	password string

	keyPrefix    string
	resetIndex   bool
	distance     string
	hnswM        int
	hnswEFConstr int

	embedder Embedder
	cacheTTL time.Duration

	fileRoot    string
	httpTimeout time.Duration
	fetchers    map[string]Fetcher
	sampleRate  int

	chunkDuration float64
	chunkStride   float64
	ranking       RankPolicy
	topK          int
	maxBatchSize  int
	workers       int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces every key and the index name. Default "audiosearch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithResetIndex drops the index and all stored chunks on connect.
func WithResetIndex() Option {
	return optionFunc(func(c *clientConfig) {
		c.resetIndex = true
	})
}

// WithDistance selects the index distance metric: cosine, l2 or ip.
// The lowercased name is also the score key on matches.
func WithDistance(metric string) Option {
	return optionFunc(func(c *clientConfig) {
		c.distance = metric
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstr = efConstruct
	})
}

// WithEmbedder replaces the built-in log-mel embedder.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithEmbeddingCache stores chunk embeddings in the database for ttl.
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithFileRoot resolves bare paths and file:// URIs relative to root and
// refuses paths that resolve outside it.
func WithFileRoot(root string) Option {
	return optionFunc(func(c *clientConfig) {
		c.fileRoot = root
	})
}

// WithHTTPTimeout bounds http(s) source downloads. Default 30s.
func WithHTTPTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpTimeout = d
	})
}

// WithFetcher registers a source for a URI scheme, e.g. "s3" or "minio".
func WithFetcher(scheme string, f Fetcher) Option {
	return optionFunc(func(c *clientConfig) {
		if c.fetchers == nil {
			c.fetchers = make(map[string]Fetcher)
		}
		c.fetchers[scheme] = f
	})
}

// WithSampleRate sets the rate decoded audio is resampled to. Default 16000.
func WithSampleRate(hz int) Option {
	return optionFunc(func(c *clientConfig) {
		c.sampleRate = hz
	})
}

// WithChunking sets the default window length and hop in seconds. Default 1s/1s.
func WithChunking(duration, stride float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkDuration = duration
		c.chunkStride = stride
	})
}

// WithDefaultRanking sets the aggregation used when a search names none. Default RankMin.
func WithDefaultRanking(p RankPolicy) Option {
	return optionFunc(func(c *clientConfig) {
		c.ranking = p
	})
}

// WithDefaultTopK sets how many chunks are retrieved per query chunk. Default 10.
func WithDefaultTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithMaxBatchSize sets the maximum number of documents per call.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithWorkers bounds per-document concurrency. Default 4.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
