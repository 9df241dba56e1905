// Package embcache stores chunk embeddings in Valkey/Redis keyed by a hash of
// the PCM samples, so re-indexing identical audio skips the embedder.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/audiosearch/internal/db"
	"github.com/kailas-cloud/audiosearch/internal/domain"
)

const keySegment = "emb_cache:"

type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder decorates a domain.Embedder with a read-through cache.
// Concurrent misses for the same samples share one inner call.
// Store failures are logged; they never fail Embed.
type CachedEmbedder struct {
	inner  domain.Embedder
	kv     kvStore
	prefix string
	ttl    time.Duration
	hits   prometheus.Counter
	misses prometheus.Counter
	logger *zap.Logger
	flight singleflight.Group
}

// New wraps inner. counter, when set, must carry a single "result" label.
// A ttl <= 0 keeps entries forever.
func New(
	inner domain.Embedder,
	kv kvStore,
	keyPrefix string,
	ttl time.Duration,
	counter *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CachedEmbedder{
		inner:  inner,
		kv:     kv,
		prefix: keyPrefix + keySegment,
		ttl:    ttl,
		logger: logger,
	}
	if counter != nil {
		c.hits = counter.WithLabelValues("hit")
		c.misses = counter.WithLabelValues("miss")
	}
	return c
}

// Dimensions reports the inner embedder's vector size.
func (c *CachedEmbedder) Dimensions() int { return domain.EmbeddingDimensions(c.inner) }

// HealthCheck forwards to the inner embedder when it has one.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // decorator
	}
	return nil
}

// Embed returns the cached vector for samples or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	key := c.cacheKey(samples, sampleRate)
	if vec, ok := c.lookup(ctx, key); ok {
		inc(c.hits)
		return vec, nil
	}
	inc(c.misses)

	v, err, _ := c.flight.Do(key, func() (any, error) {
		vec, err := c.inner.Embed(ctx, samples, sampleRate)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed samples: %w", err)
	}
	vec := v.([]float32)
	return append([]float32(nil), vec...), nil
}

// cacheKey is sha256 over (sample rate, output dims, raw float32 bits).
func (c *CachedEmbedder) cacheKey(samples []float32, sampleRate int) string {
	buf := make([]byte, 16, 16+4*len(samples))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(sampleRate))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(c.Dimensions()))
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s))
	}
	sum := sha256.Sum256(buf)
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, false
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case len(raw) == 0:
		return nil, false
	}

	vec, err := db.DecodeVector(string(raw))
	if err != nil {
		c.logger.Warn("Discarding corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if dims := c.Dimensions(); dims > 0 && len(vec) != dims {
		c.logger.Warn("Discarding cached embedding with stale size",
			zap.String("key", key), zap.Int("got", len(vec)), zap.Int("want", dims))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	if err := c.kv.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
