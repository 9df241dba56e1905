package embcache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/audiosearch/internal/db"
)

// fakeEmbedder returns vec; block, when set, holds calls until closed.
type fakeEmbedder struct {
	vec       []float32
	err       error
	healthErr error
	block     chan struct{}
	calls     atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, _ []float32, _ int) ([]float32, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.vec, f.err
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

func (f *fakeEmbedder) HealthCheck(context.Context) error { return f.healthErr }

// fakeKV answers Get with ErrKeyNotFound unless getFn is set.
type fakeKV struct {
	getFn func(key string) ([]byte, error)
	setFn func(key string, value []byte, ttl time.Duration) error
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.getFn == nil {
		return nil, db.ErrKeyNotFound
	}
	return f.getFn(key)
}

func (f *fakeKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setFn == nil {
		return nil
	}
	return f.setFn(key, value, ttl)
}

func newCached(t *testing.T, inner *fakeEmbedder) (*CachedEmbedder, *fakeKV) {
	t.Helper()
	kv := &fakeKV{}
	return New(inner, kv, "as:", time.Hour, nil, zap.NewNop()), kv
}
