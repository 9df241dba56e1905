package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/usecase/rank"
	"github.com/kailas-cloud/audiosearch/internal/usecase/segment"
)

// --- Mocks ---

type mockDecoder struct {
	waves map[string][]float32
}

func (m *mockDecoder) Decode(_ context.Context, uri string) ([]float32, int, error) {
	w, ok := m.waves[uri]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrDecodeFailed, uri)
	}
	return w, 16000, nil
}

// levelEmbedder embeds a chunk as its first sample, so distances are easy to reason about.
type levelEmbedder struct {
	failOn float32
}

func (e *levelEmbedder) Embed(_ context.Context, samples []float32, _ int) ([]float32, error) {
	if len(samples) == 0 {
		return []float32{0}, nil
	}
	if e.failOn != 0 && samples[0] == e.failOn {
		return nil, errors.New("model rejected input")
	}
	return []float32{samples[0]}, nil
}

// memIndex is a brute-force chunk index using absolute difference as distance.
type memIndex struct {
	mu        sync.Mutex
	chunks    map[string][]*document.Document
	upsertErr error
	lastK     int
	excluded  []string
}

func newMemIndex() *memIndex {
	return &memIndex{chunks: make(map[string][]*document.Document)}
}

func (m *memIndex) Upsert(_ context.Context, parent *document.Document) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[parent.ID] = parent.Chunks
	return nil
}

func (m *memIndex) Search(_ context.Context, vec []float32, k int, exclude string) ([]*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastK = k
	if exclude != "" {
		m.excluded = append(m.excluded, exclude)
	}
	var out []*document.Document
	for parent, chunks := range m.chunks {
		if parent == exclude {
			continue
		}
		for _, c := range chunks {
			d := float64(vec[0] - c.Embedding[0])
			if d < 0 {
				d = -d
			}
			match := &document.Document{ID: c.ID, ParentID: parent, URI: c.URI, Tags: c.Tags.Clone()}
			match.SetScore("cosine", d)
			out = append(out, match)
		}
	}
	return out, nil
}

func (m *memIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chunks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.chunks, id)
	return nil
}

func (m *memIndex) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks), nil
}

func (m *memIndex) Metric() string { return "cosine" }

// constant returns n seconds of a constant level at 16 kHz.
func constant(seconds int, level float32) []float32 {
	w := make([]float32, seconds*16000)
	for i := range w {
		w[i] = level
	}
	return w
}

func newTestPipeline(t *testing.T, dec *mockDecoder, emb Embedder, idx *memIndex) *Service {
	t.Helper()
	seg, err := segment.New(segment.DefaultConfig(), dec, nil)
	if err != nil {
		t.Fatal(err)
	}
	rk, err := rank.New(rank.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(seg, emb, idx, rk, Config{TopK: 5}, nil)
}

// --- Tests ---

func TestIndexThenSearch(t *testing.T) {
	dec := &mockDecoder{waves: map[string][]float32{
		"low.wav":  constant(3, 0.1),
		"mid.wav":  constant(3, 0.5),
		"high.wav": constant(3, 0.9),
	}}
	idx := newMemIndex()
	svc := newTestPipeline(t, dec, &levelEmbedder{}, idx)
	ctx := context.Background()

	report, err := svc.Index(ctx, []*document.Document{
		document.New("low", "low.wav"),
		document.New("mid", "mid.wav"),
		document.New("high", "high.wav"),
	}, nil)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if report.Succeeded() != 3 {
		t.Fatalf("indexed %d, want 3", report.Succeeded())
	}
	if n, _ := svc.Count(ctx); n != 3 {
		t.Fatalf("Count = %d", n)
	}

	q := &document.Document{Waveform: constant(2, 0.45)}
	q.EnsureTags().Set(domain.TagSampleRate, 16000)
	report, err = svc.Search(ctx, []*document.Document{q}, map[string]any{"top_k": 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if report.Succeeded() != 1 {
		t.Fatalf("search failed: %v", report.Failed())
	}
	if idx.lastK != 2 {
		t.Errorf("top_k = %d, want 2", idx.lastK)
	}
	if len(q.Matches) != 2 {
		t.Fatalf("matches = %d, want 2 (limited to top_k)", len(q.Matches))
	}
	if q.Matches[0].ID != "mid" || q.Matches[1].ID != "low" {
		t.Errorf("order = [%s %s], want [mid low]", q.Matches[0].ID, q.Matches[1].ID)
	}
	prev := -1.0
	for _, m := range q.Matches {
		s, _ := m.Score("cosine")
		if s < prev {
			t.Errorf("scores not ascending: %v after %v", s, prev)
		}
		prev = s
	}
}

func TestSearch_ExcludeSelf(t *testing.T) {
	dec := &mockDecoder{waves: map[string][]float32{"a.wav": constant(2, 0.3), "b.wav": constant(2, 0.6)}}
	idx := newMemIndex()
	svc := newTestPipeline(t, dec, &levelEmbedder{}, idx)
	ctx := context.Background()

	if _, err := svc.Index(ctx, []*document.Document{document.New("a", "a.wav"), document.New("b", "b.wav")}, nil); err != nil {
		t.Fatal(err)
	}
	q := document.New("a", "a.wav")
	if _, err := svc.Search(ctx, []*document.Document{q}, map[string]any{"exclude_self": true}); err != nil {
		t.Fatal(err)
	}
	if len(q.Matches) != 1 || q.Matches[0].ID != "b" {
		t.Fatalf("matches = %v, want only b", q.Matches)
	}
	if len(idx.excluded) == 0 || idx.excluded[0] != "a" {
		t.Errorf("excluded = %v", idx.excluded)
	}
}

func TestIndex_PerDocumentFailures(t *testing.T) {
	dec := &mockDecoder{waves: map[string][]float32{
		"ok.wav":  constant(2, 0.2),
		"bad.wav": constant(2, 0.7),
	}}
	idx := newMemIndex()
	svc := newTestPipeline(t, dec, &levelEmbedder{failOn: 0.7}, idx)

	report, err := svc.Index(context.Background(), []*document.Document{
		document.New("ok", "ok.wav"),
		document.New("bad", "bad.wav"),
		document.New("missing", "missing.wav"),
	}, nil)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if report.Succeeded() != 1 {
		t.Fatalf("succeeded = %d, want 1", report.Succeeded())
	}
	failed := report.Failed()
	if len(failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(failed))
	}
	if !errors.Is(failed[0].Err(), domain.ErrEmbeddingFailed) {
		t.Errorf("bad: expected ErrEmbeddingFailed, got %v", failed[0].Err())
	}
	if !errors.Is(failed[1].Err(), domain.ErrDecodeFailed) {
		t.Errorf("missing: expected ErrDecodeFailed, got %v", failed[1].Err())
	}
	if report.Results[1].Chunks() != 0 {
		t.Error("failed document should report no chunks")
	}
	if n, _ := idx.Count(context.Background()); n != 1 {
		t.Errorf("stored = %d, want 1", n)
	}
}

func TestIndex_StoreFailure(t *testing.T) {
	dec := &mockDecoder{waves: map[string][]float32{"a.wav": constant(1, 0.2)}}
	idx := newMemIndex()
	idx.upsertErr = errors.New("connection refused")
	svc := newTestPipeline(t, dec, &levelEmbedder{}, idx)

	report, err := svc.Index(context.Background(), []*document.Document{document.New("a", "a.wav")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r := report.Results[0]; r.Status() != batch.StatusError {
		t.Errorf("status = %s, want error", r.Status())
	}
	if !errors.Is(report.Err(), domain.ErrNoChunks) {
		t.Errorf("Report.Err() = %v", report.Err())
	}
}

func TestRun_RoutesByName(t *testing.T) {
	dec := &mockDecoder{waves: map[string][]float32{"a.wav": constant(1, 0.2)}}
	svc := newTestPipeline(t, dec, &levelEmbedder{}, newMemIndex())
	ctx := context.Background()

	if _, err := svc.Run(ctx, OpIndex, []*document.Document{document.New("a", "a.wav")}, nil); err != nil {
		t.Fatalf("index: %v", err)
	}
	q := document.New("q", "a.wav")
	if _, err := svc.Run(ctx, OpSearch, []*document.Document{q}, nil); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(q.Matches) != 1 {
		t.Errorf("matches = %d", len(q.Matches))
	}

	_, err := svc.Run(ctx, "train", nil, nil)
	if !errors.Is(err, domain.ErrUnknownOperation) || !IsClientError(err) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestParams_InvalidFailBeforeWork(t *testing.T) {
	dec := &mockDecoder{waves: map[string][]float32{"a.wav": constant(1, 0.2)}}
	svc := newTestPipeline(t, dec, &levelEmbedder{}, newMemIndex())
	doc := document.New("a", "a.wav")

	tests := []map[string]any{
		{"ranking": "avg"},
		{"chunk_duration": -1},
		{"top_k": 0},
		{"exclude_self": "yes"},
	}
	for _, params := range tests {
		_, err := svc.Search(context.Background(), []*document.Document{doc}, params)
		if err == nil || !IsClientError(err) {
			t.Errorf("params %v: expected client error, got %v", params, err)
		}
	}
	if doc.Waveform != nil {
		t.Error("document must not be touched")
	}
}

func TestBatchSizeLimit(t *testing.T) {
	dec := &mockDecoder{}
	seg, _ := segment.New(segment.DefaultConfig(), dec, nil)
	rk, _ := rank.New(rank.DefaultConfig(), nil)
	svc := New(seg, &levelEmbedder{}, newMemIndex(), rk, Config{MaxBatchSize: 1}, nil)

	docs := []*document.Document{document.New("a", "a.wav"), document.New("b", "b.wav")}
	if _, err := svc.Index(context.Background(), docs, nil); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	dec := &mockDecoder{waves: map[string][]float32{"a.wav": constant(1, 0.2)}}
	svc := newTestPipeline(t, dec, &levelEmbedder{}, newMemIndex())
	ctx := context.Background()

	if _, err := svc.Index(ctx, []*document.Document{document.New("a", "a.wav")}, nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
