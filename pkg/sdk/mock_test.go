package audiosearch

import (
	"context"

	dombatch "github.com/kailas-cloud/audiosearch/internal/domain/batch"
	domdoc "github.com/kailas-cloud/audiosearch/internal/domain/document"
	healthuc "github.com/kailas-cloud/audiosearch/internal/usecase/health"
)

// --- pipelineUseCase mock ---

type mockPipeline struct {
	indexFn  func(ctx context.Context, docs []*domdoc.Document, params map[string]any) (dombatch.Report, error)
	searchFn func(ctx context.Context, docs []*domdoc.Document, params map[string]any) (dombatch.Report, error)
	deleteFn func(ctx context.Context, id string) error
	countFn  func(ctx context.Context) (int, error)
}

func (m *mockPipeline) Index(ctx context.Context, docs []*domdoc.Document, params map[string]any) (dombatch.Report, error) {
	return m.indexFn(ctx, docs, params)
}

func (m *mockPipeline) Search(ctx context.Context, docs []*domdoc.Document, params map[string]any) (dombatch.Report, error) {
	return m.searchFn(ctx, docs, params)
}

func (m *mockPipeline) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockPipeline) Count(ctx context.Context) (int, error) {
	return m.countFn(ctx)
}

// --- healthUseCase mock ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- store mock ---

type mockStore struct {
	pingErr error
	closed  bool
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }
func (m *mockStore) Close()                     { m.closed = true }

// --- Embedder mock ---

type mockEmbedder struct {
	fn   func(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
	dims int
}

func (m *mockEmbedder) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	return m.fn(ctx, samples, sampleRate)
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
