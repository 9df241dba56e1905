package pipeline

import (
	"context"

	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/usecase/rank"
	"github.com/kailas-cloud/audiosearch/internal/usecase/segment"
)

// Segmenter splits root documents into chunks in place.
type Segmenter interface {
	Segment(ctx context.Context, docs []*document.Document, o segment.Overrides) (batch.Report, error)
}

// Ranker aggregates chunk matches into parent matches in place.
type Ranker interface {
	Validate(o rank.Overrides) error
	Rank(ctx context.Context, docs []*document.Document, o rank.Overrides) error
}

// Embedder vectorizes one chunk of mono samples.
type Embedder interface {
	Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
}

// ChunkIndex stores embedded chunks and retrieves nearest chunks.
type ChunkIndex interface {
	Upsert(ctx context.Context, parent *document.Document) error
	Search(ctx context.Context, vector []float32, k int, excludeParent string) ([]*document.Document, error)
	Delete(ctx context.Context, parentID string) error
	Count(ctx context.Context) (int, error)
	Metric() string
}
