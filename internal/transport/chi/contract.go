package chi

import (
	"context"

	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	healthuc "github.com/kailas-cloud/audiosearch/internal/usecase/health"
)

// Pipeline runs the index and search flows.
type Pipeline interface {
	Index(ctx context.Context, docs []*document.Document, params map[string]any) (batch.Report, error)
	Search(ctx context.Context, docs []*document.Document, params map[string]any) (batch.Report, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// AudioDecoder decodes an uploaded WAV or MP3 body.
type AudioDecoder interface {
	DecodeBytes(data []byte) ([]float32, int, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
