package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/metrics"
)

// InstrumentedEmbedder wraps Embedder with request metrics, dimension checks and logging.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
// dimensions > 0 enforces the output vector length.
func NewInstrumentedEmbedder(
	inner domain.Embedder, model string, dimensions int, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:      inner,
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Dimensions reports the configured or inner vector length.
func (p *InstrumentedEmbedder) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	return domain.EmbeddingDimensions(p.inner)
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedder health: %w", err)
		}
	}
	return nil
}

// Embed delegates to the inner embedder and records duration and outcome.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	start := time.Now()

	vec, err := p.inner.Embed(ctx, samples, sampleRate)

	duration := time.Since(start)
	metrics.EmbeddingRequestDuration.WithLabelValues(p.model).Observe(duration.Seconds())
	metrics.EmbeddingSamplesTotal.WithLabelValues(p.model).Add(float64(len(samples)))

	if err == nil {
		err = domain.CheckDimensions(vec, p.dimensions)
	}
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.model, "error").Inc()
		p.logger.Error("Embedding request failed",
			zap.String("model", p.model),
			zap.Int("samples", len(samples)),
			zap.Int("sample_rate", sampleRate),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("embed: %w", err)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(p.model, "success").Inc()
	p.logger.Debug("Embedding request completed",
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(vec)),
	)

	return vec, nil
}
