package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared audio vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
}

// Dimensioner reports the fixed output length of an embedder.
type Dimensioner interface {
	Dimensions() int
}

// HealthChecker verifies embedder availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingDimensions returns the output length of e, or 0 if e does not report one.
// Decorators forward Dimensions from the embedder they wrap.
func EmbeddingDimensions(e Embedder) int {
	if d, ok := e.(Dimensioner); ok {
		return d.Dimensions()
	}
	return 0
}

// CheckDimensions verifies that vec has exactly want components.
func CheckDimensions(vec []float32, want int) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrVectorDimMismatch, len(vec), want)
	}
	return nil
}
