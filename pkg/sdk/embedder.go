package audiosearch

import (
	"context"
	"io"
)

// Embedder turns a mono waveform into a fixed-length vector.
// Every vector must have Dimensions() elements.
type Embedder interface {
	Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
	Dimensions() int
}

// Fetcher opens the bytes behind a URI of one scheme.
type Fetcher interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}
