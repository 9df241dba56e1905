package audiosearch

import "github.com/kailas-cloud/audiosearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrInvalidConfig     = domain.ErrInvalidConfig
	ErrUnknownRanking    = domain.ErrUnknownRanking
	ErrDecodeFailed      = domain.ErrDecodeFailed
	ErrMissingSource     = domain.ErrMissingSource
	ErrInvalidWindow     = domain.ErrInvalidWindow
	ErrNoChunks          = domain.ErrNoChunks
	ErrEmbeddingFailed   = domain.ErrEmbeddingFailed
	ErrVectorDimMismatch = domain.ErrVectorDimMismatch
)
