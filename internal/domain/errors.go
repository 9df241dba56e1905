package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig signals a configuration error detected before any document is processed.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownRanking signals a ranking policy other than "min" or "max".
	ErrUnknownRanking = errors.New("unknown ranking policy")
	// ErrDecodeFailed signals that a document's audio could not be loaded.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrMissingSource signals a document with neither a waveform nor a uri.
	ErrMissingSource = errors.New("document has neither waveform nor uri")
	// ErrInvalidWindow signals a chunk or stride that rounds to zero samples.
	ErrInvalidWindow = errors.New("window rounds to zero samples")
	// ErrNoChunks signals a batch in which no document produced a chunk.
	ErrNoChunks = errors.New("no chunks produced")
	// ErrEmbeddingFailed signals an embedding failure for a chunk.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrUnknownOperation signals a pipeline operation name that is not routed.
	ErrUnknownOperation = errors.New("unknown operation")
)

// DocumentError attaches a document id to a per-document failure.
type DocumentError struct {
	ID  string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %q: %s", e.ID, e.Err.Error())
}

func (e *DocumentError) Unwrap() error { return e.Err }

// NewDocumentError wraps err with the failing document id.
func NewDocumentError(id string, err error) error {
	return &DocumentError{ID: id, Err: err}
}
