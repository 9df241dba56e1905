package batch

import "github.com/kailas-cloud/audiosearch/internal/domain"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one document in a batch operation.
type Result struct {
	id     string
	offset int
	status ItemStatus
	chunks int
	err    error
}

// NewOK creates a successful batch result.
func NewOK(offset int, id string, chunks int) Result {
	return Result{id: id, offset: offset, status: StatusOK, chunks: chunks}
}

// NewError creates a failed batch result.
func NewError(offset int, id string, err error) Result {
	return Result{id: id, offset: offset, status: StatusError, err: err}
}

// ID returns the document identifier.
func (r Result) ID() string { return r.id }

// Offset returns the position of the document in its batch.
func (r Result) Offset() int { return r.offset }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Chunks returns the number of chunks produced for the document.
func (r Result) Chunks() int { return r.chunks }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Report collects one Result per input document, ordered by offset.
type Report struct {
	Results []Result
}

// NewReport allocates a report for n documents.
func NewReport(n int) Report {
	return Report{Results: make([]Result, n)}
}

// Succeeded counts successful documents.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.status == StatusOK {
			n++
		}
	}
	return n
}

// Failed returns the failed results.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.status == StatusError {
			out = append(out, res)
		}
	}
	return out
}

// TotalChunks sums chunks produced across documents.
func (r Report) TotalChunks() int {
	n := 0
	for _, res := range r.Results {
		n += res.chunks
	}
	return n
}

// Err returns domain.ErrNoChunks when no document produced a chunk.
func (r Report) Err() error {
	if r.TotalChunks() == 0 {
		return domain.ErrNoChunks
	}
	return nil
}
