package chi

import (
	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNotFound         ErrorCode = "not_found"
	CodeTooLarge         ErrorCode = "payload_too_large"
	CodeDecodeFailed     ErrorCode = "decode_failed"
	CodeMissingSource    ErrorCode = "missing_source"
	CodeInvalidWindow    ErrorCode = "invalid_window"
	CodeEmbeddingFailed  ErrorCode = "embedding_failed"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentRequest is one root document. Either URI or Waveform with SampleRate must be set.
type DocumentRequest struct {
	ID         string     `json:"id,omitempty"`
	URI        string     `json:"uri,omitempty"`
	Waveform   []float32  `json:"waveform,omitempty"`
	SampleRate int        `json:"sample_rate,omitempty"`
	Tags       *tags.Tags `json:"tags,omitempty"`
}

// PipelineRequest is the body of POST /index and POST /search.
type PipelineRequest struct {
	Documents  []DocumentRequest `json:"documents"`
	Parameters map[string]any    `json:"parameters,omitempty"`
}

// ResultItem reports the outcome of one document.
type ResultItem struct {
	ID     string         `json:"id"`
	Offset int            `json:"offset"`
	Status string         `json:"status"`
	Chunks int            `json:"chunks"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// IndexResponse is the body of a successful POST /index.
type IndexResponse struct {
	Indexed int          `json:"indexed"`
	Chunks  int          `json:"chunks"`
	Results []ResultItem `json:"results"`
}

// MatchResponse is one parent-level match.
type MatchResponse struct {
	ID      string             `json:"id"`
	URI     string             `json:"uri,omitempty"`
	Scores  map[string]float64 `json:"scores"`
	BegInMs *float64           `json:"beg_in_ms,omitempty"`
	EndInMs *float64           `json:"end_in_ms,omitempty"`
}

// SearchDocument holds the ranked matches of one query document.
type SearchDocument struct {
	ID      string          `json:"id"`
	URI     string          `json:"uri,omitempty"`
	Matches []MatchResponse `json:"matches"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Documents []SearchDocument `json:"documents"`
	Results   []ResultItem     `json:"results"`
}

// CountResponse is the body of GET /documents/count.
type CountResponse struct {
	Documents int `json:"documents"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func documentFromRequest(req DocumentRequest) *document.Document {
	doc := document.New(req.ID, req.URI)
	if req.Tags != nil {
		doc.Tags = req.Tags.Clone()
	}
	if len(req.Waveform) > 0 {
		doc.Waveform = req.Waveform
		if req.SampleRate > 0 {
			doc.Tags.Set(domain.TagSampleRate, req.SampleRate)
		}
	}
	return doc
}

func resultsToResponse(r batch.Report) []ResultItem {
	items := make([]ResultItem, len(r.Results))
	for i, res := range r.Results {
		items[i] = ResultItem{
			ID:     res.ID(),
			Offset: res.Offset(),
			Status: string(res.Status()),
			Chunks: res.Chunks(),
		}
		if err := res.Err(); err != nil {
			items[i].Error = &ErrorResponse{Code: batchErrorCode(err), Message: err.Error()}
		}
	}
	return items
}

func searchDocumentToResponse(doc *document.Document) SearchDocument {
	out := SearchDocument{ID: doc.ID, URI: doc.URI, Matches: make([]MatchResponse, 0, len(doc.Matches))}
	for _, m := range doc.Matches {
		mr := MatchResponse{ID: m.ID, URI: m.URI, Scores: m.Scores}
		if beg, end, ok := m.Span(); ok {
			mr.BegInMs, mr.EndInMs = &beg, &end
		}
		out.Matches = append(out.Matches, mr)
	}
	return out
}
