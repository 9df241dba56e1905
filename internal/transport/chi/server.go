// Package chi exposes the audio pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	logpkg "github.com/kailas-cloud/audiosearch/internal/logger"
	"github.com/kailas-cloud/audiosearch/internal/metrics"
	healthuc "github.com/kailas-cloud/audiosearch/internal/usecase/health"
	"github.com/kailas-cloud/audiosearch/internal/usecase/pipeline"
	"github.com/kailas-cloud/audiosearch/internal/version"
)

// DefaultMaxUploadBytes caps request bodies when no limit is configured.
const DefaultMaxUploadBytes = 32 << 20

// queryParamID names the query document in POST /search/audio.
const queryParamID = "id"

// Options configures the HTTP layer.
type Options struct {
	MaxUploadBytes int64
	APIKeys        []string
}

// Server implements the HTTP handlers.
type Server struct {
	pipeline Pipeline
	decoder  AudioDecoder
	health   HealthChecker
	opts     Options
	logger   *zap.Logger
}

// NewServer creates a Server.
func NewServer(p Pipeline, dec AudioDecoder, health HealthChecker, opts Options, logger *zap.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pipeline: p, decoder: dec, health: health, opts: opts, logger: logger}
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(s.logger))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))
	r.Use(metrics.Middleware())
	s.Routes(r)
	return r
}

// Routes registers the endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/index", s.handleIndex)
	r.Post("/search", s.handleSearch)
	r.Post("/search/audio", s.handleSearchAudio)
	r.Delete("/documents/{id}", s.handleDelete)
	r.Get("/documents/count", s.handleCount)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	docs, params, ok := s.readPipelineRequest(w, r)
	if !ok {
		return
	}
	r = withOp(r, pipeline.OpIndex, len(docs))
	report, err := s.pipeline.Index(r.Context(), docs, params)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{
		Indexed: report.Succeeded(),
		Chunks:  report.TotalChunks(),
		Results: resultsToResponse(report),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	docs, params, ok := s.readPipelineRequest(w, r)
	if !ok {
		return
	}
	s.search(w, r, docs, params)
}

// handleSearchAudio searches with a raw WAV or MP3 body. Query parameters
// other than id are passed to the pipeline.
func (s *Server) handleSearchAudio(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "empty audio body")
		return
	}

	samples, sr, err := s.decoder.DecodeBytes(body)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	query := r.URL.Query()
	doc := document.New(query.Get(queryParamID), "")
	doc.Waveform = samples
	doc.Tags.Set(domain.TagSampleRate, sr)

	params := make(map[string]any, len(query))
	for k, vs := range query {
		if k == queryParamID || len(vs) == 0 {
			continue
		}
		params[k] = parseQueryValue(vs[0])
	}
	s.search(w, r, []*document.Document{doc}, params)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, docs []*document.Document, params map[string]any) {
	r = withOp(r, pipeline.OpSearch, len(docs))
	report, err := s.pipeline.Search(r.Context(), docs, params)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	resp := SearchResponse{
		Documents: make([]SearchDocument, 0, len(docs)),
		Results:   resultsToResponse(report),
	}
	for i, d := range docs {
		if i >= len(report.Results) || report.Results[i].Status() != batch.StatusOK {
			continue
		}
		resp.Documents = append(resp.Documents, searchDocumentToResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := document.ValidateID(id); err != nil || id == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid document id")
		return
	}
	if err := s.pipeline.Delete(r.Context(), id); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.pipeline.Count(r.Context())
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Documents: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	resp := HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  make(map[string]string, len(report.Checks)),
	}
	for k, v := range report.Checks {
		resp.Checks[k] = string(v)
	}
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) readPipelineRequest(w http.ResponseWriter, r *http.Request) ([]*document.Document, map[string]any, bool) {
	var req PipelineRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.writeBodyError(w, err)
		return nil, nil, false
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "documents must not be empty")
		return nil, nil, false
	}

	docs := make([]*document.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = documentFromRequest(d)
	}
	return docs, normalizeParams(req.Parameters), true
}

func withOp(r *http.Request, op string, n int) *http.Request {
	ctx := logpkg.WithFields(r.Context(), zap.String("op", op), zap.Int("documents", n))
	return r.WithContext(ctx)
}

func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
}

func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		logpkg.FromContext(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

// classifyError maps a request-level error to an HTTP status and code.
func classifyError(err error) (int, ErrorCode) {
	switch {
	case pipeline.IsClientError(err):
		return http.StatusBadRequest, CodeValidationFailed
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrDecodeFailed):
		return http.StatusUnprocessableEntity, CodeDecodeFailed
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// batchErrorCode maps a per-document failure to an error code.
func batchErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrMissingSource):
		return CodeMissingSource
	case errors.Is(err, domain.ErrDecodeFailed):
		return CodeDecodeFailed
	case errors.Is(err, domain.ErrInvalidWindow):
		return CodeInvalidWindow
	case errors.Is(err, domain.ErrEmbeddingFailed):
		return CodeEmbeddingFailed
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case pipeline.IsClientError(err):
		return CodeValidationFailed
	default:
		return CodeInternalError
	}
}

// normalizeParams converts json.Number values so the pipeline sees plain numbers.
func normalizeParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = int(i)
				continue
			}
			if f, err := n.Float64(); err == nil {
				out[k] = f
				continue
			}
		}
		out[k] = v
	}
	return out
}

// parseQueryValue types a query string value: numbers first, then booleans.
func parseQueryValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}
