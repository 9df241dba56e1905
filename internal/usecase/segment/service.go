package segment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/batch"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/metrics"
)

// chunkNamespace seeds deterministic chunk ids.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("audiosearch.chunk"))

// ChunkID returns the deterministic id of chunk n of parent.
func ChunkID(parent string, n int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(parent+"#"+strconv.Itoa(n))).String()
}

// Service splits documents into overlapping fixed-duration chunks.
type Service struct {
	cfg     Config
	decoder Decoder
	logger  *zap.Logger
}

// New validates cfg and creates a segmenter. decoder may be nil when every
// document arrives with a waveform.
func New(cfg Config, decoder Decoder, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, decoder: decoder, logger: logger}, nil
}

// Config returns the construction-time defaults.
func (s *Service) Config() Config { return s.cfg }

// Segment fills Waveform, the sample_rate tag and Chunks on each document in place.
// Per-document failures are reported in the returned Report and never abort the batch.
// Invalid overrides fail the whole call before any document is touched.
// A cancelled context returns the context error; unfinished documents are reported failed.
func (s *Service) Segment(ctx context.Context, docs []*document.Document, o Overrides) (batch.Report, error) {
	cfg, err := s.cfg.resolve(o)
	if err != nil {
		return batch.Report{}, err
	}

	report := batch.NewReport(len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i, doc := range docs {
		g.Go(func() error {
			report.Results[i] = s.segmentOne(gctx, cfg, i, doc)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		metrics.SegmentDocumentsTotal.WithLabelValues(string(r.Status())).Inc()
	}
	metrics.SegmentChunksTotal.Add(float64(report.TotalChunks()))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("segment: %w", err)
	}
	return report, nil
}

func (s *Service) segmentOne(ctx context.Context, cfg Config, offset int, doc *document.Document) batch.Result {
	if doc == nil {
		return batch.NewError(offset, "", domain.ErrMissingSource)
	}
	if err := ctx.Err(); err != nil {
		return batch.NewError(offset, doc.ID, err)
	}
	if err := document.ValidateID(doc.ID); err != nil {
		return s.fail(offset, doc, err)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Offset = offset

	sr, err := s.resolveWaveform(ctx, doc)
	if err != nil {
		return s.fail(offset, doc, err)
	}

	chunks, err := split(doc, cfg, sr, offset)
	if err != nil {
		return s.fail(offset, doc, err)
	}
	doc.Chunks = chunks

	s.logger.Debug("Document segmented",
		zap.String("id", doc.ID),
		zap.Int("offset", offset),
		zap.Int("sample_rate", sr),
		zap.Int("samples", len(doc.Waveform)),
		zap.Int("chunks", len(chunks)),
	)
	return batch.NewOK(offset, doc.ID, len(chunks))
}

func (s *Service) fail(offset int, doc *document.Document, err error) batch.Result {
	s.logger.Warn("Skipping document",
		zap.String("id", doc.ID),
		zap.String("uri", doc.URI),
		zap.Int("offset", offset),
		zap.Error(err),
	)
	return batch.NewError(offset, doc.ID, domain.NewDocumentError(doc.ID, err))
}

// resolveWaveform returns the sample rate, decoding the uri when the document
// does not already carry samples with a known rate.
func (s *Service) resolveWaveform(ctx context.Context, doc *document.Document) (int, error) {
	if sr, ok := doc.SampleRate(); ok && len(doc.Waveform) > 0 {
		return sr, nil
	}
	if doc.URI == "" {
		return 0, domain.ErrMissingSource
	}
	if s.decoder == nil {
		return 0, fmt.Errorf("%w: no decoder configured for %q", domain.ErrDecodeFailed, doc.URI)
	}

	start := time.Now()
	wave, sr, err := s.decoder.Decode(ctx, doc.URI)
	metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrDecodeFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrDecodeFailed, err)
		}
		return 0, err
	}
	if sr <= 0 {
		return 0, fmt.Errorf("%w: non-positive sample rate %d", domain.ErrDecodeFailed, sr)
	}

	doc.Waveform = wave
	doc.EnsureTags().Set(domain.TagSampleRate, sr)
	return sr, nil
}

// split cuts doc.Waveform into windows. At least one chunk is produced, so audio
// shorter than one window yields a single short chunk.
func split(doc *document.Document, cfg Config, sr, offset int) ([]*document.Document, error) {
	chunkSize := int(math.Floor(cfg.ChunkDuration * float64(sr)))
	strideSize := int(math.Floor(cfg.ChunkStride * float64(sr)))
	if chunkSize <= 0 || strideSize <= 0 {
		return nil, fmt.Errorf("%w: chunk %d, stride %d samples at %d Hz",
			domain.ErrInvalidWindow, chunkSize, strideSize, sr)
	}

	wave := doc.Waveform
	n := len(wave)
	numChunks := max(1, (n-chunkSize)/strideSize)

	chunks := make([]*document.Document, 0, numChunks)
	for i := range numChunks {
		beg := i * strideSize
		if beg > n {
			break
		}
		end := beg + chunkSize
		sliceEnd := min(end, n)

		tg := doc.Tags.Clone()
		tg.Set(domain.TagSampleRate, sr)
		tg.Set(domain.TagBegInMs, float64(beg)/float64(sr)*1000)
		tg.Set(domain.TagEndInMs, float64(end)/float64(sr)*1000)

		chunks = append(chunks, &document.Document{
			ID:       ChunkID(doc.ID, i),
			URI:      doc.URI,
			Waveform: wave[beg:sliceEnd:sliceEnd],
			Tags:     tg,
			ParentID: doc.ID,
			Offset:   offset,
		})
	}
	return chunks, nil
}
