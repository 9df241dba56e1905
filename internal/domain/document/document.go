// Package document defines the mutable record that flows through the audio pipeline.
package document

import (
	"fmt"
	"regexp"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxIDLength is the maximum length of a caller-supplied document ID.
const MaxIDLength = 256

// Document is a pipeline record: a source recording, one of its chunks, or a match.
// Root documents are created by callers; the segmenter fills Waveform and Chunks,
// retrieval fills chunk Matches, and the ranker replaces root Matches.
type Document struct {
	ID        string
	URI       string
	Waveform  []float32
	Tags      *tags.Tags
	Embedding []float32
	Chunks    []*Document
	Matches   []*Document
	Scores    map[string]float64
	ParentID  string
	Offset    int
}

// New creates a root document pointing at uri.
func New(id, uri string) *Document {
	return &Document{ID: id, URI: uri, Tags: tags.New()}
}

// ValidateID checks a caller-supplied identifier. Empty IDs are allowed and
// replaced with a generated one during segmentation.
func ValidateID(id string) error {
	if id == "" {
		return nil
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("document ID too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("document ID %q must contain only letters, digits, '_', '-', '.', ':'", id)
	}
	return nil
}

// SampleRate returns the positive sample rate recorded in tags.
func (d *Document) SampleRate() (int, bool) {
	f, ok := d.Tags.Float(domain.TagSampleRate)
	if !ok || f <= 0 {
		return 0, false
	}
	return int(f), true
}

// Span returns the chunk time window in milliseconds.
func (d *Document) Span() (beg, end float64, ok bool) {
	beg, okb := d.Tags.Float(domain.TagBegInMs)
	end, oke := d.Tags.Float(domain.TagEndInMs)
	return beg, end, okb && oke
}

// Score returns the score recorded under metric.
func (d *Document) Score(metric string) (float64, bool) {
	if d.Scores == nil {
		return 0, false
	}
	s, ok := d.Scores[metric]
	return s, ok
}

// SetScore records a score under metric.
func (d *Document) SetScore(metric string, v float64) {
	if d.Scores == nil {
		d.Scores = make(map[string]float64, 1)
	}
	d.Scores[metric] = v
}

// EnsureTags returns d.Tags, allocating it if nil.
func (d *Document) EnsureTags() *tags.Tags {
	if d.Tags == nil {
		d.Tags = tags.New()
	}
	return d.Tags
}

// Duration returns the waveform length in seconds, or 0 if unknown.
func (d *Document) Duration() float64 {
	sr, ok := d.SampleRate()
	if !ok {
		return 0
	}
	return float64(len(d.Waveform)) / float64(sr)
}
