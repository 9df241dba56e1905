package document

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/audiosearch/internal/domain"
)

func TestNew(t *testing.T) {
	d := New("song-1", "toy-data/song-1.mp3")
	if d.ID != "song-1" || d.URI != "toy-data/song-1.mp3" {
		t.Errorf("unexpected document: %+v", d)
	}
	if d.Tags == nil || d.Tags.Len() != 0 {
		t.Error("Tags should be empty and non-nil")
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"empty allowed", "", false},
		{"simple", "song-1", false},
		{"file name", "track_01.mp3", false},
		{"uuid", "3f2b1c9e-8d7a-4b6c-9e1f-0a2b3c4d5e6f", false},
		{"space", "my song", true},
		{"slash", "a/b", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateID(tc.id)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateID(%q) err = %v, wantErr %v", tc.id, err, tc.wantErr)
			}
		})
	}
}

func TestSampleRate(t *testing.T) {
	d := New("a", "")
	if _, ok := d.SampleRate(); ok {
		t.Error("missing sample_rate should not be ok")
	}
	d.Tags.Set(domain.TagSampleRate, 0)
	if _, ok := d.SampleRate(); ok {
		t.Error("zero sample_rate should not be ok")
	}
	d.Tags.Set(domain.TagSampleRate, 16000.0)
	if sr, ok := d.SampleRate(); !ok || sr != 16000 {
		t.Errorf("SampleRate() = (%d, %v)", sr, ok)
	}

	var nilTags Document
	if _, ok := nilTags.SampleRate(); ok {
		t.Error("nil tags should not be ok")
	}
}

func TestSpan(t *testing.T) {
	d := New("c", "")
	d.Tags.Set(domain.TagBegInMs, 1000.0)
	if _, _, ok := d.Span(); ok {
		t.Error("span without end should not be ok")
	}
	d.Tags.Set(domain.TagEndInMs, 2000.0)
	beg, end, ok := d.Span()
	if !ok || beg != 1000 || end != 2000 {
		t.Errorf("Span() = (%v, %v, %v)", beg, end, ok)
	}
}

func TestScores(t *testing.T) {
	var d Document
	if _, ok := d.Score("cosine"); ok {
		t.Error("nil scores should miss")
	}
	d.SetScore("cosine", 0.25)
	if s, ok := d.Score("cosine"); !ok || s != 0.25 {
		t.Errorf("Score() = (%v, %v)", s, ok)
	}
}

func TestDuration(t *testing.T) {
	d := New("a", "")
	d.Waveform = make([]float32, 8000)
	if d.Duration() != 0 {
		t.Error("duration without sample rate should be 0")
	}
	d.Tags.Set(domain.TagSampleRate, 16000)
	if d.Duration() != 0.5 {
		t.Errorf("Duration() = %v, want 0.5", d.Duration())
	}
}

func TestEnsureTags(t *testing.T) {
	var d Document
	tg := d.EnsureTags()
	if tg == nil || d.Tags != tg {
		t.Fatal("EnsureTags should allocate and store tags")
	}
	tg.Set("k", "v")
	if d.EnsureTags().Len() != 1 {
		t.Error("EnsureTags should keep existing tags")
	}
}
