package mel

import (
	"context"
	"math"
	"testing"
)

func tone(n, sr int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	return out
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func newEmbedder(t *testing.T) *Embedder {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNew_Validation(t *testing.T) {
	bad := []Config{
		{NumMels: 0, WindowMs: 25, HopMs: 10},
		{NumMels: 40, WindowMs: 0, HopMs: 10},
		{NumMels: 40, WindowMs: 25, HopMs: -1},
		{NumMels: 40, WindowMs: 25, HopMs: 10, PreEmphasis: 1},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) expected error", cfg)
		}
	}
}

func TestEmbed_DimensionsAndUnitNorm(t *testing.T) {
	e := newEmbedder(t)
	if e.Dimensions() != 80 {
		t.Fatalf("Dimensions() = %d, want 80", e.Dimensions())
	}
	vec, err := e.Embed(context.Background(), tone(16000, 16000, 440), 16000)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != e.Dimensions() {
		t.Fatalf("len = %d", len(vec))
	}
	var norm float64
	for _, v := range vec {
		if math.IsNaN(float64(v)) {
			t.Fatal("NaN in embedding")
		}
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("squared norm = %v, want 1", norm)
	}
}

func TestEmbed_Deterministic(t *testing.T) {
	e := newEmbedder(t)
	in := tone(8000, 16000, 300)
	a, _ := e.Embed(context.Background(), in, 16000)
	b, _ := e.Embed(context.Background(), in, 16000)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbed_SimilarSoundsAreCloser(t *testing.T) {
	e := newEmbedder(t)
	ctx := context.Background()
	low1, _ := e.Embed(ctx, tone(16000, 16000, 220), 16000)
	low2, _ := e.Embed(ctx, tone(16000, 16000, 230), 16000)
	high, _ := e.Embed(ctx, tone(16000, 16000, 3000), 16000)

	near := cosineDistance(low1, low2)
	far := cosineDistance(low1, high)
	if near >= far {
		t.Errorf("distance(220,230)=%v should be below distance(220,3000)=%v", near, far)
	}
}

func TestEmbed_ShortInputIsPadded(t *testing.T) {
	e := newEmbedder(t)
	vec, err := e.Embed(context.Background(), tone(100, 16000, 440), 16000)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != e.Dimensions() {
		t.Errorf("len = %d", len(vec))
	}
}

func TestEmbed_Errors(t *testing.T) {
	e := newEmbedder(t)
	if _, err := e.Embed(context.Background(), nil, 16000); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := e.Embed(context.Background(), []float32{0.1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Embed(ctx, []float32{0.1}, 16000); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestEmbed_OtherSampleRates(t *testing.T) {
	e := newEmbedder(t)
	for _, sr := range []int{8000, 22050, 44100} {
		vec, err := e.Embed(context.Background(), tone(sr, sr, 440), sr)
		if err != nil {
			t.Fatalf("Embed at %d: %v", sr, err)
		}
		if len(vec) != e.Dimensions() {
			t.Errorf("len at %d = %d", sr, len(vec))
		}
	}
}

func TestFFT_Impulse(t *testing.T) {
	re := make([]float64, 8)
	im := make([]float64, 8)
	re[0] = 1
	fft(re, im)
	for k := range re {
		if math.Abs(re[k]-1) > 1e-12 || math.Abs(im[k]) > 1e-12 {
			t.Fatalf("bin %d = (%v, %v), want (1, 0)", k, re[k], im[k])
		}
	}
}

func TestFilterBank_Shape(t *testing.T) {
	bank := filterBank(40, 512, 16000, 20, 8000)
	if len(bank) != 40 {
		t.Fatalf("filters = %d", len(bank))
	}
	for m, f := range bank {
		if len(f) != 257 {
			t.Fatalf("filter %d has %d bins", m, len(f))
		}
		var peak float64
		for _, w := range f {
			peak = math.Max(peak, w)
		}
		if peak <= 0 {
			t.Errorf("filter %d is empty", m)
		}
	}
}
