package decode

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/audiosearch/internal/audio/source"
	"github.com/kailas-cloud/audiosearch/internal/domain"
)

func sine(n, sr int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	return out
}

func writeTempWAV(t *testing.T, samples []float32, sr int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteWAV(f, samples, sr); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want Format
	}{
		{"wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatWAV},
		{"id3", []byte("ID3\x04\x00"), FormatMP3},
		{"frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"riff not wave", []byte("RIFF\x00\x00\x00\x00AVI "), ""},
		{"text", []byte("hello"), ""},
		{"empty", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sniff(tc.in); got != tc.want {
				t.Errorf("Sniff = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecode_WAVRoundTrip(t *testing.T) {
	const sr = 16000
	in := sine(sr/2, sr, 440)
	p := writeTempWAV(t, in, sr)

	dec := New(source.NewFileFetcher(""), sr, nil)
	got, gotSR, err := dec.Decode(context.Background(), p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotSR != sr {
		t.Errorf("sample rate = %d, want %d", gotSR, sr)
	}
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if math.Abs(float64(got[i]-in[i])) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], in[i])
		}
	}
}

func TestDecode_NativeRateKept(t *testing.T) {
	p := writeTempWAV(t, sine(800, 8000, 200), 8000)
	got, sr, err := New(source.NewFileFetcher(""), 0, nil).Decode(context.Background(), p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sr != 8000 || len(got) != 800 {
		t.Errorf("got %d samples at %d Hz", len(got), sr)
	}
}

func TestDecode_Resamples(t *testing.T) {
	p := writeTempWAV(t, sine(8000, 8000, 200), 8000)
	got, sr, err := New(source.NewFileFetcher(""), DefaultSampleRate, nil).Decode(context.Background(), p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sr != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", sr, DefaultSampleRate)
	}
	if len(got) != 16000 {
		t.Errorf("len = %d, want 16000", len(got))
	}
}

func TestDecode_FiveSecondsAt44k(t *testing.T) {
	p := writeTempWAV(t, sine(5*44100, 44100, 440), 44100)
	got, sr, err := New(source.NewFileFetcher(""), DefaultSampleRate, nil).Decode(context.Background(), p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if sr != DefaultSampleRate || len(got) != 5*DefaultSampleRate {
		t.Fatalf("got %d samples at %d Hz, want %d", len(got), sr, 5*DefaultSampleRate)
	}
	var peak float32
	for _, s := range got[len(got)-160:] {
		peak = max(peak, s, -s)
	}
	if peak < 0.1 {
		t.Errorf("last 10 ms peak = %v, tail was dropped", peak)
	}
}

func TestResample_Length(t *testing.T) {
	for _, from := range []int{8000, 22050, 44100, 48000} {
		out, err := Resample(sine(5*from, from, 440), from, DefaultSampleRate)
		if err != nil {
			t.Fatalf("Resample from %d: %v", from, err)
		}
		if len(out) != 5*DefaultSampleRate {
			t.Errorf("from %d Hz: len = %d, want %d", from, len(out), 5*DefaultSampleRate)
		}
	}
}

func TestResampledLen(t *testing.T) {
	tests := []struct{ n, from, to, want int }{
		{44100, 44100, 16000, 16000},
		{1, 44100, 16000, 1},
		{100, 44100, 16000, 37},
		{8000, 8000, 16000, 16000},
	}
	for _, tc := range tests {
		if got := ResampledLen(tc.n, tc.from, tc.to); got != tc.want {
			t.Errorf("ResampledLen(%d, %d, %d) = %d, want %d", tc.n, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDecode_MissingFile(t *testing.T) {
	_, _, err := New(source.NewFileFetcher(""), 0, nil).Decode(context.Background(), "/no/such/file.wav")
	if !errors.Is(err, domain.ErrDecodeFailed) {
		t.Fatalf("err = %v, want ErrDecodeFailed", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound in chain", err)
	}
}

func TestDecodeBytes_UnknownFormat(t *testing.T) {
	_, _, err := New(nil, 0, nil).DecodeBytes([]byte("definitely not audio"))
	if !errors.Is(err, domain.ErrDecodeFailed) || !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v, want ErrDecodeFailed + ErrUnknownFormat", err)
	}
}

func TestDecodeBytes_TruncatedWAV(t *testing.T) {
	_, _, err := New(nil, 0, nil).DecodeBytes([]byte("RIFF\x24\x00\x00\x00WAVE"))
	if !errors.Is(err, domain.ErrDecodeFailed) {
		t.Fatalf("err = %v, want ErrDecodeFailed", err)
	}
}

func TestResample_Passthrough(t *testing.T) {
	in := []float32{0.1, 0.2}
	out, err := Resample(in, 16000, 16000)
	if err != nil || len(out) != 2 {
		t.Fatalf("Resample = (%v, %v)", out, err)
	}
	if _, err := Resample(in, 0, 16000); err == nil {
		t.Error("expected error for zero input rate")
	}
}

func TestClamp(t *testing.T) {
	if clamp(2) != 1 || clamp(-3) != -1 || clamp(math.NaN()) != 0 || clamp(0.25) != 0.25 {
		t.Error("clamp out of range handling broken")
	}
}
