// Package decode turns WAV and MP3 bytes into mono float32 waveforms at a target rate.
package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	resampling "github.com/tphakala/go-audio-resampling"
	"go.uber.org/zap"

	"github.com/kailas-cloud/audiosearch/internal/audio/source"
	"github.com/kailas-cloud/audiosearch/internal/domain"
)

// DefaultSampleRate is the rate audio is resampled to unless configured otherwise.
const DefaultSampleRate = 16000

// ErrUnknownFormat is returned when the bytes are neither WAV nor MP3.
var ErrUnknownFormat = errors.New("unknown audio format")

// Format is a sniffed container format.
type Format string

// Supported formats.
const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// Decoder loads audio from URIs through a source fetcher.
type Decoder struct {
	fetcher    source.Fetcher
	targetRate int
	logger     *zap.Logger
}

// New creates a decoder. targetRate <= 0 keeps the native rate.
func New(fetcher source.Fetcher, targetRate int, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{fetcher: fetcher, targetRate: targetRate, logger: logger}
}

// TargetRate returns the configured output rate.
func (d *Decoder) TargetRate() int { return d.targetRate }

// Decode fetches and decodes uri. Any failure wraps domain.ErrDecodeFailed.
func (d *Decoder) Decode(ctx context.Context, uri string) ([]float32, int, error) {
	rc, err := d.fetcher.Open(ctx, uri)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrDecodeFailed, err)
	}
	defer func() { _ = rc.Close() }()

	samples, sr, err := d.DecodeReader(rc)
	if err != nil {
		return nil, 0, err
	}
	d.logger.Debug("audio decoded",
		zap.String("uri", uri),
		zap.Int("samples", len(samples)),
		zap.Int("sample_rate", sr),
	)
	return samples, sr, nil
}

// DecodeReader decodes a WAV or MP3 stream.
func (d *Decoder) DecodeReader(r io.Reader) ([]float32, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read: %w", domain.ErrDecodeFailed, err)
	}
	return d.DecodeBytes(data)
}

// DecodeBytes decodes an in-memory WAV or MP3 file.
func (d *Decoder) DecodeBytes(data []byte) ([]float32, int, error) {
	var (
		samples []float32
		sr      int
		err     error
	)
	switch Sniff(data) {
	case FormatWAV:
		samples, sr, err = decodeWAV(data)
	case FormatMP3:
		samples, sr, err = decodeMP3(data)
	default:
		err = ErrUnknownFormat
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrDecodeFailed, err)
	}

	if d.targetRate > 0 && sr != d.targetRate {
		samples, err = Resample(samples, sr, d.targetRate)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", domain.ErrDecodeFailed, err)
		}
		sr = d.targetRate
	}
	return samples, sr, nil
}

// Sniff detects the container format from leading bytes.
func Sniff(data []byte) Format {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return FormatWAV
	}
	if len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")) {
		return FormatMP3
	}
	// MPEG audio frame sync: 11 set bits.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return FormatMP3
	}
	return ""
}

func decodeWAV(data []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wav pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, errors.New("wav: missing format")
	}

	bits := buf.SourceBitDepth
	if bits == 0 {
		bits = int(dec.BitDepth)
	}
	if bits <= 0 || bits > 32 {
		return nil, 0, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}
	scale := float64(int64(1) << (bits - 1))
	// 8-bit PCM is unsigned.
	var bias float64
	if bits == 8 {
		bias = 128
	}

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += (float64(buf.Data[i*ch+c]) - bias) / scale
		}
		out[i] = clamp(sum / float64(ch))
	}
	return out, buf.Format.SampleRate, nil
}

func decodeMP3(data []byte) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3: %w", err)
	}
	// Output is interleaved 16-bit little-endian stereo.
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 read: %w", err)
	}
	frames := len(pcm) / 4
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(pcm[i*4]) | uint16(pcm[i*4+1])<<8)
		r := int16(uint16(pcm[i*4+2]) | uint16(pcm[i*4+3])<<8)
		out[i] = clamp((float64(l) + float64(r)) / 2 / 32768.0)
	}
	return out, dec.SampleRate(), nil
}

// Resample converts mono samples from one rate to another. The output holds
// ceil(len*to/from) samples, so a whole number of seconds stays whole.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", from, to)
	}
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	// ResampleMono flushes the filter tail along with the processed block.
	res, err := resampling.ResampleMono(in, float64(from), float64(to), resampling.QualityHigh)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	out := make([]float32, ResampledLen(len(samples), from, to))
	for i := range min(len(out), len(res)) {
		out[i] = clamp(res[i])
	}
	return out, nil
}

// ResampledLen returns the sample count of n samples converted from one rate to another.
func ResampledLen(n, from, to int) int {
	return int((int64(n)*int64(to) + int64(from) - 1) / int64(from))
}

func clamp(v float64) float32 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return float32(v)
}
