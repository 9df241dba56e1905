// Package mel embeds audio windows as pooled log-mel filterbank statistics.
package mel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// Config controls feature extraction. Window and hop are in milliseconds so the
// same embedder serves any sample rate.
type Config struct {
	NumMels     int
	WindowMs    float64
	HopMs       float64
	LowFreq     float64
	HighFreq    float64 // 0 means Nyquist
	PreEmphasis float64
}

// DefaultConfig returns 40 mel bands over 25 ms Hamming windows with a 10 ms hop.
func DefaultConfig() Config {
	return Config{
		NumMels:     40,
		WindowMs:    25,
		HopMs:       10,
		LowFreq:     20,
		PreEmphasis: 0.97,
	}
}

// Embedder produces L2-normalised [mean | std] vectors of per-band log-mel energy.
type Embedder struct {
	cfg Config

	mu    sync.Mutex
	banks map[int]*frontEnd
}

// frontEnd holds the per-sample-rate analysis state.
type frontEnd struct {
	window []float64
	hop    int
	nfft   int
	bank   [][]float64
}

// New validates cfg and creates an Embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.NumMels <= 0 {
		return nil, fmt.Errorf("mel: num_mels must be positive, got %d", cfg.NumMels)
	}
	if cfg.WindowMs <= 0 || cfg.HopMs <= 0 {
		return nil, fmt.Errorf("mel: window and hop must be positive")
	}
	if cfg.PreEmphasis < 0 || cfg.PreEmphasis >= 1 {
		return nil, fmt.Errorf("mel: pre_emphasis must be in [0, 1)")
	}
	return &Embedder{cfg: cfg, banks: make(map[int]*frontEnd)}, nil
}

// Dimensions returns 2*NumMels.
func (e *Embedder) Dimensions() int { return 2 * e.cfg.NumMels }

// HealthCheck always succeeds; the embedder is in-process.
func (e *Embedder) HealthCheck(_ context.Context) error { return nil }

// Embed computes the feature vector of samples recorded at sampleRate.
// Inputs shorter than one analysis window are zero-padded.
func (e *Embedder) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("mel: invalid sample rate %d", sampleRate)
	}
	if len(samples) == 0 {
		return nil, errors.New("mel: empty input")
	}
	fe, err := e.frontEnd(sampleRate)
	if err != nil {
		return nil, err
	}

	frames := e.logMel(fe, samples)
	return pool(frames, e.cfg.NumMels), nil
}

func (e *Embedder) frontEnd(sr int) (*frontEnd, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fe, ok := e.banks[sr]; ok {
		return fe, nil
	}

	win := int(e.cfg.WindowMs * float64(sr) / 1000)
	hop := int(e.cfg.HopMs * float64(sr) / 1000)
	if win < 2 || hop < 1 {
		return nil, fmt.Errorf("mel: sample rate %d too low for %.1f ms windows", sr, e.cfg.WindowMs)
	}
	nfft := 1
	for nfft < win {
		nfft <<= 1
	}
	high := e.cfg.HighFreq
	nyquist := float64(sr) / 2
	if high <= 0 || high > nyquist {
		high = nyquist
	}
	if e.cfg.LowFreq >= high {
		return nil, fmt.Errorf("mel: low frequency %.0f above band edge %.0f", e.cfg.LowFreq, high)
	}

	fe := &frontEnd{
		window: hamming(win),
		hop:    hop,
		nfft:   nfft,
		bank:   filterBank(e.cfg.NumMels, nfft, sr, e.cfg.LowFreq, high),
	}
	e.banks[sr] = fe
	return fe, nil
}

func (e *Embedder) logMel(fe *frontEnd, pcm []float32) [][]float64 {
	win := len(fe.window)
	if len(pcm) < win {
		padded := make([]float32, win)
		copy(padded, pcm)
		pcm = padded
	}
	n := (len(pcm)-win)/fe.hop + 1
	half := fe.nfft/2 + 1

	re := make([]float64, fe.nfft)
	im := make([]float64, fe.nfft)
	out := make([][]float64, n)
	for t := 0; t < n; t++ {
		start := t * fe.hop
		for i := range re {
			re[i], im[i] = 0, 0
		}
		for i := 0; i < win; i++ {
			s := float64(pcm[start+i])
			if i > 0 {
				s -= e.cfg.PreEmphasis * float64(pcm[start+i-1])
			}
			re[i] = s * fe.window[i]
		}
		fft(re, im)

		bands := make([]float64, len(fe.bank))
		for m, filt := range fe.bank {
			var energy float64
			for k := 0; k < half; k++ {
				if filt[k] != 0 {
					energy += filt[k] * (re[k]*re[k] + im[k]*im[k])
				}
			}
			bands[m] = math.Log(math.Max(energy, 1e-10))
		}
		out[t] = bands
	}
	return out
}

// pool reduces frames to per-band mean and standard deviation, then L2-normalises.
func pool(frames [][]float64, numMels int) []float32 {
	vec := make([]float64, 2*numMels)
	nf := float64(len(frames))
	for m := 0; m < numMels; m++ {
		var sum float64
		for _, f := range frames {
			sum += f[m]
		}
		mean := sum / nf
		var ss float64
		for _, f := range frames {
			d := f[m] - mean
			ss += d * d
		}
		vec[m] = mean
		vec[numMels+m] = math.Sqrt(ss / nf)
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
