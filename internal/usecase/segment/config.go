package segment

import (
	"fmt"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
)

// DefaultWorkers bounds per-document parallelism when Config.Workers is unset.
const DefaultWorkers = 4

// Parameter names accepted by OverridesFromParams.
const (
	ParamChunkDuration = "chunk_duration"
	ParamChunkStride   = "chunk_stride"
	ParamChunkStrip    = "chunk_strip" // alias of chunk_stride
)

// Config holds the segmenter defaults, in seconds.
type Config struct {
	ChunkDuration float64
	ChunkStride   float64
	Workers       int
}

// DefaultConfig returns 1 s windows with a 1 s hop.
func DefaultConfig() Config {
	d := domain.DefaultPipelineConfig()
	return Config{
		ChunkDuration: d.ChunkDuration,
		ChunkStride:   d.ChunkStride,
		Workers:       DefaultWorkers,
	}
}

// Validate rejects non-positive window parameters.
func (c Config) Validate() error {
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("%w: chunk_duration must be positive, got %v", domain.ErrInvalidConfig, c.ChunkDuration)
	}
	if c.ChunkStride <= 0 {
		return fmt.Errorf("%w: chunk_stride must be positive, got %v", domain.ErrInvalidConfig, c.ChunkStride)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// Overrides are request-level values that win over Config.
type Overrides struct {
	ChunkDuration *float64
	ChunkStride   *float64
}

// resolve merges o over c and validates the result.
func (c Config) resolve(o Overrides) (Config, error) {
	out := c
	if o.ChunkDuration != nil {
		out.ChunkDuration = *o.ChunkDuration
	}
	if o.ChunkStride != nil {
		out.ChunkStride = *o.ChunkStride
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// OverridesFromParams reads chunk_duration and chunk_stride (or its alias chunk_strip)
// from a loosely typed parameter map. Unrelated keys are ignored.
func OverridesFromParams(params map[string]any) (Overrides, error) {
	var o Overrides
	if len(params) == 0 {
		return o, nil
	}
	p := tags.FromMap(params)

	dur, err := floatParam(p, ParamChunkDuration)
	if err != nil {
		return Overrides{}, err
	}
	o.ChunkDuration = dur

	stride, err := floatParam(p, ParamChunkStride)
	if err != nil {
		return Overrides{}, err
	}
	if stride == nil {
		if stride, err = floatParam(p, ParamChunkStrip); err != nil {
			return Overrides{}, err
		}
	}
	o.ChunkStride = stride
	return o, nil
}

func floatParam(p *tags.Tags, key string) (*float64, error) {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := p.Float(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a number, got %v", domain.ErrInvalidConfig, key, v)
	}
	return &f, nil
}
