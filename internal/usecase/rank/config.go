package rank

import (
	"fmt"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/ranking"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
	"github.com/kailas-cloud/audiosearch/internal/domain/traversal"
)

// DefaultWorkers bounds per-document parallelism when Config.Workers is unset.
const DefaultWorkers = 4

// Parameter names accepted by OverridesFromParams.
const (
	ParamMetric    = "metric"
	ParamRanking   = "ranking"
	ParamTraversal = "traversal_paths"
	ParamLimit     = "limit"
)

// Config holds the ranker defaults.
type Config struct {
	Metric    string
	Ranking   ranking.Policy
	Traversal traversal.Path
	Workers   int
	Limit     int // 0 keeps every parent
}

// DefaultConfig ranks root documents by ascending cosine distance.
func DefaultConfig() Config {
	d := domain.DefaultPipelineConfig()
	return Config{
		Metric:    d.Metric,
		Ranking:   ranking.Policy(d.Ranking),
		Traversal: traversal.Root,
		Workers:   DefaultWorkers,
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Metric == "" {
		c.Metric = def.Metric
	}
	if c.Ranking == "" {
		c.Ranking = def.Ranking
	}
	if c.Traversal == "" {
		c.Traversal = def.Traversal
	}
	if c.Workers == 0 {
		c.Workers = def.Workers
	}
}

// Validate rejects unknown policies and paths.
func (c Config) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("%w: metric is required", domain.ErrInvalidConfig)
	}
	if _, err := ranking.Parse(string(c.Ranking)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if _, err := traversal.ParsePath(string(c.Traversal)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", domain.ErrInvalidConfig)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// Overrides are request-level values that win over Config.
type Overrides struct {
	Metric    *string
	Ranking   *string
	Traversal *string
	Limit     *int
}

func (c Config) resolve(o Overrides) (Config, error) {
	out := c
	if o.Metric != nil {
		out.Metric = *o.Metric
	}
	if o.Ranking != nil {
		out.Ranking = ranking.Policy(*o.Ranking)
	}
	if o.Traversal != nil {
		p, err := traversal.ParsePath(*o.Traversal)
		if err != nil {
			return Config{}, err
		}
		out.Traversal = p
	}
	if o.Limit != nil {
		out.Limit = *o.Limit
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// OverridesFromParams reads metric, ranking, traversal_paths and limit from a
// loosely typed parameter map. traversal_paths may be a string or a one-element list.
func OverridesFromParams(params map[string]any) (Overrides, error) {
	var o Overrides
	if len(params) == 0 {
		return o, nil
	}
	p := tags.FromMap(params)

	if v, ok := p.Get(ParamMetric); ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return Overrides{}, fmt.Errorf("%w: %s must be a string", domain.ErrInvalidConfig, ParamMetric)
		}
		o.Metric = &s
	}
	if v, ok := p.Get(ParamRanking); ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return Overrides{}, fmt.Errorf("%w: %s must be a string", domain.ErrInvalidConfig, ParamRanking)
		}
		o.Ranking = &s
	}
	if v, ok := p.Get(ParamTraversal); ok && v != nil {
		s, err := traversalParam(v)
		if err != nil {
			return Overrides{}, err
		}
		o.Traversal = &s
	}
	if v, ok := p.Get(ParamLimit); ok && v != nil {
		n, ok := p.Float(ParamLimit)
		if !ok || n != float64(int(n)) {
			return Overrides{}, fmt.Errorf("%w: %s must be an integer, got %v", domain.ErrInvalidConfig, ParamLimit, v)
		}
		limit := int(n)
		o.Limit = &limit
	}
	return o, nil
}

func traversalParam(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []string:
		if len(x) == 1 {
			return x[0], nil
		}
	case []any:
		if len(x) == 1 {
			if s, ok := x[0].(string); ok {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s must be a single path, got %v", domain.ErrInvalidConfig, ParamTraversal, v)
}
