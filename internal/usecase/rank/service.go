package rank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/domain/ranking"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
	"github.com/kailas-cloud/audiosearch/internal/domain/traversal"
	"github.com/kailas-cloud/audiosearch/internal/metrics"
)

// Service aggregates chunk-level matches into parent-level matches.
type Service struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and creates a ranker. An unknown ranking policy fails here,
// before any document is seen.
func New(cfg Config, logger *zap.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, logger: logger}, nil
}

// Config returns the construction-time defaults.
func (s *Service) Config() Config { return s.cfg }

// Validate checks overrides against the defaults without touching any document.
func (s *Service) Validate(o Overrides) error {
	_, err := s.cfg.resolve(o)
	return err
}

// Rank replaces Matches on every document selected by the traversal path with
// one match per parent, holding the extremal chunk score, sorted per policy.
func (s *Service) Rank(ctx context.Context, docs []*document.Document, o Overrides) error {
	cfg, err := s.cfg.resolve(o)
	if err != nil {
		return err
	}

	targets := traversal.Select(docs, cfg.Traversal)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, d := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("document %q: %w", d.ID, err)
			}
			in, out := rankOne(d, cfg)
			metrics.RankMatchesTotal.WithLabelValues("chunk").Add(float64(in))
			metrics.RankMatchesTotal.WithLabelValues("parent").Add(float64(out))
			s.logger.Debug("Document ranked",
				zap.String("id", d.ID),
				zap.Int("chunk_matches", in),
				zap.Int("parents", out),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rank: %w", err)
	}
	return nil
}

type group struct {
	best  *document.Document
	score float64
}

// rankOne groups d's chunk matches by parent, keeps the extremal score per parent
// (first occurrence wins ties) and replaces d.Matches. It returns the number of
// chunk matches read and parent matches written.
func rankOne(d *document.Document, cfg Config) (int, int) {
	chunkMatches := traversal.ChunkMatches(d)

	groups := make(map[string]*group)
	var order []string
	for _, m := range chunkMatches {
		if m == nil || m.ParentID == "" {
			continue
		}
		score, ok := m.Score(cfg.Metric)
		if !ok || math.IsNaN(score) {
			continue
		}
		g, seen := groups[m.ParentID]
		if !seen {
			groups[m.ParentID] = &group{best: m, score: score}
			order = append(order, m.ParentID)
			continue
		}
		if cfg.Ranking.Better(score, g.score) {
			g.best, g.score = m, score
		}
	}

	out := make([]*document.Document, 0, len(order))
	for _, id := range order {
		out = append(out, parentMatch(id, groups[id], cfg.Metric))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].Score(cfg.Metric)
		b, _ := out[j].Score(cfg.Metric)
		if cfg.Ranking == ranking.Max {
			return a > b
		}
		return a < b
	})

	if cfg.Limit > 0 && len(out) > cfg.Limit {
		out = out[:cfg.Limit]
	}

	d.Matches = out
	return len(chunkMatches), len(out)
}

// parentMatch keeps identity, location and the aggregated score of the selected chunk match.
func parentMatch(parentID string, g *group, metric string) *document.Document {
	tg := tags.New()
	for _, key := range []string{domain.TagBegInMs, domain.TagEndInMs} {
		if v, ok := g.best.Tags.Get(key); ok {
			tg.Set(key, v)
		}
	}
	m := &document.Document{
		ID:   parentID,
		URI:  g.best.URI,
		Tags: tg,
	}
	m.SetScore(metric, g.score)
	return m
}
