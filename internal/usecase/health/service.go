package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the aggregated state reported on /health.
type Status string

const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Probe names used as Report.Checks keys.
const (
	CheckDatabase  = "database"
	CheckIndex     = "index"
	CheckEmbedding = "embedding"
)

// DefaultProbeTimeout bounds each probe.
const DefaultProbeTimeout = 2 * time.Second

// Report is the result of Check.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name     string
	critical bool
	run      func(ctx context.Context) error
}

// Service runs the configured probes. A failing critical probe makes the
// service Unhealthy; any other failure only degrades it.
type Service struct {
	probes  []probe
	timeout time.Duration
}

// Option tweaks a Service.
type Option func(*Service)

// WithProbeTimeout overrides DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Service. The database probe is critical; index and
// embedding are optional and skipped when nil.
func New(db DBPinger, index IndexChecker, embedding EmbeddingChecker, opts ...Option) *Service {
	s := &Service{timeout: DefaultProbeTimeout}
	s.probes = append(s.probes, probe{name: CheckDatabase, critical: true, run: db.Ping})
	if index != nil {
		s.probes = append(s.probes, probe{name: CheckIndex, run: index.CheckIndex})
	}
	if embedding != nil {
		s.probes = append(s.probes, probe{name: CheckEmbedding, run: embedding.HealthCheck})
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs every probe concurrently and aggregates the outcome.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		g      errgroup.Group
		report = Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
	)
	for _, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			err := p.run(pctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				report.Checks[p.name] = CheckOK
				return nil
			}
			report.Checks[p.name] = CheckError
			switch {
			case p.critical:
				report.Status = Unhealthy
			case report.Status == Healthy:
				report.Status = Degraded
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}
