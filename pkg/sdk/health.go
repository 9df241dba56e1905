package audiosearch

import (
	"context"
	"slices"

	healthuc "github.com/kailas-cloud/audiosearch/internal/usecase/health"
)

// HealthStatus is the outcome of Client.Health. Status is "ok", "degraded"
// or "error"; Checks maps each probe (database, index, embedding) to "ok" or "error".
type HealthStatus struct {
	Status string
	Checks map[string]string
}

// OK reports whether every probe passed.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

// Failing lists the probes that reported an error, sorted by name.
func (h HealthStatus) Failing() []string {
	var out []string
	for name, res := range h.Checks {
		if res != string(healthuc.CheckOK) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health probes the database, the chunk index and the embedder.
func (c *Client) Health(ctx context.Context) HealthStatus {
	r := c.healthSvc.Check(ctx)
	h := HealthStatus{Status: string(r.Status), Checks: make(map[string]string, len(r.Checks))}
	for name, res := range r.Checks {
		h.Checks[name] = string(res)
	}
	return h
}
