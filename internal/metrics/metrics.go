// Package metrics holds the process-wide Prometheus collectors.
// Collectors are created at init and registered by the Register* functions,
// which main calls once; repeated calls are no-ops.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "audiosearch"

// group registers its collectors with the default registry on first use.
type group struct {
	once       sync.Once
	collectors []prometheus.Collector
}

func (g *group) register() {
	g.once.Do(func() { prometheus.MustRegister(g.collectors...) })
}
