package audiosearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "audiosearch"

var sdkDurationBuckets = []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

type sdkMetrics struct {
	operations *prometheus.CounterVec   // by operation, status
	duration   *prometheus.HistogramVec // by operation
	documents  *prometheus.CounterVec   // by operation, status
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	var (
		m   sdkMetrics
		err error
	)
	m.operations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "sdk",
		Name: "operations_total",
		Help: "SDK calls by operation and outcome.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	m.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: "sdk",
		Name:    "operation_duration_seconds",
		Help:    "Wall time of SDK calls.",
		Buckets: sdkDurationBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	m.documents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "sdk",
		Name: "documents_total",
		Help: "Root documents handled by Index and Search, by per-document outcome.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// register adds c to reg. If an equivalent collector is already registered
// (a second Client in the same process) that one is returned instead.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("audiosearch: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("audiosearch: metric registered with different type %T", are.ExistingCollector)
	}
	return existing, nil
}

// batchStats counts root documents of one Index or Search call.
type batchStats struct {
	total  int
	failed int
}

// observer logs and records every public Client call. A nil *observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}
	m, err := newSDKMetrics(reg)
	if err != nil {
		return nil, err
	}
	o.metrics = m
	return o, nil
}

func (o *observer) observe(op string, start time.Time, stats batchStats, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	o.record(op, elapsed, stats, err)
	o.log(op, elapsed, stats, err)
}

func (o *observer) record(op string, elapsed time.Duration, stats batchStats, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.operations.WithLabelValues(op, outcome(err)).Inc()
	o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if stats.total == 0 {
		return
	}
	o.metrics.documents.WithLabelValues(op, "ok").Add(float64(stats.total - stats.failed))
	o.metrics.documents.WithLabelValues(op, "error").Add(float64(stats.failed))
}

// log reports call failures at warn, partial batch failures at info and
// everything else at debug.
func (o *observer) log(op string, elapsed time.Duration, stats batchStats, err error) {
	if o.logger == nil {
		return
	}
	attrs := []slog.Attr{slog.String("op", op), slog.Duration("duration", elapsed)}
	if stats.total > 0 {
		attrs = append(attrs, slog.Int("documents", stats.total), slog.Int("failed", stats.failed))
	}

	level, msg := slog.LevelDebug, "operation completed"
	switch {
	case err != nil:
		level, msg = slog.LevelWarn, "operation failed"
		attrs = append(attrs, slog.Any("error", err))
	case stats.failed > 0:
		level, msg = slog.LevelInfo, "operation completed with failures"
	}
	o.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
