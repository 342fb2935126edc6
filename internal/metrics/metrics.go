// Package metrics exposes scoring counters and stored prediction totals to
// Prometheus.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/churnguard/internal/domain"
)

const namespace = "churnguard"

var storedPredictionsDesc = prometheus.NewDesc(
	namespace+"_stored_predictions",
	"Predictions persisted within the collection window, by risk tier",
	[]string{"tier"},
	nil,
)

// Metrics holds the process collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	predictions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     prometheus.Histogram
	cacheHits   prometheus.Counter
	modelLoaded prometheus.Gauge
	reloads     *prometheus.CounterVec
}

// New creates a registry with scoring collectors and the Go runtime
// collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Scored requests by risk tier and decision",
		}, []string{"tier", "decision"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Failed scoring requests by error kind",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "End-to-end scoring latency",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_hits_total",
			Help:      "Scoring results served from cache",
		}),
		modelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when a usable model is bound",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Model reloads by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.predictions,
		m.failures,
		m.latency,
		m.cacheHits,
		m.modelLoaded,
		m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterRepository adds a collector that reports persisted prediction
// counts per tier over the trailing window on each scrape.
func (m *Metrics) RegisterRepository(repo domain.Repository, window time.Duration) {
	if m == nil || repo == nil {
		return
	}
	m.registry.MustRegister(&tierCollector{repo: repo, window: window})
}

// ObservePrediction records a successful scoring.
func (m *Metrics) ObservePrediction(result *domain.ScoringResult, cached bool, d time.Duration) {
	if m == nil || result == nil {
		return
	}
	m.predictions.WithLabelValues(string(result.Tier), strconv.Itoa(result.Decision)).Inc()
	m.latency.Observe(d.Seconds())
	if cached {
		m.cacheHits.Inc()
	}
}

// ObserveFailure records a failed scoring by error kind.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// ObserveReload records a reload outcome and the resulting model state.
func (m *Metrics) ObserveReload(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.reloads.WithLabelValues(outcome).Inc()
}

// SetModelLoaded updates the model health gauge.
func (m *Metrics) SetModelLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.modelLoaded.Set(1)
	} else {
		m.modelLoaded.Set(0)
	}
}

// tierCollector reads tier counts from the repository on each scrape.
type tierCollector struct {
	repo   domain.Repository
	window time.Duration
}

func (c *tierCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedPredictionsDesc
}

func (c *tierCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.repo.CountByTier(ctx, time.Now().Add(-c.window))
	if err != nil {
		slog.Error("failed to collect stored prediction metrics", "error", err)
		return
	}
	for _, tier := range []domain.RiskTier{domain.RiskLow, domain.RiskMedium, domain.RiskHigh} {
		ch <- prometheus.MustNewConstMetric(
			storedPredictionsDesc,
			prometheus.GaugeValue,
			float64(counts[tier]),
			string(tier),
		)
	}
}
