// Package metrics exposes dispatch, ingest and collection-size metrics to
// Prometheus.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/randpic/internal/dispatch"
)

var imagesDesc = prometheus.NewDesc(
	"randpic_images",
	"Number of stored images per keyword",
	[]string{"keyword"},
	nil,
)

// StatsSource lists keywords with their image counts.
type StatsSource interface {
	Keywords(ctx context.Context) ([]dispatch.KeywordStat, error)
}

// ImageCollector is a custom Prometheus collector that reads per-keyword
// image counts on each scrape.
type ImageCollector struct {
	src     StatsSource
	timeout time.Duration
}

// Describe sends the metric descriptor to the channel.
func (c *ImageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- imagesDesc
}

// Collect queries the source and emits one gauge per keyword.
func (c *ImageCollector) Collect(ch chan<- prometheus.Metric) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stats, err := c.src.Keywords(ctx)
	if err != nil {
		slog.Error("failed to collect image metrics", "error", err)
		return
	}
	for _, s := range stats {
		ch <- prometheus.MustNewConstMetric(imagesDesc, prometheus.GaugeValue, float64(s.Count), s.Name)
	}
}

// Metrics records engine outcomes. It satisfies dispatch.Observer.
type Metrics struct {
	dispatches     *prometheus.CounterVec
	ingested       *prometheus.CounterVec
	ledgerFailures prometheus.Counter
	registry       *prometheus.Registry
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "randpic_dispatch_total",
			Help: "Dispatch attempts by keyword and outcome",
		}, []string{"keyword", "outcome"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "randpic_images_ingested_total",
			Help: "Image ingests by keyword and result",
		}, []string{"keyword", "result"}),
		ledgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randpic_usage_record_failures_total",
			Help: "Usage ledger writes that failed after a delivered dispatch",
		}),
		registry: reg,
	}
	reg.MustRegister(m.dispatches, m.ingested, m.ledgerFailures)
	return m
}

// TrackImages registers an ImageCollector over src. Call it once.
func (m *Metrics) TrackImages(src StatsSource) {
	m.registry.MustRegister(&ImageCollector{src: src, timeout: 5 * time.Second})
}

// DispatchOutcome counts one dispatch attempt.
func (m *Metrics) DispatchOutcome(keyword, outcome string) {
	m.dispatches.WithLabelValues(keyword, outcome).Inc()
}

// ImageIngested counts one ingest, stored or deduplicated.
func (m *Metrics) ImageIngested(keyword string, stored bool) {
	result := "duplicate"
	if stored {
		result = "stored"
	}
	m.ingested.WithLabelValues(keyword, result).Inc()
}

// LedgerFailed counts one failed usage write.
func (m *Metrics) LedgerFailed() {
	m.ledgerFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
