// Package metrics exposes run statistics in the Prometheus text format.
//
// The aggregator is a batch job, so nothing is served over HTTP: after each run the
// registry is written as a node_exporter textfile collector file.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pfrederiksen/poitiers-events/internal/aggregator"
)

const namespace = "poitiers_events"

// Recorder holds the run metrics in a private registry. It implements aggregator.Observer.
type Recorder struct {
	registry *prometheus.Registry

	scraped     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	written     prometheus.Gauge
	runDuration prometheus.Gauge
	lastRun     prometheus.Gauge
}

// New creates a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.scraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scraped_total",
		Help:      "Records returned by each extractor, before deduplication",
	}, []string{"source"})
	r.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractor_failures_total",
		Help:      "Extractor calls that failed (error, timeout or panic)",
	}, []string{"source"})
	r.written = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "written",
		Help:      "Events in the last written feed",
	})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last run",
	})
	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last completed run",
	})

	r.registry.MustRegister(r.scraped, r.failures, r.written, r.runDuration, r.lastRun)
	return r
}

// Registry returns the registry holding the run metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSource counts the records or the failure of one extractor.
func (r *Recorder) ObserveSource(report aggregator.SourceReport) {
	r.scraped.WithLabelValues(report.Source).Add(float64(report.Events))
	if report.Failed() {
		r.failures.WithLabelValues(report.Source).Inc()
	} else {
		// Make the failure series exist at zero for sources that succeeded.
		r.failures.WithLabelValues(report.Source)
	}
}

// ObserveRun records the size, duration and completion time of a run.
func (r *Recorder) ObserveRun(result *aggregator.Result) {
	if result.Document != nil {
		r.written.Set(float64(len(result.Document.Events)))
	}
	r.runDuration.Set(result.FinishedAt.Sub(result.StartedAt).Seconds())
	r.lastRun.Set(float64(result.FinishedAt.Unix()))
}

// WriteTextfile writes the registry to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
