// Package metrics records per-run crawl statistics in a Prometheus registry.
//
// A crawl is a short-lived process, so nothing is served over HTTP; instead
// the registry is written in the node-exporter textfile format at the end of
// the run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wako_events"

// Recorder tracks counters, gauges and timings for one crawl.
type Recorder struct {
	registry *prometheus.Registry

	records        *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	failures       *prometheus.CounterVec
	duration       *prometheus.GaugeVec
	snapshotEvents prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_records_total",
			Help:      "Records accepted from a source after normalization.",
		}, []string{"source"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_records_dropped_total",
			Help:      "Records dropped because of a missing field or an unparsable date.",
		}, []string{"source"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Adapter runs that ended with an error.",
		}, []string{"source"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Wall time of the last adapter run.",
		}, []string{"source"}),
		snapshotEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_events",
			Help:      "Events written to the last snapshot.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful snapshot write.",
		}),
	}

	r.registry.MustRegister(r.records, r.dropped, r.failures, r.duration, r.snapshotEvents, r.lastSuccess)
	return r
}

// ObserveSource records the outcome of one adapter run.
func (r *Recorder) ObserveSource(source string, accepted, dropped int, elapsed time.Duration, err error) {
	r.records.WithLabelValues(source).Add(float64(accepted))
	r.dropped.WithLabelValues(source).Add(float64(dropped))
	r.duration.WithLabelValues(source).Set(elapsed.Seconds())
	if err != nil {
		r.failures.WithLabelValues(source).Inc()
	} else {
		// Materialize the series so a healthy source reports 0.
		r.failures.WithLabelValues(source).Add(0)
	}
}

// ObserveSnapshot records a successful snapshot write.
func (r *Recorder) ObserveSnapshot(events int, at time.Time) {
	r.snapshotEvents.Set(float64(events))
	r.lastSuccess.Set(float64(at.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes every metric of g to path in the node-exporter
// textfile format, replacing it atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
