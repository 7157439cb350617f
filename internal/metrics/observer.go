// Package metrics provides Prometheus metrics for the observer engine.
//
// Metrics:
//   - Orchestration outcomes (match / silence) and silence reasons
//   - Pairing cache lookups by state, cache resets, cached keys
//   - Orchestration duration
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Namespace prefixes every metric name.
const Namespace = "observer"

// Lookup states recorded by RecordLookup.
const (
	LookupMissing = "missing"
	LookupPartial = "partial"
	LookupSilent  = "silent"
	LookupMatched = "matched"
)

// ObserverMetrics holds all observer metrics. A nil *ObserverMetrics is a
// valid no-op recorder.
type ObserverMetrics struct {
	gatherer prometheus.Gatherer

	DetectionsTotal *prometheus.CounterVec
	SilencesTotal   *prometheus.CounterVec
	LookupsTotal    *prometheus.CounterVec
	ResetsTotal     prometheus.Counter
	CachedKeys      prometheus.Gauge

	OrchestrationDuration prometheus.Histogram
}

// New registers the observer metrics on a fresh registry.
func New() *ObserverMetrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the observer metrics on reg and gathers them
// from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *ObserverMetrics {
	f := promauto.With(reg)
	return &ObserverMetrics{
		gatherer: g,

		DetectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "detections_total",
				Help:      "Total number of orchestrations by outcome",
			},
			[]string{"outcome"},
		),
		SilencesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "silences_total",
				Help:      "Total number of silent orchestrations by reason",
			},
			[]string{"reason"},
		),
		LookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pairing_lookups_total",
				Help:      "Total number of pairing cache lookups by state",
			},
			[]string{"state"},
		),
		ResetsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_resets_total",
				Help:      "Total number of pairing cache resets caused by an identity change",
			},
		),
		CachedKeys: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "cache_keys",
				Help:      "Number of keys held by the pairing cache",
			},
		),
		OrchestrationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "orchestration_duration_seconds",
				Help:      "Time spent pairing two artifacts",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
	}
}

// RecordOutcome counts one orchestration. An empty reason is a match.
func (m *ObserverMetrics) RecordOutcome(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.OrchestrationDuration.Observe(d.Seconds())
	if reason == "" {
		m.DetectionsTotal.WithLabelValues("match").Inc()
		return
	}
	m.DetectionsTotal.WithLabelValues("silence").Inc()
	m.SilencesTotal.WithLabelValues(reason).Inc()
}

// RecordLookup counts one cache lookup in the given state.
func (m *ObserverMetrics) RecordLookup(state string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(state).Inc()
}

// RecordReset counts one identity-change reset.
func (m *ObserverMetrics) RecordReset() {
	if m == nil {
		return
	}
	m.ResetsTotal.Inc()
}

// SetCachedKeys reports the current number of cache keys.
func (m *ObserverMetrics) SetCachedKeys(n int) {
	if m == nil {
		return
	}
	m.CachedKeys.Set(float64(n))
}

// WritePrometheus writes all gathered metrics in the text exposition format.
func (m *ObserverMetrics) WritePrometheus(w io.Writer) error {
	if m == nil || m.gatherer == nil {
		return nil
	}
	families, err := m.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
