// Package metrics exposes verification results as Prometheus metrics and
// writes them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const defaultNamespace = "tracker_probe"

var eventDurationBuckets = []float64{1, 2.5, 5, 10, 20, 30, 60}

// Collector records run summaries.
type Collector interface {
	RecordRun(summary *results.RunSummary)
	WriteTextfile(path string) error
	Gatherer() prometheus.Gatherer
}

// Option applies a configuration option to the collector.
type Option func(*collector)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(c *collector) {
		if namespace != "" {
			c.namespace = namespace
		}
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *collector) {
		if reg != nil {
			c.registry = reg
		}
	}
}

type collector struct {
	log       logrus.FieldLogger
	mu        sync.Mutex
	namespace string
	registry  *prometheus.Registry

	events        *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	runErrors     *prometheus.CounterVec
	passRate      *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
	runDuration   *prometheus.GaugeVec
}

// NewCollector creates a collector on its own registry unless WithRegistry is given.
func NewCollector(log logrus.FieldLogger, opts ...Option) Collector {
	c := &collector{
		log:       log.WithField("component", "metrics"),
		namespace: defaultNamespace,
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.initializeMetrics()

	return c
}

func (c *collector) initializeMetrics() {
	auto := promauto.With(c.registry)
	labels := []string{"site", "category"}

	c.events = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      "events_total",
		Help:      "Events inspected, by outcome",
	}, append(labels, "outcome"))

	c.eventDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Name:      "event_duration_seconds",
		Help:      "Time spent inspecting one event",
		Buckets:   eventDurationBuckets,
	}, labels)

	c.runErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      "run_errors_total",
		Help:      "Failures that aborted part of a run",
	}, labels)

	c.passRate = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "pass_rate_percent",
		Help:      "Pass rate of the last run",
	}, labels)

	c.lastRun = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	}, labels)

	c.runDuration = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "last_run_duration_seconds",
		Help:      "Wall time of the last run",
	}, labels)
}

func (c *collector) RecordRun(s *results.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	site, category := s.Site, string(s.Category)

	for _, o := range []results.Outcome{results.OutcomePass, results.OutcomeFail, results.OutcomeError} {
		c.events.WithLabelValues(site, category, string(o))
	}

	for _, e := range s.Events {
		c.events.WithLabelValues(site, category, string(e.Outcome)).Inc()

		if e.DurationMS > 0 {
			c.eventDuration.WithLabelValues(site, category).Observe(float64(e.DurationMS) / 1000)
		}
	}

	c.runErrors.WithLabelValues(site, category).Add(float64(len(s.RunErrors)))
	c.passRate.WithLabelValues(site, category).Set(s.PassRate())

	if !s.FinishedAt.IsZero() {
		c.lastRun.WithLabelValues(site, category).Set(float64(s.FinishedAt.Unix()))

		if !s.StartedAt.IsZero() {
			c.runDuration.WithLabelValues(site, category).Set(s.FinishedAt.Sub(s.StartedAt).Seconds())
		}
	}

	c.log.WithFields(logrus.Fields{
		"site":     site,
		"category": category,
		"events":   s.TotalEvents,
	}).Debug("Recorded run metrics")
}

// WriteTextfile writes all metrics to path atomically.
func (c *collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}

	c.log.WithField("path", path).Debug("Wrote metrics textfile")

	return nil
}

func (c *collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

var _ Collector = (*collector)(nil)
