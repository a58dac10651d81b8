// Package metrics provides Prometheus metrics for the link-quality service.
// It covers the classifier's shape and learning activity, the feature layer,
// the streaming pipeline and the HTTP/websocket surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkqual"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Classifier metrics
	Predictions       *prometheus.CounterVec // Predictions emitted, by label
	NoDataPredictions prometheus.Counter     // Predictions that found no data on the path
	LearnTotal        prometheus.Counter     // Labeled examples learned
	SplitsTotal       prometheus.Counter     // Leaf splits committed
	TreeLeaves        prometheus.Gauge       // Current number of leaves
	TreeDepth         prometheus.Gauge       // Current depth of the deepest leaf

	// Feature metrics
	FeatureErrors  prometheus.Counter // Raw values rejected by the feature layer
	FeatureSamples prometheus.Counter // Raw values accepted into history

	// Pipeline metrics
	Observations   prometheus.Counter   // Observations processed
	ProcessLatency prometheus.Histogram // End-to-end latency of one observation
	Snapshots      prometheus.Counter   // Model snapshots persisted

	// Transport metrics
	StreamConnections prometheus.Gauge // Open websocket streams

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions emitted, by label",
		}, []string{"label"}),
		NoDataPredictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_data_predictions_total",
			Help:      "Total number of predictions answered with no data",
		}),
		LearnTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learn_total",
			Help:      "Total number of labeled examples learned",
		}),
		SplitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_total",
			Help:      "Total number of leaf splits",
		}),
		TreeLeaves: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_leaves",
			Help:      "Current number of leaves in the tree",
		}),
		TreeDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_depth",
			Help:      "Current depth of the tree",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_errors_total",
			Help:      "Total number of raw values rejected by feature derivation",
		}),
		FeatureSamples: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_samples_total",
			Help:      "Total number of raw values accepted by feature derivation",
		}),
		Observations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Total number of observations processed",
		}),
		ProcessLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_latency_seconds",
			Help:      "Latency of processing one observation in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		Snapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total number of model snapshots persisted",
		}),
		StreamConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connections",
			Help:      "Number of open websocket observation streams",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}),
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// GetErrorRate returns errors per processed observation, or 0 before any
// observation has been recorded.
func (m *Metrics) GetErrorRate() float64 {
	var observations, errs float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case namespace + "_observations_total":
			for _, metric := range mf.Metric {
				observations = metric.GetCounter().GetValue()
			}
		case namespace + "_errors_total":
			for _, metric := range mf.Metric {
				errs = metric.GetCounter().GetValue()
			}
		}
	}

	if observations == 0 {
		return 0
	}
	return errs / observations
}
