// Package features turns raw per-source telemetry values into the feature
// vector consumed by the classifier. It owns the per-source threshold
// baselines and the bounded value history.
package features

import (
	"errors"
	"fmt"
	"math"

	"linkqual/internal/common"
)

// ErrInvalidValue is returned for NaN, infinite, or negative inputs.
var ErrInvalidValue = errors.New("invalid value")

// MetricsTracker is the subset of metrics the feature layer reports to.
type MetricsTracker interface {
	FeatureErrorsInc()
	FeatureSampleCount(count int)
}

// Vector maps feature name to value.
type Vector map[string]float64

type Layer struct {
	thresholds *ThresholdStore
	history    *HistoryStore
	metric     string
}

func NewLayer(thresholds *ThresholdStore, history *HistoryStore) *Layer {
	return &Layer{thresholds: thresholds, history: history, metric: common.MetricBitsPerSec}
}

func (l *Layer) Thresholds() *ThresholdStore { return l.thresholds }
func (l *Layer) History() *HistoryStore       { return l.history }
func (l *Layer) Metric() string               { return l.metric }

// RelativeToMin is value/threshold, or 0 when the threshold is not positive.
// The ratio is clamped to common.MaxRelativeToMin.
func RelativeToMin(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	r := value / threshold
	if r > common.MaxRelativeToMin {
		return common.MaxRelativeToMin
	}
	return r
}

func (l *Layer) Derive(source string, value float64) (Vector, error) {
	return l.DeriveWithMetrics(source, value, nil)
}

// DeriveWithMetrics validates value, computes the ratio to the source's
// baseline and records value in the source's history window.
func (l *Layer) DeriveWithMetrics(source string, value float64, m MetricsTracker) (Vector, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		if m != nil {
			m.FeatureErrorsInc()
		}
		return nil, fmt.Errorf("%w: %s=%v", ErrInvalidValue, source, value)
	}

	threshold := l.thresholds.Get(source, l.metric)
	rel := RelativeToMin(value, threshold)

	l.history.Push(source, value)
	if m != nil {
		m.FeatureSampleCount(1)
	}

	return Vector{common.FeatureRelativeToMin: rel}, nil
}
