package features

import (
	"errors"
	"math"
	"sync"
	"testing"

	"linkqual/internal/common"
)

// MockMetricsTracker is a mock implementation of MetricsTracker for testing.
type MockMetricsTracker struct {
	mu                     sync.Mutex
	FeatureErrorsIncCalled int
	SampleCount            int
}

func (m *MockMetricsTracker) FeatureErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeatureErrorsIncCalled++
}

func (m *MockMetricsTracker) FeatureSampleCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SampleCount += count
}

func newTestLayer(window int) *Layer {
	return NewLayer(NewThresholdStore(common.DefaultThreshold), NewHistoryStore(window))
}

func TestDerive_DefaultThreshold(t *testing.T) {
	l := newTestLayer(10)

	vec, err := l.Derive("new_source", 500000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vec[common.FeatureRelativeToMin]; got != 1.0 {
		t.Errorf("Expected relative_to_min 1.0, got %f", got)
	}
	if len(vec) != 1 {
		t.Errorf("Expected a single feature, got %d", len(vec))
	}

	threshold, ok := l.Thresholds().Lookup("new_source", common.MetricBitsPerSec)
	if !ok || threshold != common.DefaultThreshold {
		t.Errorf("Expected threshold to be seeded with default, got %f (%v)", threshold, ok)
	}
}

func TestDerive_ValidInputs(t *testing.T) {
	testCases := []struct {
		name      string
		threshold float64
		value     float64
		expected  float64
	}{
		{"at baseline", 500000, 500000, 1.0},
		{"double baseline", 500000, 1000000, 2.0},
		{"tiny value", 500000, 10, 0.00002},
		{"zero value", 500000, 0, 0.0},
		{"custom baseline", 1000, 250, 0.25},
		{"zero threshold guard", 0, 100, 0.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLayer(10)
			if err := l.Thresholds().Set("src", common.MetricBitsPerSec, tc.threshold); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			vec, err := l.Derive("src", tc.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := vec[common.FeatureRelativeToMin]
			if math.IsNaN(got) {
				t.Fatal("relative_to_min must never be NaN")
			}
			if math.Abs(got-tc.expected) > 1e-12 {
				t.Errorf("Expected %.10f, got %.10f", tc.expected, got)
			}
		})
	}
}

func TestDerive_InvalidInputs(t *testing.T) {
	metrics := &MockMetricsTracker{}
	l := newTestLayer(10)

	testCases := []struct {
		name  string
		value float64
	}{
		{"NaN", math.NaN()},
		{"positive Inf", math.Inf(1)},
		{"negative Inf", math.Inf(-1)},
		{"negative", -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := metrics.FeatureErrorsIncCalled
			vec, err := l.DeriveWithMetrics("src", tc.value, metrics)
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Expected ErrInvalidValue, got %v", err)
			}
			if vec != nil {
				t.Errorf("Expected nil vector, got %v", vec)
			}
			if metrics.FeatureErrorsIncCalled != before+1 {
				t.Error("Expected FeatureErrorsInc to be called")
			}
		})
	}

	if l.History().Len("src") != 0 {
		t.Errorf("Invalid values must not enter history, got %d values", l.History().Len("src"))
	}
	if _, ok := l.Thresholds().Lookup("src", common.MetricBitsPerSec); ok {
		t.Error("Invalid values must not seed a threshold")
	}
}

func TestDerive_DoesNotMutateThreshold(t *testing.T) {
	l := newTestLayer(10)
	if err := l.Thresholds().Set("src", common.MetricBitsPerSec, 1234); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		if _, err := l.Derive("src", float64(i*1000)); err != nil {
			t.Fatal(err)
		}
	}

	if v, _ := l.Thresholds().Lookup("src", common.MetricBitsPerSec); v != 1234 {
		t.Errorf("Expected threshold to stay 1234, got %f", v)
	}
}

func TestDerive_RecordsHistory(t *testing.T) {
	metrics := &MockMetricsTracker{}
	l := newTestLayer(3)

	for _, v := range []float64{1, 2, 3, 4} {
		if _, err := l.DeriveWithMetrics("src", v, metrics); err != nil {
			t.Fatal(err)
		}
	}

	got := l.History().Values("src")
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}
	if metrics.SampleCount != 4 {
		t.Errorf("Expected 4 samples counted, got %d", metrics.SampleCount)
	}
}

func TestRelativeToMin_Clamped(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		threshold float64
	}{
		{"overflowing ratio", math.MaxFloat64, 1e-300},
		{"huge value", 1e200, 500000},
		{"tiny threshold", 1, 1e-300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RelativeToMin(tt.value, tt.threshold)
			if got != common.MaxRelativeToMin {
				t.Errorf("Expected %g, got %g", common.MaxRelativeToMin, got)
			}
		})
	}

	if got := RelativeToMin(1e6, 500000); got != 2 {
		t.Errorf("Expected unclamped ratio 2, got %g", got)
	}
}
