package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu     sync.Mutex
	learns int
	splits int
	leaves float64
	depth  float64
}

func (m *MockMetrics) ModelLearnInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learns++
}

func (m *MockMetrics) ModelSplitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.splits++
}

func (m *MockMetrics) ModelLeavesSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves = v
}

func (m *MockMetrics) ModelDepthSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth = v
}

func fv(x float64) FeatureVector {
	return FeatureVector{"relative_to_min": x}
}

// trainThreeBands feeds 10 "bad", 10 "average" then 10 "good" examples
// derived from raw values 10, 500000 and 1000000 over a 500000 baseline.
func trainThreeBands(c *Classifier) {
	for _, g := range []struct {
		value float64
		label string
	}{
		{10, "bad"},
		{500000, "average"},
		{1000000, "good"},
	} {
		for i := 0; i < 10; i++ {
			c.Learn(fv(g.value/500000), g.label)
		}
	}
}
