package features

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// ThresholdStore keeps the per-source, per-metric minimum baselines.
// Entries are created lazily with the default value and are never deleted.
type ThresholdStore struct {
	def        float64
	thresholds map[string]map[string]float64
	mu         sync.RWMutex
}

func NewThresholdStore(def float64) *ThresholdStore {
	return &ThresholdStore{def: def, thresholds: make(map[string]map[string]float64)}
}

// Default returns the baseline assigned to sources seen for the first time.
func (s *ThresholdStore) Default() float64 { return s.def }

// Get returns the baseline for source/metric, seeding it with the default on first use.
func (s *ThresholdStore) Get(source, metric string) float64 {
	s.mu.RLock()
	v, ok := s.thresholds[source][metric]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// another caller may have seeded it between the locks
	if v, ok := s.thresholds[source][metric]; ok {
		return v
	}
	s.setLocked(source, metric, s.def)
	return s.def
}

// Lookup returns the baseline without creating it.
func (s *ThresholdStore) Lookup(source, metric string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.thresholds[source][metric]
	return v, ok
}

// Set overrides a baseline. Used by operators to seed or adjust a source
// outside the normal value stream.
func (s *ThresholdStore) Set(source, metric string, value float64) error {
	if source == "" || metric == "" {
		return fmt.Errorf("source and metric are required")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return fmt.Errorf("%w: threshold %v", ErrInvalidValue, value)
	}
	s.mu.Lock()
	s.setLocked(source, metric, value)
	s.mu.Unlock()
	return nil
}

func (s *ThresholdStore) setLocked(source, metric string, value float64) {
	m, ok := s.thresholds[source]
	if !ok {
		m = make(map[string]float64)
		s.thresholds[source] = m
	}
	m[metric] = value
}

// Snapshot returns a deep copy of every baseline, keyed by source then metric.
func (s *ThresholdStore) Snapshot() map[string]map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]float64, len(s.thresholds))
	for source, metrics := range s.thresholds {
		cp := make(map[string]float64, len(metrics))
		for k, v := range metrics {
			cp[k] = v
		}
		out[source] = cp
	}
	return out
}

// Load merges previously persisted baselines, skipping invalid entries.
func (s *ThresholdStore) Load(thresholds map[string]map[string]float64) int {
	loaded := 0
	for source, metrics := range thresholds {
		for metric, v := range metrics {
			if err := s.Set(source, metric, v); err == nil {
				loaded++
			}
		}
	}
	return loaded
}

// Sources lists every source with at least one baseline, sorted.
func (s *ThresholdStore) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]string, 0, len(s.thresholds))
	for source := range s.thresholds {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}
