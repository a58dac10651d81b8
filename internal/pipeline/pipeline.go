// Package pipeline runs one observation at a time through feature
// derivation, prediction and learning.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"linkqual/internal/common"
	"linkqual/internal/features"
	"linkqual/internal/ml"
	"linkqual/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInvalidObservation is returned for observations without a source.
var ErrInvalidObservation = errors.New("invalid observation")

// Metrics is everything the pipeline reports, including what it forwards
// to the feature layer and the classifier.
type Metrics interface {
	ml.MetricsInterface
	features.MetricsTracker
	PredictionInc(label string)
	NoDataPredictionInc()
	ObservationInc()
	ProcessLatencyObserve(float64)
	ErrorsInc()
}

// Sink persists what the pipeline sees. Failures are logged, never returned
// to the caller of Process.
type Sink interface {
	StoreObservation(storage.ObservationRecord) error
	SaveThreshold(source, metric string, value float64) error
}

// Observation is one raw value from a source, optionally labeled.
// A non-empty ID makes resending the observation safe: a repeat within the
// dedup window returns the first result without learning again.
type Observation struct {
	ID     string  `json:"id,omitempty" validate:"max=64"`
	Source string  `json:"source" validate:"required,max=256"`
	Value  float64 `json:"value"`
	Label  string  `json:"label,omitempty" validate:"max=64"`
}

type Result struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Value         float64   `json:"value"`
	RelativeToMin float64   `json:"relative_to_min"`
	Prediction    string    `json:"prediction,omitempty"`
	Predicted     bool      `json:"predicted"`
	Learned       bool      `json:"learned"`
	Split         bool      `json:"split,omitempty"`
	Duplicate     bool      `json:"duplicate,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ModelInfo describes the current classifier.
type ModelInfo struct {
	Stats  ml.Stats  `json:"stats"`
	Config ml.Config `json:"config"`
}

type Pipeline struct {
	mu      sync.Mutex
	layer   *features.Layer
	clf     *ml.Classifier
	warmup  int
	sink    Sink
	metrics Metrics
	recent  *recentResults
}

type Option func(*Pipeline)

// WithWarmup sets how many values a source must have produced before its
// observations get predictions. 0 predicts from the first value.
func WithWarmup(n int) Option {
	return func(p *Pipeline) { p.warmup = n }
}

func WithSink(s Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// SetSink attaches s after construction. It must not race with Process.
func (p *Pipeline) SetSink(s Sink) {
	p.sink = s
}

func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithDedupWindow sets how many observation IDs are remembered. 0 disables
// deduplication.
func WithDedupWindow(n int) Option {
	return func(p *Pipeline) { p.recent = newRecentResults(n) }
}

func New(layer *features.Layer, clf *ml.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		layer:  layer,
		clf:    clf,
		warmup: common.DefaultWarmupSamples,
		recent: newRecentResults(common.DefaultDedupWindow),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics != nil {
		p.clf.SetMetrics(p.metrics)
	}
	return p
}

// Process derives features for obs, predicts when the source is warm and
// learns when obs is labeled. Prediction always happens before learning so
// a result never reflects its own label.
func (p *Pipeline) Process(ctx context.Context, obs Observation) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if obs.Source == "" {
		p.errorsInc()
		return Result{}, fmt.Errorf("%w: source is required", ErrInvalidObservation)
	}

	p.mu.Lock()
	if prev, ok := p.recent.get(obs.ID); ok && obs.ID != "" {
		p.mu.Unlock()
		prev.Duplicate = true
		log.Debug().Str("id", obs.ID).Str("source", obs.Source).Msg("Duplicate observation ignored")
		return prev, nil
	}
	res, err := p.processLocked(obs)
	if err == nil && obs.ID != "" {
		p.recent.put(obs.ID, res)
	}
	p.mu.Unlock()
	if err != nil {
		p.errorsInc()
		return Result{}, err
	}

	if p.metrics != nil {
		p.metrics.ObservationInc()
		p.metrics.ProcessLatencyObserve(time.Since(start).Seconds())
	}
	p.persist(res, obs.Label)
	return res, nil
}

func (p *Pipeline) processLocked(obs Observation) (Result, error) {
	prior := p.layer.History().Len(obs.Source)

	var tracker features.MetricsTracker
	if p.metrics != nil {
		tracker = p.metrics
	}
	vec, err := p.layer.DeriveWithMetrics(obs.Source, obs.Value, tracker)
	if err != nil {
		return Result{}, err
	}
	fv := ml.FeatureVector(vec)

	id := obs.ID
	if id == "" {
		id = uuid.New().String()
	}
	res := Result{
		ID:            id,
		Source:        obs.Source,
		Value:         obs.Value,
		RelativeToMin: vec[common.FeatureRelativeToMin],
		Timestamp:     time.Now().UTC(),
	}

	if p.warmup == 0 || prior > p.warmup {
		res.Prediction, res.Predicted = p.clf.Predict(fv)
		if p.metrics != nil {
			if res.Predicted {
				p.metrics.PredictionInc(res.Prediction)
			} else {
				p.metrics.NoDataPredictionInc()
			}
		}
	}

	if obs.Label != "" {
		out := p.clf.Learn(fv, obs.Label)
		res.Learned = out.Learned
		res.Split = out.Split
		if out.Split {
			log.Debug().
				Str("source", obs.Source).
				Str("feature", out.Candidate.Feature).
				Float64("cut", out.Candidate.Cut).
				Float64("merit", out.Candidate.Merit).
				Int("depth", out.Depth).
				Msg("leaf split")
		}
	}

	return res, nil
}

func (p *Pipeline) persist(res Result, label string) {
	if p.sink == nil {
		return
	}
	rec := storage.ObservationRecord{
		ID:         res.ID,
		Source:     res.Source,
		Value:      res.Value,
		Label:      label,
		Prediction: res.Prediction,
		Predicted:  res.Predicted,
		Timestamp:  res.Timestamp,
	}
	if err := p.sink.StoreObservation(rec); err != nil {
		p.errorsInc()
		log.Warn().Err(err).Str("source", res.Source).Msg("Failed to persist observation")
	}
}

func (p *Pipeline) errorsInc() {
	if p.metrics != nil {
		p.metrics.ErrorsInc()
	}
}

// SetThreshold overrides a source's baseline and persists it.
func (p *Pipeline) SetThreshold(source, metric string, value float64) error {
	if metric == "" {
		metric = common.MetricBitsPerSec
	}
	if err := p.layer.Thresholds().Set(source, metric, value); err != nil {
		return err
	}
	if p.sink != nil {
		if err := p.sink.SaveThreshold(source, metric, value); err != nil {
			p.errorsInc()
			log.Warn().Err(err).Str("source", source).Str("metric", metric).Msg("Failed to persist threshold")
		}
	}
	log.Info().Str("source", source).Str("metric", metric).Float64("value", value).Msg("Threshold updated")
	return nil
}

// Threshold returns the current baseline without seeding a default.
func (p *Pipeline) Threshold(source, metric string) (float64, bool) {
	if metric == "" {
		metric = common.MetricBitsPerSec
	}
	return p.layer.Thresholds().Lookup(source, metric)
}

// Thresholds returns a copy of every baseline.
func (p *Pipeline) Thresholds() map[string]map[string]float64 {
	return p.layer.Thresholds().Snapshot()
}

// LoadThresholds seeds baselines, typically from storage at startup.
func (p *Pipeline) LoadThresholds(thresholds map[string]map[string]float64) int {
	return p.layer.Thresholds().Load(thresholds)
}

// History returns a source's recent raw values, oldest first.
func (p *Pipeline) History(source string) []float64 {
	return p.layer.History().Values(source)
}

func (p *Pipeline) ModelInfo() ModelInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ModelInfo{Stats: p.clf.Stats(), Config: p.clf.Config()}
}

// Snapshot serializes the classifier.
func (p *Pipeline) Snapshot() ([]byte, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.clf.Snapshot()
	if err != nil {
		return nil, 0, err
	}
	return data, p.clf.Stats().Examples, nil
}

// Restore replaces the classifier with one rebuilt from data.
func (p *Pipeline) Restore(data []byte) error {
	var m ml.MetricsInterface
	if p.metrics != nil {
		m = p.metrics
	}
	clf, err := ml.Restore(data, m)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.clf = clf
	p.mu.Unlock()
	return nil
}
