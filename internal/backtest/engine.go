// Package backtest replays recorded observations through a fresh model and
// scores it prequentially: every labeled record is predicted first and
// learned after.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"linkqual/internal/cfg"
	"linkqual/internal/common"
	"linkqual/internal/features"
	"linkqual/internal/ml"
	"linkqual/internal/pipeline"
	"linkqual/internal/pretrain"

	"github.com/rs/zerolog/log"
)

// curveEvery is how many evaluated records separate accuracy curve points.
const curveEvery = 50

// Outcome is one replayed record.
type Outcome struct {
	Seq        uint64    `json:"seq"`
	Source     string    `json:"source"`
	Value      float64   `json:"value"`
	Label      string    `json:"label,omitempty"`
	Prediction string    `json:"prediction,omitempty"`
	Predicted  bool      `json:"predicted"`
	Correct    bool      `json:"correct"`
	Split      bool      `json:"split,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CurvePoint is the running accuracy after Evaluated scored predictions.
type CurvePoint struct {
	Evaluated int     `json:"evaluated"`
	Accuracy  float64 `json:"accuracy"`
}

type Results struct {
	Outcomes  []Outcome                 `json:"outcomes"`
	Total     int                       `json:"total"`
	Labeled   int                       `json:"labeled"`
	Evaluated int                       `json:"evaluated"`
	Correct   int                       `json:"correct"`
	Rejected  int                       `json:"rejected"`
	Accuracy  float64                   `json:"accuracy"`
	Coverage  float64                   `json:"coverage"`
	Confusion map[string]map[string]int `json:"confusion"`
	Curve     []CurvePoint              `json:"curve"`
	Model     ml.Stats                  `json:"model"`
	StartTime time.Time                 `json:"start_time"`
	EndTime   time.Time                 `json:"end_time"`
	Duration  time.Duration             `json:"duration"`
}

// Classes returns every label seen as actual or predicted, sorted.
func (r *Results) Classes() []string {
	set := make(map[string]struct{})
	for actual, row := range r.Confusion {
		set[actual] = struct{}{}
		for predicted := range row {
			set[predicted] = struct{}{}
		}
	}
	classes := make([]string, 0, len(set))
	for c := range set {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

type Engine struct {
	settings *cfg.Settings
	data     *DataLoader
	pipeline *pipeline.Pipeline
	pretrain bool
	results  *Results
}

// NewEngine builds an untrained model from settings. With pretrain set,
// the synthetic set is learned before the replay.
func NewEngine(settings *cfg.Settings, data *DataLoader, pretrain bool) (*Engine, error) {
	clf, err := ml.New(settings.ClassifierConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid model settings: %w", err)
	}

	thresholds := features.NewThresholdStore(settings.DefaultThreshold)
	for source, v := range settings.SourceThresholds {
		if err := thresholds.Set(source, common.MetricBitsPerSec, v); err != nil {
			return nil, err
		}
	}
	layer := features.NewLayer(thresholds, features.NewHistoryStore(settings.WindowSize))

	return &Engine{
		settings: settings,
		data:     data,
		pipeline: pipeline.New(layer, clf, pipeline.WithWarmup(settings.WarmupSamples)),
		pretrain: pretrain,
		results:  &Results{Confusion: make(map[string]map[string]int)},
	}, nil
}

// Run replays every record from the loader. Records the feature layer
// rejects are counted and skipped.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Int("records", e.data.GetDataCount()).
		Time("start", e.data.StartTime).
		Time("end", e.data.EndTime).
		Bool("pretrain", e.pretrain).
		Msg("Starting backtest")

	started := time.Now()
	if e.pretrain {
		if _, err := pretrain.Run(ctx, e.pipeline); err != nil {
			return fmt.Errorf("pretrain failed: %w", err)
		}
	}

	r := e.results
	e.data.Reset()
	for e.data.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := e.data.Next()
		r.Total++

		res, err := e.pipeline.Process(ctx, pipeline.Observation{Source: rec.Source, Value: rec.Value, Label: rec.Label})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.Rejected++
			log.Debug().Err(err).Uint64("seq", rec.Seq).Msg("Record rejected")
			continue
		}

		out := Outcome{
			Seq:        rec.Seq,
			Source:     rec.Source,
			Value:      rec.Value,
			Label:      rec.Label,
			Prediction: res.Prediction,
			Predicted:  res.Predicted,
			Split:      res.Split,
			Timestamp:  rec.Timestamp,
		}
		if rec.Label != "" {
			r.Labeled++
			if res.Predicted {
				e.score(&out)
			}
		}
		r.Outcomes = append(r.Outcomes, out)

		if r.Total%1000 == 0 {
			log.Debug().Float64("progress", e.data.GetProgress()).Msg("Backtest progress")
		}
	}

	if r.Evaluated > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Evaluated)
		if n := len(r.Curve); n == 0 || r.Curve[n-1].Evaluated != r.Evaluated {
			r.Curve = append(r.Curve, CurvePoint{Evaluated: r.Evaluated, Accuracy: r.Accuracy})
		}
	}
	if r.Labeled > 0 {
		r.Coverage = float64(r.Evaluated) / float64(r.Labeled)
	}
	r.Model = e.pipeline.ModelInfo().Stats
	r.StartTime = e.data.StartTime
	r.EndTime = e.data.EndTime
	r.Duration = time.Since(started)

	log.Info().
		Int("total", r.Total).
		Int("evaluated", r.Evaluated).
		Float64("accuracy", r.Accuracy).
		Int("leaves", r.Model.Leaves).
		Msg("Backtest completed")
	return nil
}

func (e *Engine) score(out *Outcome) {
	r := e.results
	r.Evaluated++
	out.Correct = out.Prediction == out.Label
	if out.Correct {
		r.Correct++
	}

	row, ok := r.Confusion[out.Label]
	if !ok {
		row = make(map[string]int)
		r.Confusion[out.Label] = row
	}
	row[out.Prediction]++

	if r.Evaluated%curveEvery == 0 {
		r.Curve = append(r.Curve, CurvePoint{
			Evaluated: r.Evaluated,
			Accuracy:  float64(r.Correct) / float64(r.Evaluated),
		})
	}
}

func (e *Engine) GetResults() *Results {
	return e.results
}

// Snapshot returns the trained model so a replay can seed a live service.
func (e *Engine) Snapshot() ([]byte, int64, error) {
	return e.pipeline.Snapshot()
}
