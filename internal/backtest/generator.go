package backtest

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"linkqual/internal/common"
	"linkqual/internal/storage"
)

// ObservationWriter is where generated records go.
type ObservationWriter interface {
	StoreObservation(storage.ObservationRecord) error
}

// GenOptions shapes a synthetic telemetry run.
type GenOptions struct {
	Sources   []string
	Threshold float64       // baseline the regimes are scaled against
	Start     time.Time
	Interval  time.Duration // time between samples of one source
	Samples   int           // per source
	LabelRate float64       // share of samples that carry their regime as label
	Seed      int64
}

type regime struct {
	label string
	ratio float64 // median value / threshold
}

var regimes = []regime{
	{common.LabelBad, 0.2},
	{common.LabelAverage, 1.2},
	{common.LabelGood, 3.0},
}

// Generate writes a random walk over link quality regimes for every source.
// Values are log-normal around the regime median; a source switches regime
// with probability 0.05 per sample.
func Generate(w ObservationWriter, opts GenOptions) (int, error) {
	if opts.Threshold <= 0 {
		return 0, fmt.Errorf("threshold must be positive, got %v", opts.Threshold)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	current := make([]int, len(opts.Sources))
	for i := range current {
		current[i] = rng.Intn(len(regimes))
	}

	n := 0
	for step := 0; step < opts.Samples; step++ {
		ts := opts.Start.Add(time.Duration(step) * opts.Interval)
		for i, source := range opts.Sources {
			if rng.Float64() < 0.05 {
				current[i] = rng.Intn(len(regimes))
			}
			r := regimes[current[i]]

			rec := storage.ObservationRecord{
				Source:    source,
				Value:     opts.Threshold * r.ratio * math.Exp(0.25*rng.NormFloat64()),
				Timestamp: ts,
			}
			if rng.Float64() < opts.LabelRate {
				rec.Label = r.label
			}
			if err := w.StoreObservation(rec); err != nil {
				return n, fmt.Errorf("failed to store observation: %w", err)
			}
			n++
		}
	}
	return n, nil
}
