// Package pretrain seeds a fresh classifier with a small synthetic dataset
// so it can answer before real labels arrive.
package pretrain

import (
	"context"
	"fmt"

	"linkqual/internal/common"
	"linkqual/internal/pipeline"

	"github.com/rs/zerolog/log"
)

// Source is the source name the synthetic observations are attributed to.
const Source = "dummy"

// Group is a run of identical labeled observations.
type Group struct {
	Value float64
	Label string
	Count int
}

// Groups returns the synthetic dataset. Bands are relative to the 500 kbps
// default baseline: below 0.5 is bad, 0.5 to 1.5 is average, 1.5 and above is good.
func Groups() []Group {
	return []Group{
		{Value: 10, Label: common.LabelBad, Count: 10},
		{Value: 100, Label: common.LabelBad, Count: 10},
		{Value: 250000, Label: common.LabelBad, Count: 10},
		{Value: 500000, Label: common.LabelAverage, Count: 10},
		{Value: 750000, Label: common.LabelAverage, Count: 10},
		{Value: 1000000, Label: common.LabelGood, Count: 10},
		{Value: 2000000, Label: common.LabelGood, Count: 10},
	}
}

// Dataset expands Groups into individual observations, in order.
func Dataset() []pipeline.Observation {
	var out []pipeline.Observation
	for _, g := range Groups() {
		for i := 0; i < g.Count; i++ {
			out = append(out, pipeline.Observation{Source: Source, Value: g.Value, Label: g.Label})
		}
	}
	return out
}

// Run feeds the dataset through p and returns the number of observations processed.
func Run(ctx context.Context, p *pipeline.Pipeline) (int, error) {
	n := 0
	for _, obs := range Dataset() {
		if _, err := p.Process(ctx, obs); err != nil {
			return n, fmt.Errorf("pretrain observation %d: %w", n, err)
		}
		n++
	}

	info := p.ModelInfo()
	log.Info().
		Int("examples", n).
		Int("leaves", info.Stats.Leaves).
		Int("depth", info.Stats.Depth).
		Msg("Pre-training complete")
	return n, nil
}
