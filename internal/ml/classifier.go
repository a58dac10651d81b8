// Package ml implements an incremental Hoeffding decision tree that predicts
// and learns one example at a time.
//
// Leaves accumulate per-class Gaussian statistics for every feature. Every
// GracePeriod examples a leaf computes its best binary cut per feature and
// commits to it once the Hoeffding bound shows the winner is reliably better
// than the runner-up. Splits are never undone.
//
// A Classifier is not safe for concurrent use.
package ml

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid classifier config")

// MetricsInterface defines the metrics the classifier reports to.
type MetricsInterface interface {
	ModelLearnInc()
	ModelSplitsInc()
	ModelLeavesSet(float64)
	ModelDepthSet(float64)
}

// FeatureVector maps feature name to value.
type FeatureVector map[string]float64

type Config struct {
	GracePeriod  int       `json:"grace_period" yaml:"gracePeriod"`
	Confidence   float64   `json:"confidence" yaml:"confidence"`
	TieThreshold float64   `json:"tie_threshold" yaml:"tieThreshold"`
	MaxDepth     int       `json:"max_depth" yaml:"maxDepth"`   // 0 = unbounded
	MaxLeaves    int       `json:"max_leaves" yaml:"maxLeaves"` // 0 = unbounded
	NSplits      int       `json:"n_splits" yaml:"nSplits"`
	Criterion    Criterion `json:"criterion" yaml:"criterion"`
}

func DefaultConfig() Config {
	return Config{
		GracePeriod:  1,
		Confidence:   0.05,
		TieThreshold: 0.05,
		NSplits:      10,
		Criterion:    InfoGain,
	}
}

// Diff names the settings that differ between c and other.
func (c Config) Diff(other Config) []string {
	var out []string
	add := func(name string, differs bool) {
		if differs {
			out = append(out, name)
		}
	}
	add("grace_period", c.GracePeriod != other.GracePeriod)
	add("confidence", c.Confidence != other.Confidence)
	add("tie_threshold", c.TieThreshold != other.TieThreshold)
	add("max_depth", c.MaxDepth != other.MaxDepth)
	add("max_leaves", c.MaxLeaves != other.MaxLeaves)
	add("n_splits", c.NSplits != other.NSplits)
	add("criterion", c.Criterion != other.Criterion)
	return out
}

func (c Config) validate() error {
	switch {
	case c.GracePeriod < 1:
		return fmt.Errorf("%w: grace period must be >= 1, got %d", ErrInvalidConfig, c.GracePeriod)
	case c.Confidence <= 0 || c.Confidence >= 1:
		return fmt.Errorf("%w: confidence must be in (0,1), got %v", ErrInvalidConfig, c.Confidence)
	case c.TieThreshold < 0:
		return fmt.Errorf("%w: tie threshold must be >= 0, got %v", ErrInvalidConfig, c.TieThreshold)
	case c.MaxDepth < 0 || c.MaxLeaves < 0:
		return fmt.Errorf("%w: max depth and max leaves must be >= 0", ErrInvalidConfig)
	case c.NSplits < 1:
		return fmt.Errorf("%w: n splits must be >= 1, got %d", ErrInvalidConfig, c.NSplits)
	case c.Criterion != InfoGain && c.Criterion != Gini:
		return fmt.Errorf("%w: unknown criterion %q", ErrInvalidConfig, c.Criterion)
	}
	return nil
}

// LeafState describes where a leaf is in its growth cycle.
type LeafState uint8

const (
	LeafCold       LeafState = iota // fewer than GracePeriod examples
	LeafEvaluating                  // a split check is due on the next example
	LeafStable                      // last check deferred, counting toward the next
	LeafTerminal                    // depth or leaf budget reached, never splits
)

func (s LeafState) String() string {
	switch s {
	case LeafCold:
		return "cold"
	case LeafEvaluating:
		return "evaluating"
	case LeafStable:
		return "stable"
	case LeafTerminal:
		return "terminal"
	}
	return "unknown"
}

// Outcome reports what a single Learn call did.
type Outcome struct {
	Learned   bool
	Evaluated bool
	Split     bool
	Candidate SplitCandidate
	Depth     int
}

type Stats struct {
	Leaves   int      `json:"leaves"`
	Splits   int      `json:"splits"`
	Depth    int      `json:"depth"`
	Examples int64    `json:"examples"`
	Classes  []string `json:"classes"`
}

type Classifier struct {
	cfg     Config
	root    *node
	labels  []string
	index   map[string]int
	seen    int64
	leaves  int
	splits  int
	depth   int
	metrics MetricsInterface
}

func New(cfg Config) (*Classifier, error) {
	return NewWithMetrics(cfg, nil)
}

func NewWithMetrics(cfg Config, metrics MetricsInterface) (*Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		cfg:     cfg,
		root:    newLeaf(0),
		index:   make(map[string]int),
		leaves:  1,
		metrics: metrics,
	}
	c.reportShape()
	return c, nil
}

func (c *Classifier) Config() Config { return c.cfg }

// SetMetrics replaces the metrics sink, e.g. after restoring a snapshot.
func (c *Classifier) SetMetrics(m MetricsInterface) {
	c.metrics = m
	c.reportShape()
}

// Predict returns the majority label of the leaf fv routes to. An empty leaf
// defers to the nearest ancestor that saw data before it split. ok is false
// when nothing has been learned on fv's path. Predict never changes the model.
func (c *Classifier) Predict(fv FeatureVector) (string, bool) {
	dist := c.distribution(fv)
	idx, ok := argmax(dist)
	if !ok {
		return "", false
	}
	return c.labels[idx], true
}

// PredictProba returns per-label probabilities for fv using the same
// fallback as Predict, or nil when there is no data.
func (c *Classifier) PredictProba(fv FeatureVector) map[string]float64 {
	dist := c.distribution(fv)
	total := sum(dist)
	if total <= 0 {
		return nil
	}
	out := make(map[string]float64, len(dist))
	for i, v := range dist {
		if v > 0 {
			out[c.labels[i]] = v / total
		}
	}
	return out
}

func (c *Classifier) distribution(fv FeatureVector) []float64 {
	leaf, path := route(c.root, fv)
	if leaf.stats.total() > 0 {
		return leaf.stats.Counts
	}
	for i := len(path) - 1; i >= 0; i-- {
		if sum(path[i].dist) > 0 {
			return path[i].dist
		}
	}
	return nil
}

// Learn trains on a single labeled example. An empty label is ignored.
func (c *Classifier) Learn(fv FeatureVector, label string) Outcome {
	if label == "" {
		return Outcome{}
	}
	class := c.classIndex(label)
	leaf, _ := route(c.root, fv)

	leaf.stats.observe(fv, class)
	c.seen++
	if c.metrics != nil {
		c.metrics.ModelLearnInc()
	}

	out := Outcome{Learned: true, Depth: leaf.depth}
	if !leaf.terminal && c.atBudget(leaf) {
		leaf.terminal = true
	}
	if leaf.terminal || leaf.stats.SinceEval < c.cfg.GracePeriod {
		return out
	}

	out.Evaluated = true
	leaf.stats.SinceEval = 0
	if leaf.stats.pure() {
		return out
	}

	candidates := leaf.stats.bestSplitCandidates(c.cfg.Criterion, c.cfg.NSplits)
	r := c.cfg.Criterion.rangeOf(leaf.stats.classesSeen())
	best, ok := ShouldSplit(candidates, c.cfg.Confidence, c.cfg.TieThreshold, r, leaf.stats.total())
	if !ok {
		return out
	}

	applySplit(leaf, best)
	c.leaves++
	c.splits++
	if leaf.depth+1 > c.depth {
		c.depth = leaf.depth + 1
	}
	if c.metrics != nil {
		c.metrics.ModelSplitsInc()
	}
	c.reportShape()

	out.Split = true
	out.Candidate = best
	return out
}

// atBudget reports whether splitting leaf would exceed MaxDepth or MaxLeaves.
func (c *Classifier) atBudget(leaf *node) bool {
	if c.cfg.MaxDepth > 0 && leaf.depth >= c.cfg.MaxDepth {
		return true
	}
	return c.cfg.MaxLeaves > 0 && c.leaves+1 > c.cfg.MaxLeaves
}

func (c *Classifier) classIndex(label string) int {
	if i, ok := c.index[label]; ok {
		return i
	}
	i := len(c.labels)
	c.labels = append(c.labels, label)
	c.index[label] = i
	return i
}

// LeafState returns the state of the leaf fv routes to.
func (c *Classifier) LeafState(fv FeatureVector) LeafState {
	leaf, _ := route(c.root, fv)
	switch {
	case leaf.terminal || c.atBudget(leaf):
		return LeafTerminal
	case leaf.stats.total() < float64(c.cfg.GracePeriod):
		return LeafCold
	case leaf.stats.SinceEval+1 >= c.cfg.GracePeriod:
		return LeafEvaluating
	}
	return LeafStable
}

// Labels returns the label vocabulary in first-seen order.
func (c *Classifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

func (c *Classifier) Stats() Stats {
	return Stats{
		Leaves:   c.leaves,
		Splits:   c.splits,
		Depth:    c.depth,
		Examples: c.seen,
		Classes:  c.Labels(),
	}
}

func (c *Classifier) reportShape() {
	if c.metrics == nil {
		return
	}
	c.metrics.ModelLeavesSet(float64(c.leaves))
	c.metrics.ModelDepthSet(float64(c.depth))
}
