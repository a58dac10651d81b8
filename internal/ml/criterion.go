package ml

import (
	"fmt"
	"math"
)

// Criterion selects the impurity measure used to score split candidates.
type Criterion string

const (
	InfoGain Criterion = "info_gain"
	Gini     Criterion = "gini"
)

// minBranchFraction is the share of mass each of at least two branches must
// exceed for a candidate to be scored at all.
const minBranchFraction = 0.01

func ParseCriterion(s string) (Criterion, error) {
	switch Criterion(s) {
	case InfoGain, Gini:
		return Criterion(s), nil
	case "":
		return InfoGain, nil
	}
	return "", fmt.Errorf("unknown split criterion %q", s)
}

// merit scores splitting pre into the given branches. Higher is better; a
// split that leaves fewer than two meaningful branches scores -Inf.
func (c Criterion) merit(pre []float64, branches ...[]float64) float64 {
	total := 0.0
	meaningful := 0
	weights := make([]float64, len(branches))
	for i, b := range branches {
		weights[i] = sum(b)
		total += weights[i]
	}
	if total <= 0 {
		return math.Inf(-1)
	}
	for _, w := range weights {
		if w/total > minBranchFraction {
			meaningful++
		}
	}
	if meaningful < 2 {
		return math.Inf(-1)
	}

	impurity := entropy
	if c == Gini {
		impurity = gini
	}
	after := 0.0
	for i, b := range branches {
		after += weights[i] / total * impurity(b)
	}
	return impurity(pre) - after
}

// rangeOf is R in the Hoeffding bound for a leaf that has seen numClasses classes.
func (c Criterion) rangeOf(numClasses int) float64 {
	if c == Gini {
		return 1
	}
	if numClasses < 2 {
		numClasses = 2
	}
	return math.Log2(float64(numClasses))
}

func entropy(dist []float64) float64 {
	total := sum(dist)
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, v := range dist {
		if v > 0 {
			p := v / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

func gini(dist []float64) float64 {
	total := sum(dist)
	if total <= 0 {
		return 0
	}
	g := 1.0
	for _, v := range dist {
		p := v / total
		g -= p * p
	}
	return g
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

// argmax returns the index of the largest value, lowest index on ties, or
// false when the distribution is empty.
func argmax(dist []float64) (int, bool) {
	best, bestV := -1, 0.0
	for i, v := range dist {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best, best >= 0
}
