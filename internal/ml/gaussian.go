package ml

import "math"

// gaussian is a running normal estimator updated with Welford's method.
type gaussian struct {
	N    float64 `json:"n"`
	Mean float64 `json:"mean"`
	M2   float64 `json:"m2"`
}

// update folds x into the estimate. It reports false and leaves g unchanged
// when the result would not be finite.
func (g *gaussian) update(x float64) bool {
	n := g.N + 1
	delta := x - g.Mean
	mean := g.Mean + delta/n
	m2 := g.M2 + delta*(x-mean)
	if !finite(mean) || !finite(m2) {
		return false
	}
	g.N, g.Mean, g.M2 = n, mean, m2
	return true
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// stdDev is the sample standard deviation, 0 with fewer than two samples.
func (g *gaussian) stdDev() float64 {
	if g.N < 2 {
		return 0
	}
	v := g.M2 / (g.N - 1)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// cdf returns P(X <= x). A zero-variance estimator is a step at the mean.
func (g *gaussian) cdf(x float64) float64 {
	sd := g.stdDev()
	if sd == 0 {
		if x >= g.Mean {
			return 1
		}
		return 0
	}
	return 0.5 * (1 + math.Erf((x-g.Mean)/(sd*math.Sqrt2)))
}

// classObserver tracks one feature's values for one class.
type classObserver struct {
	Est gaussian `json:"est"`
	Min float64  `json:"min"`
	Max float64  `json:"max"`
}

func (o *classObserver) update(x float64) bool {
	first := o.Est.N == 0
	if !o.Est.update(x) {
		return false
	}
	if first || x < o.Min {
		o.Min = x
	}
	if first || x > o.Max {
		o.Max = x
	}
	return true
}

// leftMass estimates how much of the class falls at or below cut.
func (o *classObserver) leftMass(cut float64) float64 {
	switch {
	case cut < o.Min:
		return 0
	case cut >= o.Max:
		return o.Est.N
	default:
		return o.Est.cdf(cut) * o.Est.N
	}
}
