package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussian(t *testing.T) {
	var g gaussian
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		g.update(x)
	}
	assert.Equal(t, 8.0, g.N)
	assert.InDelta(t, 5.0, g.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7), g.stdDev(), 1e-12)
	assert.InDelta(t, 0.5, g.cdf(5), 1e-12)
	assert.Less(t, g.cdf(0), 0.05)
	assert.Greater(t, g.cdf(10), 0.95)
}

func TestGaussian_ZeroVariance(t *testing.T) {
	var g gaussian
	g.update(3)
	assert.Equal(t, 0.0, g.stdDev())
	assert.Equal(t, 0.0, g.cdf(2.999))
	assert.Equal(t, 1.0, g.cdf(3))
}

func TestGaussian_RejectsOverflow(t *testing.T) {
	var g gaussian
	require.True(t, g.update(1e200))
	assert.False(t, g.update(0))

	assert.Equal(t, 1.0, g.N)
	assert.Equal(t, 1e200, g.Mean)
	assert.Equal(t, 0.0, g.M2)
}

func TestClassObserver_LeftMass(t *testing.T) {
	var o classObserver
	for _, x := range []float64{1, 2, 3} {
		o.update(x)
	}
	assert.Equal(t, 1.0, o.Min)
	assert.Equal(t, 3.0, o.Max)
	assert.Equal(t, 0.0, o.leftMass(0.5))
	assert.Equal(t, 3.0, o.leftMass(3))
	assert.InDelta(t, 1.5, o.leftMass(2), 1e-12)
}

func TestCriterion(t *testing.T) {
	assert.InDelta(t, 1.0, entropy([]float64{5, 5}), 1e-12)
	assert.Equal(t, 0.0, entropy([]float64{5, 0}))
	assert.InDelta(t, 0.5, gini([]float64{5, 5}), 1e-12)

	pre := []float64{5, 5}
	assert.InDelta(t, 1.0, InfoGain.merit(pre, []float64{5, 0}, []float64{0, 5}), 1e-12)
	assert.InDelta(t, 0.5, Gini.merit(pre, []float64{5, 0}, []float64{0, 5}), 1e-12)

	// one branch with under 1% of the mass
	lopsided := InfoGain.merit([]float64{1000, 1}, []float64{1000, 0}, []float64{0, 1})
	assert.True(t, math.IsInf(lopsided, -1))

	assert.Equal(t, 1.0, InfoGain.rangeOf(1))
	assert.InDelta(t, math.Log2(3), InfoGain.rangeOf(3), 1e-12)
	assert.Equal(t, 1.0, Gini.rangeOf(5))

	c, err := ParseCriterion("gini")
	require.NoError(t, err)
	assert.Equal(t, Gini, c)
	c, err = ParseCriterion("")
	require.NoError(t, err)
	assert.Equal(t, InfoGain, c)
	_, err = ParseCriterion("mse")
	assert.Error(t, err)
}

func TestLeafStats_Predict(t *testing.T) {
	s := newLeafStats()
	_, ok := s.predict()
	assert.False(t, ok)

	s.observe(fv(1), 1)
	s.observe(fv(1), 0)
	class, ok := s.predict()
	require.True(t, ok)
	assert.Equal(t, 0, class, "ties go to the lowest index")

	s.observe(fv(1), 1)
	class, _ = s.predict()
	assert.Equal(t, 1, class)
	assert.Equal(t, 3, s.SinceEval)
	assert.False(t, s.pure())
}

func TestLeafStats_SkipsNonFinite(t *testing.T) {
	s := newLeafStats()
	s.observe(FeatureVector{"x": math.NaN(), "y": 1}, 0)
	s.observe(FeatureVector{"x": math.Inf(1), "y": 2}, 0)

	assert.Empty(t, s.Features["x"])
	assert.Equal(t, 2.0, s.Features["y"][0].Est.N)
	assert.Equal(t, 2.0, s.total())
}

func TestLeafStats_SkipsOverflowingUpdate(t *testing.T) {
	s := newLeafStats()
	s.observe(FeatureVector{"x": 1e200}, 0)
	s.observe(FeatureVector{"x": 0}, 0)
	s.observe(FeatureVector{"x": 0}, 1)

	o := s.Features["x"][0]
	assert.Equal(t, 1.0, o.Est.N)
	assert.Equal(t, 1e200, o.Min)
	assert.Equal(t, 1e200, o.Max)
	assert.Equal(t, 1.0, s.Features["x"][1].Est.N)
	assert.Equal(t, 3.0, s.total())
}

func TestLeafStats_BestSplitCandidates(t *testing.T) {
	s := newLeafStats()
	for i := 0; i < 20; i++ {
		class := i % 2
		// x separates the classes, y is noise
		s.observe(FeatureVector{"x": float64(class), "y": float64(i % 5)}, class)
	}

	cands := s.bestSplitCandidates(InfoGain, 10)
	require.Len(t, cands, 2)
	assert.Equal(t, "x", cands[0].Feature)
	assert.InDelta(t, 1.0, cands[0].Merit, 1e-12)
	assert.Greater(t, cands[0].Cut, 0.0)
	assert.Less(t, cands[0].Cut, 1.0)
	assert.GreaterOrEqual(t, cands[0].Merit, cands[1].Merit)
}

func TestLeafStats_SingleValueHasNoCandidates(t *testing.T) {
	s := newLeafStats()
	s.observe(fv(0.5), 0)
	s.observe(fv(0.5), 1)
	assert.Empty(t, s.bestSplitCandidates(InfoGain, 10))
}
