package ml

import (
	"math"
	"sort"
)

// HoeffdingBound is the deviation eps such that, with probability
// 1-confidence, the true mean of a variable with range r lies within eps of
// the mean of n samples.
func HoeffdingBound(r, confidence, n float64) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	return math.Sqrt(r * r * math.Log(1/confidence) / (2 * n))
}

// ShouldSplit decides whether the best of candidates is reliably better than
// the runner-up after n examples. The "no split" candidate with merit 0 always
// competes, so a lone feature must beat doing nothing by eps. Exact ties and
// non-positive best merits defer.
func ShouldSplit(candidates []SplitCandidate, confidence, tieThreshold, r, n float64) (SplitCandidate, bool) {
	ranked := make([]SplitCandidate, 0, len(candidates)+1)
	ranked = append(ranked, candidates...)
	ranked = append(ranked, SplitCandidate{})
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Merit > ranked[j].Merit })

	if len(ranked) < 2 {
		return SplitCandidate{}, false
	}
	best, second := ranked[0], ranked[1]
	g1, g2 := best.Merit, second.Merit
	if g1 <= 0 || g1 == g2 {
		return SplitCandidate{}, false
	}
	eps := HoeffdingBound(r, confidence, n)
	if g1-g2 > eps || eps < tieThreshold {
		if best.IsNull() {
			return SplitCandidate{}, false
		}
		return best, true
	}
	return SplitCandidate{}, false
}
