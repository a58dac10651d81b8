package ml

import (
	"math"
	"sort"
)

// leafStats is the sufficient statistics owned by a single leaf. Counts and
// the per-feature observer slices are indexed by the dense label index.
type leafStats struct {
	Counts    []float64                   `json:"counts"`
	Features  map[string][]*classObserver `json:"features"`
	SinceEval int                         `json:"since_eval"`
}

func newLeafStats() *leafStats {
	return &leafStats{Features: make(map[string][]*classObserver)}
}

func (s *leafStats) observe(fv FeatureVector, class int) {
	for len(s.Counts) <= class {
		s.Counts = append(s.Counts, 0)
	}
	s.Counts[class]++
	s.SinceEval++

	for name, x := range fv {
		if !finite(x) {
			continue
		}
		obs := s.Features[name]
		var o *classObserver
		if class < len(obs) {
			o = obs[class]
		}
		if o == nil {
			o = &classObserver{}
		}
		if !o.update(x) {
			continue
		}
		for len(obs) <= class {
			obs = append(obs, nil)
		}
		obs[class] = o
		s.Features[name] = obs
	}
}

func (s *leafStats) total() float64 { return sum(s.Counts) }

func (s *leafStats) predict() (int, bool) { return argmax(s.Counts) }

// classesSeen counts labels with non-zero weight at this leaf.
func (s *leafStats) classesSeen() int {
	n := 0
	for _, c := range s.Counts {
		if c > 0 {
			n++
		}
	}
	return n
}

func (s *leafStats) pure() bool { return s.classesSeen() < 2 }

// SplitCandidate is a binary test "feature <= Cut" and its merit.
// An empty Feature is the "no split" candidate.
type SplitCandidate struct {
	Feature string  `json:"feature"`
	Cut     float64 `json:"cut"`
	Merit   float64 `json:"merit"`
}

func (c SplitCandidate) IsNull() bool { return c.Feature == "" }

// bestSplitCandidates returns the best cut for each feature, ordered by
// descending merit. Features with a single observed value yield nothing.
func (s *leafStats) bestSplitCandidates(crit Criterion, nSplits int) []SplitCandidate {
	names := make([]string, 0, len(s.Features))
	for name := range s.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []SplitCandidate
	for _, name := range names {
		if c, ok := s.bestCut(name, crit, nSplits); ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Merit > out[j].Merit })
	return out
}

func (s *leafStats) bestCut(name string, crit Criterion, nSplits int) (SplitCandidate, bool) {
	obs := s.Features[name]
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, o := range obs {
		if o == nil || o.Est.N == 0 {
			continue
		}
		lo = math.Min(lo, o.Min)
		hi = math.Max(hi, o.Max)
	}
	if !(hi > lo) {
		return SplitCandidate{}, false
	}

	best := SplitCandidate{Feature: name, Merit: math.Inf(-1)}
	left := make([]float64, len(s.Counts))
	right := make([]float64, len(s.Counts))
	for i := 1; i <= nSplits; i++ {
		cut := lo + (hi-lo)*float64(i)/float64(nSplits+1)
		for c := range left {
			left[c], right[c] = 0, 0
			if c >= len(obs) || obs[c] == nil {
				continue
			}
			l := obs[c].leftMass(cut)
			left[c] = l
			right[c] = obs[c].Est.N - l
		}
		if m := crit.merit(s.Counts, left, right); m > best.Merit {
			best.Cut, best.Merit = cut, m
		}
	}
	if math.IsInf(best.Merit, -1) {
		return SplitCandidate{}, false
	}
	return best, true
}
