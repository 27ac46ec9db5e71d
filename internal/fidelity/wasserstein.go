package fidelity

import (
	"math"
	"sort"
)

// wasserstein computes the exact 1-D earth-mover distance between two
// empirical distributions by integrating |F_a - F_b| over the merged
// support. Symmetric by construction; zero for identical samples.
func wasserstein(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	sa := sortedCopy(a)
	sb := sortedCopy(b)

	var (
		w, fa, fb, prev float64
		i, j            int
		started         bool
	)
	for i < len(sa) || j < len(sb) {
		var v float64
		switch {
		case i >= len(sa):
			v = sb[j]
		case j >= len(sb):
			v = sa[i]
		case sa[i] <= sb[j]:
			v = sa[i]
		default:
			v = sb[j]
		}

		if started {
			w += math.Abs(fa-fb) * (v - prev)
		}
		started = true

		for i < len(sa) && sa[i] == v {
			i++
		}
		for j < len(sb) && sb[j] == v {
			j++
		}
		fa = float64(i) / float64(len(sa))
		fb = float64(j) / float64(len(sb))
		prev = v
	}
	return w
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
