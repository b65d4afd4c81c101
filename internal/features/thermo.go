package features

import (
	"math"
	"strings"
)

// Pairing weights follow the usual base-pair stability ordering.
const (
	weightGC = 3.0
	weightAU = 2.0
	weightGU = 1.0

	// minLoopLen is the minimum number of unpaired bases in a hairpin loop.
	minLoopLen = 3

	// pairEnergy converts a pairing weight unit to kcal/mol.
	pairEnergy = -1.0

	// ensembleSpread approximates the gap between the minimum free energy
	// and the ensemble free energy as a fraction of the MFE.
	ensembleSpread = 0.1

	// kT is the thermal energy at 37°C in kcal/mol.
	kT = 0.616
)

// thermodynamicFeatures computes the "basic.*" statistics for a sequence:
// composition, a weighted maximum-pairing energy estimate, and the derived
// ensemble quantities.
func thermodynamicFeatures(sequence string) (map[string]float64, error) {
	if sequence == "" {
		return nil, ErrEmptySequence
	}

	seq := normalizeRNA(sequence)
	n := len(seq)

	var gc, au int
	for _, b := range seq {
		switch b {
		case 'G', 'C':
			gc++
		case 'A', 'U':
			au++
		}
	}

	pairs, weight := maxWeightedPairing(seq)

	mfe := weight * pairEnergy
	ensemble := mfe * (1 + ensembleSpread)
	gap := ensemble - mfe

	features := map[string]float64{
		"basic.length":          float64(n),
		"basic.gc_content":      float64(gc) / float64(n),
		"basic.au_content":      float64(au) / float64(n),
		"basic.mfe":             mfe,
		"basic.ensemble_energy": ensemble,
		"basic.energy_gap":      gap,
		"basic.mfe_probability": math.Exp(gap / kT),
		"basic.paired_fraction": float64(2*pairs) / float64(n),
	}
	return features, nil
}

// normalizeRNA uppercases and maps DNA T to U.
func normalizeRNA(seq string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 't':
			return 'U'
		case 'T':
			return 'U'
		default:
			if r >= 'a' && r <= 'z' {
				return r - ('a' - 'A')
			}
			return r
		}
	}, seq)
}

// pairWeight returns the stability weight for a base pair, 0 if the bases
// cannot pair.
func pairWeight(a, b byte) float64 {
	switch {
	case (a == 'G' && b == 'C') || (a == 'C' && b == 'G'):
		return weightGC
	case (a == 'A' && b == 'U') || (a == 'U' && b == 'A'):
		return weightAU
	case (a == 'G' && b == 'U') || (a == 'U' && b == 'G'):
		return weightGU
	default:
		return 0
	}
}

// maxWeightedPairing runs a Nussinov-style recursion maximizing total pair
// weight with a minimum hairpin loop, returning the pair count and total
// weight of the optimal structure.
func maxWeightedPairing(seq string) (int, float64) {
	n := len(seq)
	if n < minLoopLen+2 {
		return 0, 0
	}

	// w[i][j] is the best weight on seq[i..j]; p[i][j] the pair count.
	w := make([][]float64, n)
	p := make([][]int, n)
	for i := range w {
		w[i] = make([]float64, n)
		p[i] = make([]int, n)
	}

	for span := minLoopLen + 1; span < n; span++ {
		for i := 0; i+span < n; i++ {
			j := i + span

			// j unpaired
			best, bestPairs := w[i][j-1], p[i][j-1]

			// j paired with some k in [i, j-minLoopLen-1]
			for k := i; k <= j-minLoopLen-1; k++ {
				pw := pairWeight(seq[k], seq[j])
				if pw == 0 {
					continue
				}
				var left float64
				var leftPairs int
				if k > i {
					left = w[i][k-1]
					leftPairs = p[i][k-1]
				}
				cand := left + pw + w[k+1][j-1]
				if cand > best {
					best = cand
					bestPairs = leftPairs + 1 + p[k+1][j-1]
				}
			}

			w[i][j] = best
			p[i][j] = bestPairs
		}
	}

	return p[0][n-1], w[0][n-1]
}
