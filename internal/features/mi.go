package features

import (
	"math"
	"sort"
)

// miAlphabet is the symbol set counted per alignment column. Anything else
// (ambiguity codes, unusual gap characters) is mapped to the gap symbol.
const miAlphabet = "ACGU-"

// maxTopPairs caps the reported strongest couplings.
const maxTopPairs = 20

// Adaptive pseudocount tiers by MSA depth.
const (
	smallMSALimit       = 25
	mediumMSALimit      = 100
	smallMSAPseudocount = 0.5
	mediumPseudocount   = 0.2
)

// AdaptivePseudocount selects a pseudocount from MSA depth: shallow
// alignments need more smoothing, deep ones none.
func AdaptivePseudocount(msa []string) float64 {
	switch n := len(msa); {
	case n <= smallMSALimit:
		return smallMSAPseudocount
	case n <= mediumMSALimit:
		return mediumPseudocount
	default:
		return 0.0
	}
}

// mutualInformation computes the APC-corrected MI matrix over alignment
// columns. An MSA with fewer than two distinct rows short-circuits to a
// zero matrix: there is no covariation signal in identical sequences.
func mutualInformation(msa []string, pseudocount float64) (*MIFeatures, error) {
	if len(msa) == 0 {
		return nil, ErrEmptyMSA
	}

	cols := len(msa[0])
	for _, row := range msa {
		if len(row) != cols {
			return nil, ErrRaggedMSA
		}
	}

	if distinctRows(msa) <= 1 {
		return &MIFeatures{
			Scores:         zeroMatrix(cols),
			Method:         "mutual_information",
			Pseudocount:    pseudocount,
			SingleSequence: true,
			TopPairs:       []PairScore{},
		}, nil
	}

	encoded := encodeMSA(msa)
	mi := rawMI(encoded, cols, pseudocount)
	scores := applyAPC(mi, cols)

	return &MIFeatures{
		Scores:         scores,
		Method:         "mutual_information",
		Pseudocount:    pseudocount,
		SingleSequence: false,
		TopPairs:       topPairs(scores, cols),
	}, nil
}

// distinctRows counts unique sequences in the MSA.
func distinctRows(msa []string) int {
	seen := make(map[string]struct{}, len(msa))
	for _, row := range msa {
		seen[row] = struct{}{}
	}
	return len(seen)
}

// encodeMSA maps each alignment symbol to its alphabet index.
func encodeMSA(msa []string) [][]int {
	index := make(map[byte]int, len(miAlphabet))
	for i := 0; i < len(miAlphabet); i++ {
		index[miAlphabet[i]] = i
	}
	gap := index['-']

	encoded := make([][]int, len(msa))
	for r, row := range msa {
		encoded[r] = make([]int, len(row))
		for c := 0; c < len(row); c++ {
			b := row[c]
			if b >= 'a' && b <= 'z' {
				b -= 'a' - 'A'
			}
			if b == 'T' {
				b = 'U'
			}
			if idx, ok := index[b]; ok {
				encoded[r][c] = idx
			} else {
				encoded[r][c] = gap
			}
		}
	}
	return encoded
}

// rawMI computes the symmetric mutual-information matrix with pseudocount
// smoothing on the joint counts.
func rawMI(encoded [][]int, cols int, pseudocount float64) [][]float64 {
	k := len(miAlphabet)
	rows := float64(len(encoded))

	mi := zeroMatrix(cols)
	joint := make([]float64, k*k)

	for i := 0; i < cols; i++ {
		for j := i + 1; j < cols; j++ {
			for idx := range joint {
				joint[idx] = pseudocount
			}
			for _, row := range encoded {
				joint[row[i]*k+row[j]]++
			}
			total := rows + pseudocount*float64(k*k)

			// Marginals from the smoothed joint so they stay consistent.
			pi := make([]float64, k)
			pj := make([]float64, k)
			for a := 0; a < k; a++ {
				for b := 0; b < k; b++ {
					p := joint[a*k+b] / total
					pi[a] += p
					pj[b] += p
				}
			}

			var sum float64
			for a := 0; a < k; a++ {
				for b := 0; b < k; b++ {
					p := joint[a*k+b] / total
					if p > 0 && pi[a] > 0 && pj[b] > 0 {
						sum += p * math.Log2(p/(pi[a]*pj[b]))
					}
				}
			}
			if sum < 0 {
				sum = 0
			}
			mi[i][j] = sum
			mi[j][i] = sum
		}
	}
	return mi
}

// applyAPC subtracts the average product correction, removing the
// phylogenetic background signal: APC(i,j) = MI(i,·)·MI(·,j) / MI̅.
func applyAPC(mi [][]float64, cols int) [][]float64 {
	colMeans := make([]float64, cols)
	var grand float64
	for i := 0; i < cols; i++ {
		for j := 0; j < cols; j++ {
			if i != j {
				colMeans[i] += mi[i][j]
			}
		}
		if cols > 1 {
			colMeans[i] /= float64(cols - 1)
		}
		grand += colMeans[i]
	}
	grand /= float64(cols)

	corrected := zeroMatrix(cols)
	if grand == 0 {
		return corrected
	}
	for i := 0; i < cols; i++ {
		for j := 0; j < cols; j++ {
			if i == j {
				continue
			}
			corrected[i][j] = mi[i][j] - colMeans[i]*colMeans[j]/grand
		}
	}
	return corrected
}

// topPairs collects the strongest corrected couplings, i < j, descending.
func topPairs(scores [][]float64, cols int) []PairScore {
	pairs := make([]PairScore, 0, cols*(cols-1)/2)
	for i := 0; i < cols; i++ {
		for j := i + 1; j < cols; j++ {
			pairs = append(pairs, PairScore{I: i, J: j, Score: scores[i][j]})
		}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].Score > pairs[b].Score })
	if len(pairs) > maxTopPairs {
		pairs = pairs[:maxTopPairs]
	}
	return pairs
}

// zeroMatrix allocates a square matrix of zeros.
func zeroMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
