// Package features computes the feature families for one RNA target:
// thermodynamic sequence statistics and mutual-information couplings over
// the target's multiple sequence alignment.
package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/seqlab/rnabatch/internal/config"
	"github.com/seqlab/rnabatch/internal/dataset"
	"github.com/seqlab/rnabatch/internal/logging"
)

// Common computation errors.
var (
	ErrEmptySequence = errors.New("cannot compute thermodynamic features for empty sequence")
	ErrEmptyMSA      = errors.New("no MSA sequences available for MI features")
	ErrRaggedMSA     = errors.New("MSA rows have differing lengths")
)

// FeatureSet is the computed artifact for one target. Which families are
// populated depends on the extraction flags.
type FeatureSet struct {
	TargetID string `json:"target_id"`
	// Thermo holds the "basic.*" thermodynamic statistics.
	Thermo map[string]float64 `json:"thermo,omitempty"`
	// MI holds the mutual-information family.
	MI *MIFeatures `json:"mi,omitempty"`
}

// MIFeatures is the mutual-information family: an APC-corrected coupling
// matrix over alignment columns plus the strongest pairs.
type MIFeatures struct {
	// Scores is the APC-corrected MI matrix, square and symmetric with a
	// zero diagonal.
	Scores [][]float64 `json:"scores"`
	Method string      `json:"method"`
	// Pseudocount actually used (after adaptive selection).
	Pseudocount float64 `json:"pseudocount"`
	// SingleSequence marks the degenerate one-row (or all-identical) MSA,
	// for which every coupling is zero by construction.
	SingleSequence bool        `json:"single_sequence"`
	TopPairs       []PairScore `json:"top_pairs"`
}

// PairScore is one column pair and its corrected coupling score.
type PairScore struct {
	I     int     `json:"i"`
	J     int     `json:"j"`
	Score float64 `json:"score"`
}

// Extractor computes feature sets. It is stateless and safe for
// concurrent use.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes the families selected by flags for the given input.
// Any failure is returned to the caller for classification; Extract never
// writes anything.
func (e *Extractor) Extract(ctx context.Context, in *dataset.TargetInput, flags config.ExtractConfig) (*FeatureSet, error) {
	logger := logging.FromContext(ctx)

	fs := &FeatureSet{TargetID: in.TargetID}

	if flags.Thermo {
		thermo, err := thermodynamicFeatures(in.Sequence)
		if err != nil {
			return nil, fmt.Errorf("thermodynamic features for %s: %w", in.TargetID, err)
		}
		fs.Thermo = thermo
	}

	if flags.MI {
		if len(in.MSA) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyMSA, in.TargetID)
		}
		pseudocount := flags.Pseudocount
		if flags.AdaptivePseudocount() {
			pseudocount = AdaptivePseudocount(in.MSA)
		}
		mi, err := mutualInformation(in.MSA, pseudocount)
		if err != nil {
			return nil, fmt.Errorf("MI features for %s: %w", in.TargetID, err)
		}
		fs.MI = mi

		logger.Debug().
			Str("component", "features").
			Str("target_id", in.TargetID).
			Int("msa_rows", len(in.MSA)).
			Float64("pseudocount", pseudocount).
			Bool("single_sequence", mi.SingleSequence).
			Msg("computed MI features")
	}

	return fs, nil
}
