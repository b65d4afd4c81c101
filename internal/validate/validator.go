// Package validate checks the shape of computed feature sets before they
// are persisted. Validation failures are per-item errors: the offending
// target is recorded as failed and the batch continues.
package validate

import (
	"errors"
	"fmt"
	"math"

	"github.com/seqlab/rnabatch/internal/features"
)

// ErrInvalidArtifact is the root of all validation failures.
var ErrInvalidArtifact = errors.New("invalid feature artifact")

// requiredThermoKeys must be present and finite in every thermodynamic
// feature map.
var requiredThermoKeys = []string{
	"basic.mfe",
	"basic.ensemble_energy",
	"basic.energy_gap",
	"basic.gc_content",
	"basic.paired_fraction",
}

// Validator checks feature sets. Stateless.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks fs for structural problems: missing families, missing
// required keys, non-finite values, and a malformed MI matrix.
func (v *Validator) Validate(fs *features.FeatureSet) error {
	if fs == nil {
		return fmt.Errorf("%w: nil feature set", ErrInvalidArtifact)
	}
	if fs.TargetID == "" {
		return fmt.Errorf("%w: missing target id", ErrInvalidArtifact)
	}
	if fs.Thermo == nil && fs.MI == nil {
		return fmt.Errorf("%w: no feature families present", ErrInvalidArtifact)
	}

	if fs.Thermo != nil {
		if err := v.validateThermo(fs.Thermo); err != nil {
			return err
		}
	}
	if fs.MI != nil {
		if err := v.validateMI(fs.MI); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateThermo(thermo map[string]float64) error {
	for _, key := range requiredThermoKeys {
		val, ok := thermo[key]
		if !ok {
			return fmt.Errorf("%w: missing thermo key %q", ErrInvalidArtifact, key)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: thermo key %q is not finite", ErrInvalidArtifact, key)
		}
	}
	if gc := thermo["basic.gc_content"]; gc < 0 || gc > 1 {
		return fmt.Errorf("%w: gc_content %.4f out of [0,1]", ErrInvalidArtifact, gc)
	}
	return nil
}

func (v *Validator) validateMI(mi *features.MIFeatures) error {
	n := len(mi.Scores)
	if n == 0 {
		return fmt.Errorf("%w: empty MI matrix", ErrInvalidArtifact)
	}
	for i, row := range mi.Scores {
		if len(row) != n {
			return fmt.Errorf("%w: MI matrix is not square (row %d has %d columns, want %d)",
				ErrInvalidArtifact, i, len(row), n)
		}
		for j, val := range row {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return fmt.Errorf("%w: MI[%d][%d] is not finite", ErrInvalidArtifact, i, j)
			}
			if mi.Scores[j][i] != val {
				return fmt.Errorf("%w: MI matrix is not symmetric at (%d,%d)", ErrInvalidArtifact, i, j)
			}
		}
		if mi.Scores[i][i] != 0 {
			return fmt.Errorf("%w: MI diagonal is non-zero at %d", ErrInvalidArtifact, i)
		}
	}
	return nil
}
