package validate_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seqlab/rnabatch/internal/features"
	"github.com/seqlab/rnabatch/internal/validate"
)

func validThermo() map[string]float64 {
	return map[string]float64{
		"basic.mfe":             -9.0,
		"basic.ensemble_energy": -9.9,
		"basic.energy_gap":      -0.9,
		"basic.gc_content":      0.66,
		"basic.paired_fraction": 0.66,
	}
}

func validMI() *features.MIFeatures {
	return &features.MIFeatures{
		Scores: [][]float64{
			{0, 0.5},
			{0.5, 0},
		},
		Method:   "mutual_information",
		TopPairs: []features.PairScore{{I: 0, J: 1, Score: 0.5}},
	}
}

// TestValidateAccepts verifies well-formed feature sets pass.
func TestValidateAccepts(t *testing.T) {
	v := validate.NewValidator()

	tests := []struct {
		name string
		fs   *features.FeatureSet
	}{
		{"thermo only", &features.FeatureSet{TargetID: "A", Thermo: validThermo()}},
		{"mi only", &features.FeatureSet{TargetID: "A", MI: validMI()}},
		{"both", &features.FeatureSet{TargetID: "A", Thermo: validThermo(), MI: validMI()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, v.Validate(tt.fs))
		})
	}
}

// TestValidateRejects verifies each structural defect is caught.
func TestValidateRejects(t *testing.T) {
	v := validate.NewValidator()

	missingKey := validThermo()
	delete(missingKey, "basic.mfe")

	nanValue := validThermo()
	nanValue["basic.energy_gap"] = math.NaN()

	badGC := validThermo()
	badGC["basic.gc_content"] = 1.5

	asymmetric := validMI()
	asymmetric.Scores = [][]float64{{0, 0.5}, {0.4, 0}}

	nonSquare := validMI()
	nonSquare.Scores = [][]float64{{0, 0.5}, {0.5}}

	hotDiagonal := validMI()
	hotDiagonal.Scores = [][]float64{{0.1, 0.5}, {0.5, 0}}

	tests := []struct {
		name string
		fs   *features.FeatureSet
	}{
		{"nil feature set", nil},
		{"missing target id", &features.FeatureSet{Thermo: validThermo()}},
		{"no families", &features.FeatureSet{TargetID: "A"}},
		{"missing thermo key", &features.FeatureSet{TargetID: "A", Thermo: missingKey}},
		{"non-finite thermo value", &features.FeatureSet{TargetID: "A", Thermo: nanValue}},
		{"gc_content out of range", &features.FeatureSet{TargetID: "A", Thermo: badGC}},
		{"asymmetric MI matrix", &features.FeatureSet{TargetID: "A", MI: asymmetric}},
		{"non-square MI matrix", &features.FeatureSet{TargetID: "A", MI: nonSquare}},
		{"non-zero MI diagonal", &features.FeatureSet{TargetID: "A", MI: hotDiagonal}},
		{"empty MI matrix", &features.FeatureSet{TargetID: "A", MI: &features.MIFeatures{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.fs)
			assert.ErrorIs(t, err, validate.ErrInvalidArtifact)
		})
	}
}
