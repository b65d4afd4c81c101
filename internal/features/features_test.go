package features_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqlab/rnabatch/internal/config"
	"github.com/seqlab/rnabatch/internal/dataset"
	"github.com/seqlab/rnabatch/internal/features"
)

// TestExtractFamilies verifies the flags select which families are computed.
func TestExtractFamilies(t *testing.T) {
	in := &dataset.TargetInput{
		TargetID: "R1107",
		Sequence: "GGGAAACCC",
		MSA:      []string{"GGGAAACCC", "GGGAAACCU", "GGGAAACCC"},
	}
	extractor := features.NewExtractor()

	tests := []struct {
		name       string
		flags      config.ExtractConfig
		wantThermo bool
		wantMI     bool
	}{
		{"thermo only", config.ExtractConfig{Thermo: true}, true, false},
		{"mi only", config.ExtractConfig{MI: true, Pseudocount: 0.2}, false, true},
		{"both", config.ExtractConfig{Thermo: true, MI: true, Pseudocount: 0.2}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := extractor.Extract(context.Background(), in, tt.flags)
			require.NoError(t, err)

			assert.Equal(t, "R1107", fs.TargetID)
			assert.Equal(t, tt.wantThermo, fs.Thermo != nil)
			assert.Equal(t, tt.wantMI, fs.MI != nil)
		})
	}
}

// TestExtractAdaptivePseudocount verifies the sentinel flag resolves to a
// depth-based value recorded in the artifact.
func TestExtractAdaptivePseudocount(t *testing.T) {
	in := &dataset.TargetInput{
		TargetID: "R1107",
		Sequence: "ACGUACGU",
		MSA:      []string{"ACGUACGU", "ACGCACGU", "ACGAACGU"},
	}

	fs, err := features.NewExtractor().Extract(context.Background(), in,
		config.ExtractConfig{MI: true, Pseudocount: config.AdaptivePseudocount})
	require.NoError(t, err)
	require.NotNil(t, fs.MI)
	assert.InDelta(t, 0.5, fs.MI.Pseudocount, 1e-9, "shallow MSA selects 0.5")
}

// TestExtractMissingMSA verifies MI extraction without an alignment fails
// with the classified error.
func TestExtractMissingMSA(t *testing.T) {
	in := &dataset.TargetInput{TargetID: "R1107", Sequence: "ACGUACGU"}

	_, err := features.NewExtractor().Extract(context.Background(), in,
		config.ExtractConfig{MI: true, Pseudocount: 0.2})
	assert.ErrorIs(t, err, features.ErrEmptyMSA)
}
