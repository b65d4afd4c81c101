package batch_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqlab/rnabatch/internal/artifact"
	"github.com/seqlab/rnabatch/internal/batch"
	"github.com/seqlab/rnabatch/internal/checkpoint"
	"github.com/seqlab/rnabatch/internal/config"
	"github.com/seqlab/rnabatch/internal/dataset"
	"github.com/seqlab/rnabatch/internal/features"
	"github.com/seqlab/rnabatch/internal/validate"
)

// newTestPipeline wires the real collaborators over temp directories and
// seeds one target with a sequence row and a small alignment.
func newTestPipeline(t *testing.T) (*batch.PipelineRunner, string, string) {
	t.Helper()
	rawDir := t.TempDir()
	outDir := t.TempDir()

	csv := "target_id,sequence\nRNA1,GGGAAACCCGGGAAACCC\n"
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "sequences.csv"), []byte(csv), 0600))

	msaDir := filepath.Join(rawDir, "MSA")
	require.NoError(t, os.MkdirAll(msaDir, 0750))
	fasta := ">RNA1\nGGGAAACCCGGGAAACCC\n>hom1\nGGGAAACCCGGGAAACCU\n>hom2\nGGGAAACCCGGGAAACCG\n"
	require.NoError(t, os.WriteFile(filepath.Join(msaDir, "RNA1.MSA.fasta"), []byte(fasta), 0600))

	writer, err := artifact.NewWriter(outDir)
	require.NoError(t, err)

	runner := batch.NewPipelineRunner(
		dataset.NewLoader(rawDir),
		features.NewExtractor(),
		validate.NewValidator(),
		writer,
	)
	return runner, rawDir, outDir
}

func TestPipelineRunnerSucceeds(t *testing.T) {
	runner, _, outDir := newTestPipeline(t)
	extract := config.ExtractConfig{Thermo: true, MI: true, Pseudocount: config.AdaptivePseudocount}

	outcome := runner.Run(context.Background(), "RNA1", extract)
	require.Equal(t, checkpoint.StatusSucceeded, outcome.Status, "detail: %s", outcome.ErrorDetail)
	assert.Empty(t, outcome.Stage)
	assert.Equal(t, filepath.Join(outDir, "RNA1_features.json"), outcome.ArtifactPath)
	assert.False(t, outcome.RecordedAt.IsZero())

	data, err := os.ReadFile(outcome.ArtifactPath)
	require.NoError(t, err)
	var fs features.FeatureSet
	require.NoError(t, json.Unmarshal(data, &fs))
	assert.Equal(t, "RNA1", fs.TargetID)
	assert.NotEmpty(t, fs.Thermo)
	require.NotNil(t, fs.MI)
	assert.Len(t, fs.MI.Scores, 18)
}

func TestPipelineRunnerSkipsExistingArtifact(t *testing.T) {
	runner, _, _ := newTestPipeline(t)
	extract := config.ExtractConfig{Thermo: true, Pseudocount: config.AdaptivePseudocount}

	first := runner.Run(context.Background(), "RNA1", extract)
	require.Equal(t, checkpoint.StatusSucceeded, first.Status)

	second := runner.Run(context.Background(), "RNA1", extract)
	assert.Equal(t, checkpoint.StatusSkippedDone, second.Status)
	assert.Equal(t, first.ArtifactPath, second.ArtifactPath)
}

func TestPipelineRunnerClassifiesLoadFailure(t *testing.T) {
	runner, _, _ := newTestPipeline(t)
	extract := config.ExtractConfig{Thermo: true, Pseudocount: config.AdaptivePseudocount}

	outcome := runner.Run(context.Background(), "NO_SUCH", extract)
	assert.Equal(t, checkpoint.StatusFailed, outcome.Status)
	assert.Equal(t, batch.StageLoad, outcome.Stage)
	assert.Contains(t, outcome.ErrorDetail, "load:")
}

func TestPipelineRunnerClassifiesComputeFailure(t *testing.T) {
	runner, rawDir, _ := newTestPipeline(t)

	// A sequence-only target cannot produce MI features.
	csv := "target_id,sequence\nSEQONLY,ACGUACGUACGU\n"
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "sequences.csv"), []byte(csv), 0600))

	extract := config.ExtractConfig{MI: true, Pseudocount: config.AdaptivePseudocount}
	outcome := runner.Run(context.Background(), "SEQONLY", extract)
	assert.Equal(t, checkpoint.StatusFailed, outcome.Status)
	assert.Equal(t, batch.StageCompute, outcome.Stage)
}
