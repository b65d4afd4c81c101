package artifact_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqlab/rnabatch/internal/artifact"
	"github.com/seqlab/rnabatch/internal/features"
)

// TestWriteAndExists verifies the write/exists round trip.
func TestWriteAndExists(t *testing.T) {
	dir := t.TempDir()
	w, err := artifact.NewWriter(dir)
	require.NoError(t, err)

	_, ok := w.Exists("R1107")
	assert.False(t, ok)

	fs := &features.FeatureSet{
		TargetID: "R1107",
		Thermo:   map[string]float64{"basic.mfe": -9},
	}
	path, err := w.Write(context.Background(), "R1107", fs)
	require.NoError(t, err)
	assert.Equal(t, w.Path("R1107"), path)

	found, ok := w.Exists("R1107")
	require.True(t, ok)
	assert.Equal(t, path, found)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded features.FeatureSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "R1107", decoded.TargetID)
	assert.InDelta(t, -9.0, decoded.Thermo["basic.mfe"], 1e-9)
}

// TestWriteLeavesNoTempFiles verifies the temp file is renamed away.
func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := artifact.NewWriter(dir)
	require.NoError(t, err)

	_, err = w.Write(context.Background(), "R1107", &features.FeatureSet{TargetID: "R1107"})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// TestExistsIgnoresEmptyFiles verifies a truncated artifact is not claimed.
func TestExistsIgnoresEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := artifact.NewWriter(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(w.Path("R1107"), nil, 0600))
	_, ok := w.Exists("R1107")
	assert.False(t, ok, "zero-length artifacts must be recomputed")
}
