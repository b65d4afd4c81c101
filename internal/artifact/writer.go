// Package artifact persists computed feature sets, one JSON file per
// target. Writes go through a temporary file and a rename so a failed
// write never leaves a partial artifact behind.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seqlab/rnabatch/internal/features"
	"github.com/seqlab/rnabatch/internal/logging"
)

// artifactSuffix is appended to the target id to form the artifact name.
const artifactSuffix = "_features.json"

// Writer persists feature sets under a directory.
type Writer struct {
	directory string
}

// NewWriter returns a Writer rooted at directory, creating it if needed.
func NewWriter(directory string) (*Writer, error) {
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Writer{directory: directory}, nil
}

// Path returns the artifact path for a target id.
func (w *Writer) Path(targetID string) string {
	return filepath.Join(w.directory, targetID+artifactSuffix)
}

// Exists reports whether a complete artifact already exists for the
// target. Used by the runner to claim prior work without recomputation.
func (w *Writer) Exists(targetID string) (string, bool) {
	path := w.Path(targetID)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Write persists fs atomically and returns the artifact path. On any
// failure no artifact file remains.
func (w *Writer) Write(ctx context.Context, targetID string, fs *features.FeatureSet) (string, error) {
	data, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact for %s: %w", targetID, err)
	}

	path := w.Path(targetID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write artifact for %s: %w", targetID, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize artifact for %s: %w", targetID, err)
	}

	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("component", "artifact").
		Str("target_id", targetID).
		Str("path", path).
		Msg("artifact written")

	return path, nil
}
