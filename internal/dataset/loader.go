// Package dataset materializes the raw inputs for one RNA target: its
// sequence from the batch sequence table and, when present, its multiple
// sequence alignment from a FASTA file.
package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqlab/rnabatch/internal/logging"
)

// Common loader errors.
var (
	// ErrTargetNotFound means no sequence source exists for the target.
	ErrTargetNotFound = errors.New("no sequence data found for target")
	// ErrMalformedFASTA means an alignment file had no sequence content.
	ErrMalformedFASTA = errors.New("alignment file contains no sequences")
)

// Candidate file names for the sequence table, checked in order.
var sequenceFiles = []string{
	"sequences.csv",
	"test_sequences.csv",
	"rna_sequences.csv",
}

// Candidate column names, checked in order.
var (
	idColumns       = []string{"target_id", "ID", "id"}
	sequenceColumns = []string{"sequence", "Sequence", "seq"}
)

// Candidate MSA file extensions, checked in order.
var msaExtensions = []string{".MSA.fasta", ".fasta", ".fa", ".afa", ".msa"}

// TargetInput is the materialized raw input for one target.
type TargetInput struct {
	TargetID string
	// Sequence is the target RNA sequence, gaps stripped.
	Sequence string
	// MSA is the alignment rows for the target, first row being the target
	// itself. Nil when no alignment file exists.
	MSA []string
}

// Loader reads target inputs from a raw data directory.
type Loader struct {
	rawDir string
}

// NewLoader returns a Loader rooted at rawDir.
func NewLoader(rawDir string) *Loader {
	return &Loader{rawDir: rawDir}
}

// Load materializes the input for targetID. The sequence comes from the
// first sequence table that lists the target; when no table has it, the
// first MSA row is used instead. A target with neither source fails with
// ErrTargetNotFound.
func (l *Loader) Load(ctx context.Context, targetID string) (*TargetInput, error) {
	logger := logging.FromContext(ctx)

	in := &TargetInput{TargetID: targetID}

	if seq, ok := l.lookupSequence(targetID); ok {
		in.Sequence = stripGaps(seq)
	}

	msa, msaPath, err := l.loadMSA(targetID)
	if err != nil {
		return nil, err
	}
	if msa != nil {
		in.MSA = msa
		logger.Debug().
			Str("component", "dataset").
			Str("target_id", targetID).
			Str("msa_path", msaPath).
			Int("rows", len(msa)).
			Msg("loaded alignment")
	}

	if in.Sequence == "" && len(in.MSA) > 0 {
		// The first alignment row is conventionally the target itself.
		in.Sequence = stripGaps(in.MSA[0])
	}
	if in.Sequence == "" {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}

	return in, nil
}

// lookupSequence scans the candidate sequence tables for targetID.
func (l *Loader) lookupSequence(targetID string) (string, bool) {
	for _, name := range sequenceFiles {
		path := filepath.Join(l.rawDir, name)
		seq, ok := lookupSequenceInCSV(path, targetID)
		if ok {
			return seq, true
		}
	}
	return "", false
}

// lookupSequenceInCSV finds targetID in one CSV file, trying the known
// column name variants. Unreadable or mis-shaped files are skipped.
func lookupSequenceInCSV(path, targetID string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return "", false
	}

	idIdx := columnIndex(header, idColumns)
	seqIdx := columnIndex(header, sequenceColumns)
	if idIdx < 0 || seqIdx < 0 {
		return "", false
	}

	for {
		row, err := reader.Read()
		if err != nil {
			return "", false
		}
		if idIdx < len(row) && seqIdx < len(row) && row[idIdx] == targetID {
			return row[seqIdx], true
		}
	}
}

// columnIndex returns the index of the first candidate present in header.
func columnIndex(header []string, candidates []string) int {
	for _, want := range candidates {
		for i, col := range header {
			if col == want {
				return i
			}
		}
	}
	return -1
}

// loadMSA finds and parses the alignment for targetID. A missing file is
// not an error (nil MSA); a present but empty file is.
func (l *Loader) loadMSA(targetID string) ([]string, string, error) {
	dirs := []string{
		filepath.Join(l.rawDir, "MSA"),
		l.rawDir,
		filepath.Join(l.rawDir, "alignments"),
	}
	for _, dir := range dirs {
		for _, ext := range msaExtensions {
			path := filepath.Join(dir, targetID+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			msa, err := parseFASTA(path)
			if err != nil {
				return nil, "", err
			}
			return msa, path, nil
		}
	}
	return nil, "", nil
}

// parseFASTA reads all sequences from a FASTA file. Sequence lines between
// headers are concatenated.
func parseFASTA(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alignment %s: %w", path, err)
	}
	defer f.Close()

	var sequences []string
	var current strings.Builder

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ">"):
			if current.Len() > 0 {
				sequences = append(sequences, current.String())
				current.Reset()
			}
		default:
			current.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alignment %s: %w", path, err)
	}
	if current.Len() > 0 {
		sequences = append(sequences, current.String())
	}

	if len(sequences) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMalformedFASTA, path)
	}
	return sequences, nil
}

// stripGaps removes alignment gap characters from a sequence.
func stripGaps(seq string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return -1
		}
		return r
	}, seq)
}
