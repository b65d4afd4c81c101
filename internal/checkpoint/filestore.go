package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// recordFileExtension is the file extension for checkpoint records.
const recordFileExtension = ".checkpoint.json"

// FileStore keeps one JSON document per batch name under a state
// directory. Params, ledger, and cursor live in the same document, so a
// single atomic file replace keeps them consistent with each other.
// Writes go to a temporary file first and are renamed into place.
// Thread-safe for concurrent access within one process; cross-process
// exclusion is the run lock's job.
type FileStore struct {
	directory string

	// staged holds outcomes appended since the last cursor advance, keyed
	// by batch name. Staging is in-memory on purpose: a crash between
	// append and advance must leave the durable record untouched.
	staged map[string][]Outcome

	mu sync.Mutex
}

// NewFileStore creates a file-backed store rooted at directory, creating
// the directory if needed.
func NewFileStore(directory string) (*FileStore, error) {
	if directory == "" {
		return nil, errors.New("state directory cannot be empty")
	}
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("%w: failed to create state directory: %v", ErrPersistence, err)
	}
	return &FileStore{
		directory: directory,
		staged:    make(map[string][]Outcome),
	}, nil
}

// Load reads the record for batchName.
func (s *FileStore) Load(_ context.Context, batchName string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(batchName)
}

func (s *FileStore) loadLocked(batchName string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(batchName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: batch %q", ErrNotFound, batchName)
		}
		return nil, fmt.Errorf("%w: failed to read record: %v", ErrPersistence, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: failed to decode record: %v", ErrPersistence, err)
	}
	if record.Ledger == nil {
		record.Ledger = make(map[string]Outcome)
	}
	return &record, nil
}

// Save atomically replaces the record for its batch name.
func (s *FileStore) Save(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(record)
}

func (s *FileStore) saveLocked(record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode record: %v", ErrPersistence, err)
	}

	path := s.recordPath(record.Params.BatchName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("%w: failed to write record: %v", ErrPersistence, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to replace record: %v", ErrPersistence, err)
	}
	return nil
}

// AppendOutcomes stages one chunk's outcomes. Nothing touches the disk
// until AdvanceCursor commits.
func (s *FileStore) AppendOutcomes(_ context.Context, batchName string, outcomes []Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[batchName] = append(s.staged[batchName], outcomes...)
	return nil
}

// AdvanceCursor merges the staged outcomes into the durable ledger and
// sets the cursor, in one atomic file replace. Staged outcomes are cleared
// only after the replace succeeds.
func (s *FileStore) AdvanceCursor(_ context.Context, batchName string, nextChunk int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes, ok := s.staged[batchName]
	if !ok {
		return fmt.Errorf("%w: batch %q", ErrNothingStaged, batchName)
	}

	record, err := s.loadLocked(batchName)
	if err != nil {
		return err
	}

	for _, o := range outcomes {
		record.Ledger[o.TargetID] = o
	}
	record.NextChunk = nextChunk

	if err := s.saveLocked(record); err != nil {
		return err
	}

	delete(s.staged, batchName)
	return nil
}

// ListBatches loads every record in the state directory, for the status
// listing. Files that fail to decode are reported as persistence errors
// rather than silently skipped.
func (s *FileStore) ListBatches(_ context.Context) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list state directory: %v", ErrPersistence, err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordFileExtension) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.directory, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read record %s: %v", ErrPersistence, entry.Name(), err)
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("%w: failed to decode record %s: %v", ErrPersistence, entry.Name(), err)
		}
		if record.Ledger == nil {
			record.Ledger = make(map[string]Outcome)
		}
		records = append(records, &record)
	}
	return records, nil
}

// StagedCount returns how many outcomes are staged for batchName. Useful
// for diagnostics; the durable record never reflects staged entries.
func (s *FileStore) StagedCount(batchName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged[batchName])
}

// Directory returns the state directory path.
func (s *FileStore) Directory() string {
	return s.directory
}

// recordPath converts a batch name to its record file path. Names are
// sanitized for filesystem safety.
func (s *FileStore) recordPath(batchName string) string {
	return filepath.Join(s.directory, sanitizeName(batchName)+recordFileExtension)
}

// sanitizeName replaces path-hostile characters in a batch name.
func sanitizeName(name string) string {
	safe := strings.ReplaceAll(name, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	safe = strings.ReplaceAll(safe, ":", "_")
	return safe
}
