package checkpoint

import (
	"context"
	"errors"
)

// Common store errors.
var (
	// ErrNotFound is returned by Load when no record exists for the batch
	// name. Resume requires a prior run.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrBatchExists is returned when a new run would overwrite an existing
	// record under the same batch name.
	ErrBatchExists = errors.New("checkpoint already exists for batch name")
	// ErrPersistence wraps any I/O failure of the durable store. It is fatal
	// to the run: continuing with an un-persisted ledger would make resume
	// unsound.
	ErrPersistence = errors.New("checkpoint persistence failure")
	// ErrAlreadyRunning is returned when another run instance holds the
	// lock for the batch name.
	ErrAlreadyRunning = errors.New("batch is already running")
	// ErrNothingStaged is returned by AdvanceCursor when no outcomes were
	// staged for the batch name since the last commit.
	ErrNothingStaged = errors.New("no outcomes staged for batch")
)

// Store persists batch run state. Implementations must guarantee that a
// concurrent Load never observes a record mixing fields from two Save
// calls, and that AppendOutcomes followed by AdvanceCursor is durable as a
// single unit per chunk boundary: after a crash, recovery sees either both
// the outcomes and the advanced cursor or neither.
type Store interface {
	// Load reads the record for batchName, or ErrNotFound.
	Load(ctx context.Context, batchName string) (*Record, error)

	// Save atomically replaces the record for its batch name.
	Save(ctx context.Context, record *Record) error

	// AppendOutcomes stages one chunk's outcomes for batchName. Staged
	// outcomes are not durable until AdvanceCursor commits them.
	AppendOutcomes(ctx context.Context, batchName string, outcomes []Outcome) error

	// AdvanceCursor durably commits the staged outcomes together with the
	// new cursor in one atomic unit.
	AdvanceCursor(ctx context.Context, batchName string, nextChunk int) error
}
