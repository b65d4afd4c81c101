package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/seqlab/rnabatch/internal/checkpoint"
	"github.com/seqlab/rnabatch/internal/logging"
	"github.com/seqlab/rnabatch/internal/memory"
)

// State is the lifecycle phase of a batch invocation.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateHalted       State = "halted"
	StateInterrupted  State = "interrupted"
)

// Controller-level errors.
var (
	// ErrConfigMismatch means a resume was attempted with parameters that
	// differ from the ones recorded at batch creation.
	ErrConfigMismatch = errors.New("resume parameters do not match checkpoint")
	// ErrNoTargets rejects a batch with an empty target list.
	ErrNoTargets = errors.New("no targets requested")
	// ErrMissingBatchName rejects a batch without a name.
	ErrMissingBatchName = errors.New("batch name is required")
)

// Locker serializes invocations per batch name. Acquire fails with
// checkpoint.ErrAlreadyRunning when another process holds the lock.
type Locker interface {
	Acquire(batchName string) (release func() error, err error)
}

// MemoryGate samples process memory for admission control.
type MemoryGate interface {
	Sample() memory.Sample
}

// Observer receives progress events. Implementations must be cheap; the
// controller calls them on the hot path.
type Observer interface {
	RecordItem(status string)
	RecordChunkPersisted()
	SetMemoryUsed(bytes uint64)
}

type nopObserver struct{}

func (nopObserver) RecordItem(string)     {}
func (nopObserver) RecordChunkPersisted() {}
func (nopObserver) SetMemoryUsed(uint64)  {}

// Controller drives a batch through its lifecycle. It plans chunks over
// pending targets, gates each item on the memory ceiling, delegates item
// execution to the Runner, and persists outcomes plus the chunk cursor
// atomically at every chunk boundary.
type Controller struct {
	store    checkpoint.Store
	locker   Locker
	gate     MemoryGate
	runner   Runner
	observer Observer
}

// NewController assembles a controller. The observer is optional; pass
// nil to discard progress events.
func NewController(store checkpoint.Store, locker Locker, gate MemoryGate, runner Runner, observer Observer) *Controller {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Controller{
		store:    store,
		locker:   locker,
		gate:     gate,
		runner:   runner,
		observer: observer,
	}
}

// GenerateBatchName mints a unique, sortable batch name for runs that do
// not supply one.
func GenerateBatchName() string {
	return "batch-" + ulid.Make().String()
}

// Run creates a new batch from params and processes it to a terminal
// state. A checkpoint record with the same name must not already exist.
//
// The returned summary is non-nil whenever processing started; inspect
// its State to distinguish Completed from Halted and Interrupted. The
// error is non-nil only for failures that prevented or aborted
// processing (invalid params, lock contention, duplicate batch,
// persistence failure).
func (c *Controller) Run(ctx context.Context, params checkpoint.Params) (*Summary, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	release, err := c.locker.Acquire(params.BatchName)
	if err != nil {
		return nil, err
	}
	defer release() //nolint:errcheck

	if _, err := c.store.Load(ctx, params.BatchName); err == nil {
		return nil, fmt.Errorf("%w: %q", checkpoint.ErrBatchExists, params.BatchName)
	} else if !errors.Is(err, checkpoint.ErrNotFound) {
		return nil, err
	}

	log := logging.ComponentLogger(logging.FromContext(ctx), "controller")
	log.Info().
		Str("batch", params.BatchName).
		Int("targets", len(params.TargetIDs)).
		Int("chunk_size", params.ChunkSize).
		Uint64("ceiling_bytes", params.CeilingBytes).
		Str("state", string(StateInitializing)).
		Msg("creating batch")

	record := checkpoint.NewRecord(params)
	if err := c.store.Save(ctx, record); err != nil {
		return summarize(record, StateHalted), fmt.Errorf("persisting initial checkpoint: %w", err)
	}

	return c.process(ctx, record)
}

// Resume loads the checkpoint for params.BatchName and continues from the
// persisted cursor. Targets whose recorded outcome is terminal are not
// replanned; failed and memory-skipped targets are retried. The supplied
// params must match the ones stored at creation.
func (c *Controller) Resume(ctx context.Context, params checkpoint.Params) (*Summary, error) {
	if params.BatchName == "" {
		return nil, ErrMissingBatchName
	}

	release, err := c.locker.Acquire(params.BatchName)
	if err != nil {
		return nil, err
	}
	defer release() //nolint:errcheck

	record, err := c.store.Load(ctx, params.BatchName)
	if err != nil {
		return nil, err
	}
	if !record.Params.Matches(params) {
		return nil, fmt.Errorf("%w: batch %q", ErrConfigMismatch, params.BatchName)
	}

	log := logging.ComponentLogger(logging.FromContext(ctx), "controller")
	log.Info().
		Str("batch", params.BatchName).
		Int("next_chunk", record.NextChunk).
		Int("recorded_outcomes", len(record.Ledger)).
		Msg("resuming batch")

	return c.process(ctx, record)
}

// process runs the chunk loop until the plan is exhausted, the context is
// cancelled, or persistence fails. Cancellation is honored at item
// granularity but the in-flight chunk is discarded unpersisted, so a
// partially processed chunk is simply redone on the next run.
func (c *Controller) process(ctx context.Context, record *checkpoint.Record) (*Summary, error) {
	log := logging.ComponentLogger(logging.FromContext(ctx), "controller")

	planner, err := NewPlanner(record.Params.TargetIDs, record.Params.ChunkSize, record.DoneSet())
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("batch", record.Params.BatchName).
		Int("pending", planner.Remaining()).
		Int("chunks", planner.TotalChunks()).
		Str("state", string(StateRunning)).
		Msg("plan ready")

	for {
		if ctx.Err() != nil {
			log.Warn().Str("batch", record.Params.BatchName).Msg("interrupted at chunk boundary")
			return summarize(record, StateInterrupted), nil
		}

		chunk, ok := planner.Next()
		if !ok {
			break
		}

		outcomes := make([]checkpoint.Outcome, 0, len(chunk))
		for _, id := range chunk {
			if ctx.Err() != nil {
				log.Warn().
					Str("batch", record.Params.BatchName).
					Int("discarded", len(outcomes)).
					Msg("interrupted mid-chunk, discarding unpersisted outcomes")
				return summarize(record, StateInterrupted), nil
			}

			outcome := c.runItem(ctx, id, record)
			if ctx.Err() != nil && outcome.Status == checkpoint.StatusFailed {
				// The failure was (or may have been) induced by
				// cancellation; drop it so the item retries cleanly.
				return summarize(record, StateInterrupted), nil
			}

			c.observer.RecordItem(string(outcome.Status))
			logItem(log, &outcome)
			outcomes = append(outcomes, outcome)
		}

		if err := c.store.AppendOutcomes(ctx, record.Params.BatchName, outcomes); err != nil {
			return summarize(record, StateHalted), fmt.Errorf("staging chunk outcomes: %w", err)
		}
		next := record.NextChunk + 1
		if err := c.store.AdvanceCursor(ctx, record.Params.BatchName, next); err != nil {
			return summarize(record, StateHalted), fmt.Errorf("committing chunk %d: %w", record.NextChunk, err)
		}

		for _, o := range outcomes {
			record.Ledger[o.TargetID] = o
		}
		record.NextChunk = next
		c.observer.RecordChunkPersisted()
		log.Info().
			Str("batch", record.Params.BatchName).
			Int("chunk", next-1).
			Int("items", len(outcomes)).
			Int("remaining", planner.Remaining()).
			Msg("chunk persisted")
	}

	summary := summarize(record, StateCompleted)
	log.Info().
		Str("batch", record.Params.BatchName).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped_memory", summary.SkippedMemory).
		Int("skipped_done", summary.SkippedDone).
		Str("state", string(StateCompleted)).
		Msg("batch completed")
	return summary, nil
}

// runItem applies the memory gate and, when admitted, runs the pipeline.
func (c *Controller) runItem(ctx context.Context, id string, record *checkpoint.Record) checkpoint.Outcome {
	sample := c.gate.Sample()
	c.observer.SetMemoryUsed(sample.UsedBytes)
	if sample.OverLimit() {
		return checkpoint.Outcome{
			TargetID:    id,
			Status:      checkpoint.StatusSkippedMemory,
			ErrorDetail: fmt.Sprintf("memory %d bytes at or above ceiling %d bytes", sample.UsedBytes, sample.CeilingBytes),
			RecordedAt:  sample.At,
		}
	}
	return c.runner.Run(ctx, id, record.Params.Extract)
}

func validateParams(params checkpoint.Params) error {
	if params.BatchName == "" {
		return ErrMissingBatchName
	}
	if len(params.TargetIDs) == 0 {
		return ErrNoTargets
	}
	if params.ChunkSize < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, params.ChunkSize)
	}
	return nil
}

func logItem(log zerolog.Logger, o *checkpoint.Outcome) {
	ev := log.Debug().Str("target_id", o.TargetID).Str("status", string(o.Status))
	if o.Stage != "" {
		ev = ev.Str("stage", o.Stage)
	}
	if o.ErrorDetail != "" {
		ev = ev.Str("detail", o.ErrorDetail)
	}
	ev.Msg("item outcome")
}
