// Package checkpoint persists the durable state of a named batch run: its
// immutable parameters, the append-only ledger of per-target outcomes, and
// the chunk cursor. The store is the sole writer of persisted state; the
// batch controller only ever holds an in-memory working copy.
package checkpoint

import (
	"time"

	"github.com/seqlab/rnabatch/internal/config"
)

// Status classifies the result of one target attempt.
type Status string

// Target outcome statuses.
const (
	// StatusSucceeded means the full pipeline ran and an artifact was written.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means a collaborator failed; ErrorDetail carries the cause.
	StatusFailed Status = "failed"
	// StatusSkippedMemory means admission control skipped the target before
	// any work started. The target stays eligible for a later resumed run.
	StatusSkippedMemory Status = "skipped_memory"
	// StatusSkippedDone means the artifact already existed on disk and was
	// claimed without recomputation.
	StatusSkippedDone Status = "skipped_already_done"
)

// Terminal reports whether the status represents permanent completion.
// Failed and memory-skipped targets are planned again on resume.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusSkippedDone
}

// Outcome is the ledger entry for one attempted target.
type Outcome struct {
	TargetID string `json:"target_id"`
	Status   Status `json:"status"`
	// Stage names the collaborator that failed (load, compute, validate,
	// write). Empty unless Status is failed.
	Stage string `json:"stage,omitempty"`
	// ErrorDetail is the collaborator's message. Empty unless failed.
	ErrorDetail string `json:"error,omitempty"`
	// ArtifactPath is set when Status is succeeded or skipped_already_done.
	ArtifactPath string    `json:"artifact_path,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Params is the immutable configuration snapshot of a batch run. Resuming
// with different parameters is a caller error, never a merge.
type Params struct {
	BatchName    string               `json:"batch_name"`
	TargetIDs    []string             `json:"target_ids"`
	Extract      config.ExtractConfig `json:"extract"`
	ChunkSize    int                  `json:"chunk_size"`
	CeilingBytes uint64               `json:"ceiling_bytes"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Matches reports whether other requests the same work under the same
// constraints. CreatedAt is excluded; it identifies the original run.
func (p Params) Matches(other Params) bool {
	if p.BatchName != other.BatchName ||
		p.ChunkSize != other.ChunkSize ||
		p.CeilingBytes != other.CeilingBytes ||
		p.Extract != other.Extract ||
		len(p.TargetIDs) != len(other.TargetIDs) {
		return false
	}
	for i, id := range p.TargetIDs {
		if other.TargetIDs[i] != id {
			return false
		}
	}
	return true
}

// Record is the durable projection of a batch run: params, ledger, and the
// index of the next chunk to process. The three parts are always read and
// written together so a reader never observes a cursor ahead of its ledger.
type Record struct {
	Params    Params             `json:"params"`
	Ledger    map[string]Outcome `json:"ledger"`
	NextChunk int                `json:"next_chunk"`
}

// NewRecord returns a fresh record for a new run.
func NewRecord(params Params) *Record {
	return &Record{
		Params: params,
		Ledger: make(map[string]Outcome),
	}
}

// DoneSet returns the identifiers whose outcome is terminal. These are
// excluded from planning; failed and memory-skipped targets are not.
func (r *Record) DoneSet() map[string]bool {
	done := make(map[string]bool, len(r.Ledger))
	for id, o := range r.Ledger {
		if o.Status.Terminal() {
			done[id] = true
		}
	}
	return done
}

// CountByStatus tallies the ledger. Summaries are always derived from the
// ledger rather than kept as separate counters.
func (r *Record) CountByStatus() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, o := range r.Ledger {
		counts[o.Status]++
	}
	return counts
}

// Clone returns a deep copy, used by the controller for its working copy.
func (r *Record) Clone() *Record {
	cp := &Record{
		Params:    r.Params,
		Ledger:    make(map[string]Outcome, len(r.Ledger)),
		NextChunk: r.NextChunk,
	}
	cp.Params.TargetIDs = append([]string(nil), r.Params.TargetIDs...)
	for id, o := range r.Ledger {
		cp.Ledger[id] = o
	}
	return cp
}
