package batch

import "github.com/seqlab/rnabatch/internal/checkpoint"

// Summary is the ledger rollup reported at the end of an invocation and
// by the status command.
type Summary struct {
	BatchName      string `json:"batch_name"`
	State          State  `json:"state"`
	TotalRequested int    `json:"total_requested"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
	SkippedMemory  int    `json:"skipped_memory"`
	SkippedDone    int    `json:"skipped_already_done"`
	Pending        int    `json:"pending"`
	NextChunk      int    `json:"next_chunk"`
}

// Retryable reports how many recorded targets would be replanned by a
// resume.
func (s *Summary) Retryable() int {
	return s.Failed + s.SkippedMemory
}

// summarize derives a Summary from the record's ledger. Pending counts
// requested targets with no recorded outcome at all; failed and
// memory-skipped targets are counted under their own statuses even
// though a resume retries them.
func summarize(record *checkpoint.Record, state State) *Summary {
	counts := record.CountByStatus()
	s := &Summary{
		BatchName:      record.Params.BatchName,
		State:          state,
		TotalRequested: len(record.Params.TargetIDs),
		Succeeded:      counts[checkpoint.StatusSucceeded],
		Failed:         counts[checkpoint.StatusFailed],
		SkippedMemory:  counts[checkpoint.StatusSkippedMemory],
		SkippedDone:    counts[checkpoint.StatusSkippedDone],
		NextChunk:      record.NextChunk,
	}

	recorded := make(map[string]bool, len(record.Ledger))
	for id := range record.Ledger {
		recorded[id] = true
	}
	for _, id := range record.Params.TargetIDs {
		if !recorded[id] {
			s.Pending++
		}
	}
	return s
}

// Summarize reports the current standing of a persisted batch without
// running it. The state is Completed when nothing is pending or
// retryable, otherwise Interrupted.
func Summarize(record *checkpoint.Record) *Summary {
	s := summarize(record, StateCompleted)
	if s.Pending > 0 || s.Retryable() > 0 {
		s.State = StateInterrupted
	}
	return s
}
