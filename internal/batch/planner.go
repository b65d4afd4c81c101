// Package batch is the execution core: it plans chunks over pending
// targets, runs the per-item pipeline with error isolation, applies
// memory admission control, and checkpoints progress at every chunk
// boundary so an interrupted run resumes without redoing completed work.
package batch

import (
	"errors"
	"fmt"
)

// Planner configuration errors.
var (
	// ErrInvalidChunkSize rejects non-positive chunk sizes.
	ErrInvalidChunkSize = errors.New("chunk size must be at least 1")
)

// Planner yields fixed-size chunks of pending target identifiers in their
// original request order. Identifiers whose outcome is terminal (succeeded
// or skipped_already_done) are excluded; failed and memory-skipped targets
// stay pending so a resumed run retries them.
//
// A planner covers each pending identifier exactly once: retryable
// outcomes recorded during this pass become pending again only when the
// next run plans over the updated ledger. Re-planning them mid-run would
// make a run under sustained memory pressure non-terminating.
type Planner struct {
	pending   []string
	chunkSize int
	offset    int
}

// NewPlanner builds a planner over requested, skipping identifiers in
// done. Duplicate identifiers in requested are planned once.
func NewPlanner(requested []string, chunkSize int, done map[string]bool) (*Planner, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}

	seen := make(map[string]bool, len(requested))
	pending := make([]string, 0, len(requested))
	for _, id := range requested {
		if seen[id] || done[id] {
			continue
		}
		seen[id] = true
		pending = append(pending, id)
	}

	return &Planner{pending: pending, chunkSize: chunkSize}, nil
}

// Next returns the next chunk of pending identifiers. The second return
// is false once the sequence is exhausted.
func (p *Planner) Next() ([]string, bool) {
	if p.offset >= len(p.pending) {
		return nil, false
	}
	end := p.offset + p.chunkSize
	if end > len(p.pending) {
		end = len(p.pending)
	}
	chunk := p.pending[p.offset:end]
	p.offset = end
	return chunk, true
}

// Remaining returns how many identifiers have not been yielded yet.
func (p *Planner) Remaining() int {
	return len(p.pending) - p.offset
}

// TotalChunks returns the number of chunks the planner will yield in total.
func (p *Planner) TotalChunks() int {
	return (len(p.pending) + p.chunkSize - 1) / p.chunkSize
}
