// Package memory samples process memory usage for admission control.
//
// The ceiling enforced here is advisory backpressure, not a hard limit: a
// sample at or above the ceiling causes the controller to skip the next
// item, but nothing is killed. Sampling errors are deliberately swallowed —
// an unreadable counter must never stall the batch, so unknown usage is
// treated as under the limit.
package memory

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Sample is a point-in-time view of process memory against the ceiling.
// Samples are ephemeral; they are produced immediately before each item
// attempt and never persisted.
type Sample struct {
	// UsedBytes is the process resident set size. Meaningless when Known
	// is false.
	UsedBytes uint64
	// CeilingBytes is the configured advisory ceiling. 0 means no ceiling.
	CeilingBytes uint64
	// Known is false when the underlying counter could not be read.
	Known bool
	// At is when the sample was taken.
	At time.Time
}

// OverLimit reports whether the sample is at or above the ceiling. Unknown
// samples and a zero ceiling are never over the limit.
func (s Sample) OverLimit() bool {
	if !s.Known || s.CeilingBytes == 0 {
		return false
	}
	return s.UsedBytes >= s.CeilingBytes
}

// sampler reads the current process memory usage in bytes.
type sampler func() (uint64, error)

// Monitor samples the current process RSS on demand. It is stateless
// except for the configured ceiling and safe for concurrent use.
type Monitor struct {
	ceilingBytes uint64
	sample       sampler
}

// NewMonitor returns a Monitor with the given advisory ceiling in bytes.
// A zero ceiling disables the admission gate.
func NewMonitor(ceilingBytes uint64) *Monitor {
	return &Monitor{
		ceilingBytes: ceilingBytes,
		sample:       processRSS,
	}
}

// newMonitorWithSampler is used by tests to inject deterministic readings.
func newMonitorWithSampler(ceilingBytes uint64, s sampler) *Monitor {
	return &Monitor{ceilingBytes: ceilingBytes, sample: s}
}

// Sample reads current usage. It never fails: a sampler error yields a
// Sample with Known=false.
func (m *Monitor) Sample() Sample {
	s := Sample{
		CeilingBytes: m.ceilingBytes,
		At:           time.Now(),
	}
	used, err := m.sample()
	if err != nil {
		return s
	}
	s.UsedBytes = used
	s.Known = true
	return s
}

// OverLimit samples and reports whether usage is at or above the ceiling.
func (m *Monitor) OverLimit() bool {
	return m.Sample().OverLimit()
}

// CeilingBytes returns the configured ceiling.
func (m *Monitor) CeilingBytes() uint64 {
	return m.ceilingBytes
}

// processRSS reads the resident set size of the current process.
func processRSS() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
