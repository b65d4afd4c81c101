package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSampleOverLimit verifies the admission decision for known samples.
func TestSampleOverLimit(t *testing.T) {
	tests := []struct {
		name    string
		used    uint64
		ceiling uint64
		known   bool
		want    bool
	}{
		{
			name:    "under ceiling",
			used:    100,
			ceiling: 200,
			known:   true,
			want:    false,
		},
		{
			name:    "at ceiling",
			used:    200,
			ceiling: 200,
			known:   true,
			want:    true,
		},
		{
			name:    "over ceiling",
			used:    300,
			ceiling: 200,
			known:   true,
			want:    true,
		},
		{
			name:    "unknown sample fails open",
			used:    300,
			ceiling: 200,
			known:   false,
			want:    false,
		},
		{
			name:    "zero ceiling disables gate",
			used:    300,
			ceiling: 0,
			known:   true,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sample{UsedBytes: tt.used, CeilingBytes: tt.ceiling, Known: tt.known}
			assert.Equal(t, tt.want, s.OverLimit())
		})
	}
}

// TestMonitorSamplerError verifies that a failing sampler produces an
// unknown sample instead of an error.
func TestMonitorSamplerError(t *testing.T) {
	m := newMonitorWithSampler(1024, func() (uint64, error) {
		return 0, errors.New("proc unreadable")
	})

	s := m.Sample()
	assert.False(t, s.Known)
	assert.False(t, s.OverLimit(), "sampling glitch must not block progress")
	assert.False(t, m.OverLimit())
}

// TestMonitorSample verifies a healthy sampler is reflected in the sample.
func TestMonitorSample(t *testing.T) {
	m := newMonitorWithSampler(1024, func() (uint64, error) {
		return 2048, nil
	})

	s := m.Sample()
	require.True(t, s.Known)
	assert.Equal(t, uint64(2048), s.UsedBytes)
	assert.Equal(t, uint64(1024), s.CeilingBytes)
	assert.True(t, s.OverLimit())
	assert.False(t, s.At.IsZero())
}

// TestMonitorRealSampler exercises the gopsutil-backed sampler against the
// test process itself.
func TestMonitorRealSampler(t *testing.T) {
	m := NewMonitor(0)
	s := m.Sample()
	require.True(t, s.Known, "reading the test process RSS should succeed")
	assert.Positive(t, s.UsedBytes)
	assert.False(t, s.OverLimit())
}
