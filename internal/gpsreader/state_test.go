package gpsreader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordPPSEdgeBounceGuard(t *testing.T) {
	s := NewState()
	t0 := time.Now()

	count, accepted := s.RecordPPSEdge(t0)
	assert.True(t, accepted)
	assert.Equal(t, uint64(1), count)

	count, accepted = s.RecordPPSEdge(t0.Add(500 * time.Millisecond))
	assert.False(t, accepted)
	assert.Equal(t, uint64(1), count)

	count, accepted = s.RecordPPSEdge(t0.Add(950 * time.Millisecond))
	assert.True(t, accepted)
	assert.Equal(t, uint64(2), count)
}

func TestSnapshotFreshness(t *testing.T) {
	s := NewState()
	now := time.Now()
	s.UpdateTime(time.Date(2024, 11, 11, 12, 0, 0, 0, time.UTC), now)

	snap := s.Snapshot()
	assert.True(t, snap.Fresh(now.Add(time.Second), 2*time.Second))
	assert.False(t, snap.Fresh(now.Add(3*time.Second), 2*time.Second))
}

func TestSnapshotFreshnessRequiresNMEATime(t *testing.T) {
	s := NewState()
	snap := s.Snapshot()
	assert.False(t, snap.Fresh(time.Now(), time.Hour))
}

func TestPPSRecent(t *testing.T) {
	s := NewState()
	now := time.Now()
	s.RecordPPSEdge(now)

	snap := s.Snapshot()
	assert.True(t, snap.PPSRecent(now.Add(time.Second), 1500*time.Millisecond))
	assert.False(t, snap.PPSRecent(now.Add(2*time.Second), 1500*time.Millisecond))
}
