package clock

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/le-stef/pendulum/internal/gpsreader"
)

func TestSystemClockReportsStratum16(t *testing.T) {
	c := NewSystemClock(DefaultPrecision)
	assert.Equal(t, uint8(16), c.Stratum())
	assert.Equal(t, [4]byte{'L', 'O', 'C', 'L'}, c.ReferenceID())
}

func TestSystemClockNowTracksWallClock(t *testing.T) {
	c := NewSystemClock(DefaultPrecision)
	before := time.Now()
	ts := c.Now().Time()
	after := time.Now()
	assert.True(t, !ts.Before(before.Add(-time.Second)) && !ts.After(after.Add(time.Second)))
}

func testLogEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestGpsClockFallsBackWhenStale(t *testing.T) {
	state := gpsreader.NewState()
	c := NewGpsClock(state, Config{SyncTimeout: time.Second, MinSatellites: 4}, testLogEntry())

	assert.Equal(t, uint8(16), c.Stratum())
	assert.Equal(t, [4]byte{'L', 'O', 'C', 'L'}, c.ReferenceID())
}

func TestGpsClockReportsStratum1WhenFresh(t *testing.T) {
	state := gpsreader.NewState()
	now := time.Now()
	state.UpdateTime(time.Date(2024, 11, 11, 12, 0, 0, 0, time.UTC), now)
	state.UpdateFix(gpsreader.FixGPS, 8)

	c := NewGpsClock(state, Config{SyncTimeout: 10 * time.Second, MinSatellites: 4}, testLogEntry())

	assert.Equal(t, uint8(1), c.Stratum())
	assert.Equal(t, [4]byte{'G', 'P', 'S', 0}, c.ReferenceID())
}

func TestGpsClockUnderSatelliteThresholdFallsBack(t *testing.T) {
	state := gpsreader.NewState()
	now := time.Now()
	state.UpdateTime(time.Date(2024, 11, 11, 12, 0, 0, 0, time.UTC), now)
	state.UpdateFix(gpsreader.FixGPS, 2)

	c := NewGpsClock(state, Config{SyncTimeout: 10 * time.Second, MinSatellites: 4}, testLogEntry())

	assert.Equal(t, uint8(16), c.Stratum())
}

func TestGpsClockFallbackConvergence(t *testing.T) {
	state := gpsreader.NewState()
	now := time.Now()
	state.UpdateTime(time.Date(2024, 11, 11, 12, 0, 0, 0, time.UTC), now.Add(-2*time.Second))
	state.UpdateFix(gpsreader.FixGPS, 8)

	c := NewGpsClock(state, Config{SyncTimeout: time.Second, MinSatellites: 4}, testLogEntry())

	assert.Equal(t, uint8(16), c.Stratum(), "freshness lapsed beyond sync_timeout")
}
