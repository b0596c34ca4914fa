package gpsreader

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/le-stef/pendulum/internal/ntperrors"
	"github.com/le-stef/pendulum/internal/stats"
)

func testReader() *Reader {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(Config{}, NewState(), stats.New(), logrus.NewEntry(log))
}

func TestVerifyChecksumAccepted(t *testing.T) {
	line := "$GPRMC,120000.00,A,4807.038,N,01131.000,E,000.0,000.0,110324,,*37"
	assert.True(t, verifyChecksum(line))
}

func TestVerifyChecksumRejected(t *testing.T) {
	line := "$GPRMC,120000.00,A,4807.038,N,01131.000,E,000.0,000.0,110324,,*FF"
	assert.False(t, verifyChecksum(line))
}

func TestProcessLineValidRMCUpdatesState(t *testing.T) {
	r := testReader()
	line := "$GPRMC,120000.00,A,4807.038,N,01131.000,E,000.0,000.0,110324,,*37\r\n"

	decoded, err := r.processLine(line, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, "RMC", decoded.kind)

	snap := r.State().Snapshot()
	assert.Equal(t, 2024, snap.LastNMEATime.Year())
	assert.Equal(t, time.Month(3), snap.LastNMEATime.Month())
	assert.Equal(t, 11, snap.LastNMEATime.Day())
	assert.Equal(t, 12, snap.LastNMEATime.Hour())
}

func TestProcessLineBadChecksumRejected(t *testing.T) {
	r := testReader()
	line := "$GPRMC,120000.00,A,4807.038,N,01131.000,E,000.0,000.0,110324,,*FF\r\n"

	before := r.State().Snapshot()
	_, err := r.processLine(line, time.Now())
	assert.ErrorIs(t, err, ntperrors.ErrNmeaChecksumMismatch)

	after := r.State().Snapshot()
	assert.Equal(t, before.LastNMEATime, after.LastNMEATime)
}

func TestProcessLineInvalidRMCStatusIgnored(t *testing.T) {
	r := testReader()
	// Status field 'V' (void) with a recomputed checksum.
	line := "$GPRMC,120000.00,V,4807.038,N,01131.000,E,000.0,000.0,110324,,*20\r\n"

	decoded, err := r.processLine(line, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, "RMC", decoded.kind)
	assert.True(t, r.State().Snapshot().LastNMEATime.IsZero())
}
