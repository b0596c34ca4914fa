package ntptime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowAndTimeRoundTrip(t *testing.T) {
	in := time.Date(2024, 11, 11, 12, 0, 0, 0, time.UTC)
	ts := Now(in)
	out := ts.Time()
	assert.Equal(t, in.Unix(), out.Unix())
}

func TestFromPartsSecondsFraction(t *testing.T) {
	ts := FromParts(3913056000, 0x80000000)
	assert.Equal(t, uint32(3913056000), ts.Seconds())
	assert.Equal(t, uint32(0x80000000), ts.Fraction())
}

func TestEpochOffset(t *testing.T) {
	posix := time.Unix(0, 0).UTC()
	ts := Now(posix)
	assert.Equal(t, uint32(EpochOffset), ts.Seconds())
}

func TestShortFromDurationClamps(t *testing.T) {
	assert.Equal(t, Short(0), ShortFromDuration(-time.Second))
	assert.Equal(t, Short(65535*65536), ShortFromDuration(100000*time.Second))
}

func TestShortDurationRoundTrip(t *testing.T) {
	s := ShortFromDuration(1500 * time.Millisecond)
	d := s.Duration()
	assert.InDelta(t, 1.5, d.Seconds(), 0.001)
}
