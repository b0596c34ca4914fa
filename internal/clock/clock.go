// Package clock implements Pendulum's time-source abstraction: a small
// sum-type (System | Gps-with-System-fallback), built by composition
// rather than inheritance.
package clock

import (
	"time"

	"github.com/le-stef/pendulum/internal/ntptime"
)

// Clock is the capability the Server consumes at T2 and T3.
type Clock interface {
	Now() ntptime.Timestamp
	Stratum() uint8
	ReferenceID() [4]byte
	Precision() int8
	RootDelay() ntptime.Short
	RootDispersion() ntptime.Short
	ReferenceTimestamp() ntptime.Timestamp
}

// SystemClock reports the host wall clock at stratum 16 with reference ID
// "LOCL" — Pendulum's own fallback clock, used standalone (clock.source =
// "system") or as the GpsClock's fallback.
type SystemClock struct {
	precision int8
}

// refIDLocal is the ASCII reference id for an unsynchronized local clock.
var refIDLocal = [4]byte{'L', 'O', 'C', 'L'}

// NewSystemClock builds a SystemClock. precision is the measured clock
// tick expressed as log2(seconds); callers that don't know their host's
// actual resolution should pass DefaultPrecision.
func NewSystemClock(precision int8) *SystemClock {
	return &SystemClock{precision: precision}
}

// DefaultPrecision approximates a microsecond-resolution wall clock.
const DefaultPrecision int8 = -20

func (c *SystemClock) Now() ntptime.Timestamp { return ntptime.Now(time.Now()) }
func (c *SystemClock) Stratum() uint8         { return 16 }
func (c *SystemClock) ReferenceID() [4]byte   { return refIDLocal }
func (c *SystemClock) Precision() int8        { return c.precision }

// RootDispersion is fixed at a conservative 1s for an unsynchronized
// clock.
func (c *SystemClock) RootDispersion() ntptime.Short { return ntptime.ShortFromDuration(time.Second) }
func (c *SystemClock) RootDelay() ntptime.Short      { return 0 }

// ReferenceTimestamp for an unsynchronized clock is simply "now": there is
// no meaningful "last corrected" instant to report.
func (c *SystemClock) ReferenceTimestamp() ntptime.Timestamp { return c.Now() }
