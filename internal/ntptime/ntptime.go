// Package ntptime implements the NTP era-0 64-bit timestamp and the
// 32-bit "short" format used for root delay/dispersion, per RFC 5905 §6.
package ntptime

import "time"

// EpochOffset is the number of seconds between the NTP epoch
// (1900-01-01 00:00:00 UTC) and the Unix epoch.
const EpochOffset = 2208988800

// Timestamp is a 64-bit NTP era-0 timestamp: upper 32 bits are seconds
// since the NTP epoch, lower 32 bits are a binary fraction of a second
// with resolution 2^-32s (~233ps). The layout matches the wire
// representation exactly; Now wraps the seconds half modulo 2^32 (era 0).
type Timestamp uint64

// Seconds returns the whole-seconds component.
func (t Timestamp) Seconds() uint32 { return uint32(t >> 32) }

// Fraction returns the fractional-second component.
func (t Timestamp) Fraction() uint32 { return uint32(t) }

// FromParts builds a Timestamp from its wire components.
func FromParts(seconds, fraction uint32) Timestamp {
	return Timestamp(uint64(seconds)<<32 | uint64(fraction))
}

// Short is the 16.16 fixed-point format used for RootDelay/RootDispersion.
type Short uint32

// Now converts a wall-clock time.Time to an NTP Timestamp.
func Now(t time.Time) Timestamp {
	secs := uint32(t.Unix() + EpochOffset)
	frac := uint32((int64(t.Nanosecond()) << 32) / time.Second.Nanoseconds())
	return FromParts(secs, frac)
}

// Time converts an NTP Timestamp back to a wall-clock time.Time (UTC).
func (t Timestamp) Time() time.Time {
	secs := int64(t.Seconds()) - EpochOffset
	nanos := (int64(t.Fraction()) * time.Second.Nanoseconds()) >> 32
	return time.Unix(secs, nanos).UTC()
}

// ShortFromDuration converts a duration to NTP short format, clamping to
// the representable range rather than overflowing silently.
func ShortFromDuration(d time.Duration) Short {
	secs := d.Seconds()
	if secs < 0 {
		secs = 0
	}
	if secs > 65535 {
		secs = 65535
	}
	return Short(uint32(secs * 65536))
}

// Duration converts an NTP short-format value back to a time.Duration.
func (s Short) Duration() time.Duration {
	return time.Duration(float64(s) / 65536 * float64(time.Second))
}
