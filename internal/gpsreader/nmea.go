package gpsreader

import (
	"strconv"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"

	"github.com/le-stef/pendulum/internal/ntperrors"
)

// verifyChecksum re-derives the NMEA checksum independently of the
// go-nmea parser: XOR of every byte strictly between '$' and '*',
// compared case-insensitively against the two-hex-digit suffix. The
// parser library performs its own check internally, but the
// NmeaChecksumMismatch counter needs to fire before we even attempt a
// structured decode, against the exact bytes on the wire.
func verifyChecksum(line string) bool {
	if len(line) < 4 || line[0] != '$' {
		return false
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 > len(line) {
		return false
	}
	var sum byte
	for i := 1; i < star; i++ {
		sum ^= line[i]
	}
	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return false
	}
	return sum == byte(want)
}

// decodedSentence is what processLine reports back to the read loop
// so it can bump the right Stats counter and update State.
type decodedSentence struct {
	kind string // "RMC", "GGA", "other"
}

// processLine validates checksum, parses the sentence, and applies any
// resulting GpsState update. receivedAt is the host-monotonic arrival
// instant of this line.
func (r *Reader) processLine(line string, receivedAt time.Time) (decodedSentence, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || line[0] != '$' {
		return decodedSentence{}, ntperrors.ErrNmeaParseFailed
	}
	if !verifyChecksum(line) {
		return decodedSentence{}, ntperrors.ErrNmeaChecksumMismatch
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return decodedSentence{}, ntperrors.ErrNmeaParseFailed
	}

	switch s := sentence.(type) {
	case nmea.RMC:
		if s.Validity != "A" {
			return decodedSentence{kind: "RMC"}, nil
		}
		utc, ok := rmcToUTC(s)
		if !ok {
			return decodedSentence{kind: "RMC"}, nil
		}
		r.state.UpdateTime(utc, receivedAt)
		return decodedSentence{kind: "RMC"}, nil
	case nmea.GGA:
		quality := ggaFixQuality(s.FixQuality)
		r.state.UpdateFix(quality, uint8(s.NumSatellites))
		return decodedSentence{kind: "GGA"}, nil
	default:
		return decodedSentence{kind: "other"}, nil
	}
}

// rmcToUTC composes a UTC instant from RMC's time-of-day and date fields.
func rmcToUTC(s nmea.RMC) (time.Time, bool) {
	if !s.Time.Valid || !s.Date.Valid {
		return time.Time{}, false
	}
	year := 2000 + s.Date.YY
	return time.Date(
		year, time.Month(s.Date.MM), s.Date.DD,
		s.Time.Hour, s.Time.Minute, s.Time.Second,
		s.Time.Millisecond*int(time.Millisecond),
		time.UTC,
	), true
}

// ggaFixQuality maps go-nmea's GGA fix-quality constants onto our
// FixQuality enum. Anything go-nmea doesn't resolve to one of its own
// named constants reports as invalid rather than guessing.
func ggaFixQuality(q nmea.GPSQualityType) FixQuality {
	switch q {
	case nmea.GPS:
		return FixGPS
	case nmea.DGPS:
		return FixDGPS
	case nmea.PPS:
		return FixPPS
	case nmea.RTK:
		return FixRTK
	case nmea.FRTK:
		return FixFloatRTK
	case nmea.Manual:
		return FixManual
	default:
		return FixInvalid
	}
}
