// Package ntperrors enumerates the error taxonomy used across Pendulum's
// wire, security and GPS-ingestion paths so callers can classify a failure
// with errors.Is instead of string matching.
package ntperrors

import "errors"

// Wire errors: malformed or out-of-policy NTP requests. Always silent at
// the wire — counted, never answered.
var (
	ErrTooShort            = errors.New("ntp: packet shorter than 48 bytes")
	ErrOversized           = errors.New("ntp: packet exceeds 1024 bytes")
	ErrUnsupportedVersion  = errors.New("ntp: unsupported version")
	ErrBadMode             = errors.New("ntp: unsupported mode")
)

// Security rejections: peer filtered before decode.
var (
	ErrNotWhitelisted = errors.New("security: peer not in whitelist")
	ErrBlacklisted    = errors.New("security: peer is blacklisted")
	ErrRateLimited    = errors.New("security: peer exceeded rate limit")
)

// GPS errors: recoverable via reconnect or the next sentence.
var (
	ErrSerialOpenFailed      = errors.New("gps: failed to open serial port")
	ErrSerialReadFailed      = errors.New("gps: serial read failed")
	ErrNmeaChecksumMismatch  = errors.New("gps: nmea checksum mismatch")
	ErrNmeaParseFailed       = errors.New("gps: nmea sentence parse failed")
)

// Fatal-at-init errors: abort startup, never occur in steady state.
var (
	ErrBindFailed    = errors.New("server: failed to bind udp socket")
	ErrConfigInvalid = errors.New("config: invalid configuration")
)
