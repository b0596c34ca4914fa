// Package ntppacket implements the bit-exact RFC 5905 NTPv4 48-byte
// header codec and request validation.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|LI | VN  |Mode |    Stratum    |     Poll      |   Precision   |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                          Root Delay                          |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                        Root Dispersion                       |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                          Reference ID                        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                                                               |
//	+                     Reference Timestamp (64)                  +
//	|                                                               |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                                                               |
//	+                      Origin Timestamp (64)                    +
//	|                                                               |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                                                               |
//	+                      Receive Timestamp (64)                   +
//	|                                                               |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                                                               |
//	+                      Transmit Timestamp (64)                  +
//	|                                                               |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
package ntppacket

import (
	"encoding/binary"
	"fmt"

	"github.com/le-stef/pendulum/internal/ntperrors"
	"github.com/le-stef/pendulum/internal/ntptime"
)

// Size is the length in bytes of the fixed NTPv4 header.
const Size = 48

// MaxSize bounds the total packet length, header plus any trailing bytes
// (extensions/MAC), that Decode will accept; a defense against
// amplification via oversized payloads.
const MaxSize = 1024

// Leap indicator values.
const (
	LeapNone         uint8 = 0
	LeapInsertSecond uint8 = 1
	LeapDeleteSecond uint8 = 2
	LeapUnsync       uint8 = 3
)

// Mode values.
const (
	ModeReserved         uint8 = 0
	ModeSymmetricActive  uint8 = 1
	ModeSymmetricPassive uint8 = 2
	ModeClient           uint8 = 3
	ModeServer           uint8 = 4
	ModeBroadcast        uint8 = 5
	ModeControl          uint8 = 6
	ModePrivate          uint8 = 7
)

// Packet is the decoded 48-byte NTPv4 header. Extension fields and MACs
// are neither represented nor emitted.
type Packet struct {
	LI              uint8
	VN              uint8
	Mode            uint8
	Stratum         uint8
	Poll            int8
	Precision       int8
	RootDelay       ntptime.Short
	RootDispersion  ntptime.Short
	ReferenceID     [4]byte
	ReferenceTS     ntptime.Timestamp
	OriginateTS     ntptime.Timestamp
	ReceiveTS       ntptime.Timestamp
	TransmitTS      ntptime.Timestamp
}

// Encode serializes p into exactly Size bytes, network byte order.
func (p *Packet) Encode() []byte {
	buf := make([]byte, Size)
	buf[0] = (p.LI << 6) | (p.VN << 3) | p.Mode
	buf[1] = p.Stratum
	buf[2] = byte(p.Poll)
	buf[3] = byte(p.Precision)
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.RootDelay))
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.RootDispersion))
	copy(buf[12:16], p.ReferenceID[:])
	binary.BigEndian.PutUint64(buf[16:24], uint64(p.ReferenceTS))
	binary.BigEndian.PutUint64(buf[24:32], uint64(p.OriginateTS))
	binary.BigEndian.PutUint64(buf[32:40], uint64(p.ReceiveTS))
	binary.BigEndian.PutUint64(buf[40:48], uint64(p.TransmitTS))
	return buf
}

// Decode parses buf into a Packet. Trailing bytes (extensions/MAC) are
// ignored up to MaxSize; buf longer than that is rejected outright as a
// pre-amplification guard.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ntperrors.ErrOversized, len(buf))
	}
	if len(buf) < Size {
		return nil, fmt.Errorf("%w: %d bytes", ntperrors.ErrTooShort, len(buf))
	}

	p := &Packet{}
	p.LI = buf[0] >> 6
	p.VN = (buf[0] >> 3) & 0x07
	p.Mode = buf[0] & 0x07
	p.Stratum = buf[1]
	p.Poll = int8(buf[2])
	p.Precision = int8(buf[3])
	p.RootDelay = ntptime.Short(binary.BigEndian.Uint32(buf[4:8]))
	p.RootDispersion = ntptime.Short(binary.BigEndian.Uint32(buf[8:12]))
	copy(p.ReferenceID[:], buf[12:16])
	p.ReferenceTS = ntptime.Timestamp(binary.BigEndian.Uint64(buf[16:24]))
	p.OriginateTS = ntptime.Timestamp(binary.BigEndian.Uint64(buf[24:32]))
	p.ReceiveTS = ntptime.Timestamp(binary.BigEndian.Uint64(buf[32:40]))
	p.TransmitTS = ntptime.Timestamp(binary.BigEndian.Uint64(buf[40:48]))
	return p, nil
}

// Validate checks that p is an acceptable client request: only version
// 3/4 and mode 3 are served; it does not inspect timestamps.
func Validate(p *Packet) error {
	if p.VN != 3 && p.VN != 4 {
		return fmt.Errorf("%w: vn=%d", ntperrors.ErrUnsupportedVersion, p.VN)
	}
	if p.Mode != ModeClient {
		return fmt.Errorf("%w: mode=%d", ntperrors.ErrBadMode, p.Mode)
	}
	return nil
}
