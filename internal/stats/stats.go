// Package stats holds Pendulum's process-wide counters and gauges: a
// lock-free core for the hot path (Server, GpsReader), snapshot-able by
// copy for the metrics/web layer.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a shared container of monotonic counters plus a small
// lock-protected struct for the strings/gauges that change less often.
// Writers perform atomic increments; readers take a Snapshot by copy.
type Stats struct {
	requestsReceived   uint64
	requestsAnswered   uint64
	requestsRejected   uint64
	errors             uint64
	ppsPulses          uint64
	gpsSentencesParsed uint64
	nmeaChecksumErrors uint64
	nmeaParseErrors    uint64

	startedAt int64 // unix seconds, set once at New()
	clock     clockGauges
}

type clockGauges struct {
	mu         sync.Mutex
	stratum    uint8
	refID      [4]byte
	connected  bool
	satellites uint8
}

// Snapshot is a point-in-time, copyable view of Stats for dashboards and
// the Prometheus exporter.
type Snapshot struct {
	RequestsReceived   uint64
	RequestsAnswered   uint64
	RequestsRejected   uint64
	Errors             uint64
	PPSPulses          uint64
	GPSSentencesParsed uint64
	NmeaChecksumErrors uint64
	NmeaParseErrors    uint64
	UptimeSeconds      uint64

	Stratum    uint8
	RefID      string
	Connected  bool
	Satellites uint8
}

// New returns a Stats instance with its uptime clock started now.
func New() *Stats {
	return &Stats{startedAt: time.Now().Unix()}
}

func (s *Stats) IncRequestsReceived() { atomic.AddUint64(&s.requestsReceived, 1) }
func (s *Stats) IncRequestsAnswered() { atomic.AddUint64(&s.requestsAnswered, 1) }
func (s *Stats) IncRequestsRejected() { atomic.AddUint64(&s.requestsRejected, 1) }
func (s *Stats) IncErrors()           { atomic.AddUint64(&s.errors, 1) }
func (s *Stats) IncPPSPulses()        { atomic.AddUint64(&s.ppsPulses, 1) }
func (s *Stats) IncGPSSentencesParsed() { atomic.AddUint64(&s.gpsSentencesParsed, 1) }
func (s *Stats) IncNmeaChecksumErrors() { atomic.AddUint64(&s.nmeaChecksumErrors, 1) }
func (s *Stats) IncNmeaParseErrors()    { atomic.AddUint64(&s.nmeaParseErrors, 1) }

// SetClockInfo updates the small string/gauge set describing the current
// clock source. Held behind a short critical section, never across I/O.
func (s *Stats) SetClockInfo(stratum uint8, refID [4]byte, connected bool, satellites uint8) {
	s.clock.mu.Lock()
	s.clock.stratum = stratum
	s.clock.refID = refID
	s.clock.connected = connected
	s.clock.satellites = satellites
	s.clock.mu.Unlock()
}

// Snapshot copies out the current counters and gauges.
func (s *Stats) Snapshot() Snapshot {
	s.clock.mu.Lock()
	stratum := s.clock.stratum
	refID := s.clock.refID
	connected := s.clock.connected
	satellites := s.clock.satellites
	s.clock.mu.Unlock()

	return Snapshot{
		RequestsReceived:   atomic.LoadUint64(&s.requestsReceived),
		RequestsAnswered:   atomic.LoadUint64(&s.requestsAnswered),
		RequestsRejected:   atomic.LoadUint64(&s.requestsRejected),
		Errors:             atomic.LoadUint64(&s.errors),
		PPSPulses:          atomic.LoadUint64(&s.ppsPulses),
		GPSSentencesParsed: atomic.LoadUint64(&s.gpsSentencesParsed),
		NmeaChecksumErrors: atomic.LoadUint64(&s.nmeaChecksumErrors),
		NmeaParseErrors:    atomic.LoadUint64(&s.nmeaParseErrors),
		UptimeSeconds:      uint64(time.Now().Unix() - s.startedAt),
		Stratum:            stratum,
		RefID:              refIDString(refID),
		Connected:          connected,
		Satellites:         satellites,
	}
}

func refIDString(id [4]byte) string {
	n := 0
	for n < len(id) && id[n] != 0 {
		n++
	}
	return string(id[:n])
}
