// Package gpsreader implements the GPS connection state machine: it
// decodes NMEA sentences off a serial port, observes PPS edges on the
// CTS modem line, and maintains the shared State snapshot GpsClock reads.
// It never shares its goroutine with the NTP server loop, so a blocking
// serial read can never delay a UDP reply.
package gpsreader

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/le-stef/pendulum/internal/ntperrors"
	"github.com/le-stef/pendulum/internal/stats"
)

// pollInterval is the serial read timeout. Short enough that polling
// GetModemStatusBits between reads resolves sub-100ms PPS pulses at a
// comfortable multiple of a 1kHz polling cadence.
const pollInterval = time.Millisecond

// Config mirrors clock.gps.* from the configuration file.
type Config struct {
	SerialPort string
	BaudRate   int
	PPSEnabled bool
}

// Reader owns the serial handle exclusively and is the sole writer to
// State. Its Run loop never returns except on context cancellation: I/O
// errors trigger backoff-and-retry, never termination.
type Reader struct {
	cfg   Config
	state *State
	stats *stats.Stats
	log   *logrus.Entry
}

// New builds a Reader over the given shared state.
func New(cfg Config, state *State, st *stats.Stats, log *logrus.Entry) *Reader {
	return &Reader{cfg: cfg, state: state, stats: st, log: log}
}

// State returns the reader's shared GpsState, for wiring into GpsClock.
func (r *Reader) State() *State { return r.state }

// Run drives the Closed -> Open -> Backoff state machine until ctx is
// canceled.
func (r *Reader) Run(ctx context.Context) {
	consecutiveFailures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		port, err := r.open()
		if err != nil {
			r.state.SetConnected(false)
			delay := backoffDelay(consecutiveFailures)
			r.log.WithFields(logrus.Fields{
				"event":    "serial_open_failed",
				"port":     r.cfg.SerialPort,
				"attempt":  consecutiveFailures + 1,
				"backoff":  delay,
			}).Error(err)
			consecutiveFailures++
			if !sleepOrDone(ctx, delay) {
				return
			}
			continue
		}

		r.log.WithField("event", "serial_connected").WithField("port", r.cfg.SerialPort).Info("GPS serial port opened")
		r.state.SetConnected(true)
		consecutiveFailures = 0

		err = r.readLoop(ctx, port)
		port.Close()
		r.state.SetConnected(false)

		if ctx.Err() != nil {
			return
		}

		delay := backoffDelay(consecutiveFailures)
		r.log.WithFields(logrus.Fields{
			"event":   "serial_read_failed",
			"backoff": delay,
		}).Warn(err)
		consecutiveFailures++
		if !sleepOrDone(ctx, delay) {
			return
		}
	}
}

func (r *Reader) open() (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: r.cfg.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(r.cfg.SerialPort, mode)
	if err != nil {
		return nil, ntperrors.ErrSerialOpenFailed
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, ntperrors.ErrSerialOpenFailed
	}
	return port, nil
}

// readLoop consumes NMEA lines and, when enabled, polls CTS for PPS
// edges, until a read error occurs or ctx is canceled. Reads use a short
// timeout (pollInterval) so a read that finds no data yet still returns
// control to this loop to check for a PPS edge — go.bug.st/serial
// reports a timed-out read as (0, nil), so we do our own line buffering
// instead of bufio, which would otherwise spin inside its own fill()
// without ever giving us a chance to poll CTS.
func (r *Reader) readLoop(ctx context.Context, port serial.Port) error {
	var lastCTS bool
	var lastPPSLog time.Time
	var line []byte
	chunk := make([]byte, 256)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if r.cfg.PPSEnabled {
			if bits, err := port.GetModemStatusBits(); err == nil {
				if bits.CTS && !lastCTS {
					receivedAt := time.Now()
					count, accepted := r.state.RecordPPSEdge(receivedAt)
					if accepted {
						r.stats.IncPPSPulses()
						interval := time.Duration(0)
						if !lastPPSLog.IsZero() {
							interval = receivedAt.Sub(lastPPSLog)
						}
						lastPPSLog = receivedAt
						r.log.WithFields(logrus.Fields{
							"event":    "pps_edge",
							"count":    count,
							"interval": interval,
						}).Debug("PPS edge detected")
					}
				}
				lastCTS = bits.CTS
			}
		}

		n, err := port.Read(chunk)
		if err != nil {
			return err
		}
		if n == 0 {
			// Read timeout, no data yet.
			continue
		}

		for _, b := range chunk[:n] {
			line = append(line, b)
			if b == '\n' {
				receivedAt := time.Now()
				decoded, perr := r.processLine(string(line), receivedAt)
				line = line[:0]
				if perr != nil {
					switch perr {
					case ntperrors.ErrNmeaChecksumMismatch:
						r.stats.IncNmeaChecksumErrors()
					default:
						r.stats.IncNmeaParseErrors()
					}
					continue
				}
				if decoded.kind != "" {
					r.stats.IncGPSSentencesParsed()
				}
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
