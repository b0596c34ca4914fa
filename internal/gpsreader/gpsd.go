package gpsreader

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stratoberry/go-gpsd"

	"github.com/le-stef/pendulum/internal/stats"
)

// GpsdConfig mirrors clock.gps.gpsd_host / clock.gps.gpsd_port from the
// configuration file, used when clock.gps.mode = "gpsd".
type GpsdConfig struct {
	Host string
	Port string
}

// GpsdReader is the alternate ingestion path: instead of owning a serial
// port directly, it subscribes to a running gpsd daemon and folds its TPV
// (time/position) and SKY (satellite count) reports into the same shared
// State a serial Reader would write. It never observes PPS edges itself —
// gpsd's own PPS class is not wired up here, so GpsClock's PPS correction
// stays disabled on this path.
type GpsdReader struct {
	cfg   GpsdConfig
	state *State
	stats *stats.Stats
	log   *logrus.Entry
}

// NewGpsdReader builds a GpsdReader over the given shared state.
func NewGpsdReader(cfg GpsdConfig, state *State, st *stats.Stats, log *logrus.Entry) *GpsdReader {
	return &GpsdReader{cfg: cfg, state: state, stats: st, log: log}
}

// State returns the reader's shared GpsState, for wiring into GpsClock.
func (r *GpsdReader) State() *State { return r.state }

// Run connects to gpsd and processes reports until ctx is canceled. A
// failed dial is retried with the same backoff schedule a serial Reader
// uses. Once connected, Run does not detect a dropped gpsd connection: it
// keeps that session until ctx is canceled and does not redial.
func (r *GpsdReader) Run(ctx context.Context) {
	consecutiveFailures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		session, err := gpsd.Dial(r.cfg.Host + ":" + r.cfg.Port)
		if err != nil {
			r.state.SetConnected(false)
			delay := backoffDelay(consecutiveFailures)
			r.log.WithFields(logrus.Fields{
				"event":   "gpsd_dial_failed",
				"host":    r.cfg.Host,
				"port":    r.cfg.Port,
				"backoff": delay,
			}).Error(err)
			consecutiveFailures++
			if !sleepOrDone(ctx, delay) {
				return
			}
			continue
		}

		r.log.WithField("event", "gpsd_connected").Info("connected to gpsd")
		r.state.SetConnected(true)
		consecutiveFailures = 0

		session.AddFilter("TPV", r.onTPV)
		session.AddFilter("SKY", r.onSKY)
		session.Watch()

		<-ctx.Done()
		session.Close()
		r.state.SetConnected(false)
		return
	}
}

func (r *GpsdReader) onTPV(report interface{}) {
	tpv, ok := report.(*gpsd.TPVReport)
	if !ok {
		return
	}
	if tpv.Mode < gpsd.Mode2D {
		return
	}
	receivedAt := time.Now()
	r.state.UpdateTime(tpv.Time, receivedAt)
	r.stats.IncGPSSentencesParsed()
}

func (r *GpsdReader) onSKY(report interface{}) {
	sky, ok := report.(*gpsd.SKYReport)
	if !ok {
		return
	}
	used := 0
	for _, sat := range sky.Satellites {
		if sat.Used {
			used++
		}
	}
	quality := FixGPS
	if used == 0 {
		quality = FixInvalid
	}
	r.state.UpdateFix(quality, uint8(used))
}
