package clock

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/le-stef/pendulum/internal/gpsreader"
	"github.com/le-stef/pendulum/internal/ntptime"
)

// refIDGPS is the ASCII reference id for a directly-attached GNSS
// reference clock (stratum 1).
var refIDGPS = [4]byte{'G', 'P', 'S', 0}

// precisionPPS / precisionNMEAOnly are the log2(seconds) precision values
// reported depending on whether the PPS edge correction is in play.
const (
	precisionPPS      int8 = -20
	precisionNMEAOnly int8 = -10
)

// ppsValidWindow bounds how recent a PPS edge must be to be trusted for
// sub-second correction.
const ppsValidWindow = 1500 * time.Millisecond

// GpsClock wraps a shared gpsreader.State and a SystemClock fallback. It
// reports stratum 1 / "GPS\0" while the GPS reading is fresh and the
// satellite count clears the configured threshold, and falls back to the
// wrapped SystemClock (stratum 16 / "LOCL") otherwise. The fallback is
// composition, not inheritance: GpsClock never claims to be a
// SystemClock, it simply delegates to one.
type GpsClock struct {
	state         *gpsreader.State
	fallback      *SystemClock
	syncTimeout   time.Duration
	minSatellites uint8
	ppsEnabled    bool
	log           *logrus.Entry

	mu     sync.Mutex
	synced bool // last reported sync state, for edge-triggered transition logging
}

// Config bundles GpsClock's tunables, mirroring clock.gps.* in the
// configuration file.
type Config struct {
	SyncTimeout   time.Duration
	MinSatellites uint8
	PPSEnabled    bool
}

// NewGpsClock builds a GpsClock over the given shared state.
func NewGpsClock(state *gpsreader.State, cfg Config, log *logrus.Entry) *GpsClock {
	return &GpsClock{
		state:         state,
		fallback:      NewSystemClock(DefaultPrecision),
		syncTimeout:   cfg.SyncTimeout,
		minSatellites: cfg.MinSatellites,
		ppsEnabled:    cfg.PPSEnabled,
		log:           log,
	}
}

// isFresh evaluates the freshness gate: a fresh NMEA reading with enough
// satellites in view.
func (c *GpsClock) isFresh(snap gpsreader.Snapshot, nowMono time.Time) bool {
	return snap.Fresh(nowMono, c.syncTimeout) && snap.SatellitesInUse >= c.minSatellites
}

// noteTransition logs the fresh/stale transition exactly once, on edge.
func (c *GpsClock) noteTransition(fresh bool) {
	c.mu.Lock()
	changed := fresh != c.synced
	c.synced = fresh
	c.mu.Unlock()
	if !changed || c.log == nil {
		return
	}
	if fresh {
		c.log.WithField("event", "sync_acquired").Info("GPS reference acquired, reporting stratum 1")
	} else {
		c.log.WithField("event", "sync_lost").Warn("GPS reference lost, falling back to system clock")
	}
}

func (c *GpsClock) Stratum() uint8 {
	nowMono := time.Now()
	snap := c.state.Snapshot()
	if c.isFresh(snap, nowMono) {
		return 1
	}
	return c.fallback.Stratum()
}

func (c *GpsClock) ReferenceID() [4]byte {
	nowMono := time.Now()
	snap := c.state.Snapshot()
	if c.isFresh(snap, nowMono) {
		return refIDGPS
	}
	return c.fallback.ReferenceID()
}

func (c *GpsClock) Precision() int8 {
	nowMono := time.Now()
	snap := c.state.Snapshot()
	if !c.isFresh(snap, nowMono) {
		return c.fallback.Precision()
	}
	if c.ppsEnabled && snap.PPSRecent(nowMono, ppsValidWindow) {
		return precisionPPS
	}
	return precisionNMEAOnly
}

func (c *GpsClock) RootDelay() ntptime.Short { return 0 }

func (c *GpsClock) RootDispersion() ntptime.Short {
	nowMono := time.Now()
	snap := c.state.Snapshot()
	if !c.isFresh(snap, nowMono) {
		return c.fallback.RootDispersion()
	}
	if c.ppsEnabled && snap.PPSRecent(nowMono, ppsValidWindow) {
		return ntptime.ShortFromDuration(time.Microsecond)
	}
	return ntptime.ShortFromDuration(10 * time.Millisecond)
}

func (c *GpsClock) ReferenceTimestamp() ntptime.Timestamp {
	nowMono := time.Now()
	snap := c.state.Snapshot()
	if !c.isFresh(snap, nowMono) {
		return c.fallback.ReferenceTimestamp()
	}
	return ntptime.Now(snap.LastNMEAReceivedAt)
}

// Now reconstructs wall-clock time from the last NMEA fix, extrapolated
// by the host-monotonic delta since it arrived, and — when a recent PPS
// edge is available — a snap-to-zero correction on the sub-second
// fraction.
func (c *GpsClock) Now() ntptime.Timestamp {
	nowMono := time.Now()
	snap := c.state.Snapshot()

	fresh := c.isFresh(snap, nowMono)
	c.noteTransition(fresh)
	if !fresh {
		return c.fallback.Now()
	}

	gpsWall := snap.LastNMEATime.Add(nowMono.Sub(snap.LastNMEAReceivedAt))

	if c.ppsEnabled && snap.PPSRecent(nowMono, ppsValidWindow) {
		// Snap the sub-second fraction to zero at the PPS edge and
		// extrapolate forward using the host-monotonic delta since then.
		sinceEdge := nowMono.Sub(snap.LastPPSAt)
		atEdge := gpsWall.Add(-sinceEdge)
		secondBoundary := time.Date(
			atEdge.Year(), atEdge.Month(), atEdge.Day(),
			atEdge.Hour(), atEdge.Minute(), atEdge.Second(),
			0, atEdge.Location(),
		)
		gpsWall = secondBoundary.Add(sinceEdge)
	}

	return ntptime.Now(gpsWall)
}
