// Package metrics exposes Stats and GpsState as Prometheus gauges/counters
// over HTTP.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/le-stef/pendulum/internal/stats"
)

// Registry wires a Stats instance into a set of Prometheus collectors and
// serves them on an HTTP endpoint.
type Registry struct {
	stats *stats.Stats
	log   *logrus.Entry
	reg   *prometheus.Registry

	requestsReceived   prometheus.Gauge
	requestsAnswered   prometheus.Gauge
	requestsRejected   prometheus.Gauge
	errors             prometheus.Gauge
	ppsPulses          prometheus.Gauge
	gpsSentencesParsed prometheus.Gauge
	nmeaChecksumErrors prometheus.Gauge
	nmeaParseErrors    prometheus.Gauge
	uptimeSeconds      prometheus.Gauge
	stratum            prometheus.Gauge
	connected          prometheus.Gauge
	satellites         prometheus.Gauge
}

// New registers Pendulum's collectors against a Registry private to this
// instance, so multiple Registries (as in tests) never collide over the
// global default registerer.
func New(st *stats.Stats, log *logrus.Entry) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		stats: st,
		log:   log,
		reg:   reg,

		requestsReceived: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_requests_received_total", Help: "NTP requests received.",
		}),
		requestsAnswered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_requests_answered_total", Help: "NTP requests answered.",
		}),
		requestsRejected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_requests_rejected_total", Help: "NTP requests rejected by the security filter.",
		}),
		errors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_errors_total", Help: "Requests dropped for decode/validation errors.",
		}),
		ppsPulses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_pps_pulses_total", Help: "PPS edges observed on CTS.",
		}),
		gpsSentencesParsed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_gps_sentences_parsed_total", Help: "NMEA sentences successfully parsed.",
		}),
		nmeaChecksumErrors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_nmea_checksum_errors_total", Help: "NMEA sentences rejected for checksum mismatch.",
		}),
		nmeaParseErrors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_nmea_parse_errors_total", Help: "NMEA sentences rejected for parse failure.",
		}),
		uptimeSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_uptime_seconds", Help: "Seconds since process start.",
		}),
		stratum: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_stratum", Help: "Currently advertised stratum.",
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_gps_connected", Help: "1 if the GPS source is connected, else 0.",
		}),
		satellites: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pendulum_satellites_in_use", Help: "Satellites in use per the last GGA sentence.",
		}),
	}
}

// collect refreshes every gauge from a fresh Stats snapshot. Prometheus
// client_golang gauges have no bulk-set API, so each field is an explicit
// Set call rather than a reflective walk.
func (r *Registry) collect() {
	snap := r.stats.Snapshot()
	r.requestsReceived.Set(float64(snap.RequestsReceived))
	r.requestsAnswered.Set(float64(snap.RequestsAnswered))
	r.requestsRejected.Set(float64(snap.RequestsRejected))
	r.errors.Set(float64(snap.Errors))
	r.ppsPulses.Set(float64(snap.PPSPulses))
	r.gpsSentencesParsed.Set(float64(snap.GPSSentencesParsed))
	r.nmeaChecksumErrors.Set(float64(snap.NmeaChecksumErrors))
	r.nmeaParseErrors.Set(float64(snap.NmeaParseErrors))
	r.uptimeSeconds.Set(float64(snap.UptimeSeconds))
	r.stratum.Set(float64(snap.Stratum))
	r.satellites.Set(float64(snap.Satellites))
	if snap.Connected {
		r.connected.Set(1)
	} else {
		r.connected.Set(0)
	}
}

// collectingHandler refreshes the gauges on every scrape so metrics never
// lag more than one request behind Stats.
func (r *Registry) collectingHandler() http.Handler {
	next := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.collect()
		next.ServeHTTP(w, req)
	})
}

// Serve runs an HTTP server exposing /metrics on addr until ctx is
// canceled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.collectingHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	r.log.WithField("event", "metrics_listening").WithField("addr", addr).Info("metrics endpoint listening")

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
