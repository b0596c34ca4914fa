// Command pendulumd runs Pendulum, a Stratum-1 NTPv4 server deriving time
// from a serially-attached GNSS receiver, optionally refined by PPS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/le-stef/pendulum/internal/clock"
	"github.com/le-stef/pendulum/internal/config"
	"github.com/le-stef/pendulum/internal/gpsreader"
	"github.com/le-stef/pendulum/internal/metrics"
	"github.com/le-stef/pendulum/internal/server"
	"github.com/le-stef/pendulum/internal/stats"
	"github.com/le-stef/pendulum/internal/version"
)

var cfgFile string
var traceFirstN int

var rootCmd = &cobra.Command{
	Use:   "pendulumd",
	Short: "Stratum-1 NTPv4 server backed by a GNSS receiver",
	Long: `pendulumd derives time from a serially-attached GNSS receiver, optionally
refined by a PPS hardware edge, and serves NTPv4 on UDP/123.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfgFile, traceFirstN)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the NTP server (same as bare invocation)",
	Long: `serve is equivalent to running pendulumd with no subcommand; it exists
so --trace-first-n reads naturally on the command line during field
commissioning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfgFile, traceFirstN)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration file helpers",
}

var configInitPath string

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(configInitPath); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
		fmt.Printf("wrote default configuration to %s\n", configInitPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches ./pendulum.toml, /etc/pendulum/pendulum.toml)")
	rootCmd.PersistentFlags().IntVar(&traceFirstN, "trace-first-n", 0, "log decoded fields of the first N inbound/outbound packets at debug level")
	configInitCmd.Flags().StringVarP(&configInitPath, "output", "o", "pendulum.toml", "path to write the default configuration")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(versionCmd, configCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// publishClockInfo periodically copies Clock/GpsReader state into Stats so
// the metrics exporter and dashboards see something other than zero values.
func publishClockInfo(ctx context.Context, c clock.Clock, state *gpsreader.State, st *stats.Stats) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var connected bool
			var satellites uint8
			if state != nil {
				snap := state.Snapshot()
				connected = snap.Connected
				satellites = snap.SatellitesInUse
			}
			st.SetClockInfo(c.Stratum(), c.ReferenceID(), connected, satellites)
		}
	}
}

// run wires Clock -> GpsReader -> Server -> Stats -> metrics exporter and
// blocks until a shutdown signal arrives. traceFirstN, when positive, logs
// the decoded fields of the first N inbound/outbound packets at debug
// level, for field commissioning.
func run(cfgPath string, traceFirstN int) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.Logging)
	entry := log.WithField("component", "pendulumd")

	st := stats.New()

	var c clock.Clock
	var gpsRun func(ctx context.Context)
	var gpsState *gpsreader.State

	if cfg.Clock.Source == "gps" {
		gpsState = gpsreader.NewState()
		switch cfg.Clock.GPS.Mode {
		case "gpsd":
			reader := gpsreader.NewGpsdReader(gpsreader.GpsdConfig{
				Host: cfg.Clock.GPS.GPSDHost,
				Port: cfg.Clock.GPS.GPSDPort,
			}, gpsState, st, entry.WithField("component", "gpsreader"))
			gpsRun = reader.Run
		default:
			reader := gpsreader.New(gpsreader.Config{
				SerialPort: cfg.Clock.GPS.SerialPort,
				BaudRate:   cfg.Clock.GPS.BaudRate,
				PPSEnabled: cfg.Clock.GPS.PPSEnabled,
			}, gpsState, st, entry.WithField("component", "gpsreader"))
			gpsRun = reader.Run
		}
		c = clock.NewGpsClock(gpsState, clock.Config{
			SyncTimeout:   cfg.Clock.GPS.SyncTimeout,
			MinSatellites: cfg.Clock.GPS.MinSatellites,
			PPSEnabled:    cfg.Clock.GPS.PPSEnabled,
		}, entry.WithField("component", "clock"))
	} else {
		c = clock.NewSystemClock(cfg.Server.Precision)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("shutdown signal received")
		cancel()
	}()

	if gpsRun != nil {
		go gpsRun(ctx)
	}

	go publishClockInfo(ctx, c, gpsState, st)

	if cfg.Metrics.Enabled {
		reg := metrics.New(st, entry.WithField("component", "metrics"))
		go func() {
			if err := reg.Serve(ctx, cfg.Metrics.Address); err != nil {
				entry.WithField("event", "metrics_failed").Error(err)
			}
		}()
	}

	srv := server.New(server.Config{
		BindAddress: cfg.Server.BindAddress,
		MinPoll:     cfg.Server.PollInterval,
		Workers:     cfg.Server.Workers,
		Security: server.SecurityConfig{
			EnableRateLimiting:   cfg.Security.EnableRateLimiting,
			MaxRequestsPerSecond: cfg.Security.MaxRequestsPerSecond,
			IPWhitelist:          cfg.Security.IPWhitelist,
			IPBlacklist:          cfg.Security.IPBlacklist,
		},
		TraceFirstN: traceFirstN,
	}, c, st, entry.WithField("component", "server"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		// Best-effort grace window for inflight requests.
		select {
		case <-errCh:
		case <-time.After(time.Second):
		}
		return nil
	case err := <-errCh:
		return err
	}
}
