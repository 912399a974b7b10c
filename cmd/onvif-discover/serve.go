package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/onvif-discover/internal/config"
	"github.com/muurk/onvif-discover/internal/logging"
	"github.com/muurk/onvif-discover/internal/server"
	"go.uber.org/zap"
)

// Serve command flags
var (
	serveListen    string
	serveInterval  int
	serveAdvertise bool
	serveInstance  string
	serveCert      string
	serveKey       string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", config.DefaultListen, "HTTP listen address")
	f.IntVar(&serveInterval, "interval", config.DefaultServeIntervalMS, "Milliseconds between periodic runs (0 disables)")
	f.BoolVar(&serveAdvertise, "advertise", false, "Announce the server over mDNS")
	f.StringVar(&serveInstance, "instance", config.DefaultInstance, "mDNS instance name")
	f.StringVar(&serveCert, "cert", "", "TLS certificate file (serves HTTPS together with --key)")
	f.StringVar(&serveKey, "key", "", "TLS private key file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run discovery periodically and stream events",
	Long: `Start an HTTP server that runs discovery on an interval and streams every
run's events to WebSocket clients.

Endpoints:
  GET  /ws             event feed (started, host, all-devices, finished)
  GET  /api/devices    result of the last completed run
  POST /api/discover   start a run now and return its result
  GET  /api/modes      supported dialects
  GET  /metrics        Prometheus metrics
  GET  /healthz        liveness

Discovery settings (mode, timeout, destinations) come from the configuration
file and environment, as for 'scan'.`,
	Example: `  # Serve on :8080, scanning every 30 seconds
  onvif-discover serve

  # HikVision devices every 10 seconds, announced over mDNS
  ONVIF_DISCOVER_MODE=hikvision onvif-discover serve --interval 10000 --advertise

  # Serve HTTPS
  onvif-discover serve --listen :8443 --cert cert.pem --key key.pem`,
	RunE: runServe,
}

// applyServeFlags overrides configuration values with flags the user set
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.Serve.Listen = serveListen
	}
	if f.Changed("interval") {
		cfg.Serve.IntervalMS = serveInterval
	}
	if f.Changed("advertise") {
		cfg.Serve.Advertise = serveAdvertise
	}
	if f.Changed("instance") {
		cfg.Serve.Instance = serveInstance
	}
	if f.Changed("cert") {
		cfg.Serve.TLSCert = serveCert
	}
	if f.Changed("key") {
		cfg.Serve.TLSKey = serveKey
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	// Fail on a bad discovery configuration before binding anything.
	if _, err := cfg.Builder(); err != nil {
		return err
	}

	srv, err := server.New(&server.Config{
		Listen:     cfg.Serve.Listen,
		Interval:   cfg.ServeInterval(),
		Advertise:  cfg.Serve.Advertise,
		Instance:   cfg.Serve.Instance,
		CertPath:   cfg.Serve.TLSCert,
		KeyPath:    cfg.Serve.TLSKey,
		NewBuilder: cfg.Builder,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Listen(); err != nil {
		return err
	}

	scheme := "http"
	if cfg.Serve.TLSCert != "" {
		scheme = "https"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s discovery on %s://%s (interval %s)\n",
		cfg.Mode, scheme, srv.Addr(), cfg.ServeInterval().Round(time.Millisecond))
	logging.Info("Configuration loaded", zap.String("source", cfg.Source), zap.String("mode", cfg.Mode))

	return srv.Start(cmd.Context())
}
