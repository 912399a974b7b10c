// Onvif-discover finds IP cameras and other devices on the local network.
//
// It sends a discovery probe in one of several dialects (ONVIF WS-Discovery,
// HikVision SADP, UPnP SSDP or mDNS) from every local IPv4 interface,
// collects the replies for a fixed window and reports the devices found.
//
// Usage:
//
//	onvif-discover [command] [flags]
//
// See 'onvif-discover --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/onvif-discover/internal/config"
	"github.com/muurk/onvif-discover/internal/logging"
	"github.com/muurk/onvif-discover/internal/version"
)

func main() {
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "onvif-discover",
	Short: "Network camera discovery utility",
	Long: `Discover ONVIF cameras and other network devices on the local network.

A probe is sent from every local IPv4 interface to the dialect's multicast
group (and optionally the directed broadcast address of each subnet or a list
of unicast hosts). Replies are collected until the timeout expires.

Settings are read from the configuration file (see 'onvif-discover config path')
and from ONVIF_DISCOVER_* environment variables. Command-line flags take
precedence over both.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default is the per-user config location)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (off, debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration file and environment, applies the
// global flags and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch versionFormat {
		case "text":
			fmt.Fprintf(cmd.OutOrStdout(), "onvif-discover %s\n", version.Full())
			return nil
		default:
			return encode(cmd.OutOrStdout(), versionFormat, version.Get())
		}
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "Output format (text, json, yaml)")
}
