package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/onvif-discover/internal/addrs"
	"github.com/muurk/onvif-discover/internal/config"
	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/muurk/onvif-discover/internal/ui"
)

// Scan command flags
var (
	scanTimeout    int
	scanMode       string
	scanFormat     string
	scanLive       bool
	scanMulticast  bool
	scanBroadcast  bool
	scanInterfaces []string
	scanUnicast    []string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(interfacesCmd)
	rootCmd.AddCommand(modesCmd)
}

// scanCmd runs one discovery and prints the devices found
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the local network for devices",
	Long: `Send a discovery probe from every local IPv4 interface and report the
devices that answer before the timeout.

The dialect is chosen with --mode:
  onvif      WS-Discovery Probe on 239.255.255.250:3702 (default)
  hikvision  HikVision SADP inquiry on 239.255.255.250:37020
  upnp       SSDP M-SEARCH on 239.255.255.250:1900
  mdns       DNS-SD PTR query on 224.0.0.251:5353`,
	Example: `  # Scan for ONVIF cameras for 5 seconds (default)
  onvif-discover scan

  # HikVision devices, following the run live
  onvif-discover scan --mode hikvision --live

  # Networks that drop multicast: use subnet broadcast instead
  onvif-discover scan --multicast=false --broadcast

  # Probe known addresses directly and print JSON
  onvif-discover scan --unicast 192.168.1.64 --unicast 192.168.1.65 --format json`,
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.IntVar(&scanTimeout, "timeout", config.DefaultTimeoutMS, "Collection window in milliseconds")
	f.StringVar(&scanMode, "mode", string(discovery.DefaultMode), "Discovery dialect (onvif, hikvision, upnp, mdns)")
	f.StringVar(&scanFormat, "format", formatTable, "Output format (table, compact, json, yaml)")
	f.BoolVar(&scanLive, "live", false, "Show responding hosts while the run is in progress")
	f.BoolVar(&scanMulticast, "multicast", true, "Send the probe to the dialect's multicast group")
	f.BoolVar(&scanBroadcast, "broadcast", false, "Also send the probe to each subnet's broadcast address")
	f.StringSliceVar(&scanInterfaces, "interface", nil, "Only use these interfaces (repeatable)")
	f.StringSliceVar(&scanUnicast, "unicast", nil, "Also probe these IPv4 hosts directly (repeatable)")
}

// applyScanFlags overrides configuration values with flags the user set
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("timeout") {
		cfg.TimeoutMS = scanTimeout
	}
	if f.Changed("mode") {
		cfg.Mode = strings.ToLower(scanMode)
	}
	if f.Changed("multicast") {
		cfg.Multicast = scanMulticast
	}
	if f.Changed("broadcast") {
		cfg.Broadcast = scanBroadcast
	}
	if f.Changed("interface") {
		cfg.Interfaces = scanInterfaces
	}
	if f.Changed("unicast") {
		cfg.Unicast = scanUnicast
	}
	return cfg.Validate()
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := checkFormat(scanFormat, formatTable, formatCompact, formatJSON, formatYAML); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyScanFlags(cmd, cfg); err != nil {
		return err
	}

	b, err := cfg.Builder()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	styled := scanFormat == formatTable
	if styled {
		ui.NewPrinter(out).PrintHeader(scanHeader(cfg))
	}

	var result *discovery.Result
	if styled && scanLive && ui.IsTerminal() {
		// The live view handles its own interrupt key.
		stop()
		result, err = ui.RunLive(cmd.Context(), b, out)
	} else {
		result, err = discover(ctx, b)
	}
	if err != nil {
		if styled {
			ui.NewPrinter(out).PrintResult(ui.NewFailureResult("Discovery failed", err, failureTips(err)))
		}
		return err
	}

	return writeResult(out, scanFormat, result)
}

func discover(ctx context.Context, b *discovery.Builder) (*discovery.Result, error) {
	run, err := b.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}

func scanHeader(cfg *config.Config) *ui.Header {
	var dest []string
	if cfg.Multicast {
		dest = append(dest, "multicast")
	}
	if cfg.Broadcast {
		dest = append(dest, "broadcast")
	}
	if len(cfg.Unicast) > 0 {
		dest = append(dest, strings.Join(cfg.Unicast, ", "))
	}

	ifaces := "all"
	if len(cfg.Interfaces) > 0 {
		ifaces = strings.Join(cfg.Interfaces, ", ")
	}

	return ui.NewHeader("Device Discovery", "onvif-discover scan",
		ui.Param{Key: "Mode", Value: cfg.Mode},
		ui.Param{Key: "Timeout", Value: cfg.Timeout().String()},
		ui.Param{Key: "Interfaces", Value: ifaces},
		ui.Param{Key: "Destinations", Value: strings.Join(dest, ", ")},
	)
}

func failureTips(err error) []string {
	switch {
	case discovery.IsEnumerationError(err):
		return []string{
			"Check that at least one interface has an IPv4 address",
			"Verify the names passed to --interface ('onvif-discover interfaces')",
		}
	case discovery.IsConfigurationError(err):
		return []string{
			"Run 'onvif-discover modes' for the supported dialects",
			"Check the configuration file ('onvif-discover config show')",
		}
	default:
		return nil
	}
}

var interfacesFormat string

// interfacesCmd lists the addresses a scan would send from
var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List the interfaces discovery sends from",
	Long: `List every up, non-loopback interface with an IPv4 address, together with
the directed broadcast address used by 'scan --broadcast'.

The configured interface allowlist is applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(interfacesFormat, formatTable, formatJSON, formatYAML); err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		targets, err := addrs.NewEnumerator(cfg.Interfaces...).Targets()
		if err != nil {
			return err
		}

		if interfacesFormat != formatTable {
			return encode(cmd.OutOrStdout(), interfacesFormat, targetViews(targets))
		}
		return ui.NewPrinter(cmd.OutOrStdout()).PrintTargets(targets)
	},
}

func init() {
	interfacesCmd.Flags().StringVar(&interfacesFormat, "format", formatTable, "Output format (table, json, yaml)")
}

// targetView is the encoded form of an interface address
type targetView struct {
	Interface string `json:"interface" yaml:"interface"`
	Index     int    `json:"index" yaml:"index"`
	Address   string `json:"address" yaml:"address"`
	Broadcast string `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
}

func targetViews(targets []addrs.Target) []targetView {
	views := make([]targetView, 0, len(targets))
	for _, t := range targets {
		v := targetView{Interface: t.Interface, Index: t.Index}
		if t.Local != nil {
			ones, _ := t.Mask.Size()
			v.Address = t.Local.String() + "/" + strconv.Itoa(ones)
		}
		if t.Broadcast != nil {
			v.Broadcast = t.Broadcast.String()
		}
		views = append(views, v)
	}
	return views
}

// modesCmd lists the registered dialects
var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the supported discovery dialects",
	Run: func(cmd *cobra.Command, args []string) {
		for _, m := range discovery.Modes() {
			marker := " "
			if m == discovery.DefaultMode {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, m)
		}
	},
}
