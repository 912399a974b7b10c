// Package config provides user configuration management for onvif-discover.
//
// The configuration is a YAML file holding discovery defaults (timeout,
// mode, interface allowlist, probe destinations), vendor dialect overrides
// and the settings of the serve command. Values are layered by viper:
// built-in defaults, then the config file, then ONVIF_DISCOVER_*
// environment variables. Command line flags are applied by the CLI on top.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/onvif-discover/config.yaml or $HOME/.config/onvif-discover/config.yaml
//   - macOS: $HOME/.config/onvif-discover/config.yaml
//   - Windows: %LOCALAPPDATA%\onvif-discover\config.yaml
//
// A missing file at the default location is not an error; defaults apply.
//
// # Example
//
//	version: 1
//	timeout_ms: 3000
//	mode: hikvision
//	broadcast: true
//	unicast:
//	  - 192.168.1.64
//	hikvision_fields:
//	  mac: MACAddress
//	serve:
//	  listen: ":8080"
//	  interval_ms: 60000
//	  advertise: true
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	builder, err := cfg.Builder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	run, err := builder.OnFinished(func(n int) { fmt.Println(n, "devices") }).Discover(ctx)
//
// # Thread Safety
//
// Save is protected by a mutex and writes through a temporary file and
// rename, so a crash never leaves a truncated file behind.
package config
