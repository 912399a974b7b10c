// Package logging provides structured logging for onvif-discover.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the tool. It provides both general logging functions
// and specialized functions for the notices a discovery run emits.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps of datagrams, per-probe sends)
//   - Info: Normal operations (enumeration results, rejected responses)
//   - Warn: Non-fatal issues (probe send failures, listener panics)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Silent By Default
//
// Logging is disabled unless a level is passed to Initialize or the
// ONVIF_DISCOVER_LOG_LEVEL environment variable is set. CLI output is
// therefore never interleaved with log lines by accident:
//
//	ONVIF_DISCOVER_LOG_LEVEL=debug onvif-discover scan
//
// Logs go to stderr so structured command output on stdout stays parseable.
//
// # Discovery Notices
//
//	logging.LogInterfaces(runID, infos)
//	logging.LogProbeFailure(runID, "onvif", "192.168.1.20", "239.255.255.250:3702", err)
//	logging.LogParseRejection(runID, "hikvision", "192.168.1.64", err)
//	logging.LogRawBytes("Datagram received", payload)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize(cfg.LogLevel); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
package logging
