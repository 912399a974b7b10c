// Package ui renders onvif-discover's terminal output.
//
// Commands print a Header describing the run, then either follow the run
// live (RunLive, a Bubble Tea program driven by the run's events) or wait
// for it and print a device table (RenderDevices) followed by a Result box.
//
// Output is styled with Lipgloss. Zap logging is silent unless
// ONVIF_DISCOVER_LOG_LEVEL is set, so log lines do not interleave with the
// rendered components.
package ui
