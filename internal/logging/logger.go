package logging

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "off", "debug", "info", "warn", "error"
const LogLevelEnvVar = "ONVIF_DISCOVER_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks ONVIF_DISCOVER_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" || level == "off" {
		logger = zap.NewNop()
		return nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	// stderr keeps `scan --format json` output on stdout machine-readable
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback to silent logger if not initialized
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// InterfaceInfo is the subset of an enumerated interface worth logging.
type InterfaceInfo struct {
	Name      string
	Local     net.IP
	Broadcast net.IP
}

// LogInterfaces logs the result of interface enumeration for one run.
func LogInterfaces(runID string, ifaces []InterfaceInfo) {
	names := make([]string, 0, len(ifaces))
	for _, ifi := range ifaces {
		names = append(names, fmt.Sprintf("%s=%s", ifi.Name, ifi.Local))
		Debug("Interface enumerated",
			zap.String("run_id", runID),
			zap.String("interface", ifi.Name),
			zap.Stringer("local", ifi.Local),
			zap.Stringer("broadcast", ifi.Broadcast),
		)
	}
	Info("Interfaces enumerated",
		zap.String("run_id", runID),
		zap.Int("count", len(ifaces)),
		zap.Strings("interfaces", names),
	)
}

// LogProbeSent logs a successfully transmitted probe
func LogProbeSent(runID, mode, from, to string, size int) {
	Debug("Probe sent",
		zap.String("run_id", runID),
		zap.String("mode", mode),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("length", size),
	)
}

// LogProbeFailure logs a failure to send a probe to one address
func LogProbeFailure(runID, mode, from, to string, err error) {
	Warn("Probe transmission failed",
		zap.String("run_id", runID),
		zap.String("mode", mode),
		zap.String("from", from),
		zap.String("to", to),
		zap.Error(err),
	)
}

// LogParseRejection logs a response that was dropped during parsing
func LogParseRejection(runID, mode, host string, reason error) {
	Info("Response rejected",
		zap.String("run_id", runID),
		zap.String("mode", mode),
		zap.String("host", host),
		zap.Error(reason),
	)
}

// LogConnection logs a connection event
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogHTTPRequest logs an HTTP request
func LogHTTPRequest(remoteAddr string, method string, path string, status int) {
	Info("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", status),
	)
}

// LogRawBytes logs raw bytes (useful for debugging protocol issues)
func LogRawBytes(label string, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Limit to first 256 bytes for logging
	if len(data) > 256 {
		return hex.EncodeToString(data[:256]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > 256 {
		data = data[:256]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
