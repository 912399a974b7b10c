package discovery

import (
	"errors"
	"fmt"

	"github.com/muurk/onvif-discover/internal/addrs"
)

// ErrorType represents the category of error that occurred during a run
type ErrorType int

const (
	// ErrTypeConfiguration indicates an invalid timeout or mode, or a builder
	// mutated after its first run started. Fatal, returned synchronously.
	ErrTypeConfiguration ErrorType = iota
	// ErrTypeEnumeration indicates the interface list could not be read.
	// Fatal, returned synchronously before any probe is sent.
	ErrTypeEnumeration
	// ErrTypeTransmission indicates a probe could not be sent to one address
	ErrTypeTransmission
	// ErrTypeParse indicates a response was dropped during parsing
	ErrTypeParse
	// ErrTypeListener indicates a listener panicked
	ErrTypeListener
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConfiguration:
		return "Configuration Error"
	case ErrTypeEnumeration:
		return "Enumeration Error"
	case ErrTypeTransmission:
		return "Transmission Error"
	case ErrTypeParse:
		return "Parse Rejection"
	case ErrTypeListener:
		return "Listener Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

var (
	// ErrSealed is returned when a Builder is mutated after Discover was called
	ErrSealed = errors.New("configuration is sealed once a run has started")

	// ErrInvalidTimeout is returned for a zero or negative timeout
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrUnknownMode is returned for a mode with no registered dialect
	ErrUnknownMode = errors.New("unknown discovery mode")
)

// Error is the error type produced by discovery runs
type Error struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Address string    // Address involved, if any (probe destination or responding host)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Address != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Address)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates an error for an invalid run configuration
func NewConfigurationError(message string, err error) *Error {
	return &Error{
		Type:    ErrTypeConfiguration,
		Message: message,
		Err:     err,
	}
}

// NewEnumerationError creates an error for a failed interface enumeration
func NewEnumerationError(err error) *Error {
	return &Error{
		Type:    ErrTypeEnumeration,
		Message: "cannot enumerate network interfaces",
		Err:     err,
	}
}

// NewTransmissionError creates an error for a probe that could not be sent
func NewTransmissionError(address string, err error) *Error {
	return &Error{
		Type:    ErrTypeTransmission,
		Message: "probe not sent",
		Address: address,
		Err:     err,
	}
}

// NewParseRejection creates an error for a response dropped during parsing
func NewParseRejection(host, reason string) *Error {
	return &Error{
		Type:    ErrTypeParse,
		Message: reason,
		Address: host,
	}
}

// NewListenerError creates an error for a listener that panicked
func NewListenerError(event EventKind, recovered any) *Error {
	return &Error{
		Type:    ErrTypeListener,
		Message: fmt.Sprintf("%s listener panicked", event),
		Err:     fmt.Errorf("%v", recovered),
	}
}

// rejectf is shorthand used by the dialect parsers.
func rejectf(host, format string, args ...any) *Error {
	return NewParseRejection(host, fmt.Sprintf(format, args...))
}

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return isType(err, ErrTypeConfiguration)
}

// IsEnumerationError checks if an error is an enumeration error. An
// *addrs.EnumerationError also counts.
func IsEnumerationError(err error) bool {
	var ae *addrs.EnumerationError
	return isType(err, ErrTypeEnumeration) || errors.As(err, &ae)
}

// IsTransmissionError checks if an error is a transmission error
func IsTransmissionError(err error) bool {
	return isType(err, ErrTypeTransmission)
}

// IsParseRejection checks if an error is a parse rejection
func IsParseRejection(err error) bool {
	return isType(err, ErrTypeParse)
}

// IsListenerError checks if an error is a listener error
func IsListenerError(err error) bool {
	return isType(err, ErrTypeListener)
}
