package discovery

import (
	"errors"
	"fmt"

	"github.com/muurk/onvif-discover/internal/addrs"
)

// Parser turns response datagrams into devices for one dialect and one
// probe token.
type Parser struct {
	dialect Dialect
	token   string
}

// NewParser returns a parser bound to a dialect and the run's probe token
func NewParser(d Dialect, token string) *Parser {
	return &Parser{dialect: d, token: token}
}

// Parse decodes a datagram from host. Any failure, including a panic in
// the dialect, is returned as a parse rejection; a partially decoded device
// is never returned.
func (p *Parser) Parse(host string, payload []byte) (devices []Device, err error) {
	if !addrs.IsIP(host) {
		return nil, rejectf(host, "source %q is not an IP address", host)
	}
	if len(payload) == 0 {
		return nil, rejectf(host, "empty payload")
	}

	defer func() {
		if r := recover(); r != nil {
			devices = nil
			err = rejectf(host, "%s parser panicked: %v", p.dialect.Mode(), r)
		}
	}()

	devices, err = p.dialect.Parse(host, payload, p.token)
	if err != nil {
		if !IsParseRejection(err) {
			err = &Error{Type: ErrTypeParse, Message: "response rejected", Address: host, Err: err}
		}
		return nil, err
	}

	for _, d := range devices {
		if d == nil {
			return nil, rejectf(host, "%s parser returned a nil device", p.dialect.Mode())
		}
		if d.Host() != host {
			return nil, rejectf(host, "%s parser attributed device to %s", p.dialect.Mode(), d.Host())
		}
	}
	if len(devices) == 0 {
		return nil, NewParseRejection(host, "no devices in response")
	}
	return devices, nil
}

// ParseResponse decodes one datagram with the dialect registered for mode.
// An unknown mode is a configuration error; everything else that goes wrong
// is a parse rejection.
func ParseResponse(mode Mode, host string, payload []byte, token string) ([]Device, error) {
	d, ok := LookupDialect(mode)
	if !ok {
		return nil, NewConfigurationError(fmt.Sprintf("mode %q", mode), ErrUnknownMode)
	}
	return NewParser(d, token).Parse(host, payload)
}

// RejectionReason returns the human-readable reason of a parse rejection
func RejectionReason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Type == ErrTypeParse {
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Message
	}
	return err.Error()
}
