package discovery

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
)

// Mode identifies a discovery dialect: the probe a run sends and the parser
// its responses go through.
type Mode string

const (
	// ModeONVIF is generic WS-Discovery on UDP 3702
	ModeONVIF Mode = "onvif"

	// ModeHikVision is the HikVision SADP inquiry on UDP 37020
	ModeHikVision Mode = "hikvision"

	// ModeUPnP is an SSDP M-SEARCH on UDP 1900
	ModeUPnP Mode = "upnp"

	// ModeMDNS is a one-shot DNS-SD PTR query on UDP 5353
	ModeMDNS Mode = "mdns"

	// DefaultMode is used when no mode is configured
	DefaultMode = ModeONVIF
)

// String returns the mode identifier
func (m Mode) String() string {
	return string(m)
}

// Dialect builds probes for and parses responses of one discovery protocol.
//
// Implementations must be safe for concurrent use: one Dialect value serves
// every run configured with its Mode.
type Dialect interface {
	// Mode returns the identifier the dialect is registered under.
	Mode() Mode

	// Port is the UDP port probes are sent to.
	Port() int

	// Group is the multicast group probes are sent to.
	Group() net.IP

	// Probe returns the probe datagram carrying the run's correlation token.
	Probe(token string) ([]byte, error)

	// Parse decodes one response datagram received from host. It returns
	// a *Error of type ErrTypeParse when the payload is not an acceptable
	// response. A single datagram may describe several devices.
	Parse(host string, payload []byte, token string) ([]Device, error)
}

var dialects = struct {
	sync.RWMutex
	byMode map[Mode]Dialect
}{byMode: make(map[Mode]Dialect)}

func init() {
	RegisterDialect(NewONVIFDialect())
	RegisterDialect(NewHikVisionDialect(DefaultHikVisionFields()))
	RegisterDialect(NewUPnPDialect())
	RegisterDialect(NewMDNSDialect(DefaultMDNSService))
}

// RegisterDialect makes d available under d.Mode(), replacing any dialect
// previously registered for that mode.
func RegisterDialect(d Dialect) {
	dialects.Lock()
	defer dialects.Unlock()
	dialects.byMode[d.Mode()] = d
}

// LookupDialect returns the dialect registered for m
func LookupDialect(m Mode) (Dialect, bool) {
	dialects.RLock()
	defer dialects.RUnlock()
	d, ok := dialects.byMode[m]
	return d, ok
}

// Modes returns every registered mode in lexical order
func Modes() []Mode {
	dialects.RLock()
	defer dialects.RUnlock()
	modes := make([]Mode, 0, len(dialects.byMode))
	for m := range dialects.byMode {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// ParseMode validates a mode identifier. Matching is case-insensitive and an
// empty string selects DefaultMode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultMode, nil
	}
	m := Mode(s)
	if _, ok := LookupDialect(m); !ok {
		return "", NewConfigurationError(
			fmt.Sprintf("mode %q is not one of %v", s, Modes()), ErrUnknownMode)
	}
	return m, nil
}
