package discovery

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const (
	// SSDPPort is the SSDP UDP port
	SSDPPort = 1900

	// SSDPAll is the search target matching every device and service
	SSDPAll = "ssdp:all"
)

// UPnPDialect sends SSDP M-SEARCH requests
type UPnPDialect struct {
	// SearchTarget is the ST header; defaults to ssdp:all.
	SearchTarget string

	// MX is the maximum response delay in seconds requested from devices.
	MX int
}

// NewUPnPDialect returns a dialect searching for every device
func NewUPnPDialect() *UPnPDialect {
	return &UPnPDialect{SearchTarget: SSDPAll, MX: 1}
}

// Mode returns ModeUPnP
func (d *UPnPDialect) Mode() Mode { return ModeUPnP }

// Port returns the SSDP port
func (d *UPnPDialect) Port() int { return SSDPPort }

// Group returns the SSDP multicast group
func (d *UPnPDialect) Group() net.IP { return WSDiscoveryGroup }

// Probe builds an M-SEARCH request. SSDP has no correlation field, so the
// token is not carried.
func (d *UPnPDialect) Probe(string) ([]byte, error) {
	st := d.SearchTarget
	if st == "" {
		st = SSDPAll
	}
	mx := d.MX
	if mx <= 0 {
		mx = 1
	}
	msg := "M-SEARCH * HTTP/1.1\r\n" +
		fmt.Sprintf("HOST: %s\r\n", net.JoinHostPort(WSDiscoveryGroup.String(), fmt.Sprint(SSDPPort))) +
		"MAN: \"ssdp:discover\"\r\n" +
		fmt.Sprintf("MX: %d\r\n", mx) +
		fmt.Sprintf("ST: %s\r\n", st) +
		"\r\n"
	return []byte(msg), nil
}

// Parse decodes an HTTP-over-UDP search response. The status must be 200
// and LOCATION must be present.
func (d *UPnPDialect) Parse(host string, payload []byte, _ string) ([]Device, error) {
	if !bytes.HasPrefix(payload, []byte("HTTP/")) {
		return nil, rejectf(host, "not an SSDP search response")
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(payload)), nil)
	if err != nil {
		return nil, rejectf(host, "malformed SSDP response: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rejectf(host, "SSDP status %d", resp.StatusCode)
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return nil, rejectf(host, "missing LOCATION header")
	}

	dev := &UPnPDevice{
		Base:         newBase(host, ModeUPnP, payload),
		Location:     location,
		Server:       strings.TrimSpace(resp.Header.Get("Server")),
		USN:          strings.TrimSpace(resp.Header.Get("Usn")),
		ST:           strings.TrimSpace(resp.Header.Get("St")),
		CacheControl: strings.TrimSpace(resp.Header.Get("Cache-Control")),
	}
	return []Device{dev}, nil
}
