package discovery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/clbanning/mxj"
)

const (
	// WSDiscoveryPort is the WS-Discovery UDP port
	WSDiscoveryPort = 3702

	// NetworkVideoTransmitter is the ONVIF device type probed by default
	NetworkVideoTransmitter = "dn:NetworkVideoTransmitter"

	onvifScopePrefix = "onvif://www.onvif.org/"
)

// WSDiscoveryGroup is the IPv4 WS-Discovery multicast group
var WSDiscoveryGroup = net.IPv4(239, 255, 255, 250)

// ONVIFDialect speaks generic WS-Discovery
type ONVIFDialect struct {
	// Types is the Probe's Types element; empty probes for all devices.
	Types string
}

// NewONVIFDialect returns a dialect probing for NetworkVideoTransmitter
func NewONVIFDialect() *ONVIFDialect {
	return &ONVIFDialect{Types: NetworkVideoTransmitter}
}

// Mode returns ModeONVIF
func (d *ONVIFDialect) Mode() Mode { return ModeONVIF }

// Port returns the WS-Discovery port
func (d *ONVIFDialect) Port() int { return WSDiscoveryPort }

// Group returns the WS-Discovery multicast group
func (d *ONVIFDialect) Group() net.IP { return WSDiscoveryGroup }

// Probe builds a SOAP 1.2 Probe whose MessageID is "uuid:<token>"
func (d *ONVIFDialect) Probe(token string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString(`<e:Envelope xmlns:e="http://www.w3.org/2003/05/soap-envelope"`)
	buf.WriteString(` xmlns:w="http://schemas.xmlsoap.org/ws/2004/08/addressing"`)
	buf.WriteString(` xmlns:d="http://schemas.xmlsoap.org/ws/2005/04/discovery"`)
	buf.WriteString(` xmlns:dn="http://www.onvif.org/ver10/network/wsdl">`)
	buf.WriteString(`<e:Header>`)
	buf.WriteString(`<w:MessageID>`)
	if err := xml.EscapeText(&buf, []byte(messageID(token))); err != nil {
		return nil, err
	}
	buf.WriteString(`</w:MessageID>`)
	buf.WriteString(`<w:To e:mustUnderstand="true">urn:schemas-xmlsoap-org:ws:2005:04:discovery</w:To>`)
	buf.WriteString(`<w:Action e:mustUnderstand="true">http://schemas.xmlsoap.org/ws/2005/04/discovery/Probe</w:Action>`)
	buf.WriteString(`</e:Header>`)
	buf.WriteString(`<e:Body><d:Probe>`)
	if d.Types != "" {
		buf.WriteString(`<d:Types>`)
		if err := xml.EscapeText(&buf, []byte(d.Types)); err != nil {
			return nil, err
		}
		buf.WriteString(`</d:Types>`)
	}
	buf.WriteString(`</d:Probe></e:Body></e:Envelope>`)
	return buf.Bytes(), nil
}

// Parse decodes a ProbeMatches envelope. Each ProbeMatch with at least one
// XAddr becomes a *GenericDevice. A RelatesTo header that names another
// probe rejects the whole datagram. Element names are matched without their
// namespace prefix.
func (d *ONVIFDialect) Parse(host string, payload []byte, token string) ([]Device, error) {
	root, env, err := decodeXML(payload)
	if err != nil {
		return nil, rejectf(host, "malformed WS-Discovery envelope: %v", err)
	}
	if root != "Envelope" {
		return nil, rejectf(host, "malformed WS-Discovery envelope: root element %q", root)
	}

	relatesTo := ""
	if header, err := env.ValueForPath("Header.RelatesTo"); err == nil {
		relatesTo = textOf(header)
	}
	if relatesTo != "" && token != "" && !sameMessageID(relatesTo, token) {
		return nil, rejectf(host, "RelatesTo %q does not match probe", relatesTo)
	}
	matches, err := env.ValuesForPath("Body.ProbeMatches.ProbeMatch")
	if err != nil || len(matches) == 0 {
		return nil, rejectf(host, "no ProbeMatch in envelope")
	}

	var devices []Device
	for _, v := range matches {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		match := mxj.Map(m)
		xaddrs := strings.Fields(childText(match, "XAddrs"))
		if len(xaddrs) == 0 {
			continue
		}
		var address string
		if ref, err := match.ValueForPath("EndpointReference.Address"); err == nil {
			address = textOf(ref)
		}
		dev := &GenericDevice{
			Base:              newBase(host, ModeONVIF, payload),
			EndpointReference: address,
			Types:             strings.Fields(childText(match, "Types")),
			Scopes:            strings.Fields(childText(match, "Scopes")),
			XAddrs:            xaddrs,
			MetadataVersion:   atoiOrZero(childText(match, "MetadataVersion")),
		}
		dev.decodeScopes()
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		return nil, rejectf(host, "ProbeMatch has no XAddrs")
	}
	return devices, nil
}

func (d *GenericDevice) decodeScopes() {
	for _, scope := range d.Scopes {
		rest, ok := strings.CutPrefix(scope, onvifScopePrefix)
		if !ok {
			continue
		}
		kind, value, ok := strings.Cut(rest, "/")
		if !ok || value == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		switch strings.ToLower(kind) {
		case "name":
			if d.Name == "" {
				d.Name = strings.ReplaceAll(value, "_", " ")
			}
		case "hardware":
			if d.Hardware == "" {
				d.Hardware = value
			}
		case "location":
			if d.Location == "" {
				value = strings.TrimPrefix(value, "city/")
				value = strings.TrimPrefix(value, "country/")
				d.Location = value
			}
		case "mac":
			if d.MAC == "" {
				d.MAC = value
			}
		}
	}
}

// HasType reports whether the device advertised a type with the given local
// name, ignoring the namespace prefix.
func (d *GenericDevice) HasType(local string) bool {
	for _, t := range d.Types {
		if i := strings.LastIndex(t, ":"); i >= 0 {
			t = t[i+1:]
		}
		if strings.EqualFold(t, local) {
			return true
		}
	}
	return false
}

func messageID(token string) string {
	return fmt.Sprintf("uuid:%s", token)
}

// sameMessageID compares a RelatesTo value against a token, accepting the
// "uuid:" and "urn:uuid:" spellings.
func sameMessageID(relatesTo, token string) bool {
	relatesTo = strings.TrimPrefix(relatesTo, "urn:")
	relatesTo = strings.TrimPrefix(relatesTo, "uuid:")
	return strings.EqualFold(relatesTo, token)
}
