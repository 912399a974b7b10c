package discovery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/muurk/onvif-discover/internal/addrs"
	"github.com/muurk/onvif-discover/internal/logging"
	"go.uber.org/zap"
)

// HikVisionPort is the SADP inquiry UDP port
const HikVisionPort = 37020

// HikVisionFields names the XML elements of a SADP reply. Firmware families
// differ in spelling, so the mapping is configurable.
type HikVisionFields struct {
	Root            string // root element of a reply
	UUID            string // echoed probe token
	Description     string
	IPv4Address     string
	MAC             string
	DeviceType      string
	SerialNumber    string
	SubnetMask      string
	Gateway         string
	CommandPort     string
	HTTPPort        string
	SoftwareVersion string
	BootTime        string
	SafeCode        string
	DHCP            string
	Activated       string
}

// DefaultHikVisionFields returns the element names used by current firmware
func DefaultHikVisionFields() HikVisionFields {
	return HikVisionFields{
		Root:            "ProbeMatch",
		UUID:            "Uuid",
		Description:     "DeviceDescription",
		IPv4Address:     "IPv4Address",
		MAC:             "MAC",
		DeviceType:      "DeviceType",
		SerialNumber:    "DeviceSN",
		SubnetMask:      "IPv4SubnetMask",
		Gateway:         "IPv4Gateway",
		CommandPort:     "CommandPort",
		HTTPPort:        "HttpPort",
		SoftwareVersion: "SoftwareVersion",
		BootTime:        "BootTime",
		SafeCode:        "SafeCode",
		DHCP:            "DHCP",
		Activated:       "Activated",
	}
}

// fieldKeys maps configuration keys to HikVisionFields members
var fieldKeys = map[string]func(f *HikVisionFields) *string{
	"root":             func(f *HikVisionFields) *string { return &f.Root },
	"uuid":             func(f *HikVisionFields) *string { return &f.UUID },
	"description":      func(f *HikVisionFields) *string { return &f.Description },
	"ipv4_address":     func(f *HikVisionFields) *string { return &f.IPv4Address },
	"mac":              func(f *HikVisionFields) *string { return &f.MAC },
	"device_type":      func(f *HikVisionFields) *string { return &f.DeviceType },
	"serial_number":    func(f *HikVisionFields) *string { return &f.SerialNumber },
	"subnet_mask":      func(f *HikVisionFields) *string { return &f.SubnetMask },
	"gateway":          func(f *HikVisionFields) *string { return &f.Gateway },
	"command_port":     func(f *HikVisionFields) *string { return &f.CommandPort },
	"http_port":        func(f *HikVisionFields) *string { return &f.HTTPPort },
	"software_version": func(f *HikVisionFields) *string { return &f.SoftwareVersion },
	"boot_time":        func(f *HikVisionFields) *string { return &f.BootTime },
	"safe_code":        func(f *HikVisionFields) *string { return &f.SafeCode },
	"dhcp":             func(f *HikVisionFields) *string { return &f.DHCP },
	"activated":        func(f *HikVisionFields) *string { return &f.Activated },
}

// WithOverrides returns a copy of f with element names replaced from
// overrides, keyed by snake_case field name (e.g. "mac": "MACAddress").
func (f HikVisionFields) WithOverrides(overrides map[string]string) (HikVisionFields, error) {
	for k, v := range overrides {
		field, ok := fieldKeys[strings.ToLower(k)]
		if !ok {
			return f, NewConfigurationError(fmt.Sprintf("unknown HikVision field %q", k), nil)
		}
		if strings.TrimSpace(v) == "" {
			return f, NewConfigurationError(fmt.Sprintf("empty element name for HikVision field %q", k), nil)
		}
		*field(&f) = strings.TrimSpace(v)
	}
	return f, nil
}

// HikVisionDialect speaks the HikVision SADP inquiry protocol
type HikVisionDialect struct {
	Fields HikVisionFields
}

// NewHikVisionDialect returns a dialect using the given element names
func NewHikVisionDialect(fields HikVisionFields) *HikVisionDialect {
	return &HikVisionDialect{Fields: fields}
}

// Mode returns ModeHikVision
func (d *HikVisionDialect) Mode() Mode { return ModeHikVision }

// Port returns the SADP port
func (d *HikVisionDialect) Port() int { return HikVisionPort }

// Group returns the WS-Discovery multicast group, which SADP shares
func (d *HikVisionDialect) Group() net.IP { return WSDiscoveryGroup }

// Probe builds a SADP inquiry carrying the token as its Uuid
func (d *HikVisionDialect) Probe(token string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?><Probe><Uuid>`)
	if err := xml.EscapeText(&buf, []byte(strings.ToUpper(token))); err != nil {
		return nil, err
	}
	buf.WriteString(`</Uuid><Types>inquiry</Types></Probe>`)
	return buf.Bytes(), nil
}

// Parse decodes a SADP reply into a *HikVisionDevice. IPv4Address must be
// a valid IPv4 literal and MAC a 48-bit hardware address; anything else
// rejects the reply. DeviceDescription is optional.
func (d *HikVisionDialect) Parse(host string, payload []byte, token string) ([]Device, error) {
	f := d.Fields
	root, body, err := decodeXML(payload)
	if err != nil {
		return nil, rejectf(host, "malformed SADP reply: %v", err)
	}
	if root != f.Root {
		return nil, rejectf(host, "root element %q is not %q", root, f.Root)
	}
	field := func(name string) string { return childText(body, name) }
	if uuid := field(f.UUID); uuid != "" && token != "" && !strings.EqualFold(uuid, token) {
		return nil, rejectf(host, "Uuid %q does not match probe", uuid)
	}

	ipv4 := field(f.IPv4Address)
	if ipv4 == "" {
		return nil, rejectf(host, "missing %s", f.IPv4Address)
	}
	if !addrs.IsIPv4(ipv4) {
		return nil, rejectf(host, "%s %q is not an IPv4 address", f.IPv4Address, ipv4)
	}
	rawMAC := field(f.MAC)
	if rawMAC == "" {
		return nil, rejectf(host, "missing %s", f.MAC)
	}
	mac, ok := addrs.NormalizeMAC(rawMAC)
	if !ok {
		return nil, rejectf(host, "%s %q is not a hardware address", f.MAC, rawMAC)
	}
	if ipv4 != host {
		logging.Warn("SADP reply reports a different address than its source",
			zap.String("host", host),
			zap.String("ipv4_address", ipv4),
		)
	}

	dev := &HikVisionDevice{
		Base:            newBase(host, ModeHikVision, payload),
		Description:     field(f.Description),
		IPv4Address:     ipv4,
		MAC:             mac,
		DeviceType:      field(f.DeviceType),
		SerialNumber:    field(f.SerialNumber),
		SubnetMask:      field(f.SubnetMask),
		Gateway:         field(f.Gateway),
		CommandPort:     atoiOrZero(field(f.CommandPort)),
		HTTPPort:        atoiOrZero(field(f.HTTPPort)),
		SoftwareVersion: field(f.SoftwareVersion),
		BootTime:        field(f.BootTime),
		SafeCode:        field(f.SafeCode),
		DHCP:            parseBoolOrFalse(field(f.DHCP)),
		Activated:       parseBoolOrFalse(field(f.Activated)),
	}
	return []Device{dev}, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseBoolOrFalse(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
