package discovery

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// Device is one device found by a run. The concrete type is selected by the
// dialect that parsed the response: *GenericDevice, *HikVisionDevice,
// *UPnPDevice or *MDNSDevice. Use a type switch to reach variant fields.
type Device interface {
	// Host is the IP address the response came from.
	Host() string

	// Mode is the dialect that produced the device.
	Mode() Mode

	// Key distinguishes devices exposed by the same host.
	Key() string

	// Label is a short human-readable name (model, description, server).
	Label() string

	// Endpoint is the device's service address, if it advertised one.
	Endpoint() string

	// Raw is the payload the device was parsed from.
	Raw() []byte

	String() string
}

// Base carries the fields every device variant shares
type Base struct {
	// Addr is the responder's IP address (e.g., "192.168.1.64")
	Addr string `json:"host" yaml:"host"`

	// Kind is the mode that parsed the response
	Kind Mode `json:"mode" yaml:"mode"`

	// SeenAt is when the response was accepted
	SeenAt time.Time `json:"seen_at" yaml:"seen_at"`

	payload []byte
}

func newBase(host string, mode Mode, payload []byte) Base {
	return Base{
		Addr:    host,
		Kind:    mode,
		SeenAt:  time.Now(),
		payload: append([]byte(nil), payload...),
	}
}

// Host returns the responder's IP address
func (b *Base) Host() string { return b.Addr }

// Mode returns the dialect that produced the device
func (b *Base) Mode() Mode { return b.Kind }

// Raw returns the payload the device was parsed from
func (b *Base) Raw() []byte { return b.payload }

// GenericDevice is a WS-Discovery ProbeMatch
type GenericDevice struct {
	Base `yaml:",inline"`

	// EndpointReference is the device's stable address, usually "urn:uuid:..."
	EndpointReference string `json:"endpoint_reference" yaml:"endpoint_reference"`

	// Types are the advertised service types (e.g., "dn:NetworkVideoTransmitter")
	Types []string `json:"types" yaml:"types"`

	// Scopes are the advertised scope URIs
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`

	// XAddrs are the device service URLs; never empty for an accepted device
	XAddrs []string `json:"xaddrs" yaml:"xaddrs"`

	MetadataVersion int `json:"metadata_version" yaml:"metadata_version"`

	// Decoded from onvif://www.onvif.org/... scopes
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Hardware string `json:"hardware,omitempty" yaml:"hardware,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	MAC      string `json:"mac,omitempty" yaml:"mac,omitempty"`
}

// Key returns the endpoint reference, falling back to the first XAddr
func (d *GenericDevice) Key() string {
	if d.EndpointReference != "" {
		return d.EndpointReference
	}
	if len(d.XAddrs) > 0 {
		return d.XAddrs[0]
	}
	return d.Addr
}

// Label returns the scope name, falling back to the hardware scope
func (d *GenericDevice) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Hardware
}

// Endpoint returns the first XAddr
func (d *GenericDevice) Endpoint() string {
	if len(d.XAddrs) == 0 {
		return ""
	}
	return d.XAddrs[0]
}

// String returns a human-readable string representation of the device
func (d *GenericDevice) String() string {
	return fmt.Sprintf("ONVIF device %q at %s (%s)", d.Label(), d.Addr, d.Endpoint())
}

// HikVisionDevice is a HikVision SADP inquiry reply
type HikVisionDevice struct {
	Base `yaml:",inline"`

	// Description is the model string (e.g., "DS-2CD2032-I")
	Description string `json:"description" yaml:"description"`

	// IPv4Address is the address the device reports for itself
	IPv4Address string `json:"ipv4_address" yaml:"ipv4_address"`

	// MAC is lower-case colon form (e.g., "44:19:b6:01:02:03")
	MAC string `json:"mac" yaml:"mac"`

	DeviceType      string `json:"device_type,omitempty" yaml:"device_type,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	SubnetMask      string `json:"subnet_mask,omitempty" yaml:"subnet_mask,omitempty"`
	Gateway         string `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	CommandPort     int    `json:"command_port,omitempty" yaml:"command_port,omitempty"`
	HTTPPort        int    `json:"http_port,omitempty" yaml:"http_port,omitempty"`
	SoftwareVersion string `json:"software_version,omitempty" yaml:"software_version,omitempty"`
	BootTime        string `json:"boot_time,omitempty" yaml:"boot_time,omitempty"`
	SafeCode        string `json:"safe_code,omitempty" yaml:"safe_code,omitempty"`
	DHCP            bool   `json:"dhcp" yaml:"dhcp"`
	Activated       bool   `json:"activated" yaml:"activated"`
}

// Key returns the MAC address
func (d *HikVisionDevice) Key() string { return d.MAC }

// Label returns the device description
func (d *HikVisionDevice) Label() string { return d.Description }

// Endpoint returns the HTTP URL of the device's web interface, if known
func (d *HikVisionDevice) Endpoint() string {
	if d.HTTPPort == 0 {
		return ""
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(d.IPv4Address, fmt.Sprint(d.HTTPPort))}
	return u.String()
}

// String returns a human-readable string representation of the device
func (d *HikVisionDevice) String() string {
	return fmt.Sprintf("HikVision %s (%s) at %s", d.Description, d.MAC, d.Addr)
}

// UPnPDevice is an SSDP search response
type UPnPDevice struct {
	Base `yaml:",inline"`

	// Location is the URL of the device description document
	Location string `json:"location" yaml:"location"`

	Server       string `json:"server,omitempty" yaml:"server,omitempty"`
	USN          string `json:"usn,omitempty" yaml:"usn,omitempty"`
	ST           string `json:"st,omitempty" yaml:"st,omitempty"`
	CacheControl string `json:"cache_control,omitempty" yaml:"cache_control,omitempty"`
}

// Key returns the USN, falling back to the location
func (d *UPnPDevice) Key() string {
	if d.USN != "" {
		return d.USN
	}
	return d.Location
}

// Label returns the SERVER header
func (d *UPnPDevice) Label() string { return d.Server }

// Endpoint returns the description location
func (d *UPnPDevice) Endpoint() string { return d.Location }

// String returns a human-readable string representation of the device
func (d *UPnPDevice) String() string {
	return fmt.Sprintf("UPnP %s at %s (%s)", d.ST, d.Addr, d.Location)
}

// MDNSDevice is a DNS-SD service instance
type MDNSDevice struct {
	Base `yaml:",inline"`

	// Instance is the full instance name (e.g., "Front Door._rtsp._tcp.local.")
	Instance string `json:"instance" yaml:"instance"`

	Service string            `json:"service" yaml:"service"`
	Target  string            `json:"target,omitempty" yaml:"target,omitempty"`
	Port    int               `json:"port,omitempty" yaml:"port,omitempty"`
	IPv4    []string          `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	Text    map[string]string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Key returns the instance name
func (d *MDNSDevice) Key() string { return d.Instance }

// Label returns the instance name without the service suffix
func (d *MDNSDevice) Label() string {
	return trimServiceSuffix(d.Instance, d.Service)
}

// Endpoint returns host:port of the service, if an SRV record was present
func (d *MDNSDevice) Endpoint() string {
	if d.Port == 0 {
		return ""
	}
	host := d.Addr
	if len(d.IPv4) > 0 {
		host = d.IPv4[0]
	}
	return net.JoinHostPort(host, fmt.Sprint(d.Port))
}

// String returns a human-readable string representation of the device
func (d *MDNSDevice) String() string {
	return fmt.Sprintf("mDNS %s at %s", d.Instance, d.Endpoint())
}
