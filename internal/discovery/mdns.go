package discovery

import (
	"net"
	"strings"

	"github.com/miekg/dns"
)

const (
	// MDNSPort is the multicast DNS UDP port
	MDNSPort = 5353

	// DefaultMDNSService is the DNS-SD service type queried by default
	DefaultMDNSService = "_rtsp._tcp.local."
)

// MDNSGroup is the IPv4 multicast DNS group
var MDNSGroup = net.IPv4(224, 0, 0, 251)

// MDNSDialect sends a one-shot DNS-SD PTR query. Because the query does not
// originate from port 5353, responders answer by unicast to the run socket.
type MDNSDialect struct {
	// Service is the DNS-SD service type (e.g., "_onvif._tcp.local.")
	Service string
}

// NewMDNSDialect returns a dialect browsing the given service type
func NewMDNSDialect(service string) *MDNSDialect {
	return &MDNSDialect{Service: dns.Fqdn(service)}
}

// Mode returns ModeMDNS
func (d *MDNSDialect) Mode() Mode { return ModeMDNS }

// Port returns the mDNS port
func (d *MDNSDialect) Port() int { return MDNSPort }

// Group returns the mDNS multicast group
func (d *MDNSDialect) Group() net.IP { return MDNSGroup }

// Probe builds the PTR query. Its DNS message ID is derived from the token;
// legacy unicast responders echo it back.
func (d *MDNSDialect) Probe(token string) ([]byte, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(d.Service), dns.TypePTR)
	m.Id = tokenID(token)
	m.RecursionDesired = false
	return m.Pack()
}

// Parse decodes a DNS response. Every PTR answer for the service becomes an
// *MDNSDevice, enriched from SRV, TXT and A records in the same message.
func (d *MDNSDialect) Parse(host string, payload []byte, token string) ([]Device, error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(payload); err != nil {
		return nil, rejectf(host, "malformed DNS message: %v", err)
	}
	if !msg.Response {
		return nil, rejectf(host, "DNS message is a query")
	}
	if token != "" && msg.Id != 0 && msg.Id != tokenID(token) {
		return nil, rejectf(host, "DNS id %d does not match probe", msg.Id)
	}

	service := dns.Fqdn(d.Service)
	records := append(append([]dns.RR{}, msg.Answer...), msg.Extra...)

	srv := make(map[string]*dns.SRV)
	txt := make(map[string]map[string]string)
	a := make(map[string][]string)
	for _, rr := range records {
		switch r := rr.(type) {
		case *dns.SRV:
			srv[strings.ToLower(r.Hdr.Name)] = r
		case *dns.TXT:
			txt[strings.ToLower(r.Hdr.Name)] = parseTXT(r.Txt)
		case *dns.A:
			name := strings.ToLower(r.Hdr.Name)
			a[name] = append(a[name], r.A.String())
		}
	}

	var devices []Device
	for _, rr := range records {
		ptr, ok := rr.(*dns.PTR)
		if !ok || !strings.EqualFold(ptr.Hdr.Name, service) {
			continue
		}
		instance := ptr.Ptr
		dev := &MDNSDevice{
			Base:     newBase(host, ModeMDNS, payload),
			Instance: instance,
			Service:  service,
			Text:     txt[strings.ToLower(instance)],
		}
		if s, ok := srv[strings.ToLower(instance)]; ok {
			dev.Target = s.Target
			dev.Port = int(s.Port)
			dev.IPv4 = a[strings.ToLower(s.Target)]
		}
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		return nil, rejectf(host, "no PTR record for %s", service)
	}
	return devices, nil
}

// tokenID folds a token into a 16-bit DNS message ID
func tokenID(token string) uint16 {
	var id uint16
	for i := 0; i < len(token); i++ {
		id = id*31 + uint16(token[i])
	}
	if id == 0 {
		id = 1
	}
	return id
}

// parseTXT splits "key=value" strings; a bare key maps to ""
func parseTXT(entries []string) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, _ := strings.Cut(e, "=")
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// trimServiceSuffix turns "Front Door._rtsp._tcp.local." into "Front Door"
func trimServiceSuffix(instance, service string) string {
	label := strings.TrimSuffix(instance, "."+service)
	label = strings.TrimSuffix(label, "."+strings.TrimSuffix(service, "."))
	return strings.ReplaceAll(label, `\ `, " ")
}
