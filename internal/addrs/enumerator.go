package addrs

import (
	"fmt"
	"net"
)

// Target is one local IPv4 address discovery can send from.
type Target struct {
	// Interface is the OS name of the interface (e.g. "eth0").
	Interface string

	// Index is the OS interface index. Zero means "unknown" and disables
	// per-interface multicast egress selection.
	Index int

	// Local is the interface's IPv4 address.
	Local net.IP

	// Mask is Local's network mask.
	Mask net.IPMask

	// Broadcast is the directed broadcast address of Local's subnet, or nil
	// for /31 and /32 networks which have none.
	Broadcast net.IP
}

// String returns "name/local".
func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Interface, t.Local)
}

// Contains reports whether ip is on Local's subnet.
func (t Target) Contains(ip net.IP) bool {
	if t.Local == nil || t.Mask == nil {
		return false
	}
	n := net.IPNet{IP: t.Local.Mask(t.Mask), Mask: t.Mask}
	return n.Contains(ip)
}

// NetInterface returns the net.Interface for the target, or nil when Index
// is zero.
func (t Target) NetInterface() *net.Interface {
	if t.Index == 0 {
		return nil
	}
	return &net.Interface{Index: t.Index, Name: t.Interface}
}

// EnumerationError reports that the host's interface list could not be read.
type EnumerationError struct {
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerating network interfaces: %v", e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// Enumerator lists local IPv4 targets. The function fields exist so callers
// and tests can substitute the OS view of the network.
type Enumerator struct {
	// Interfaces lists interfaces. Defaults to net.Interfaces.
	Interfaces func() ([]net.Interface, error)

	// Addrs lists the addresses of one interface. Defaults to ifi.Addrs.
	Addrs func(ifi net.Interface) ([]net.Addr, error)

	// Allow restricts enumeration to the named interfaces. Empty means all.
	Allow []string
}

// NewEnumerator returns an Enumerator backed by the operating system.
func NewEnumerator(allow ...string) *Enumerator {
	return &Enumerator{
		Interfaces: net.Interfaces,
		Addrs:      func(ifi net.Interface) ([]net.Addr, error) { return ifi.Addrs() },
		Allow:      allow,
	}
}

// Targets returns one Target per IPv4 address on every up, non-loopback
// interface, in interface order. An interface whose addresses cannot be read
// is skipped. The only error is an *EnumerationError when the interface list
// itself is unavailable.
func (e *Enumerator) Targets() ([]Target, error) {
	list := e.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	addrsOf := e.Addrs
	if addrsOf == nil {
		addrsOf = func(ifi net.Interface) ([]net.Addr, error) { return ifi.Addrs() }
	}

	ifaces, err := list()
	if err != nil {
		return nil, &EnumerationError{Err: err}
	}

	var targets []Target
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if !e.allowed(ifi.Name) {
			continue
		}
		addrs, err := addrsOf(ifi)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			targets = append(targets, Target{
				Interface: ifi.Name,
				Index:     ifi.Index,
				Local:     ip4,
				Mask:      v4Mask(ipnet.Mask),
				Broadcast: broadcastOf(ip4, ipnet.Mask),
			})
		}
	}
	return targets, nil
}

// InterfaceAddresses returns the local IPv4 addresses of all targets.
func (e *Enumerator) InterfaceAddresses() ([]net.IP, error) {
	targets, err := e.Targets()
	if err != nil {
		return nil, err
	}
	out := make([]net.IP, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.Local)
	}
	return out, nil
}

// BroadcastAddresses returns the distinct directed broadcast addresses of all
// targets. Point-to-point and host routes contribute nothing.
func (e *Enumerator) BroadcastAddresses() ([]net.IP, error) {
	targets, err := e.Targets()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []net.IP
	for _, t := range targets {
		if t.Broadcast == nil || seen[t.Broadcast.String()] {
			continue
		}
		seen[t.Broadcast.String()] = true
		out = append(out, t.Broadcast)
	}
	return out, nil
}

// LocalIP returns the first local IPv4 address, or nil if there is none.
func (e *Enumerator) LocalIP() (net.IP, error) {
	targets, err := e.Targets()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}
	return targets[0].Local, nil
}

func (e *Enumerator) allowed(name string) bool {
	if len(e.Allow) == 0 {
		return true
	}
	for _, a := range e.Allow {
		if a == name {
			return true
		}
	}
	return false
}

func v4Mask(mask net.IPMask) net.IPMask {
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}
	return mask
}

func broadcastOf(ip net.IP, mask net.IPMask) net.IP {
	mask = v4Mask(mask)
	if mask == nil {
		return nil
	}
	if ones, _ := mask.Size(); ones >= 31 {
		return nil
	}
	out := make(net.IP, net.IPv4len)
	for i := range out {
		out[i] = ip[i] | ^mask[i]
	}
	return out
}
