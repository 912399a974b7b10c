package addrs

import (
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsIPv4 reports whether s is a dotted-quad IPv4 literal.
func IsIPv4(s string) bool {
	// IPv4-mapped IPv6 literals ("::ffff:1.2.3.4") are not IPv4 here.
	if strings.Contains(s, ":") {
		return false
	}
	return validate.Var(s, "required,ipv4") == nil
}

// IsIPv6 reports whether s is an IPv6 literal. A zone suffix ("fe80::1%eth0")
// and the IPv4-mapped form ("::ffff:1.2.3.4") are accepted.
func IsIPv6(s string) bool {
	addr, zone, hasZone := strings.Cut(s, "%")
	if hasZone && (zone == "" || strings.Contains(zone, "%")) {
		return false
	}
	if !strings.Contains(addr, ":") {
		return false
	}
	return validate.Var(addr, "required,ip") == nil
}

// IsIP reports whether s is either an IPv4 or an IPv6 literal.
func IsIP(s string) bool {
	return IsIPv4(s) || IsIPv6(s)
}

// IsMAC reports whether s is a 48-bit hardware address. Colon, hyphen and
// dotted forms are accepted in any letter case.
func IsMAC(s string) bool {
	if validate.Var(s, "required,mac") != nil {
		return false
	}
	hw, err := net.ParseMAC(s)
	return err == nil && len(hw) == 6
}

// NormalizeMAC returns s in lower-case colon form ("aa:bb:cc:dd:ee:ff").
// The second return value is false when s is not a 48-bit hardware address.
func NormalizeMAC(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !IsMAC(s) {
		return "", false
	}
	hw, _ := net.ParseMAC(s)
	return hw.String(), true
}
