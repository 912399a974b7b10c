// Package addrs enumerates the local IPv4 interfaces used for discovery and
// validates the address strings that appear in probe responses.
//
// # Enumeration
//
// An Enumerator walks the host's network interfaces and keeps only those that
// are up, are not loopback, and carry at least one IPv4 address. Interfaces
// without IPv4 configuration are silently skipped. The only error an
// Enumerator returns is a failure to list interfaces at all:
//
//	e := addrs.NewEnumerator()
//	targets, err := e.Targets()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range targets {
//	    fmt.Printf("%s %s (broadcast %s)\n", t.Interface, t.Local, t.Broadcast)
//	}
//
// # Validation
//
// IsIPv4, IsIPv6, IsIP and IsMAC check string syntax only. They never touch
// the network.
//
//	addrs.IsIPv4("192.168.1.255")  // true
//	addrs.IsIPv4("192.168.1.300")  // false
//	addrs.IsIP("127.0.0.1")        // true
package addrs
