// Package discovery finds ONVIF cameras and related devices on the local
// network with WS-Discovery and vendor discovery dialects.
//
// A run sends one probe burst on every usable IPv4 interface, collects the
// responses for a fixed window, and reports what it found through four
// lifecycle events.
//
// # Discovery Process
//
// The discovery process works as follows:
//  1. Enumerates up, non-loopback IPv4 interfaces (package addrs)
//  2. Binds one UDP socket per interface address and starts receiving
//  3. Fires the started event
//  4. Sends the dialect's probe to its multicast group from every socket,
//     plus directed broadcast and unicast destinations when configured
//  5. Parses each response, drops rejects, and fires a host event for every
//     new device at a host
//  6. At the deadline closes the sockets, then fires all-devices and finished
//
// # Usage Example
//
//	run, err := discovery.New(5 * time.Second).
//	    Mode(discovery.ModeHikVision).
//	    OnHost(func(host string, devices []discovery.Device) {
//	        fmt.Printf("%s: %d device(s)\n", host, len(devices))
//	    }).
//	    OnFinished(func(count int) {
//	        fmt.Printf("found %d device(s)\n", count)
//	    }).
//	    Discover(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result := run.Wait()
//
// # Dialects
//
// A Dialect builds the probe and parses responses for one protocol. Built-in
// modes are onvif (default), hikvision, upnp and mdns. RegisterDialect adds
// or replaces a mode process-wide; Builder.Dialect uses one for a single
// configuration.
//
// Devices are returned as the Device interface. The concrete type depends on
// the dialect:
//
//	switch d := dev.(type) {
//	case *discovery.GenericDevice:
//	    fmt.Println(d.XAddrs)
//	case *discovery.HikVisionDevice:
//	    fmt.Println(d.MAC, d.SerialNumber)
//	}
//
// # Event Ordering
//
// Events of one run are delivered on a single goroutine in this order:
// started, zero or more host events, all-devices, finished. Listeners of the
// same event run in registration order and never overlap. A panicking
// listener is recovered and recorded in Result.Errors; delivery continues.
//
// # Errors
//
// Only configuration and enumeration errors are returned by Discover. Probe
// send failures, rejected responses and listener panics are contained in
// the run; see ErrorType.
//
// # Network Requirements
//
// - Multicast to 239.255.255.250 (WS-Discovery, SSDP, SADP) or 224.0.0.251
// (mDNS) must be permitted on the interface
// - Responses arrive on an ephemeral port; host firewalls must allow them
//
// # Thread Safety
//
// A Config is immutable and can start any number of concurrent runs. Each
// run owns its sockets, device set and timer.
package discovery
