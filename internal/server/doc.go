// Package server streams discovery events to network clients.
//
// A Server owns an HTTP listener and runs discovery either periodically or
// on request. Every lifecycle event of a run is pushed to websocket clients
// as JSON, the last completed run is kept for polling clients, and run
// counters are exposed for Prometheus.
//
// # Endpoints
//
//	GET  /ws            event feed (one JSON message per event)
//	GET  /api/devices   last completed run
//	POST /api/discover  start a run and wait for its result (409 while one is active)
//	GET  /api/modes     registered discovery modes
//	GET  /metrics       Prometheus metrics
//	GET  /healthz       liveness
//
// # Feed Messages
//
// Each message carries the event kind ("started", "host", "all-devices",
// "finished"), the run ID and mode. Host events include the responding
// address and that host's devices, all-devices events the full set and
// finished events the device count:
//
//	{"type":"host","run_id":"…","mode":"onvif","host":"192.168.1.64","count":1,"devices":[…]}
//
// Messages for one run arrive in event order. Clients that fall behind by
// more than a small queue are disconnected.
//
// # mDNS Advertisement
//
// With Advertise set the feed is announced as _onvif-discover._tcp with
// TXT records for version, path and scheme.
//
// # TLS
//
// When CertPath and KeyPath are set the listener serves HTTPS (TLS 1.2+).
package server
