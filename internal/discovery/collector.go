package discovery

import (
	"github.com/muurk/onvif-discover/internal/logging"
)

// datagram is one response read from a run socket
type datagram struct {
	host    string
	payload []byte
}

// deviceSet is the run's append-only device collection. At most one device
// per (host, key) pair is kept.
type deviceSet struct {
	order  []Device
	hosts  []string
	byHost map[string][]Device
	keys   map[string]struct{}
}

func newDeviceSet() *deviceSet {
	return &deviceSet{
		byHost: make(map[string][]Device),
		keys:   make(map[string]struct{}),
	}
}

// add stores d unless the host already exposed a device with the same key
func (s *deviceSet) add(d Device) bool {
	k := d.Host() + "\x00" + d.Key()
	if _, dup := s.keys[k]; dup {
		return false
	}
	s.keys[k] = struct{}{}
	if _, known := s.byHost[d.Host()]; !known {
		s.hosts = append(s.hosts, d.Host())
	}
	s.byHost[d.Host()] = append(s.byHost[d.Host()], d)
	s.order = append(s.order, d)
	return true
}

func (s *deviceSet) devices() []Device {
	return append([]Device(nil), s.order...)
}

func (s *deviceSet) hostDevices(host string) []Device {
	return append([]Device(nil), s.byHost[host]...)
}

func (s *deviceSet) hostList() []string {
	return append([]string(nil), s.hosts...)
}

func (s *deviceSet) len() int {
	return len(s.order)
}

// collector is the single owner of a run's deviceSet. It parses datagrams
// in arrival order and emits a host event for every newly seen device.
type collector struct {
	runID    string
	mode     Mode
	parser   *Parser
	emit     func(Event)
	observer Observer

	set      *deviceSet
	rejected int
}

func newCollector(runID string, mode Mode, parser *Parser, emit func(Event), obs Observer) *collector {
	return &collector{
		runID:    runID,
		mode:     mode,
		parser:   parser,
		emit:     emit,
		observer: obs,
		set:      newDeviceSet(),
	}
}

// run consumes datagrams until in is closed
func (c *collector) run(in <-chan datagram) {
	for dg := range in {
		c.handle(dg)
	}
}

func (c *collector) handle(dg datagram) {
	c.observer.ResponseReceived(c.mode, len(dg.payload))
	logging.LogRawBytes("Datagram received from "+dg.host, dg.payload)

	devices, err := c.parser.Parse(dg.host, dg.payload)
	if err != nil {
		c.rejected++
		c.observer.ResponseRejected(c.mode)
		logging.LogParseRejection(c.runID, c.mode.String(), dg.host, err)
		return
	}

	for _, d := range devices {
		if !c.set.add(d) {
			continue
		}
		c.observer.DeviceDiscovered(c.mode)
		c.emit(Event{
			Kind:    EventHost,
			Host:    d.Host(),
			Devices: c.set.hostDevices(d.Host()),
		})
	}
}
