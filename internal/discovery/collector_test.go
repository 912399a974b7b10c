package discovery

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	nopObserver
	received, rejected, discovered int
}

func (o *recordingObserver) ResponseReceived(Mode, int) { o.received++ }
func (o *recordingObserver) ResponseRejected(Mode)      { o.rejected++ }
func (o *recordingObserver) DeviceDiscovered(Mode)      { o.discovered++ }

func collect(t *testing.T, mode Mode, dgs ...datagram) (*collector, []Event, *recordingObserver) {
	t.Helper()
	d, ok := LookupDialect(mode)
	require.True(t, ok)

	var events []Event
	obs := &recordingObserver{}
	c := newCollector("run-1", mode, NewParser(d, testToken), func(ev Event) { events = append(events, ev) }, obs)

	in := make(chan datagram, len(dgs))
	for _, dg := range dgs {
		in <- dg
	}
	close(in)
	c.run(in)
	return c, events, obs
}

func TestCollectorDeduplicatesByHost(t *testing.T) {
	reply := sadpReply(testToken, "192.168.1.64", "44:19:b6:01:02:03")
	c, events, obs := collect(t, ModeHikVision,
		datagram{host: "192.168.1.64", payload: reply},
		datagram{host: "192.168.1.64", payload: reply},
		datagram{host: "192.168.1.64", payload: reply},
	)

	require.Len(t, events, 1)
	assert.Equal(t, EventHost, events[0].Kind)
	assert.Equal(t, "192.168.1.64", events[0].Host)
	assert.Len(t, events[0].Devices, 1)
	assert.Equal(t, 1, c.set.len())
	assert.Equal(t, 3, obs.received)
	assert.Equal(t, 1, obs.discovered)
}

func TestCollectorMultipleDevicesPerHost(t *testing.T) {
	// an NVR answers once per channel endpoint
	first := probeMatch("uuid:"+testToken, "urn:uuid:nvr-ch1", "http://192.168.1.10/onvif/device_service", "")
	second := probeMatch("uuid:"+testToken, "urn:uuid:nvr-ch2", "http://192.168.1.10:8080/onvif/device_service", "")

	c, events, _ := collect(t, ModeONVIF,
		datagram{host: "192.168.1.10", payload: first},
		datagram{host: "192.168.1.10", payload: second},
		datagram{host: "192.168.1.10", payload: first},
	)

	require.Len(t, events, 2)
	assert.Len(t, events[0].Devices, 1)
	assert.Len(t, events[1].Devices, 2)
	assert.Equal(t, []string{"192.168.1.10"}, c.set.hostList())
	assert.Equal(t, 2, c.set.len())
}

func TestCollectorDropsRejectedResponses(t *testing.T) {
	good := sadpReply(testToken, "192.168.1.64", "44:19:b6:01:02:03")
	badMAC := sadpReply(testToken, "192.168.1.65", "not-a-mac")

	c, events, obs := collect(t, ModeHikVision,
		datagram{host: "192.168.1.65", payload: badMAC},
		datagram{host: "192.168.1.64", payload: good},
		datagram{host: "192.168.1.66", payload: []byte("<ProbeMatch>")},
	)

	require.Len(t, events, 1)
	assert.Equal(t, "192.168.1.64", events[0].Host)
	assert.Equal(t, 2, c.rejected)
	assert.Equal(t, 2, obs.rejected)
	for _, d := range c.set.devices() {
		assert.NotEqual(t, "192.168.1.65", d.Host())
	}
}

func TestCollectorManyHosts(t *testing.T) {
	var dgs []datagram
	for i := 1; i <= 20; i++ {
		host := fmt.Sprintf("10.0.0.%d", i)
		mac := fmt.Sprintf("44:19:b6:00:00:%02x", i)
		dgs = append(dgs, datagram{host: host, payload: sadpReply(testToken, host, mac)})
	}

	c, events, _ := collect(t, ModeHikVision, dgs...)
	assert.Len(t, events, 20)
	assert.Equal(t, 20, c.set.len())
	assert.Equal(t, "10.0.0.1", c.set.hostList()[0])
	assert.Equal(t, "10.0.0.20", c.set.hostList()[19])
}
