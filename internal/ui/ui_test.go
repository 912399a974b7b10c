package ui

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/onvif-discover/internal/addrs"
	"github.com/muurk/onvif-discover/internal/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevices() []discovery.Device {
	return []discovery.Device{
		&discovery.GenericDevice{
			Base:              discovery.Base{Addr: "192.168.1.64", Kind: discovery.ModeONVIF},
			EndpointReference: "urn:uuid:cam-1",
			XAddrs:            []string{"http://192.168.1.64/onvif/device_service"},
			Name:              "Lobby",
		},
		&discovery.HikVisionDevice{
			Base:        discovery.Base{Addr: "192.168.1.65", Kind: discovery.ModeHikVision},
			Description: "DS-2CD2032-I",
			MAC:         "44-19-b6-aa-bb-cc",
		},
	}
}

func TestHeaderRender(t *testing.T) {
	h := NewHeader("Device Discovery", "onvif-discover scan",
		Param{Key: "Mode", Value: "onvif"},
		Param{Key: "Timeout", Value: "5s"},
	).SetWidth(80)

	out := h.Render()
	assert.Contains(t, out, "DEVICE DISCOVERY")
	assert.Contains(t, out, "onvif-discover scan")
	assert.Contains(t, out, "Mode")
	assert.Contains(t, out, "onvif")
	assert.Less(t, strings.Index(out, "Mode"), strings.Index(out, "Timeout"))
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("2 devices found", Param{Key: "Hosts", Value: "2"}),
			want:   []string{SuccessMarker, "SUCCESS", "2 devices found", "Hosts", "2"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No devices found").AddTip("Try --broadcast"),
			want:   []string{WarningMarker, "WARNING", "Troubleshooting:", "Try --broadcast"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Discovery failed", errors.New("no interfaces"), nil),
			want:   []string{FailureMarker, "FAILED", "Error: no interfaces"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestProgressSteps(t *testing.T) {
	p := NewProgress("Searching...", "one", "two").SetWidth(80)
	assert.Equal(t, 2, p.Total)

	p.StartStep(1, "")
	assert.Equal(t, 1, p.Current)
	assert.Equal(t, StepRunning, p.Steps[0].Status)

	p.CompleteStep(1, "done")
	p.FailStep(2, "boom")
	assert.Equal(t, StepComplete, p.Steps[0].Status)
	assert.Equal(t, StepFailed, p.Steps[1].Status)

	// Out of range is ignored.
	p.UpdateStep(3, StepRunning, "")
	p.UpdateStep(0, StepRunning, "")
	assert.Equal(t, 1, p.Current)

	p.SetPercent(2)
	assert.Equal(t, 1.0, p.Percent)
	p.SetPercent(-1)
	assert.Equal(t, 0.0, p.Percent)

	out := p.Render()
	assert.Contains(t, out, "Searching...")
	assert.Contains(t, out, "(done)")
	assert.Contains(t, out, "(boom)")
}

func TestRenderDevices(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDevices(&buf, testDevices()))

	out := buf.String()
	for _, want := range []string{
		"192.168.1.64", "Lobby", "urn:uuid:cam-1", "onvif",
		"192.168.1.65", "DS-2CD2032-I", "44-19-b6-aa-bb-cc", "hikvision",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "192.168.1.64"), strings.Index(out, "192.168.1.65"))
}

func TestRenderTargets(t *testing.T) {
	var buf bytes.Buffer
	err := RenderTargets(&buf, []addrs.Target{
		{
			Interface: "eth0",
			Index:     2,
			Local:     net.IPv4(192, 168, 1, 10).To4(),
			Mask:      net.CIDRMask(24, 32),
			Broadcast: net.IPv4(192, 168, 1, 255).To4(),
		},
		{
			Interface: "tun0",
			Index:     5,
			Local:     net.IPv4(10, 8, 0, 2).To4(),
			Mask:      net.CIDRMask(32, 32),
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "eth0")
	assert.Contains(t, out, "192.168.1.10/24")
	assert.Contains(t, out, "192.168.1.255")
	assert.Contains(t, out, "10.8.0.2/32")
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintHeader(NewHeader("Device Discovery", "onvif-discover scan"))
	require.NoError(t, p.PrintDevices(testDevices()))
	p.PrintResult(NewSuccessResult("2 devices found"))

	out := buf.String()
	assert.Contains(t, out, "DEVICE DISCOVERY")
	assert.Contains(t, out, "Lobby")
	assert.Contains(t, out, "2 devices found")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(strings.NewReader(tt.input), &out, "config exists", "Overwrite?")
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Overwrite?")
		})
	}
}

func TestLiveModelLifecycle(t *testing.T) {
	cancelled := 0
	m := NewLiveModel(discovery.ModeONVIF, time.Second, func() { cancelled++ })

	start := time.Unix(1000, 0)
	m.now = func() time.Time { return start }
	require.NotNil(t, m.Init())
	assert.Equal(t, StepRunning, m.Progress.Steps[stepProbe-1].Status)

	m.Update(EventMsg(discovery.Event{Kind: discovery.EventStarted}))
	assert.Equal(t, StepComplete, m.Progress.Steps[stepProbe-1].Status)
	assert.Equal(t, StepRunning, m.Progress.Steps[stepCollect-1].Status)

	devs := testDevices()
	m.Update(EventMsg(discovery.Event{Kind: discovery.EventHost, Host: "192.168.1.64", Devices: devs[:1]}))
	m.Update(EventMsg(discovery.Event{Kind: discovery.EventHost, Host: "192.168.1.65", Devices: devs[1:]}))
	assert.Equal(t, []string{"192.168.1.64", "192.168.1.65"}, m.Hosts())
	assert.Equal(t, 2, m.Devices())
	assert.Contains(t, m.View(), "192.168.1.65")

	m.now = func() time.Time { return start.Add(500 * time.Millisecond) }
	_, cmd := m.Update(tickMsg(start))
	assert.NotNil(t, cmd)
	assert.InDelta(t, 0.5, m.Progress.Percent, 0.001)

	m.Update(EventMsg(discovery.Event{Kind: discovery.EventAllDevices, Devices: devs}))
	assert.Equal(t, StepComplete, m.Progress.Steps[stepCollect-1].Status)
	assert.Equal(t, StepRunning, m.Progress.Steps[stepDeliver-1].Status)

	_, cmd = m.Update(EventMsg(discovery.Event{Kind: discovery.EventFinished, Count: 2}))
	assert.Nil(t, cmd)
	assert.True(t, m.Done())
	assert.Equal(t, 1.0, m.Progress.Percent)

	_, cmd = m.Update(ResultMsg{Result: &discovery.Result{Count: 2}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, StepComplete, m.Progress.Steps[stepProbe-1].Status)

	_, cmd = m.Update(tickMsg(start))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, cancelled)
}

func TestLiveModelFailedSends(t *testing.T) {
	m := NewLiveModel(discovery.ModeONVIF, time.Second, nil)
	m.Init()
	m.Update(EventMsg(discovery.Event{Kind: discovery.EventStarted}))
	m.Update(EventMsg(discovery.Event{Kind: discovery.EventAllDevices}))
	m.Update(EventMsg(discovery.Event{Kind: discovery.EventFinished}))

	result := &discovery.Result{Errors: []error{
		discovery.NewTransmissionError("192.0.2.1:3702", errors.New("network is unreachable")),
		discovery.NewListenerError(discovery.EventHost, "boom"),
	}}
	_, cmd := m.Update(ResultMsg{Result: result})
	require.NotNil(t, cmd)

	step := m.Progress.Steps[stepProbe-1]
	assert.Equal(t, StepFailed, step.Status)
	assert.Contains(t, m.View(), "1 send failed")
}

func TestLiveModelCancel(t *testing.T) {
	cancelled := 0
	m := NewLiveModel(discovery.ModeHikVision, time.Second, func() { cancelled++ })
	m.Init()

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Equal(t, 1, cancelled)
	assert.Contains(t, m.View(), "Cancelling")
	assert.False(t, m.Done())
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 host", plural(1, "host"))
	assert.Equal(t, "0 devices", plural(0, "device"))
	assert.Equal(t, "3 hosts", plural(3, "host"))
}
