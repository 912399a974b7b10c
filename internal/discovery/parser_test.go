package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDialect struct {
	parse func(host string, payload []byte, token string) ([]Device, error)
}

func (stubDialect) Mode() Mode                   { return "stub" }
func (stubDialect) Port() int                    { return 9 }
func (stubDialect) Group() net.IP                { return nil }
func (stubDialect) Probe(string) ([]byte, error) { return []byte("probe"), nil }
func (s stubDialect) Parse(host string, payload []byte, token string) ([]Device, error) {
	return s.parse(host, payload, token)
}

func TestParserRejections(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		parse  func(string, []byte, string) ([]Device, error)
		reason string
	}{
		{
			name:   "source not an IP",
			host:   "camera.local",
			parse:  func(string, []byte, string) ([]Device, error) { return nil, nil },
			reason: "not an IP address",
		},
		{
			name: "plain error is wrapped",
			host: "10.0.0.1",
			parse: func(string, []byte, string) ([]Device, error) {
				return nil, errors.New("unexpected element")
			},
			reason: "unexpected element",
		},
		{
			name:   "panic is contained",
			host:   "10.0.0.1",
			parse:  func(string, []byte, string) ([]Device, error) { panic("index out of range") },
			reason: "panicked",
		},
		{
			name:   "no devices",
			host:   "10.0.0.1",
			parse:  func(string, []byte, string) ([]Device, error) { return nil, nil },
			reason: "no devices",
		},
		{
			name: "device for another host",
			host: "10.0.0.1",
			parse: func(_ string, p []byte, _ string) ([]Device, error) {
				return []Device{&UPnPDevice{Base: newBase("10.0.0.2", "stub", p)}}, nil
			},
			reason: "attributed device to 10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(stubDialect{parse: tt.parse}, testToken)
			devices, err := p.Parse(tt.host, []byte("payload"))
			require.Error(t, err)
			assert.Nil(t, devices)
			assert.True(t, IsParseRejection(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestParserEmptyPayload(t *testing.T) {
	p := NewParser(NewONVIFDialect(), testToken)
	_, err := p.Parse("10.0.0.1", nil)
	require.Error(t, err)
	assert.Equal(t, "empty payload", RejectionReason(err))
}

func TestParseResponseUnknownMode(t *testing.T) {
	_, err := ParseResponse("dahua", "10.0.0.1", []byte("x"), "")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestParseResponseDispatchesOnMode(t *testing.T) {
	payload := sadpReply(testToken, "192.168.1.64", "44:19:b6:01:02:03")

	devices, err := ParseResponse(ModeHikVision, "192.168.1.64", payload, testToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.IsType(t, &HikVisionDevice{}, devices[0])

	// the same bytes are not a WS-Discovery envelope
	_, err = ParseResponse(ModeONVIF, "192.168.1.64", payload, testToken)
	assert.True(t, IsParseRejection(err))
}
