package discovery

import (
	"encoding/xml"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "0c1a2b3c-4d5e-6f70-8192-a3b4c5d6e7f8"

func probeMatch(relatesTo, address, xaddrs, scopes string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://www.w3.org/2003/05/soap-envelope"
  xmlns:wsa="http://schemas.xmlsoap.org/ws/2004/08/addressing"
  xmlns:d="http://schemas.xmlsoap.org/ws/2005/04/discovery"
  xmlns:dn="http://www.onvif.org/ver10/network/wsdl">
 <SOAP-ENV:Header>
  <wsa:MessageID>uuid:9f1e0000-0000-0000-0000-000000000001</wsa:MessageID>
  <wsa:RelatesTo>%s</wsa:RelatesTo>
  <wsa:Action>http://schemas.xmlsoap.org/ws/2005/04/discovery/ProbeMatches</wsa:Action>
 </SOAP-ENV:Header>
 <SOAP-ENV:Body>
  <d:ProbeMatches>
   <d:ProbeMatch>
    <wsa:EndpointReference><wsa:Address>%s</wsa:Address></wsa:EndpointReference>
    <d:Types>dn:NetworkVideoTransmitter tds:Device</d:Types>
    <d:Scopes>%s</d:Scopes>
    <d:XAddrs>%s</d:XAddrs>
    <d:MetadataVersion>10</d:MetadataVersion>
   </d:ProbeMatch>
  </d:ProbeMatches>
 </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`, relatesTo, address, scopes, xaddrs))
}

func TestONVIFProbe(t *testing.T) {
	payload, err := NewONVIFDialect().Probe(testToken)
	require.NoError(t, err)

	var env struct {
		MessageID string `xml:"Header>MessageID"`
		Types     string `xml:"Body>Probe>Types"`
	}
	require.NoError(t, xml.Unmarshal(payload, &env))
	assert.Equal(t, "uuid:"+testToken, env.MessageID)
	assert.Equal(t, NetworkVideoTransmitter, env.Types)

	all := &ONVIFDialect{}
	payload, err = all.Probe(testToken)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "Types")
}

func TestONVIFParse(t *testing.T) {
	scopes := "onvif://www.onvif.org/type/video_encoder onvif://www.onvif.org/name/HIKVISION%20DS-2CD2032 " +
		"onvif://www.onvif.org/hardware/DS-2CD2032-I onvif://www.onvif.org/location/city/hangzhou " +
		"onvif://www.onvif.org/MAC/44:19:b6:01:02:03"
	payload := probeMatch("uuid:"+testToken, "urn:uuid:a1b2c3d4-0000-1111-2222-4419b6010203",
		"http://192.168.1.64/onvif/device_service http://[fe80::4619:b6ff:fe01:203]/onvif/device_service", scopes)

	devices, err := NewONVIFDialect().Parse("192.168.1.64", payload, testToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	d, ok := devices[0].(*GenericDevice)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.64", d.Host())
	assert.Equal(t, ModeONVIF, d.Mode())
	assert.Equal(t, "urn:uuid:a1b2c3d4-0000-1111-2222-4419b6010203", d.Key())
	assert.Equal(t, "http://192.168.1.64/onvif/device_service", d.Endpoint())
	assert.Len(t, d.XAddrs, 2)
	assert.Equal(t, 10, d.MetadataVersion)
	assert.True(t, d.HasType("NetworkVideoTransmitter"))
	assert.False(t, d.HasType("NetworkVideoDisplay"))
	assert.Equal(t, "HIKVISION DS-2CD2032", d.Name)
	assert.Equal(t, "DS-2CD2032-I", d.Hardware)
	assert.Equal(t, "hangzhou", d.Location)
	assert.Equal(t, "44:19:b6:01:02:03", d.MAC)
	assert.Equal(t, payload, d.Raw())
}

func TestONVIFParseRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		reason  string
	}{
		{
			name:    "not XML",
			payload: []byte("HTTP/1.1 200 OK\r\n\r\n"),
			reason:  "malformed",
		},
		{
			name:    "answer to another probe",
			payload: probeMatch("uuid:11111111-2222-3333-4444-555555555555", "urn:uuid:x", "http://192.168.1.64/onvif/device_service", ""),
			reason:  "RelatesTo",
		},
		{
			name:    "no XAddrs",
			payload: probeMatch("uuid:"+testToken, "urn:uuid:x", "  ", ""),
			reason:  "no XAddrs",
		},
		{
			name: "our own probe looped back",
			payload: func() []byte {
				p, _ := NewONVIFDialect().Probe(testToken)
				return p
			}(),
			reason: "no ProbeMatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := NewONVIFDialect().Parse("192.168.1.64", tt.payload, testToken)
			require.Error(t, err)
			assert.Nil(t, devices)
			assert.True(t, IsParseRejection(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestONVIFParseAcceptsURNRelatesTo(t *testing.T) {
	payload := probeMatch("urn:uuid:"+strings.ToUpper(testToken), "", "http://10.0.0.7/onvif/device_service", "")
	devices, err := NewONVIFDialect().Parse("10.0.0.7", payload, testToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "http://10.0.0.7/onvif/device_service", devices[0].Key())
}

func TestONVIFParseMissingRelatesTo(t *testing.T) {
	payload := probeMatch("", "urn:uuid:abc", "http://10.0.0.8/onvif/device_service", "")
	_, err := NewONVIFDialect().Parse("10.0.0.8", payload, testToken)
	assert.NoError(t, err)
}
