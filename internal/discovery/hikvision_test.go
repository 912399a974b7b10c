package discovery

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sadpReply(uuid, ipv4, mac string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ProbeMatch>
<Uuid>%s</Uuid>
<Types>inquiry</Types>
<DeviceType>139</DeviceType>
<DeviceDescription>DS-2CD2032-I</DeviceDescription>
<DeviceSN>DS-2CD2032-I20141012CCWR487654321</DeviceSN>
<CommandPort>8000</CommandPort>
<HttpPort>80</HttpPort>
<MAC>%s</MAC>
<IPv4Address>%s</IPv4Address>
<IPv4SubnetMask>255.255.255.0</IPv4SubnetMask>
<IPv4Gateway>192.168.1.1</IPv4Gateway>
<DHCP>false</DHCP>
<SoftwareVersion>V5.2.5build 141201</SoftwareVersion>
<BootTime>2015-01-01 00:00:00</BootTime>
<Activated>true</Activated>
<SafeCode>YmFzZTY0</SafeCode>
</ProbeMatch>`, uuid, mac, ipv4))
}

func TestHikVisionProbe(t *testing.T) {
	payload, err := NewHikVisionDialect(DefaultHikVisionFields()).Probe(testToken)
	require.NoError(t, err)
	s := string(payload)
	assert.Contains(t, s, "<Uuid>"+strings.ToUpper(testToken)+"</Uuid>")
	assert.Contains(t, s, "<Types>inquiry</Types>")
	assert.True(t, strings.HasSuffix(s, "</Probe>"))
}

func TestHikVisionParse(t *testing.T) {
	payload := sadpReply(strings.ToUpper(testToken), "192.168.1.64", "44-19-B6-01-02-03")
	devices, err := NewHikVisionDialect(DefaultHikVisionFields()).Parse("192.168.1.64", payload, testToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	d, ok := devices[0].(*HikVisionDevice)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.64", d.Host())
	assert.Equal(t, ModeHikVision, d.Mode())
	assert.Equal(t, "DS-2CD2032-I", d.Description)
	assert.Equal(t, "192.168.1.64", d.IPv4Address)
	assert.Equal(t, "44:19:b6:01:02:03", d.MAC)
	assert.Equal(t, "44:19:b6:01:02:03", d.Key())
	assert.Equal(t, "139", d.DeviceType)
	assert.Equal(t, "DS-2CD2032-I20141012CCWR487654321", d.SerialNumber)
	assert.Equal(t, "255.255.255.0", d.SubnetMask)
	assert.Equal(t, "192.168.1.1", d.Gateway)
	assert.Equal(t, 8000, d.CommandPort)
	assert.Equal(t, 80, d.HTTPPort)
	assert.Equal(t, "http://192.168.1.64:80", d.Endpoint())
	assert.Equal(t, "V5.2.5build 141201", d.SoftwareVersion)
	assert.Equal(t, "2015-01-01 00:00:00", d.BootTime)
	assert.Equal(t, "YmFzZTY0", d.SafeCode)
	assert.False(t, d.DHCP)
	assert.True(t, d.Activated)
}

func TestHikVisionParseRejections(t *testing.T) {
	valid := sadpReply(testToken, "192.168.1.64", "44:19:b6:01:02:03")

	tests := []struct {
		name    string
		payload []byte
		reason  string
	}{
		{"missing MAC", []byte(strings.Replace(string(valid), "<MAC>44:19:b6:01:02:03</MAC>", "", 1)), "missing MAC"},
		{"malformed MAC", sadpReply(testToken, "192.168.1.64", "44:19:b6:01:02"), "not a hardware address"},
		{"missing IPv4", []byte(strings.Replace(string(valid), "<IPv4Address>192.168.1.64</IPv4Address>", "", 1)), "missing IPv4Address"},
		{"malformed IPv4", sadpReply(testToken, "192.168.1.300", "44:19:b6:01:02:03"), "not an IPv4 address"},
		{"IPv6 in IPv4 field", sadpReply(testToken, "fe80::1", "44:19:b6:01:02:03"), "not an IPv4 address"},
		{"other probe", sadpReply("11111111-2222-3333-4444-555555555555", "192.168.1.64", "44:19:b6:01:02:03"), "does not match"},
		{"our own inquiry", []byte(`<?xml version="1.0"?><Probe><Uuid>X</Uuid><Types>inquiry</Types></Probe>`), "root element"},
		{"garbage", []byte("\x00\x01\x02"), "malformed"},
		{"truncated", valid[:len(valid)/2], "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := NewHikVisionDialect(DefaultHikVisionFields()).Parse("192.168.1.64", tt.payload, testToken)
			require.Error(t, err)
			assert.Nil(t, devices)
			assert.True(t, IsParseRejection(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestHikVisionParseKeepsMismatchedSource(t *testing.T) {
	// devices behind NAT or mid re-addressing report a different address
	payload := sadpReply(testToken, "192.168.1.64", "44:19:b6:01:02:03")
	devices, err := NewHikVisionDialect(DefaultHikVisionFields()).Parse("10.0.0.5", payload, testToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "10.0.0.5", devices[0].Host())
	assert.Equal(t, "192.168.1.64", devices[0].(*HikVisionDevice).IPv4Address)
}

func TestHikVisionCustomFields(t *testing.T) {
	fields := DefaultHikVisionFields()
	fields.Root = "DeviceInfo"
	fields.MAC = "MACAddress"
	fields.IPv4Address = "IP"

	payload := []byte(`<DeviceInfo><MACAddress>aa:bb:cc:dd:ee:ff</MACAddress><IP>10.1.1.9</IP></DeviceInfo>`)
	devices, err := NewHikVisionDialect(fields).Parse("10.1.1.9", payload, testToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	d := devices[0].(*HikVisionDevice)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", d.MAC)
	assert.Empty(t, d.Description)
	assert.Empty(t, d.Endpoint())
}

func TestHikVisionParseElementShapes(t *testing.T) {
	// repeated elements keep the first value; attributes and nesting are
	// tolerated around the text the fields name
	payload := []byte(`<ProbeMatch>
<MAC kind="eth"> 44:19:b6:01:02:03 </MAC>
<IPv4Address>192.168.1.64</IPv4Address>
<IPv4Address>192.168.1.65</IPv4Address>
<DeviceDescription><Model>DS-2CD2032-I</Model></DeviceDescription>
<HttpPort>eighty</HttpPort>
</ProbeMatch>`)
	devices, err := NewHikVisionDialect(DefaultHikVisionFields()).Parse("192.168.1.64", payload, testToken)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	d := devices[0].(*HikVisionDevice)
	assert.Equal(t, "44:19:b6:01:02:03", d.MAC)
	assert.Equal(t, "192.168.1.64", d.IPv4Address)
	assert.Empty(t, d.Description)
	assert.Equal(t, 0, d.HTTPPort)
	assert.Empty(t, d.Endpoint())
}

func TestDecodeXML(t *testing.T) {
	root, body, err := decodeXML([]byte(`<A><B> one </B><C><D>nested</D></C><B>two</B></A>`))
	require.NoError(t, err)
	assert.Equal(t, "A", root)
	assert.Equal(t, "one", childText(body, "B"))
	assert.Equal(t, "", childText(body, "C"))
	assert.Equal(t, "", childText(body, "D"))

	root, body, err = decodeXML([]byte(`<Empty/>`))
	require.NoError(t, err)
	assert.Equal(t, "Empty", root)
	assert.Equal(t, "", childText(body, "B"))

	_, _, err = decodeXML([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	assert.Error(t, err)
}

func TestHikVisionFieldOverrides(t *testing.T) {
	fields, err := DefaultHikVisionFields().WithOverrides(map[string]string{
		"mac":          "MACAddress",
		"IPv4_Address": " IP ",
	})
	require.NoError(t, err)
	assert.Equal(t, "MACAddress", fields.MAC)
	assert.Equal(t, "IP", fields.IPv4Address)
	assert.Equal(t, "DeviceDescription", fields.Description)

	_, err = DefaultHikVisionFields().WithOverrides(map[string]string{"firmware": "X"})
	assert.True(t, IsConfigurationError(err))

	_, err = DefaultHikVisionFields().WithOverrides(map[string]string{"mac": ""})
	assert.True(t, IsConfigurationError(err))
}
