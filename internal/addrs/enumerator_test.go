package addrs

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipnet(cidr string) *net.IPNet {
	ip, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func fakeEnumerator(ifaces []net.Interface, addrs map[string][]net.Addr) *Enumerator {
	return &Enumerator{
		Interfaces: func() ([]net.Interface, error) { return ifaces, nil },
		Addrs: func(ifi net.Interface) ([]net.Addr, error) {
			a, ok := addrs[ifi.Name]
			if !ok {
				return nil, errors.New("no such interface")
			}
			return a, nil
		},
	}
}

func TestTargets(t *testing.T) {
	ifaces := []net.Interface{
		{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		{Index: 2, Name: "eth0", Flags: net.FlagUp | net.FlagBroadcast | net.FlagMulticast},
		{Index: 3, Name: "eth1", Flags: net.FlagBroadcast},
		{Index: 4, Name: "wg0", Flags: net.FlagUp},
		{Index: 5, Name: "v6only", Flags: net.FlagUp | net.FlagMulticast},
		{Index: 6, Name: "broken", Flags: net.FlagUp},
	}
	addrs := map[string][]net.Addr{
		"lo":     {ipnet("127.0.0.1/8")},
		"eth0":   {ipnet("192.168.1.20/24"), ipnet("fe80::1/64")},
		"eth1":   {ipnet("10.0.0.5/8")},
		"wg0":    {ipnet("10.8.0.2/32")},
		"v6only": {ipnet("2001:db8::2/64")},
	}

	targets, err := fakeEnumerator(ifaces, addrs).Targets()
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "eth0", targets[0].Interface)
	assert.Equal(t, 2, targets[0].Index)
	assert.Equal(t, "192.168.1.20", targets[0].Local.String())
	assert.Equal(t, "192.168.1.255", targets[0].Broadcast.String())

	assert.True(t, targets[0].Contains(net.ParseIP("192.168.1.64")))
	assert.False(t, targets[0].Contains(net.ParseIP("192.168.2.64")))

	assert.Equal(t, "wg0", targets[1].Interface)
	assert.Nil(t, targets[1].Broadcast)
}

func TestTargetsAllowList(t *testing.T) {
	ifaces := []net.Interface{
		{Index: 2, Name: "eth0", Flags: net.FlagUp},
		{Index: 3, Name: "eth1", Flags: net.FlagUp},
	}
	addrs := map[string][]net.Addr{
		"eth0": {ipnet("192.168.1.20/24")},
		"eth1": {ipnet("172.16.4.9/20")},
	}

	e := fakeEnumerator(ifaces, addrs)
	e.Allow = []string{"eth1"}

	targets, err := e.Targets()
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "172.16.15.255", targets[0].Broadcast.String())
}

func TestTargetsEnumerationError(t *testing.T) {
	boom := errors.New("netlink unavailable")
	e := &Enumerator{
		Interfaces: func() ([]net.Interface, error) { return nil, boom },
	}

	_, err := e.Targets()
	require.Error(t, err)

	var enumErr *EnumerationError
	require.ErrorAs(t, err, &enumErr)
	assert.ErrorIs(t, err, boom)
}

func TestBroadcastAddressesDeduplicates(t *testing.T) {
	ifaces := []net.Interface{
		{Index: 2, Name: "eth0", Flags: net.FlagUp},
		{Index: 3, Name: "eth0.10", Flags: net.FlagUp},
	}
	addrs := map[string][]net.Addr{
		"eth0":    {ipnet("192.168.1.20/24")},
		"eth0.10": {ipnet("192.168.1.21/24")},
	}

	got, err := fakeEnumerator(ifaces, addrs).BroadcastAddresses()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "192.168.1.255", got[0].String())
}

func TestLocalIP(t *testing.T) {
	e := fakeEnumerator(nil, nil)
	ip, err := e.LocalIP()
	require.NoError(t, err)
	assert.Nil(t, ip)

	e = fakeEnumerator(
		[]net.Interface{{Index: 2, Name: "eth0", Flags: net.FlagUp}},
		map[string][]net.Addr{"eth0": {ipnet("192.168.1.20/24")}},
	)
	ip, err = e.LocalIP()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", ip.String())

	all, err := e.InterfaceAddresses()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBroadcastOf(t *testing.T) {
	tests := []struct {
		cidr string
		want string
	}{
		{"192.168.1.20/24", "192.168.1.255"},
		{"10.1.2.3/8", "10.255.255.255"},
		{"172.16.4.9/20", "172.16.15.255"},
		{"10.0.0.1/31", "<nil>"},
		{"10.0.0.1/32", "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			n := ipnet(tt.cidr)
			got := broadcastOf(n.IP.To4(), n.Mask)
			if got.String() != tt.want {
				t.Errorf("broadcastOf(%s) = %v, want %v", tt.cidr, got, tt.want)
			}
		})
	}
}
