package addrs

import "testing"

func TestIsIPv4(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"192.168.1.255", true},
		{"10.0.0.1", true},
		{"0.0.0.0", true},
		{"192.168.1.300", false},
		{"192.168.1", false},
		{"", false},
		{"fe80::1", false},
		{"::ffff:192.168.1.1", false},
		{"2001:db8::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsIPv4(tt.in); got != tt.want {
				t.Errorf("IsIPv4(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsIPv6(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"fe80::1", true},
		{"2001:db8::ff00:42:8329", true},
		{"::1", true},
		{"::ffff:1.2.3.4", true},
		{"fe80::1%eth0", true},
		{"fe80::1%", false},
		{"1.2.3.4%eth0", false},
		{"192.168.1.1", false},
		{"fe80::zz", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsIPv6(tt.in); got != tt.want {
				t.Errorf("IsIPv6(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsIP(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"::ffff:1.2.3.4", true},
		{"fe80::1%eth0", true},
		{"localhost", false},
		{"256.1.1.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsIP(tt.in); got != tt.want {
				t.Errorf("IsIP(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", true},
		{"44-19-b6-01-02-03", "44:19:b6:01:02:03", true},
		{" 44:19:B6:01:02:03 ", "44:19:b6:01:02:03", true},
		{"44:19:b6:01:02", "", false},
		{"00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", "", false},
		{"not-a-mac", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeMAC(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeMAC(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
