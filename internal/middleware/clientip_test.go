package middleware

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIPResolve(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.7/32"),
	}
	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{"no headers", "198.51.100.4:5555", nil, "198.51.100.4"},
		{"untrusted peer ignores header", "198.51.100.4:5555", []string{"203.0.113.9"}, "198.51.100.4"},
		{"trusted peer", "10.0.0.1:5555", []string{"203.0.113.9"}, "203.0.113.9"},
		{"spoofed prefix before real client", "10.0.0.1:5555", []string{"1.2.3.4, 203.0.113.9"}, "203.0.113.9"},
		{"proxy chain", "10.0.0.1:5555", []string{"203.0.113.9, 192.0.2.7, 10.4.4.4"}, "203.0.113.9"},
		{"repeated headers", "10.0.0.1:5555", []string{"1.2.3.4", "203.0.113.9"}, "203.0.113.9"},
		{"garbage hop", "10.0.0.1:5555", []string{"203.0.113.9, not-an-ip"}, "10.0.0.1"},
		{"trusted peer without header", "10.0.0.1:5555", nil, "10.0.0.1"},
		{"mapped ipv4 peer", "[::ffff:10.0.0.1]:5555", []string{"203.0.113.9"}, "203.0.113.9"},
		{"ipv6 peer", "[2001:db8::1]:5555", []string{"203.0.113.9"}, "2001:db8::1"},
	}
	c := NewClientIP(trusted)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/login", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if got := c.Resolve(req); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPWithoutTrustedProxies(t *testing.T) {
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("CF-Connecting-IP", "198.51.100.4")

	if got := NewClientIP(nil).Resolve(req); got != "127.0.0.1" {
		t.Errorf("Resolve = %q, want peer address", got)
	}
	var c *ClientIP
	if got := c.Resolve(req); got != "127.0.0.1" {
		t.Errorf("nil Resolve = %q, want peer address", got)
	}
	if got := PeerIP(req); got != "127.0.0.1" {
		t.Errorf("PeerIP = %q", got)
	}
}
