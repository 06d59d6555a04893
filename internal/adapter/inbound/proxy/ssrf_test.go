package proxy

import (
	"context"
	"net"
	"testing"
)

func TestIsPrivateIP(t *testing.T) {
	cases := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.5", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
	}
	for _, c := range cases {
		ip := net.ParseIP(c.ip)
		if got := isPrivateIP(ip); got != c.private {
			t.Errorf("isPrivateIP(%s) = %v, want %v", c.ip, got, c.private)
		}
	}
}

func TestSafeDialerBlocksLoopback(t *testing.T) {
	dial := safeDialer()
	_, err := dial(context.Background(), "tcp", "127.0.0.1:80")
	if err == nil {
		t.Fatal("expected dial to loopback to be blocked")
	}
}

func TestSafeDialerRejectsBadAddress(t *testing.T) {
	dial := safeDialer()
	_, err := dial(context.Background(), "tcp", "not-a-valid-addr")
	if err == nil {
		t.Fatal("expected error for malformed address")
	}
}
