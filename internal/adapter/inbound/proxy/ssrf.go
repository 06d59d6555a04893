package proxy

import (
	"context"
	"fmt"
	"net"
	"time"
)

// privateNetworks contains CIDR ranges blocked from the tunnel/forwarding
// dialer to prevent SSRF: an allowed hostname that resolves (now or via
// rebinding) to an internal address must not reach it.
var privateNetworks []*net.IPNet

func init() {
	cidrs := []string{
		"127.0.0.0/8",    // IPv4 loopback
		"10.0.0.0/8",     // RFC 1918 private
		"172.16.0.0/12",  // RFC 1918 private
		"192.168.0.0/16", // RFC 1918 private
		"169.254.0.0/16", // link-local (cloud metadata services live here)
		"::1/128",        // IPv6 loopback
		"fc00::/7",       // IPv6 unique local
		"fe80::/10",      // IPv6 link-local
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR in privateNetworks: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP reports whether ip falls within a private/reserved range.
func isPrivateIP(ip net.IP) bool {
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// safeDialer returns a DialContext function that blocks connections to
// private/reserved IP addresses, applied underneath the allowlist check on
// every tunnel and forwarding dial. The check happens after DNS resolution
// and pins the chosen address, which also defeats DNS-rebinding: a second
// lookup inside the dialer could resolve differently than the one checked
// here.
func safeDialer() func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("ssrf: invalid address %q: %w", addr, err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("ssrf: DNS resolution failed for %q: %w", host, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("ssrf: no IPs resolved for %q", host)
		}

		for _, ip := range ips {
			if isPrivateIP(ip.IP) {
				return nil, fmt.Errorf("ssrf: blocked connection to private IP %s (resolved from %s)", ip.IP, host)
			}
		}

		pinned := net.JoinHostPort(ips[0].IP.String(), port)
		return dialer.DialContext(ctx, network, pinned)
	}
}
