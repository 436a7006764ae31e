// Package urlutil guards the proxy's own outbound dial against SSRF: before
// internal/pipeline/forwarder.go connects to an origin, it checks every IP
// that origin's hostname resolved to against this package's private/
// reserved-range table, so a rewritten page can't use this proxy as a relay
// into the operator's internal network.
package urlutil

import (
	"fmt"
	"net"
)

// privateRanges are the private and reserved IP ranges forwarder.go must
// never dial, because a response from them could leak internal state back
// through the proxy to whatever page's link triggered the fetch.
var privateRanges []*net.IPNet

func init() {
	cidrs := []string{
		// IPv4
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"169.254.0.0/16", // link-local, includes the cloud metadata endpoint
		"100.64.0.0/10",  // CGNAT (RFC 6598)
		"0.0.0.0/8",      // "this" network
		"224.0.0.0/4",    // multicast

		// IPv6
		"::1/128",   // loopback
		"fe80::/10", // link-local
		"fc00::/7",  // unique local
		"ff00::/8",  // multicast
	}

	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in SSRF private ranges: %s", cidr))
		}
		privateRanges = append(privateRanges, ipNet)
	}
}

// IsPrivateIP reports whether ip falls in a private or reserved range.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, ipNet := range privateRanges {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateResolvedIP rejects ip if it's private/reserved. Call this against
// every address a hostname resolved to, not the hostname itself — checking
// post-resolution addresses is what catches DNS rebinding, where a
// public-looking domain resolves to an internal address only at fetch time.
func ValidateResolvedIP(ip net.IP) error {
	if IsPrivateIP(ip) {
		return fmt.Errorf("resolved IP is in a private/reserved range: %s", ip.String())
	}
	return nil
}
