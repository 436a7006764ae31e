package pipeline

import (
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/zhlob/proxy/internal/urlutil"
)

// Forwarder sends a decrypted, already-normalized request upstream and
// fills resp with whatever comes back. The pipeline calls it once per
// request, after the Terminator (the out-of-scope TLS-termination
// collaborator named in the spec glossary) has handed this proxy a plain
// HTTP request to forward.
type Forwarder interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
}

// ClientForwarder forwards with a *fasthttp.Client, the teacher's own HTTP
// client type (internal/edge/sharding/client.go uses the same type for its
// own outbound calls).
type ClientForwarder struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewClientForwarder builds a ClientForwarder with sane pooling defaults
// for a forward proxy fanning out to arbitrary origins. StreamResponseBody
// is enabled so the pipeline can enforce its transform-size limit against a
// bounded read instead of having the client buffer an unbounded body
// in-memory before the limit check ever runs. Dial resolves the origin
// host itself and rejects any address that resolves to a private/reserved
// IP, so a page can't use this proxy to reach the operator's own internal
// network by pointing a link at an attacker-controlled domain that
// resolves to, say, 169.254.169.254.
func NewClientForwarder(timeout time.Duration) *ClientForwarder {
	return &ClientForwarder{
		client: &fasthttp.Client{
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			MaxIdleConnDuration:      90 * time.Second,
			NoDefaultUserAgentHeader: true,
			StreamResponseBody:       true,
			Dial:                     ssrfSafeDial,
		},
		timeout: timeout,
	}
}

// ssrfSafeDial resolves addr's host, rejects the dial if any resolved IP is
// private/reserved, and only then connects — checking the resolved IPs
// rather than the literal hostname closes the DNS-rebinding gap a
// hostname-only check would leave open.
func ssrfSafeDial(addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("dns resolution failed for %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %q", host)
	}
	for _, ip := range ips {
		if err := urlutil.ValidateResolvedIP(ip); err != nil {
			return nil, fmt.Errorf("ssrf protection for %q: %w", host, err)
		}
	}

	return fasthttp.DialTimeout(net.JoinHostPort(ips[0].String(), port), 10*time.Second)
}

// Do forwards req and reads the full response into resp.
func (f *ClientForwarder) Do(req *fasthttp.Request, resp *fasthttp.Response) error {
	return f.client.DoTimeout(req, resp, f.timeout)
}
