package pipeline

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/zhlob/proxy/internal/headers"
)

// fingerprintingHeaders lists the server-identifying headers every
// response gets scrubbed of, regardless of status, matching the teacher's
// h_remove! list in response_ext.rs's normalize_headers.
var fingerprintingHeaders = []string{
	"X-Powered-By", "X-Server", "X-Served-By", "Server", "X-AspNet-Version",
	"X-Generator", "X-Drupal-Cache", "X-Varnish", "X-Correlation-ID",
	"X-Debug-Token", "X-Debug-Token-Link", "X-Runtime", "X-VCache-Status",
	"Server-Timing", "X-Robots-Tag", "X-Cache", "X-Cache-Hits", "X-Timer",
	"Pragma", "Keep-Alive", "Proxy-Authenticate",
}

// NormalizeResponseHeaders strips fingerprinting/hop-by-hop headers from
// every outgoing response, drops a stale Expires when Cache-Control already
// carries a max-age, and downgrades a chunked Transfer-Encoding for
// non-HTTP/1.1 clients by folding any recognized coding into
// Content-Encoding (re-running NormalizeForPatchedContent so the resulting
// Cache-Control/Vary stay consistent) — or, for HTTP/1.1 clients that keep
// chunked framing, drops the now-meaningless Content-Length. Grounded on
// original_source/src/proxy/response_ext.rs's ResponseExt::normalize_headers.
func NormalizeResponseHeaders(h *fasthttp.ResponseHeader, status int, isHTTP11 bool, cacheMaxAge int) {
	for _, key := range fingerprintingHeaders {
		h.Del(key)
	}

	const statusSwitchingProtocols = 101
	if status != statusSwitchingProtocols {
		h.Del("Connection")
		h.Del("Upgrade")
	}

	if headers.ContainsToken(h, "Cache-Control", "max-age") {
		h.Del("Expires")
	}

	te := string(h.Peek("Transfer-Encoding"))
	if te == "" {
		return
	}

	if isHTTP11 {
		h.Del("Content-Length")
		return
	}

	ce := headers.GetSafe(h, "Content-Encoding")
	moved := false
	for _, part := range strings.Split(strings.ToLower(te), ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "gzip", "deflate", "compress":
			if ce != "" {
				ce += ", "
			}
			ce += part
			moved = true
		}
	}

	if moved {
		h.Set("Content-Encoding", ce)
		headers.NormalizeForPatchedContent(h, cacheMaxAge)
	}
	h.Del("Transfer-Encoding")
}
