package pipeline

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// NormalizeRequestHeaders strips the hop-by-hop and proxy-only headers a
// forwarded request must not carry upstream: Connection/Upgrade (unless the
// client actually asked to upgrade the connection), Proxy-Authorization,
// Proxy-Connection, and Keep-Alive. Grounded on
// original_source/src/proxy/request_ext.rs's normalize_headers.
func NormalizeRequestHeaders(h *fasthttp.RequestHeader) {
	if !containsTokenFold(string(h.Peek("Connection")), "upgrade") {
		h.Del("Connection")
		h.Del("Upgrade")
	}
	h.Del("Proxy-Authorization")
	h.Del("Proxy-Connection")
	h.Del("Keep-Alive")
}

// NormalizeAndGetAccept applies NormalizeRequestHeaders, then rewrites the
// request's Accept header to drop the image formats this proxy never wants
// upstream to send (avif/heic/heif/apng — none of which its own image
// recompression step can decode), collapsing to "*/*" if nothing is left.
// It returns the rewritten Accept value lowercased, for the pipeline's own
// transform-eligibility checks. Grounded on
// original_source/src/proxy/request_ext.rs's normalize_and_get_accept.
func NormalizeAndGetAccept(h *fasthttp.RequestHeader) string {
	NormalizeRequestHeaders(h)

	var kept []string
	for _, val := range h.PeekAll("Accept") {
		for _, part := range strings.Split(string(val), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if len(part) >= 10 && isSuppressedImageToken(part[:10]) {
				continue
			}
			kept = append(kept, part)
		}
	}

	accept := strings.Join(kept, ", ")
	if accept == "" {
		accept = "*/*"
	}

	h.Set("Accept", accept)
	return strings.ToLower(accept)
}

func isSuppressedImageToken(prefix string) bool {
	switch strings.ToLower(prefix) {
	case "image/avif", "image/heic", "image/heif", "image/apng":
		return true
	default:
		return false
	}
}

func containsTokenFold(headerValue, token string) bool {
	return strings.Contains(strings.ToLower(headerValue), strings.ToLower(token))
}
