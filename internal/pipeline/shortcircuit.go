package pipeline

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/zhlob/proxy/internal/httpresponse"
)

// SkipIfBrowserHasCached reports whether a request should be answered with
// a bare 304 without forwarding upstream: either the client's If-None-Match
// already carries this proxy's ETag marker (so the cached copy was produced
// by the same generation and is still valid), or the request carries any
// conditional header at all for a media/video/audio accept (a cheap,
// conservative skip for resources this proxy never actually needs to
// re-validate against origin). Grounded on
// original_source/src/proxy/request_ext.rs's skip_if_browser_has_cached.
func SkipIfBrowserHasCached(ctx *fasthttp.RequestCtx, h *fasthttp.RequestHeader, accept string, cacheMaxAge int) bool {
	ifNoneMatch := string(h.Peek("If-None-Match"))
	hasMarker := strings.Contains(strings.ToLower(ifNoneMatch), `w/"zhlob~`)

	hasConditional := len(h.Peek("If-Modified-Since")) > 0 || len(ifNoneMatch) > 0
	isMediaAccept := acceptStartsWithAny(accept, "image/", "video/", "audio/")

	if !hasMarker && !(hasConditional && isMediaAccept) {
		return false
	}

	httpresponse.WriteBytes(ctx, fasthttp.StatusNotModified, "", nil, cacheMaxAge)
	return true
}

// SkipMediaOrFavicon reports whether a request should be answered with a
// bare 204 without forwarding upstream: a /favicon* request for an
// ico/png/gif extension, or a video/audio accept. Grounded on
// original_source/src/proxy/request_ext.rs's skip_media_or_favicon.
func SkipMediaOrFavicon(ctx *fasthttp.RequestCtx, path string, accept string, cacheMaxAge int) bool {
	if !isFaviconPath(path) && !acceptStartsWithAny(accept, "video/", "audio/") {
		return false
	}

	httpresponse.WriteBytes(ctx, fasthttp.StatusNoContent, "", nil, cacheMaxAge)
	return true
}

func isFaviconPath(path string) bool {
	if len(path) < 12 || !strings.EqualFold(path[:8], "/favicon") {
		return false
	}
	dot := strings.LastIndexByte(path, '.')
	if dot == -1 {
		return false
	}
	switch strings.ToLower(path[dot+1:]) {
	case "ico", "png", "gif":
		return true
	default:
		return false
	}
}

func acceptStartsWithAny(accept string, prefixes ...string) bool {
	limit := 6
	if len(accept) < limit {
		limit = len(accept)
	}
	head := accept[:limit]
	for _, p := range prefixes {
		if strings.HasPrefix(head, p) {
			return true
		}
	}
	return false
}

// SkipOnProxyError reports whether the upstream proxy itself rejected this
// request for lack of credentials (407), in which case the client gets a
// 502 instead of a confusing passthrough 407. Grounded on
// original_source/src/proxy/parts_ext.rs's skip_on_proxy_error.
func SkipOnProxyError(ctx *fasthttp.RequestCtx, upstreamStatus int) bool {
	if upstreamStatus != fasthttp.StatusProxyAuthRequired {
		return false
	}
	ctx.SetStatusCode(fasthttp.StatusBadGateway)
	ctx.Response.Header.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString("Error: Upstream proxy requires authentication.")
	return true
}

// SkipMediaOrFontOrFavicon reports whether an upstream response's
// Content-Type is one this proxy never transforms or caches, regardless of
// size (icons, video, audio, fonts), answering 204 with the original
// Content-Type echoed back instead of forwarding the body. Grounded on
// original_source/src/proxy/parts_ext.rs's skip_media_or_font_or_favicon.
func SkipMediaOrFontOrFavicon(ctx *fasthttp.RequestCtx, contentType string, cacheMaxAge int) bool {
	lower := strings.ToLower(strings.TrimSpace(contentType))
	skip := lower == "image/x-icon" || lower == "image/vnd.microsoft.icon" ||
		strings.HasPrefix(lower, "video/") || strings.HasPrefix(lower, "audio/") ||
		strings.HasPrefix(lower, "font/") ||
		strings.HasPrefix(lower, "application/font-") || strings.HasPrefix(lower, "application/x-font-")
	if !skip {
		return false
	}

	httpresponse.WriteBytes(ctx, fasthttp.StatusNoContent, contentType, nil, cacheMaxAge)
	return true
}
