// Package httpresponse builds the small, complete response bodies the
// proxy produces itself, rather than forwarding from upstream: the
// self-service mitm.it page and CA cert downloads, and the 304/204
// short-circuits the request pipeline issues before ever dialing out.
// Grounded on original_source/src/proxy/bytes_ext.rs's BytesExt::to_response.
package httpresponse

import (
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// WriteBytes writes a complete status/body/headers response for content the
// proxy generated itself. Cache-Control is derived from status (204/304 get
// a long-lived private cache entry so the browser stops re-asking; a 200
// text/* body gets a zero-max-age revalidate-always entry; any other 200
// gets no-store) and mime drives both Content-Type and, for the two CA-cert
// MIME types, a Content-Disposition download filename.
func WriteBytes(ctx *fasthttp.RequestCtx, status int, mime string, body []byte, cacheMaxAge int) {
	ctx.SetStatusCode(status)

	switch status {
	case fasthttp.StatusNoContent, fasthttp.StatusNotModified:
		ctx.Response.Header.Set("Date", time.Now().UTC().Format(time.RFC1123))
		ctx.Response.Header.Set("Cache-Control", fmt.Sprintf(
			"private, max-age=%d, must-revalidate, stale-while-revalidate=604800", cacheMaxAge))
	case fasthttp.StatusOK:
		if strings.HasPrefix(mime, "text/") {
			ctx.Response.Header.Set("Cache-Control", "private, max-age=0, must-revalidate, stale-while-revalidate=604800")
		} else {
			ctx.Response.Header.Set("Cache-Control", "no-store")
		}
	}

	if mime != "" {
		switch mime {
		case "application/pkix-cert":
			ctx.Response.Header.Set("Content-Disposition", "attachment; filename=zhlob-ca-cert.cer")
		case "application/x-x509-ca-cert":
			ctx.Response.Header.Set("Content-Disposition", "attachment; filename=zhlob-ca-cert.pem")
		}
		ctx.Response.Header.SetContentType(mime)
	}

	ctx.SetBody(body)
}
