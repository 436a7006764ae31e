package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestInjectEtagMarkerWrapsQuotedEtag(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("ETag", `"abc123"`)
	InjectEtagMarker(h, "gen1")
	assert.Equal(t, `"zhlob~gen1~abc123"`, string(h.Peek("ETag")))
}

func TestInjectEtagMarkerPreservesWeakPrefix(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("ETag", `W/"abc123"`)
	InjectEtagMarker(h, "gen1")
	assert.Equal(t, `W/"zhlob~gen1~abc123"`, string(h.Peek("ETag")))
}

func TestInjectEtagMarkerNoopWithoutEtag(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	InjectEtagMarker(h, "gen1")
	assert.Empty(t, h.Peek("ETag"))
}

func TestStripEtagMarkerRoundTrip(t *testing.T) {
	rh := &fasthttp.RequestHeader{}
	rh.Set("If-None-Match", `"zhlob~gen1~abc123", "other"`)
	StripEtagMarker(rh)
	assert.Equal(t, `"abc123", "other"`, string(rh.Peek("If-None-Match")))
}

func TestStripEtagMarkerNoopWithoutMarker(t *testing.T) {
	rh := &fasthttp.RequestHeader{}
	rh.Set("If-None-Match", `"abc123"`)
	StripEtagMarker(rh)
	assert.Equal(t, `"abc123"`, string(rh.Peek("If-None-Match")))
}

func TestNormalizeForPatchedContentNoStorePassesThrough(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Cache-Control", "no-store")
	NormalizeForPatchedContent(h, 3600)
	assert.Equal(t, "no-store", string(h.Peek("Cache-Control")))
}

func TestNormalizeForPatchedContentClampsMaxAge(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Cache-Control", "public, max-age=99999")
	h.Set("Date", "Mon, 02 Jan 2006 15:04:05 GMT")
	NormalizeForPatchedContent(h, 3600)
	assert.Contains(t, string(h.Peek("Cache-Control")), "max-age=3600")
	assert.Contains(t, string(h.Peek("Cache-Control")), "stale-while-revalidate=604800")
}

func TestNormalizeForPatchedContentSetsVary(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Cache-Control", "public, max-age=10")
	NormalizeForPatchedContent(h, 3600)
	assert.Equal(t, "accept-encoding", string(h.Peek("Vary")))
}

func TestNormalizeForPatchedContentPrependsVary(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Cache-Control", "public, max-age=10")
	h.Set("Vary", "Origin")
	NormalizeForPatchedContent(h, 3600)
	assert.Equal(t, "accept-encoding, origin", string(h.Peek("Vary")))
}

func TestExtractCharsetDefaultsToUTF8(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.SetContentType("text/html")
	assert.Equal(t, "utf-8", ExtractCharset(h))
}

func TestExtractCharsetParsesParam(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.SetContentType("text/html; charset=windows-1251")
	assert.Equal(t, "windows-1251", ExtractCharset(h))
}

func TestCSPAllowsInlineJSInAttrsNoHeaderIsPermissive(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	assert.True(t, CSPAllowsInlineJSInAttrs(h))
}

func TestCSPAllowsInlineJSInAttrsRequiresUnsafeInline(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Content-Security-Policy", "script-src 'self'")
	assert.False(t, CSPAllowsInlineJSInAttrs(h))
}

func TestCSPAllowsInlineJSInAttrsUnsafeInlineGrantsPermission(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Content-Security-Policy", "script-src 'unsafe-inline'")
	assert.True(t, CSPAllowsInlineJSInAttrs(h))
}

func TestCSPAllowsInlineJSInAttrsStrictDynamicAlwaysDenies(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Content-Security-Policy", "script-src 'unsafe-inline' 'strict-dynamic'")
	assert.False(t, CSPAllowsInlineJSInAttrs(h))
}

func TestCSPAllowsInlineJSInAttrsScriptSrcAttrTakesPrecedence(t *testing.T) {
	h := &fasthttp.ResponseHeader{}
	h.Set("Content-Security-Policy", "script-src 'unsafe-inline'; script-src-attr 'none'")
	assert.False(t, CSPAllowsInlineJSInAttrs(h))
}
