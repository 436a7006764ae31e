// Package headers implements the proxy's response/request header
// normalization (spec §4.I): Cache-Control rewriting, ETag-marker
// inject/strip, charset detection, and CSP introspection for the
// preload-as-style rewrite decision. Grounded on
// original_source/src/proxy/headers_map_ext.rs, ported from its HeaderMap
// extension-trait methods onto *fasthttp.RequestHeader/*fasthttp.ResponseHeader,
// the teacher's own HTTP header type.
package headers

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// GetSafe joins every value of a (possibly repeated, possibly
// comma-list-valued) response header into one lowercased, comma-joined,
// whitespace-trimmed string, matching HeaderMapExt::get_safe.
func GetSafe(h *fasthttp.ResponseHeader, key string) string {
	return getSafe(h.PeekAll(key))
}

// GetSafeRequest is GetSafe for request headers.
func GetSafeRequest(h *fasthttp.RequestHeader, key string) string {
	return getSafe(h.PeekAll(key))
}

func getSafe(values [][]byte) string {
	var parts []string
	for _, v := range values {
		for _, p := range strings.Split(string(v), ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.ToLower(strings.Join(parts, ", "))
}

// GetAsInt parses a single integer-valued response header, returning 0 if
// absent or unparsable, matching HeaderMapExt::get_as's default-on-failure
// behavior.
func GetAsInt(h *fasthttp.ResponseHeader, key string) int {
	v := strings.TrimSpace(string(h.Peek(key)))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// ContainsToken reports whether any value of header key contains token as a
// case-insensitive substring, the common case of the teacher's in_headers!
// macro (its "*val*" form).
func ContainsToken(h *fasthttp.ResponseHeader, key, token string) bool {
	return strings.Contains(GetSafe(h, key), strings.ToLower(token))
}

// ContainsTokenRequest is ContainsToken for request headers.
func ContainsTokenRequest(h *fasthttp.RequestHeader, key, token string) bool {
	return strings.Contains(GetSafeRequest(h, key), strings.ToLower(token))
}

const etagMarkerPrefix = "zhlob~"

// InjectEtagMarker rewrites a response's ETag, if present, to carry marker
// (an opaque token identifying the blocklist/config generation that
// produced this transformed body) right after any weak-validator/quote
// prefix, so a later request's conditional headers can be matched against
// the *current* marker by StripEtagMarker. marker must not itself contain
// '~' beyond the two delimiters this function adds.
func InjectEtagMarker(h *fasthttp.ResponseHeader, marker string) {
	etag := h.Peek("ETag")
	if len(etag) == 0 {
		return
	}

	pos := 0
	var out strings.Builder
	out.Grow(len(etag) + len(etagMarkerPrefix) + len(marker) + 1)

	if bytesHasPrefix(etag, "W/") {
		out.WriteString("W/")
		pos = 2
	}
	if pos < len(etag) && etag[pos] == '"' {
		out.WriteByte('"')
		pos++
	}
	out.WriteString(etagMarkerPrefix)
	out.WriteString(marker)
	out.WriteByte('~')
	out.Write(etag[pos:])

	h.SetBytesV("ETag", []byte(out.String()))
}

func bytesHasPrefix(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == prefix
}

// StripEtagMarker removes this proxy's marker from every If-Match/
// If-None-Match entry, so the conditional request that reaches upstream
// compares against the original, unmarked ETag. Per-entry bodies that carry
// no marker are left untouched.
func StripEtagMarker(h *fasthttp.RequestHeader) {
	for _, key := range []string{"If-Match", "If-None-Match"} {
		raw := h.Peek(key)
		if len(raw) == 0 {
			continue
		}
		stripped, changed := stripMarkerList(string(raw))
		if changed {
			h.Set(key, stripped)
		}
	}
}

// stripMarkerList removes every "zhlob~<generation>~" infix occurring right
// after each entry's optional W/ and quote prefix in a comma-separated list
// of ETags.
func stripMarkerList(list string) (string, bool) {
	entries := strings.Split(list, ",")
	changed := false
	for i, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		entries[i] = trimmed
		prefixLen := 0
		switch {
		case strings.HasPrefix(trimmed, `W/"`):
			prefixLen = 3
		case strings.HasPrefix(trimmed, "W/"):
			prefixLen = 2
		case strings.HasPrefix(trimmed, `"`):
			prefixLen = 1
		}

		body := trimmed[prefixLen:]
		if strings.HasPrefix(body, "zhlob~") {
			rest := body[len("zhlob~"):]
			if idx := strings.IndexByte(rest, '~'); idx != -1 {
				entries[i] = trimmed[:prefixLen] + rest[idx+1:]
				changed = true
			}
		}
	}
	if !changed {
		return list, false
	}
	return strings.Join(entries, ", "), true
}

// NormalizeForPatchedContent rewrites Cache-Control for a body this proxy
// has rewritten: strips immutability/large max-age, folds in
// stale-while-revalidate, derives a fresh age from max-age or Expires
// (falling back to cacheMaxAge), and adds "accept-encoding" to Vary since a
// previously-identity response may now be re-compressed. Mirrors
// HeaderMapExt::normalize_extra_for_patched_content.
func NormalizeForPatchedContent(h *fasthttp.ResponseHeader, cacheMaxAge int) {
	h.Del("Content-MD5")
	h.Del("Accept-Ranges")

	vary := GetSafe(h, "Vary")
	switch {
	case vary == "":
		h.Set("Vary", "accept-encoding")
	case !strings.Contains(vary, "accept-encoding"):
		h.Set("Vary", "accept-encoding, "+vary)
	}

	visibility := "public"
	if ContainsToken(h, "Cache-Control", "private") {
		visibility = "private"
	}

	var finalCC string
	switch {
	case ContainsToken(h, "Cache-Control", "no-store"):
		finalCC = "no-store"
	case ContainsToken(h, "Cache-Control", "no-cache"):
		finalCC = visibility + ", no-cache"
	default:
		age, hasAge := maxAgeFromCacheControl(h)
		serverDate, dateErr := parseHTTPDate(string(h.Peek("Date")))
		if dateErr != nil {
			serverDate = time.Now()
		}

		if !hasAge {
			if expires, err := parseHTTPDate(string(h.Peek("Expires"))); err == nil {
				secs := int64(expires.Sub(serverDate).Seconds())
				age, hasAge = secs, true
			}
		}

		if !hasAge {
			age = int64(cacheMaxAge)
		}

		if age < 0 {
			finalCC = visibility + ", no-cache"
		} else {
			if age > int64(cacheMaxAge) {
				age = int64(cacheMaxAge)
			}
			h.Set("Date", formatHTTPDate(serverDate))
			finalCC = visibility + ", max-age=" + strconv.FormatInt(age, 10) +
				", must-revalidate, stale-while-revalidate=604800"
		}
	}

	h.Del("Expires")
	h.Set("Cache-Control", finalCC)
}

func maxAgeFromCacheControl(h *fasthttp.ResponseHeader) (int64, bool) {
	for _, part := range strings.Split(GetSafe(h, "Cache-Control"), ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func parseHTTPDate(v string) (time.Time, error) {
	return time.Parse(time.RFC1123, strings.TrimSpace(v))
}

func formatHTTPDate(t time.Time) string {
	return t.UTC().Format(time.RFC1123)
}

// ExtractCharset returns the charset label from a Content-Type header's
// charset parameter, defaulting to "utf-8" when absent or empty, matching
// HeaderMapExt::extract_encoding (the actual text.Encoding lookup from that
// label is left to the caller — see internal/pipeline, which is where the
// teacher's equivalent Encoding::for_label call happens).
func ExtractCharset(h *fasthttp.ResponseHeader) string {
	ct := string(h.ContentType())
	for _, part := range strings.Split(ct, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "charset") {
			continue
		}
		val = strings.Trim(strings.TrimSpace(val), `"' `)
		if val != "" {
			return val
		}
	}
	return "utf-8"
}

type cspPriority int

const (
	cspNone cspPriority = iota
	cspDefaultSrc
	cspScriptSrc
	cspScriptSrcAttr
)

// CSPAllowsInlineJSInAttrs reports whether the response's
// Content-Security-Policy (the most specific of script-src-attr > script-src >
// default-src, per directive-precedence rules) permits inline event-handler
// attributes, i.e. whether injecting onload="this.rel='stylesheet'" into a
// rewritten <link> is safe. Absence of any CSP header permits it (returns
// true). Grounded on HeaderMapExt::csp_allow_inline_js_in_attrs.
func CSPAllowsInlineJSInAttrs(h *fasthttp.ResponseHeader) bool {
	values := h.PeekAll("Content-Security-Policy")
	if len(values) == 0 {
		return true
	}

	for _, raw := range values {
		bestPrio := cspNone
		var bestContent string

		for _, directive := range strings.Split(string(raw), ";") {
			directive = strings.TrimSpace(directive)
			switch {
			case strings.HasPrefix(directive, "script-src-attr"):
				if cspScriptSrcAttr >= bestPrio {
					bestPrio, bestContent = cspScriptSrcAttr, directive[len("script-src-attr"):]
				}
			case strings.HasPrefix(directive, "script-src"):
				if cspScriptSrc >= bestPrio {
					bestPrio, bestContent = cspScriptSrc, directive[len("script-src"):]
				}
			case strings.HasPrefix(directive, "default-src"):
				if cspDefaultSrc >= bestPrio {
					bestPrio, bestContent = cspDefaultSrc, directive[len("default-src"):]
				}
			}
		}

		if bestPrio == cspNone {
			continue
		}

		hasUnsafeInline := false
		for _, word := range strings.Fields(bestContent) {
			switch {
			case word == "'unsafe-inline'":
				hasUnsafeInline = true
			case word == "'strict-dynamic'":
				return false
			case strings.HasPrefix(word, "'nonce-"),
				strings.HasPrefix(word, "'sha256"),
				strings.HasPrefix(word, "'sha384"),
				strings.HasPrefix(word, "'sha512"):
				return false
			}
		}

		if !hasUnsafeInline {
			return false
		}
	}

	return true
}
