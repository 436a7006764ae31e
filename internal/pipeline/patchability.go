package pipeline

import "strings"

// CanBePatchedInput holds the request/response facts CanBePatched needs.
// ReqHeadersPresent is false when the original request's headers are not
// being consulted; CanBePatched then skips its request-side checks.
type CanBePatchedInput struct {
	Status            int
	HasLocation       bool
	HasTrailer        bool
	CacheControlNoXForm bool
	ReqHeadersPresent   bool
	HasXRequestedWith   bool
	SecFetchDest        string
}

// CanBePatched reports whether a response is eligible to have its body
// rewritten at all: not a status this proxy must leave untouched (101, 204,
// 205, 304), no Location/Trailer header, no Cache-Control: no-transform,
// and — when the originating request's headers are available — not an
// XHR/fetch request (X-Requested-With present) and a Sec-Fetch-Dest of
// "", "document", "image", or anything containing "frame". Grounded on
// original_source/src/proxy/parts_ext.rs's can_be_patched.
func CanBePatched(in CanBePatchedInput) bool {
	switch in.Status {
	case 101, 204, 205, 304:
		return false
	}
	if in.HasLocation || in.HasTrailer || in.CacheControlNoXForm {
		return false
	}
	if !in.ReqHeadersPresent {
		return true
	}
	if in.HasXRequestedWith {
		return false
	}
	dest := strings.ToLower(in.SecFetchDest)
	return dest == "" || dest == "document" || dest == "image" || strings.Contains(dest, "frame")
}

// MustBeRechunkified reports whether a patchable text/html response should
// be streamed out in fixed-size chunks instead of sent as one
// Content-Length blob, so the browser can start rendering before the whole
// (possibly large) rewritten body is ready: rechunking is enabled
// (rechunkSize > 0), the response is otherwise patchable, its Content-Type
// is text/html, and it doesn't advertise byte-range support (which a
// rechunked response can no longer honor). Grounded on
// original_source/src/proxy/parts_ext.rs's must_be_rechunkified.
func MustBeRechunkified(rechunkSize int, canBePatched bool, contentType string, acceptRangesBytes bool) bool {
	return rechunkSize > 0 &&
		canBePatched &&
		strings.HasPrefix(strings.ToLower(contentType), "text/html") &&
		!acceptRangesBytes
}
