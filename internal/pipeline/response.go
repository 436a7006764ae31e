package pipeline

import (
	"io"

	"github.com/valyala/fasthttp"

	"github.com/zhlob/proxy/internal/headers"
)

// WriteTransformedBody finalizes a patched response body: re-derives
// Cache-Control/Vary via headers.NormalizeForPatchedContent, then either
// sets it as one Content-Length body or, if mustBeRechunkified and large
// enough, streams it out in rechunkSize-sized frames instead — so a large
// rewritten HTML document starts reaching the browser before this proxy has
// finished sending all of it, rather than waiting on one fully-buffered
// send. Grounded on original_source/src/proxy/parts_ext.rs's
// response_from_bytes.
func WriteTransformedBody(ctx *fasthttp.RequestCtx, body []byte, rechunkSize int, mustBeRechunkified bool, cacheMaxAge int) {
	headers.NormalizeForPatchedContent(&ctx.Response.Header, cacheMaxAge)

	if rechunkSize > 0 && len(body) > rechunkSize && mustBeRechunkified {
		ctx.Response.Header.Del("Content-Length")
		ctx.Response.SetBodyStream(newChunkedReader(body, rechunkSize), -1)
		return
	}

	ctx.Response.SetBody(body)
}

// chunkedReader hands body out in at-most-size pieces per Read call. Its
// exact byte-for-byte framing on the wire is ultimately up to fasthttp's
// own stream-writer buffering, but it preserves the behaviorally relevant
// distinction the teacher's version cares about: stream-and-flush-early
// instead of send-as-one-shot.
type chunkedReader struct {
	body []byte
	size int
	pos  int
}

func newChunkedReader(body []byte, size int) *chunkedReader {
	return &chunkedReader{body: body, size: size}
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.body) {
		return 0, io.EOF
	}
	end := r.pos + r.size
	if end > len(r.body) {
		end = len(r.body)
	}
	if want := r.pos + len(p); end > want {
		end = want
	}
	n := copy(p, r.body[r.pos:end])
	r.pos += n
	return n, nil
}
