// Package compression implements the patched-body re-compression step
// (spec §4.H step 9): decoding whatever Content-Encoding the upstream sent,
// and re-encoding the transformed body with whatever the client's
// Accept-Encoding allows, keeping the smaller of the compressed/uncompressed
// result. Grounded on original_source/src/processors/compression.rs.
package compression

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Algo identifies a content-coding, mirroring the teacher's CompressionAlgo.
type Algo int

const (
	Uncompressed Algo = iota
	Brotli
	Gzip
	Deflate
)

// String returns the Content-Encoding token for algo, or "identity" for
// Uncompressed.
func (a Algo) String() string {
	switch a {
	case Brotli:
		return "br"
	case Gzip:
		return "gzip"
	case Deflate:
		return "deflate"
	default:
		return "identity"
	}
}

// brotliDecompressWindow mirrors the teacher's fixed 4096-byte decompressor
// buffer size for brotli::Decompressor.
const brotliDecompressWindow = 4096

// Decompressor wraps data in a reader that undoes algo's encoding.
// Uncompressed (and any unrecognized algo) passes data through unchanged.
func (a Algo) Decompressor(data []byte) (io.Reader, error) {
	switch a {
	case Brotli:
		return brotli.NewReader(bytes.NewReader(data)), nil
	case Gzip:
		return gzip.NewReader(bytes.NewReader(data))
	case Deflate:
		return flate.NewReader(bytes.NewReader(data)), nil
	default:
		return bytes.NewReader(data), nil
	}
}

// brotliQuality/gzipDeflateLevel mirror the teacher's hand-tuned levels: a
// level chosen for the best size/CPU tradeoff on already-minified HTML, per
// the comment table in compression.rs.
const (
	brotliQuality    = 5
	brotliLgWin      = 20
	gzipDeflateLevel = 4
)

// contentEncodingOverhead approximates the teacher's literal header-byte
// counts ("Content-Encoding: br\r\n" etc.), used to decide whether the
// compressed form is worth sending at all.
var contentEncodingOverhead = map[Algo]int{
	Brotli:  21,
	Gzip:    23,
	Deflate: 26,
}

// TryCompress compresses raw with algo and returns (algo, compressed) only
// if the result, including its Content-Encoding header overhead, is smaller
// than raw; otherwise it returns (Uncompressed, raw) unchanged. Bodies of
// 32 bytes or fewer are never compressed, matching the teacher's threshold.
func TryCompress(algo Algo, raw []byte) (Algo, []byte) {
	if len(raw) <= 32 || algo == Uncompressed {
		return Uncompressed, raw
	}

	var buf bytes.Buffer
	buf.Grow(len(raw) / 2)

	ok := false
	switch algo {
	case Brotli:
		w := brotli.NewWriterOptions(&buf, brotli.WriterOptions{Quality: brotliQuality, LGWin: brotliLgWin})
		if _, err := w.Write(raw); err == nil {
			ok = w.Close() == nil
		}
	case Gzip:
		w, err := gzip.NewWriterLevel(&buf, gzipDeflateLevel)
		if err == nil {
			if _, werr := w.Write(raw); werr == nil {
				ok = w.Close() == nil
			}
		}
	case Deflate:
		w, err := flate.NewWriter(&buf, gzipDeflateLevel)
		if err == nil {
			if _, werr := w.Write(raw); werr == nil {
				ok = w.Close() == nil
			}
		}
	}

	if ok && buf.Len()+contentEncodingOverhead[algo] < len(raw) {
		return algo, buf.Bytes()
	}
	return Uncompressed, raw
}

// FromAcceptEncoding picks the client's most-preferred supported algorithm
// from an Accept-Encoding header value, preferring br > gzip > deflate,
// exactly as the teacher's from_req_headers does (no q-value parsing).
func FromAcceptEncoding(acceptEncoding string) Algo {
	lower := strings.ToLower(acceptEncoding)
	switch {
	case strings.Contains(lower, "br"):
		return Brotli
	case strings.Contains(lower, "gzip"):
		return Gzip
	case strings.Contains(lower, "deflate"):
		return Deflate
	default:
		return Uncompressed
	}
}

// FromResponseEncoding inspects a response's Transfer-Encoding and
// Content-Encoding header values (already comma-joined, as HeaderMapExt's
// get_safe produces) and reports the single real coding applied, or
// Uncompressed if both are empty/identity/chunked. A response naming more
// than one real coding, or an unrecognized coding token, returns
// ok=false: the teacher treats that body as opaque and skips the
// transform pipeline entirely rather than guess at it.
func FromResponseEncoding(transferEncoding, contentEncoding string) (algo Algo, ok bool) {
	found := false
	result := Uncompressed

	for _, header := range []string{transferEncoding, contentEncoding} {
		for _, part := range strings.Split(header, ",") {
			token := strings.ToLower(strings.TrimSpace(part))
			if token == "" || token == "chunked" || token == "identity" {
				continue
			}
			if found {
				return Uncompressed, false
			}

			switch token {
			case "br":
				result = Brotli
			case "gzip":
				result = Gzip
			case "deflate":
				result = Deflate
			default:
				return Uncompressed, false
			}
			found = true
		}
	}

	return result, true
}

// Decompress fully reads a Decompressor's output, returning a wrapped error
// if decoding fails partway through (truncated/corrupt upstream body).
func Decompress(algo Algo, data []byte) ([]byte, error) {
	r, err := algo.Decompressor(data)
	if err != nil {
		return nil, fmt.Errorf("compression: open %s decompressor: %w", algo, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: decompress %s body: %w", algo, err)
	}
	return out, nil
}
