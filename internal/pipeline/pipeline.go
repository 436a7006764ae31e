package pipeline

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/zhlob/proxy/internal/blocklist/matcher"
	"github.com/zhlob/proxy/internal/compression"
	"github.com/zhlob/proxy/internal/headers"
	"github.com/zhlob/proxy/internal/htmlrewrite"
	"github.com/zhlob/proxy/internal/imagerecode"
	"github.com/zhlob/proxy/internal/metrics"
	"github.com/zhlob/proxy/internal/mitmit"
	"github.com/zhlob/proxy/internal/pipeline/semaphore"
	"github.com/zhlob/proxy/internal/requestid"
)

// mitmHandler is the subset of *mitmit.Handler this package depends on.
type mitmHandler interface {
	Handle(ctx *fasthttp.RequestCtx) bool
}

var _ mitmHandler = (*mitmit.Handler)(nil)

// Options carries the request-independent knobs every Handler needs,
// mirroring the flag surface internal/cliconfig parses out of CLI.
type Options struct {
	CacheMaxAge      int
	ClearHTML        bool
	Fast304          bool
	SkipAuxResources bool
	RechunkHTMLSize  int
	TransformLimit   int
	ImageScale       ScaleOptions
	EtagMarker       string
	TransformPermits int
	Metrics          *metrics.Metrics
	Logger           *zap.Logger
}

// warn logs msg at warn level under category, with the request URI
// attached, if a logger is configured. A Handler built without one (e.g. in
// tests) stays silent rather than needing a no-op logger threaded through
// every call site. All warn lines of one request carry the same request id.
func (h *Handler) warn(ctx *fasthttp.RequestCtx, category, msg string, err error) {
	if h.opts.Logger == nil {
		return
	}
	id, _ := ctx.UserValue("zhlob.request_id").(string)
	if id == "" {
		id = requestid.New()
		ctx.SetUserValue("zhlob.request_id", id)
	}
	h.opts.Logger.Warn(msg,
		zap.String("uri", ctx.Request.URI().String()),
		zap.String("request_id", id),
		zap.String("category", category),
		zap.Error(err))
}

// fail warn-logs cause under reqErr's category and writes reqErr's
// status/message onto ctx, grounded on internal/edge/server/
// request_helpers.go's requestError/handleRequestError — trimmed to this
// proxy's two hard-failure paths (forwarding upstream, reading its body),
// since it has no host/dimension/event-emission pipeline of its own and
// metrics are already recorded for every exit path by Handle's deferred
// RecordRequest call.
func (h *Handler) fail(ctx *fasthttp.RequestCtx, cause error, reqErr requestError) {
	h.warn(ctx, reqErr.category, reqErr.message, cause)
	ctx.Error(reqErr.message, reqErr.status)
}

// requestError pairs a response status/message with a category for
// warn-level logging.
type requestError struct {
	status   int
	message  string
	category string
}

// ScaleOptions is re-exported so callers building an Options literal don't
// also need to import internal/imagerecode.
type ScaleOptions = imagerecode.ScaleOptions

// Handler wires the small pipeline stages built elsewhere in this package
// (accept.go, shortcircuit.go, patchability.go, respheaders.go, response.go)
// together into one per-request entry point, the Go counterpart of
// original_source/src/proxy/mod.rs's handler.
type Handler struct {
	forward   Forwarder
	mitm      mitmHandler
	blocklist *matcher.Blocklist
	encoder   imagerecode.Encoder
	sem       *semaphore.Semaphore
	opts      Options
}

// NewHandler builds a Handler. bl may be nil, which behaves as an
// always-empty blocklist (nothing gets dropped on relevance grounds, but
// HTML minification still runs). mitm may be nil to skip the mitm.it
// self-service endpoint entirely.
func NewHandler(forward Forwarder, mitm mitmHandler, bl *matcher.Blocklist, enc imagerecode.Encoder, opts Options) *Handler {
	permits := opts.TransformPermits
	if permits <= 0 {
		permits = 1
	}
	return &Handler{
		forward:   forward,
		mitm:      mitm,
		blocklist: bl,
		encoder:   enc,
		sem:       semaphore.New(permits),
		opts:      opts,
	}
}

// Handle processes one already-decrypted, already-demuxed HTTP request the
// Terminator (the out-of-scope TLS-termination collaborator named in the
// spec glossary) has handed this proxy, and writes a response into ctx.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	defer func() {
		h.opts.Metrics.RecordRequest(metrics.StatusClass(ctx.Response.StatusCode()), time.Since(start))
	}()

	token := NewCancelToken()
	guard := NewGuard(token)
	defer guard.Release()
	go func() {
		select {
		case <-ctx.Done():
			token.Cancel()
		case <-token.Done():
		}
	}()

	if h.mitm != nil && h.mitm.Handle(ctx) {
		return
	}

	accept := NormalizeAndGetAccept(&ctx.Request.Header)
	path := string(ctx.Path())

	if h.opts.Fast304 && SkipIfBrowserHasCached(ctx, &ctx.Request.Header, accept, h.opts.CacheMaxAge) {
		return
	}
	if h.opts.SkipAuxResources && SkipMediaOrFavicon(ctx, path, accept, h.opts.CacheMaxAge) {
		return
	}

	if h.opts.EtagMarker != "" {
		headers.StripEtagMarker(&ctx.Request.Header)
	}

	if err := h.forward.Do(&ctx.Request, &ctx.Response); err != nil {
		h.fail(ctx, err, requestError{
			status:   fasthttp.StatusBadGateway,
			message:  "upstream request failed",
			category: "upstream_forward_failed",
		})
		return
	}

	upstreamStatus := ctx.Response.StatusCode()
	if SkipOnProxyError(ctx, upstreamStatus) {
		return
	}

	if headers.ContainsToken(&ctx.Response.Header, "Pragma", "no-cache") &&
		!headers.ContainsToken(&ctx.Response.Header, "Cache-Control", "no-cache") {
		cc := headers.GetSafe(&ctx.Response.Header, "Cache-Control")
		if cc != "" {
			cc += ", "
		}
		ctx.Response.Header.Set("Cache-Control", cc+"no-cache")
	}

	isHTTP11 := string(ctx.Request.Header.Protocol()) == "HTTP/1.1"
	NormalizeResponseHeaders(&ctx.Response.Header, upstreamStatus, isHTTP11, h.opts.CacheMaxAge)

	const statusSwitchingProtocols = 101
	if upstreamStatus == statusSwitchingProtocols {
		return
	}
	switch string(ctx.Method()) {
	case "HEAD", "TRACE":
		return
	}

	contentType := string(ctx.Response.Header.ContentType())
	if h.opts.SkipAuxResources && SkipMediaOrFontOrFavicon(ctx, contentType, h.opts.CacheMaxAge) {
		return
	}

	canPatch := CanBePatched(CanBePatchedInput{
		Status:              upstreamStatus,
		HasLocation:         len(ctx.Response.Header.Peek("Location")) > 0,
		HasTrailer:          len(ctx.Response.Header.Peek("Trailer")) > 0,
		CacheControlNoXForm: headers.ContainsToken(&ctx.Response.Header, "Cache-Control", "no-transform"),
		ReqHeadersPresent:   true,
		HasXRequestedWith:   len(ctx.Request.Header.Peek("X-Requested-With")) > 0,
		SecFetchDest:        string(ctx.Request.Header.Peek("Sec-Fetch-Dest")),
	})

	isHTML := canPatch && h.opts.ClearHTML && strings.HasPrefix(strings.ToLower(contentType), "text/html")
	isImage := canPatch && h.opts.ImageScale.Scale > 0 && strings.HasPrefix(strings.ToLower(contentType), "image/") &&
		!strings.Contains(strings.ToLower(contentType), "svg")

	if !isHTML && !isImage {
		if h.opts.EtagMarker != "" {
			headers.InjectEtagMarker(&ctx.Response.Header, h.opts.EtagMarker)
		}
		return
	}

	rechunkify := MustBeRechunkified(h.opts.RechunkHTMLSize, canPatch, contentType, headers.ContainsToken(&ctx.Response.Header, "Accept-Ranges", "bytes"))

	body, passthrough, err := h.boundedBody(ctx)
	if err != nil {
		h.fail(ctx, err, requestError{
			status:   fasthttp.StatusBadGateway,
			message:  "failed to read upstream body",
			category: "body_read_failed",
		})
		return
	}
	if passthrough {
		if h.opts.EtagMarker != "" {
			headers.InjectEtagMarker(&ctx.Response.Header, h.opts.EtagMarker)
		}
		return
	}

	contentEncoding := headers.GetSafe(&ctx.Response.Header, "Content-Encoding")
	transferEncoding := headers.GetSafe(&ctx.Response.Header, "Transfer-Encoding")
	algo, ok := compression.FromResponseEncoding(transferEncoding, contentEncoding)
	if !ok {
		ctx.Response.SetBody(body)
		if h.opts.EtagMarker != "" {
			headers.InjectEtagMarker(&ctx.Response.Header, h.opts.EtagMarker)
		}
		return
	}

	raw, err := compression.Decompress(algo, body)
	if err != nil {
		h.warn(ctx, "decompress_failed", "failed to decompress upstream body, passing through unmodified", err)
		ctx.Response.SetBody(body)
		if h.opts.EtagMarker != "" {
			headers.InjectEtagMarker(&ctx.Response.Header, h.opts.EtagMarker)
		}
		return
	}

	priority := "low"
	if isHTML {
		priority = "high"
	}
	waitStart := time.Now()
	permit, err := h.sem.Acquire(token, isHTML)
	h.opts.Metrics.RecordPermitWait(priority, time.Since(waitStart), err != nil)
	h.opts.Metrics.SetPermitsAvailable(h.sem.Available())
	if err != nil {
		ctx.Response.SetBody(body)
		if h.opts.EtagMarker != "" {
			headers.InjectEtagMarker(&ctx.Response.Header, h.opts.EtagMarker)
		}
		return
	}
	defer permit.Release()

	var transformed []byte
	switch {
	case isHTML:
		transformed = h.transformHTML(ctx, raw)
		h.opts.Metrics.RecordTransform("html")
	case isImage:
		out, rerr := imagerecode.Recode(raw, h.opts.ImageScale, h.encoder)
		if rerr != nil {
			h.warn(ctx, "image_recode_failed", "failed to recode image, passing through unmodified", rerr)
			transformed = raw
			h.opts.Metrics.RecordTransformError("image")
		} else {
			transformed = out
			ctx.Response.Header.SetContentType("image/webp")
			h.opts.Metrics.RecordTransform("image")
		}
	}

	outAlgo, compressed := compression.TryCompress(compression.FromAcceptEncoding(string(ctx.Request.Header.Peek("Accept-Encoding"))), transformed)
	if outAlgo == compression.Uncompressed {
		ctx.Response.Header.Del("Content-Encoding")
	} else {
		ctx.Response.Header.Set("Content-Encoding", outAlgo.String())
	}

	WriteTransformedBody(ctx, compressed, h.opts.RechunkHTMLSize, rechunkify, h.opts.CacheMaxAge)

	if h.opts.EtagMarker != "" {
		headers.InjectEtagMarker(&ctx.Response.Header, h.opts.EtagMarker)
	}
}

// transformHTML decodes raw per its detected/declared charset, runs it
// through htmlrewrite.Minify, and re-encodes back to UTF-8 (the teacher's
// minifier always emits UTF-8 regardless of the source document's
// declared charset).
func (h *Handler) transformHTML(ctx *fasthttp.RequestCtx, raw []byte) []byte {
	label := headers.ExtractCharset(&ctx.Response.Header)
	decoded := raw
	if !strings.EqualFold(label, "utf-8") && !strings.EqualFold(label, "utf8") {
		if enc, err := htmlindex.Get(label); err == nil {
			if out, err := enc.NewDecoder().Bytes(raw); err == nil {
				decoded = out
			}
		}
	}

	documentURL := ctx.Request.URI().String()
	cspAllows := h.opts.RechunkHTMLSize > 0 && headers.CSPAllowsInlineJSInAttrs(&ctx.Response.Header)
	return htmlrewrite.Minify(documentURL, decoded, h.blocklistOrEmpty(), cspAllows)
}

// noMatchBlocklist is the blocklistMatcher used when a Handler is built
// without a compiled blocklist: every src/code check reports no match, so
// HTML minification still runs but nothing gets dropped on relevance
// grounds.
type noMatchBlocklist struct{}

func (noMatchBlocklist) IsMatchSrc(src []byte, base matcher.UrlBaseInfo) bool  { return false }
func (noMatchBlocklist) IsMatchCode(code []byte, base matcher.UrlBaseInfo) bool { return false }

func (h *Handler) blocklistOrEmpty() interface {
	IsMatchSrc(src []byte, base matcher.UrlBaseInfo) bool
	IsMatchCode(code []byte, base matcher.UrlBaseInfo) bool
} {
	if h.blocklist == nil {
		return noMatchBlocklist{}
	}
	return h.blocklist
}

// boundedBody reads the response body up to TransformLimit+1 bytes. If the
// body fits within the limit, it returns the fully-read bytes. If it would
// exceed the limit, it re-glues the already-read prefix with whatever
// remains of the stream and installs that as a pass-through body on ctx,
// returning passthrough=true so the caller skips any transform.
func (h *Handler) boundedBody(ctx *fasthttp.RequestCtx) (body []byte, passthrough bool, err error) {
	limit := h.opts.TransformLimit

	stream := ctx.Response.BodyStream()
	if stream == nil {
		b := ctx.Response.Body()
		if limit > 0 && len(b) > limit {
			return nil, true, nil
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		return cp, false, nil
	}

	if limit <= 0 {
		out, rerr := io.ReadAll(stream)
		if rerr != nil {
			return nil, false, rerr
		}
		return out, false, nil
	}

	buf := make([]byte, limit+1)
	n, readErr := io.ReadFull(stream, buf)
	if readErr == nil {
		combined := io.MultiReader(bytes.NewReader(buf[:n]), stream)
		ctx.Response.Header.Del("Content-Length")
		ctx.Response.SetBodyStream(combined, -1)
		return nil, true, nil
	}
	if readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		return nil, false, readErr
	}

	out := make([]byte, n)
	copy(out, buf[:n])
	return out, false, nil
}
