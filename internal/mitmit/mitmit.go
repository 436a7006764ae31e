// Package mitmit implements the proxy's self-service mitm.it endpoint: a
// browser pointed at http://mitm.it while behind this proxy gets a page
// explaining how to trust the CA, with download links for the two cert
// formats real platforms expect. Grounded on
// original_source/src/proxy/request_ext.rs's process_mitm_it.
package mitmit

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/zhlob/proxy/internal/certsource"
	"github.com/zhlob/proxy/internal/httpresponse"
)

// Handler serves mitm.it requests out of a certsource.Source, never
// forwarding them upstream.
type Handler struct {
	certs       certsource.Source
	cacheMaxAge int
}

// New builds a Handler. cacheMaxAge bounds how long a browser may cache the
// instructional page and cert downloads, in seconds.
func New(certs certsource.Source, cacheMaxAge int) *Handler {
	return &Handler{certs: certs, cacheMaxAge: cacheMaxAge}
}

// Handle serves ctx and reports true if the request's Host was mitm.it —
// the caller must not forward the request upstream when this returns true,
// even if it also wrote an error response. Any path ending in ".pem" or
// ".cer" is treated as a cert download (not just the instruction page's own
// "-ca-cert" links), so a bare GET /cert.pem also resolves; WriteBytes
// attaches the Content-Disposition download filename for both cert MIME
// types.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) bool {
	if !strings.EqualFold(string(ctx.Request.URI().Host()), "mitm.it") {
		return false
	}

	path := string(ctx.Path())
	isCer := strings.HasSuffix(path, ".cer") || strings.HasSuffix(path, ".der")
	isPem := strings.HasSuffix(path, ".pem")
	if !isCer && !isPem {
		httpresponse.WriteBytes(ctx, fasthttp.StatusOK, "text/html; charset=utf-8", []byte(instructionHTML), h.cacheMaxAge)
		return true
	}

	var (
		body []byte
		err  error
		mime string
	)
	if isCer {
		body, err = h.certs.RootCertDER()
		mime = "application/pkix-cert"
	} else {
		body, err = h.certs.RootCertPEM()
		mime = "application/x-x509-ca-cert"
	}
	if err != nil {
		ctx.Error("failed to load CA certificate", fasthttp.StatusInternalServerError)
		return true
	}

	httpresponse.WriteBytes(ctx, fasthttp.StatusOK, mime, body, h.cacheMaxAge)
	return true
}

const instructionHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>zhlob - install certificate</title>
</head>
<body>
<h1>Install the zhlob root certificate</h1>
<p>To browse HTTPS sites through this proxy without warnings, install and
trust its certificate authority.</p>
<ul>
<li><a href="/cert/zhlob-ca-cert.pem">PEM certificate</a> (macOS, Linux, Firefox)</li>
<li><a href="/cert/zhlob-ca-cert.cer">CER certificate</a> (Windows, Android)</li>
</ul>
<p>After installing, mark the certificate as trusted for identifying
websites.</p>
</body>
</html>
`
