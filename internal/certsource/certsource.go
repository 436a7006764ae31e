// Package certsource defines the narrow interface the proxy's request
// pipeline needs from its TLS-termination collaborator (the out-of-scope
// "Terminator" named in the spec's glossary addendum): bootstrapping a CA,
// minting per-host leaf certificates, and exposing the CA in the two MIME
// forms the self-service mitm.it endpoint serves for download. The actual
// termination engine — accepting the intercepted connection, presenting a
// leaf certificate, and re-framing the decrypted bytes as HTTP — lives
// outside this repo; only its call surface is defined here.
//
// Grounded on original_source/src/proxy/cert.rs for the shape of the
// collaborator (a root issuer loaded or generated once, leaf certificates
// minted per host) and on the teacher's internal/edge/tls package for the
// plain crypto/tls idiom used to express it in Go.
package certsource

import "crypto/tls"

// Source bootstraps and serves the proxy's MITM certificate authority.
type Source interface {
	// RootCertPEM returns the CA certificate in PEM form, the format a
	// browser's "Setup cert help" download link (mitm.it) expects.
	RootCertPEM() ([]byte, error)

	// RootCertDER returns the CA certificate in raw DER form, the format
	// some platforms' cert-installation flow (notably Android and older
	// Windows) expect instead of PEM.
	RootCertDER() ([]byte, error)

	// LeafCertificate returns a TLS certificate for host, minted from (or
	// cached against) the CA returned by RootCertPEM/RootCertDER, for the
	// termination engine to present when it intercepts a connection to
	// that host.
	LeafCertificate(host string) (tls.Certificate, error)
}
