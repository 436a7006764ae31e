// Package requestid generates short, log-friendly request identifiers.
// Grounded on internal/common/requestid/requestid.go (teacher), trimmed to
// just the part this proxy needs: a fallback-to-UUID generator, since this
// proxy has no external client-supplied request id to sanitize and fold in.
package requestid

import "github.com/google/uuid"

// New returns a fresh per-request trace id, attached to transform-failure
// warn logs (internal/pipeline) so multiple log lines from the same request
// can be correlated.
func New() string {
	return uuid.New().String()
}
