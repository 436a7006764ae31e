// Package matcher implements the runtime blocklist lookup (spec §4.D): a
// memory-mapped, read-only DAC is matched against a resolved URL, applying
// each hit's anchoring predicate (package kind) and first/third-party
// discrimination against the document's own eTLD+1. Grounded on
// original_source/src/dac/mod.rs.
package matcher

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/zhlob/proxy/internal/blocklist/ahocorasick"
	"github.com/zhlob/proxy/internal/blocklist/kind"
	"github.com/zhlob/proxy/internal/jsurls"
)

// fileMagic is the on-disk DAC header: "DAC" followed by a version byte.
var fileMagic = [4]byte{'D', 'A', 'C', 1}

// Blocklist is an immutable, loaded DAC ready for matching. The zero value
// is not usable; construct with Load or New.
type Blocklist struct {
	automaton *ahocorasick.Automaton
	closer    func() error
}

// Load memory-maps path, validates the DAC header (spec §6: magic, then an
// 8-byte little-endian content hash of the automaton bytes), and decodes
// the automaton. The mapping is kept for the Blocklist's lifetime; call
// Close to release it.
func Load(path string) (*Blocklist, error) {
	data, closer, err := mmapFile(path)
	if err != nil {
		return nil, fmt.Errorf("matcher: mmap %s: %w", path, err)
	}

	b, err := New(data)
	if err != nil {
		_ = closer()
		return nil, err
	}
	b.closer = closer
	return b, nil
}

// New decodes a DAC already held in memory (e.g. a test fixture, or bytes
// read without mmap). It does not take ownership of data for cleanup
// purposes; see Load for the mmap-backed, Close-able variant.
func New(data []byte) (*Blocklist, error) {
	if len(data) < 12 {
		return nil, errors.New("matcher: truncated DAC file")
	}
	if [4]byte{data[0], data[1], data[2], data[3]} != fileMagic {
		return nil, errors.New("matcher: bad DAC magic")
	}

	automaton, err := ahocorasick.Deserialize(data[12:])
	if err != nil {
		return nil, fmt.Errorf("matcher: decode automaton: %w", err)
	}

	return &Blocklist{automaton: automaton}, nil
}

// Close releases the memory mapping backing a Load-constructed Blocklist.
// It is a no-op for a Blocklist built with New.
func (b *Blocklist) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// UrlBaseInfo is the per-document context a matcher call is evaluated
// against: the document's own eTLD+1 (for first/third-party
// discrimination) and its base URL (for resolving relative candidates).
type UrlBaseInfo struct {
	ETLDPlus1 string
	Base      *url.URL
}

// NewUrlBaseInfo derives a UrlBaseInfo from a document URL, or reports
// ok=false if the URL has no host or a PSL lookup fails (e.g. an IP host).
func NewUrlBaseInfo(documentURL string) (info UrlBaseInfo, ok bool) {
	u, err := url.Parse(documentURL)
	if err != nil || u.Hostname() == "" || net.ParseIP(u.Hostname()) != nil {
		return UrlBaseInfo{}, false
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname())
	if err != nil {
		return UrlBaseInfo{}, false
	}
	return UrlBaseInfo{ETLDPlus1: etld1, Base: u}, true
}

// isSubdomainOrEqual reports whether host is etldPlus1 itself or a
// subdomain of it (case-insensitively), i.e. "first-party" relative to it.
func isSubdomainOrEqual(host, etldPlus1 string) bool {
	if len(host) < len(etldPlus1) {
		return false
	}
	suffix := host[len(host)-len(etldPlus1):]
	if !strings.EqualFold(suffix, etldPlus1) {
		return false
	}
	return len(host) == len(etldPlus1) || host[len(host)-len(etldPlus1)-1] == '.'
}

// IsMatchSrc resolves src against base.Base, lowercases the resulting URL,
// and reports whether any blocklist pattern both anchors correctly there
// (kind.Tag.IsMatch) and applies to this request (not third-party-only, or
// the resolved host is genuinely third-party relative to base.ETLDPlus1).
func (b *Blocklist) IsMatchSrc(src []byte, base UrlBaseInfo) bool {
	if base.Base == nil {
		return false
	}

	ref, err := url.Parse(string(src))
	if err != nil {
		return false
	}
	resolved := base.Base.ResolveReference(ref)

	host := resolved.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return false
	}

	lowered := []byte(strings.ToLower(resolved.String()))
	thirdParty := !isSubdomainOrEqual(strings.ToLower(host), strings.ToLower(base.ETLDPlus1))

	matched := false
	b.automaton.FindOverlapping(lowered, func(m ahocorasick.Match) bool {
		tag := kind.Tag(m.Value)
		if !tag.IsThirdParty() || thirdParty {
			if tag.IsMatch(lowered, m.Start, m.Length, hostRange(lowered)) {
				matched = true
				return false
			}
		}
		return true
	})
	return matched
}

// IsMatchCode extracts URL-shaped string literals from a JavaScript source
// buffer (component E) and reports whether any of them match the
// blocklist, per spec §4.E's "script blocking" use case.
func (b *Blocklist) IsMatchCode(code []byte, base UrlBaseInfo) bool {
	matched := false
	l := jsurls.New(code)
	for {
		candidate, ok := l.Next()
		if !ok {
			return matched
		}
		if b.IsMatchSrc(candidate, base) {
			return true
		}
	}
}

// hostRange locates the host and eTLD+1 boundary within a lowercased,
// fully-resolved URL (scheme present), needed by kind.Tag.IsMatch's
// AnyDomainPartBeforeETLD arm.
func hostRange(resolvedURL []byte) kind.HostRange {
	idx := strings.Index(string(resolvedURL), "//")
	if idx == -1 {
		return kind.HostRange{}
	}
	hostStart := idx + 2

	hostEnd := len(resolvedURL)
	if slash := strings.IndexByte(string(resolvedURL[hostStart:]), '/'); slash != -1 {
		hostEnd = hostStart + slash
	}
	host := string(resolvedURL[hostStart:hostEnd])

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || len(etld1) > len(host) {
		return kind.HostRange{HostStart: hostStart}
	}
	return kind.HostRange{HostStart: hostStart, ETLD1Start: hostEnd - len(etld1)}
}
