// Package psl prepares an Adblock filter's domain portion for compilation,
// splitting it into the pieces component C's anchor classification needs:
// the bare domain, its subdomain (with any trailing "www" label dropped), the
// domain's last two dot-separated labels, and the path suffix.
//
// The registrable-domain lookup is delegated to golang.org/x/net/publicsuffix,
// the spec's named external Public Suffix List collaborator (spec §1); the
// splitting/stripping rules themselves are grounded on
// original_source/src/dac/psl.rs's prepare_adblock_filter.
package psl

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Filter is a view over a single Adblock rule body, after the caller has
// already stripped any `|`/`||` anchor and scheme prefix (http://, https://,
// ws://, wss://, ://, //). All fields are plain strings here rather than
// byte-range indices into the caller's buffer; the spec's zero-copy
// suggestion (§9) is one valid implementation choice and not required.
type Filter struct {
	Domain              string // the full domain, user-info and scheme already stripped
	SubdomainWithoutWWW string // domain minus eTLD+1, trailing dot and trailing "www" label removed
	ETLDPlus2           string // last two dot-separated labels of Domain; empty if SubdomainWithoutWWW is empty
	PathSuffix          string // everything from the first '/' onward, including the slash; empty if none
}

// Prepare splits an Adblock rule body into a Filter, or reports ok=false if
// the rule's domain is unusable: it contains a colon, has no dot, or is a
// literal IP address.
func Prepare(ruleBody string) (f Filter, ok bool) {
	domain, suffix := splitFirstSlash(ruleBody)
	domain = stripUserInfo(domain)

	if strings.Contains(domain, ":") || !strings.Contains(domain, ".") {
		return Filter{}, false
	}
	if net.ParseIP(domain) != nil {
		return Filter{}, false
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return Filter{}, false
	}

	subdomain := strings.TrimSuffix(domain, etld1)
	subdomain = strings.TrimSuffix(subdomain, ".")
	subdomain = stripWWW(subdomain)

	var etld2 string
	if subdomain != "" {
		etld2 = lastTwoLabels(domain)
	}

	return Filter{
		Domain:              domain,
		SubdomainWithoutWWW: subdomain,
		ETLDPlus2:           etld2,
		PathSuffix:          suffix,
	}, true
}

func splitFirstSlash(s string) (before, from string) {
	if idx := strings.IndexByte(s, '/'); idx != -1 {
		return s[:idx], s[idx:]
	}
	return s, ""
}

func stripUserInfo(domain string) string {
	if idx := strings.IndexByte(domain, '@'); idx != -1 {
		return domain[idx+1:]
	}
	return domain
}

func stripWWW(subdomain string) string {
	if subdomain == "www" {
		return ""
	}
	if trimmed := strings.TrimSuffix(subdomain, ".www"); trimmed != subdomain {
		return trimmed
	}
	return subdomain
}

func lastTwoLabels(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return domain
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
