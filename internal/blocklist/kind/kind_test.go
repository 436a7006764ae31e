package kind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	for _, code := range []Code{SlashedStart, DomainEndWithDotPrefix, DomainEnd, Substring, AnyDomainPartBeforeETLD} {
		for _, thirdParty := range []bool{true, false} {
			tag := New(code, thirdParty)
			assert.Equal(t, code, tag.Code())
			assert.Equal(t, thirdParty, tag.IsThirdParty())
		}
	}
}

func TestThirdPartyOrdering(t *testing.T) {
	// Third-party-only tags must sort below every not-third-party tag of
	// any code, since overlap pruning compares raw uint32 tag values.
	thirdPartyOnly := New(AnyDomainPartBeforeETLD, true)
	notThirdParty := New(SlashedStart, false)
	assert.Less(t, uint32(thirdPartyOnly), uint32(notThirdParty))
}

func TestIsMatchSlashedStart(t *testing.T) {
	tag := New(SlashedStart, false)
	src := []byte("https://ads.example.com/x")
	assert.True(t, tag.IsMatch(src, 0, 5, HostRange{}))
	assert.True(t, tag.IsMatch([]byte("x://ads"), 2, 3, HostRange{}))
	assert.False(t, tag.IsMatch([]byte("xads"), 1, 3, HostRange{}))
}

func TestIsMatchDomainEnd(t *testing.T) {
	tag := New(DomainEnd, false)
	src := []byte("https://example.com/x")
	assert.True(t, tag.IsMatch(src, 8, 11, HostRange{})) // preceded by "//"
	src2 := []byte("https://sub.example.com/x")
	assert.True(t, tag.IsMatch(src2, 12, 11, HostRange{})) // preceded by "."
	assert.False(t, tag.IsMatch([]byte("xexample.com"), 1, 11, HostRange{}))
}

func TestIsMatchAnyDomainPartBeforeETLD(t *testing.T) {
	tag := New(AnyDomainPartBeforeETLD, false)
	src := []byte("https://ads.example.com/x")
	host := HostRange{HostStart: 8, ETLD1Start: 12} // "ads." is the subdomain
	// preceded by "//" - always accepted regardless of range
	assert.True(t, tag.IsMatch(src, 8, 3, host))
	// preceded by "." and fully inside subdomain range
	deeper := []byte("https://cdn.ads.example.com/x") // "cdn.ads." is the subdomain
	assert.True(t, tag.IsMatch(deeper, 12, 3, HostRange{HostStart: 8, ETLD1Start: 16}))
	// outside the subdomain range (inside the registrable domain) is rejected
	assert.False(t, tag.IsMatch(src, 12, 7, HostRange{HostStart: 8, ETLD1Start: 12}))
}

func TestIsMatchDomainEndWithDotPrefixAndSubstringAlwaysTrue(t *testing.T) {
	assert.True(t, New(DomainEndWithDotPrefix, false).IsMatch(nil, 0, 0, HostRange{}))
	assert.True(t, New(Substring, true).IsMatch(nil, 100, 5, HostRange{}))
}
