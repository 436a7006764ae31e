package htmlrewrite

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhlob/proxy/internal/blocklist/compiler"
	"github.com/zhlob/proxy/internal/blocklist/matcher"
)

func buildAdsBlocklist(t *testing.T) *matcher.Blocklist {
	t.Helper()
	c, err := compiler.Compile([]io.Reader{strings.NewReader("||ads.tracker.net^$third-party\n")})
	require.NoError(t, err)
	c.Prune()

	b, err := matcher.New(c.Serialize())
	require.NoError(t, err)
	return b
}

// TestScenarioS3DropsTrackingMarkup covers spec §8 S3: an alternate link,
// a blocked third-party script, and a tracked anchor href.
func TestScenarioS3DropsTrackingMarkup(t *testing.T) {
	bl := buildAdsBlocklist(t)

	in := `<html><head>` +
		`<link rel="alternate" href="/rss">` +
		`<script src="https://ads.tracker.net/tag.js"></script>` +
		`</head><body>` +
		`<a href="/x?utm_source=a&amp;q=1">link</a>` +
		`</body></html>`

	out := string(Minify("https://news.example.com/", []byte(in), bl, false))

	assert.NotContains(t, out, "rel=\"alternate\"")
	assert.NotContains(t, out, "ads.tracker.net")
	assert.NotContains(t, out, "utm_source")
	assert.Contains(t, out, "q=1")
}

func TestMetaViewportKeptOnlyWithContent(t *testing.T) {
	in := `<meta name="viewport" content="width=device-width">` +
		`<meta name="viewport">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))

	assert.Contains(t, out, "width=device-width")
	assert.Equal(t, 1, strings.Count(out, "<meta"))
}

func TestMetaXUACompatibleEquivDropped(t *testing.T) {
	in := `<meta http-equiv="X-UA-Compatible" content="IE=edge">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Equal(t, "", out)
}

// TestMetaDescriptionDroppedWithoutHttpEquiv reflects the teacher's exact
// rule: a generic <meta name=...> with no http-equiv is treated as having
// a "forbidden or empty" equiv and is removed, even with a content attr.
func TestMetaDescriptionDroppedWithoutHttpEquiv(t *testing.T) {
	in := `<meta name="description" content="a page">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Equal(t, "", out)
}

func TestMetaCustomHttpEquivKept(t *testing.T) {
	in := `<meta http-equiv="refresh" content="5">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Contains(t, out, `content="5"`)
}

func TestLinkManifestAttrsRestricted(t *testing.T) {
	in := `<link rel="manifest" href="/app.webmanifest" data-extra="drop-me">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Contains(t, out, `href="/app.webmanifest"`)
	assert.NotContains(t, out, "data-extra")
	assert.Contains(t, out, `fetchpriority="low"`)
}

func TestLinkStylesheetPreloadRewriteWhenCSPAllowsInlineJS(t *testing.T) {
	in := `<link rel="stylesheet" href="/s.css">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), true))
	assert.Contains(t, out, `rel="preload"`)
	assert.Contains(t, out, `as="style"`)
	assert.Contains(t, out, "this.rel='stylesheet'")
}

func TestLinkUnrelatedRelRemoved(t *testing.T) {
	in := `<link rel="icon" href="/favicon.ico">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Equal(t, "", out)
}

func TestLdJSONScriptRemovedEvenWithoutBlocklistMatch(t *testing.T) {
	in := `<script type="application/ld+json">{"@type":"Article"}</script>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Equal(t, "", out)
}

func TestNoscriptRemovedWithContent(t *testing.T) {
	in := `<p>before</p><noscript><img src="/pixel.gif"></noscript><p>after</p>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.NotContains(t, out, "pixel.gif")
	assert.Contains(t, out, "before")
	assert.Contains(t, out, "after")
}

func TestInlineScriptBlockedByEmbeddedURL(t *testing.T) {
	in := `<script>var u='https://ads.tracker.net/tag.js';</script>`
	out := string(Minify("https://news.example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Equal(t, "", out)
}

func TestInlineScriptKeptWhenClean(t *testing.T) {
	in := `<script>console.log("hi & <bye>");</script>`
	out := string(Minify("https://news.example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Contains(t, out, `console.log("hi & <bye>");`)
}

func TestTableSummaryAttributeStripped(t *testing.T) {
	in := `<table summary="legacy"><tr><td>1</td></tr></table>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.NotContains(t, out, "summary")
}

func TestImgDecodingAndEagerLoadingStripped(t *testing.T) {
	in := `<img src="/a.png" decoding="async" loading="eager">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.NotContains(t, out, "decoding")
	assert.NotContains(t, out, "loading")
}

func TestImgSrcsetPicksSmallestCandidate(t *testing.T) {
	in := `<img srcset="/big.jpg 1000w, /small.jpg 200w, /mid.jpg 500w" sizes="100vw">`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Contains(t, out, `src="/small.jpg"`)
	assert.NotContains(t, out, "srcset")
	assert.NotContains(t, out, "sizes")
}

func TestAnchorRelKeepsOnlyNoPrefixedTokens(t *testing.T) {
	in := `<a href="/x" rel="nofollow external sponsored noopener">t</a>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Contains(t, out, `rel="nofollow noopener"`)
	assert.NotContains(t, out, "external")
	assert.NotContains(t, out, "sponsored")
}

func TestAnchorPingTypeHreflangRemoved(t *testing.T) {
	in := `<a href="/x" ping="/beacon" type="text/html" hreflang="en">t</a>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.NotContains(t, out, "ping")
	assert.NotContains(t, out, "hreflang")
}

func TestAriaAndMicrodataAttributesStripped(t *testing.T) {
	in := `<div aria-hidden="true" itemprop="name" itemscope itemtype="https://schema.org/Thing" role="note">x</div>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.NotContains(t, out, "aria-hidden")
	assert.NotContains(t, out, "itemprop")
	assert.NotContains(t, out, "itemscope")
	assert.NotContains(t, out, "itemtype")
	assert.NotContains(t, out, "role")
}

func TestCommentsRemoved(t *testing.T) {
	in := `<p>a</p><!-- tracking pixel below --><p>b</p>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.NotContains(t, out, "tracking pixel")
}

func TestRedundantTypeAttrsStripped(t *testing.T) {
	in := `<script type="text/javascript">1;</script><style type="text/css">a{}</style>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.NotContains(t, out, "text/javascript")
	assert.NotContains(t, out, "text/css")
}

func TestScriptSurvivesWhenSrcIsFirstParty(t *testing.T) {
	in := `<script src="/app.js"></script>`
	out := string(Minify("https://example.com/", []byte(in), buildAdsBlocklist(t), false))
	assert.Contains(t, out, "/app.js")
}

func TestBaseHrefOnlyFirstOneCounts(t *testing.T) {
	in := `<base href="https://cdn.example.com/">` +
		`<base href="https://ignored.example.com/">` +
		`<script src="//ads.tracker.net/x.js"></script>`
	bl := buildAdsBlocklist(t)
	out := string(Minify("https://doc.example.com/page", []byte(in), bl, false))
	assert.NotContains(t, out, "ads.tracker.net")
}
