package htmlrewrite

import (
	"strings"

	"github.com/zhlob/proxy/internal/blocklist/matcher"
)

// blocklistMatcher is the subset of *matcher.Blocklist the rewriter needs,
// kept as an interface so tests can fake it without building a real DAC.
type blocklistMatcher interface {
	IsMatchSrc(src []byte, base matcher.UrlBaseInfo) bool
	IsMatchCode(code []byte, base matcher.UrlBaseInfo) bool
}

// baseHref returns the element's href, or "./" if absent, per the
// teacher's <base> handler: el.get_attribute("href").or(Some("./")).
func baseHref(attrs attrList) string {
	if v, ok := attrs.get("href"); ok {
		return v
	}
	return "./"
}

// keepMeta reports whether a <meta> element survives, and if so its
// attributes restricted to the ones that matter for the kept cases.
func keepMeta(attrs attrList) (attrList, bool) {
	name := strings.ToLower(attrs.value("name"))

	switch name {
	case "theme-color":
		if attrs.has("media") || attrs.has("content") {
			return attrs.keepOnly("http-equiv", "content", "name", "media"), true
		}
		return nil, false
	case "referrer", "viewport":
		if attrs.has("content") {
			return attrs.keepOnly("http-equiv", "content", "name", "media"), true
		}
		return nil, false
	}

	equiv, hasEquiv := attrs.get("http-equiv")
	forbiddenOrEmpty := true
	if hasEquiv {
		forbiddenOrEmpty = strings.EqualFold(equiv, "X-UA-Compatible") || strings.EqualFold(equiv, "Content-Type")
	}
	if !forbiddenOrEmpty && attrs.has("content") {
		return attrs.keepOnly("http-equiv", "content", "name", "media"), true
	}
	return nil, false
}

// linkDecision applies the <link> keep/rewrite/remove policy.
func linkDecision(attrs attrList, cspAllowInlineJSInAttrs bool) (attrList, bool) {
	rel := attrs.value("rel")
	if strings.Contains(rel, "alternate") {
		return nil, false
	}

	isStyle := strings.Contains(rel, "stylesheet")
	likeStyle := rel == "preload" && attrs.value("as") == "style"

	if rel != "manifest" && !likeStyle && !isStyle {
		return nil, false
	}

	if !likeStyle || !cspAllowInlineJSInAttrs {
		attrs = attrs.keepOnly("rel", "href", "media", "integrity", "crossorigin", "referrerpolicy", "disabled")
	}
	if cspAllowInlineJSInAttrs && isStyle && !attrs.has("disabled") {
		attrs = attrs.set("rel", "preload")
		attrs = attrs.set("as", "style")
		attrs = attrs.set("onload", "this.rel='stylesheet'")
	}
	attrs = attrs.set("fetchpriority", "low")
	return attrs, true
}

// scriptSrcBlocked reports whether a <script src=...> element should be
// removed because its src resolves to a blocklisted URL.
func scriptSrcBlocked(attrs attrList, bl blocklistMatcher, base matcher.UrlBaseInfo) bool {
	src, ok := attrs.get("src")
	if !ok {
		return false
	}
	return bl.IsMatchSrc([]byte(src), base)
}

// inlineScriptBlocked reports whether an inline <script> body matches the
// blocklist's embedded-URL heuristics (component E). The teacher scans a
// bounded window after the tag for a literal "</script" marker; the Go
// tokenizer already isolates the inline body as a single raw-text token,
// so no manual lookahead is needed here.
func inlineScriptBlocked(body []byte, bl blocklistMatcher, base matcher.UrlBaseInfo) bool {
	if len(body) == 0 {
		return false
	}
	return bl.IsMatchCode(body, base)
}

func stripTableSummary(attrs attrList) attrList {
	return attrs.without("summary")
}

func stripImgDecoding(attrs attrList) attrList {
	return attrs.without("decoding")
}

func stripEagerLoading(attrs attrList) attrList {
	if strings.EqualFold(attrs.value("loading"), "eager") {
		return attrs.without("loading")
	}
	return attrs
}

// rewriteImgSrcset picks the lowest-weight srcset candidate as the new src
// and drops srcset/sizes, per the teacher's min-by-key selection.
func rewriteImgSrcset(attrs attrList) attrList {
	srcset, ok := attrs.get("srcset")
	if !ok {
		return attrs
	}
	if url, found := smallestSrcsetURL(srcset); found {
		attrs = attrs.set("src", url)
	}
	return attrs.without("srcset", "sizes")
}

// rewriteAnchor applies href utm-stripping and rel "no"-prefix filtering,
// and drops ping/type/hreflang, per the teacher's <a> handler.
func rewriteAnchor(attrs attrList) attrList {
	out := attrs.without("ping", "type", "hreflang")

	if href, ok := out.get("href"); ok {
		out = out.set("href", stripTrackingParams(href))
	}

	if rel, ok := out.get("rel"); ok {
		kept := make([]string, 0, len(rel))
		for _, tok := range strings.Fields(rel) {
			if strings.HasPrefix(tok, "no") {
				kept = append(kept, tok)
			}
		}
		if len(kept) == 0 {
			out = out.without("rel")
		} else {
			out = out.set("rel", strings.Join(kept, " "))
		}
	}

	return out
}

// isRemovedUnconditionally covers the noscript / ld+json json removal
// pass, which fires regardless of any earlier decision for the element.
func isRemovedUnconditionally(tagName string, attrs attrList) bool {
	if tagName == "noscript" {
		return true
	}
	return tagName == "script" && strings.EqualFold(attrs.value("type"), "application/ld+json")
}

// stripRedundantTypeAttr removes a now-implied type="text/javascript" or
// type="text/css" attribute from a surviving script/style/link element.
func stripRedundantTypeAttr(tagName string, attrs attrList) attrList {
	typ := attrs.value("type")
	switch tagName {
	case "script":
		if strings.EqualFold(typ, "text/javascript") {
			return attrs.without("type")
		}
	case "style":
		if strings.EqualFold(typ, "text/css") {
			return attrs.without("type")
		}
	case "link":
		if strings.EqualFold(typ, "text/css") {
			return attrs.without("type")
		}
	}
	return attrs
}
