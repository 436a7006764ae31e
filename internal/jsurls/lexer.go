// Package jsurls implements the hand-rolled, single-pass JavaScript lexer
// (spec §4.E) that extracts string-literal URL candidates from a script
// body while correctly tracking comment, string, template-literal and
// regex-vs-division lexical context. Grounded line-for-line on
// original_source/src/processors/js_urls_iterator.rs.
package jsurls

import "bytes"

type mode uint8

const (
	modeScript mode = iota
	modeTemplate
)

type context struct {
	mode          mode
	braceDepth    int
	regexpAllowed bool
}

// Lexer walks a JavaScript source buffer and yields byte slices that are
// the contents of string literals shaped like URLs.
type Lexer struct {
	src   []byte
	pos   int
	stack []context
}

// New returns a lexer positioned at the start of src.
func New(src []byte) *Lexer {
	return &Lexer{
		src:   src,
		stack: []context{{mode: modeScript, regexpAllowed: true}},
	}
}

func (l *Lexer) top() *context { return &l.stack[len(l.stack)-1] }

func (l *Lexer) peekByte() byte {
	if l.pos < len(l.src) {
		return l.src[l.pos]
	}
	return 0
}

// scanTo advances past bytes, treating a backslash as escaping the next
// byte unconditionally, until it consumes a byte present in set (which is
// returned) or runs out of input (returns 0).
func (l *Lexer) scanTo(set ...byte) byte {
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		l.pos++
		if b == '\\' {
			l.pos++
			continue
		}
		for _, c := range set {
			if b == c {
				return b
			}
		}
	}
	return 0
}

var keywords = map[string]bool{
	"return": true, "await": true, "yield": true, "case": true,
	"delete": true, "do": true, "else": true, "in": true,
	"instanceof": true, "new": true, "throw": true, "typeof": true,
	"void": true, "extends": true,
}

func isAlphaNumDollarUnderscoreDot(b byte) bool {
	return b == '$' || b == '.' || b == '_' ||
		(b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentContinueOrWhitespace(b byte) bool {
	switch b {
	case '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return isAlphaNumDollarUnderscoreDot(b)
}

// Next returns the next URL-shaped string literal in the source, or
// ok=false once the lexer reaches the end (or malformed input prevents
// further progress — an unterminated string/regex/comment is not an
// error, it simply ends iteration, per spec §8 invariant 4: a URL is
// never reported outside a closed string literal).
func (l *Lexer) Next() (candidate []byte, ok bool) {
	for l.pos < len(l.src) {
		if l.top().mode == modeTemplate {
			switch l.scanTo('`', '$') {
			case '`':
				l.popContext()
				if len(l.stack) == 0 {
					return nil, false
				}
			case '$':
				if l.peekByte() == '{' {
					l.pos++
					l.stack = append(l.stack, context{mode: modeScript, regexpAllowed: true})
				}
			default:
				return nil, false
			}
			continue
		}

		b := l.src[l.pos]
		l.pos++

		switch b {
		case '/':
			if l.pos >= len(l.src) {
				return nil, false
			}
			switch l.src[l.pos] {
			case '/':
				l.pos++
				l.scanTo('\n')
			case '*':
				l.pos++
				idx := bytes.Index(l.src[l.pos:], []byte("*/"))
				if idx < 0 {
					return nil, false
				}
				l.pos += idx + 2
			default:
				if l.top().regexpAllowed {
					if !l.scanRegexBody() {
						return nil, false
					}
					l.top().regexpAllowed = false
				} else {
					l.top().regexpAllowed = true
				}
			}
		case '{':
			ctx := l.top()
			ctx.regexpAllowed = true
			ctx.braceDepth++
		case '(', '[', ';', ',', '!', '=', '<', '>', '+', '-', '*', '%', '&', '|', '^', '~', '?', ':':
			l.top().regexpAllowed = true
		case ')', ']':
			l.top().regexpAllowed = false
		case '}':
			ctx := l.top()
			if ctx.braceDepth > 0 {
				ctx.braceDepth--
				ctx.regexpAllowed = false
			} else {
				l.popContext()
				if len(l.stack) == 0 {
					return nil, false
				}
			}
		case '`':
			l.stack = append(l.stack, context{mode: modeTemplate, regexpAllowed: false})
		case '\'', '"':
			start := l.pos
			found := l.scanTo(b)
			if found == 0 {
				return nil, false
			}
			l.top().regexpAllowed = false
			end := l.pos - 1
			if end > len(l.src) {
				end = len(l.src)
			}
			maybeURL := l.src[start:end]
			if isLikelyURL(maybeURL) {
				return maybeURL, true
			}
		default:
			if isAlphaNumDollarUnderscoreDot(b) {
				start := l.pos - 1
				for isIdentContinueOrWhitespace(l.peekByte()) {
					l.pos++
				}
				word := bytes.TrimRight(l.src[start:l.pos], "\t\n\f\r ")
				l.top().regexpAllowed = keywords[string(word)]
			} else if !isASCIIWhitespace(b) {
				l.top().regexpAllowed = false
			}
		}
	}
	return nil, false
}

func (l *Lexer) popContext() {
	l.stack = l.stack[:len(l.stack)-1]
}

func isASCIIWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// scanRegexBody consumes a regex literal body (the lexer has already
// consumed the opening '/'), treating `[...]` as a character class that
// may contain an unescaped '/'. Returns false on unterminated input.
func (l *Lexer) scanRegexBody() bool {
	for {
		switch l.scanTo('/', '[') {
		case '/':
			return true
		case '[':
			if l.scanTo(']') == 0 {
				return false
			}
		default:
			return false
		}
	}
}

// AllCandidates drains the lexer, returning every URL-shaped string
// literal found. Convenience wrapper over Next for callers (component D)
// that want a slice rather than manual iteration.
func AllCandidates(src []byte) [][]byte {
	l := New(src)
	var out [][]byte
	for {
		c, ok := l.Next()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// isLikelyURL implements the exact byte-level shape check from spec §4.E
// / §8 invariant 5: length >= 8, an optional case-insensitive http(s)
// scheme followed by ':', a mandatory "//", then a dotted host made of
// [A-Za-z0-9-] labels (at least one dot, no leading/trailing dot or
// hyphen, no '_' or ':'), terminated by '/'.
func isLikelyURL(src []byte) bool {
	if len(src) < 8 {
		return false
	}

	pos := 0
	if hasCaseInsensitivePrefix(src, "http") {
		pos = 4
		if pos < len(src) && (src[pos] == 's' || src[pos] == 'S') {
			pos++
		}
		if pos >= len(src) || src[pos] != ':' {
			return false
		}
		pos++
	}

	if pos+2 > len(src) || src[pos] != '/' || src[pos+1] != '/' {
		return false
	}
	pos += 2

	hostStart := pos
	dotCount := 0
	lastDotPos := -1

	for pos < len(src) {
		b := src[pos]
		if b == '/' {
			return dotCount > 0 && lastDotPos != pos-1
		}
		if b == '.' {
			if pos == hostStart || lastDotPos == pos-1 {
				return false
			}
			dotCount++
			lastDotPos = pos
		} else if !isHostLabelByte(b) {
			return false
		}
		pos++
	}
	return false
}

func isHostLabelByte(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '-'
}

func hasCaseInsensitivePrefix(src []byte, prefix string) bool {
	if len(src) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if src[i]|0x20 != prefix[i]|0x20 {
			return false
		}
	}
	return true
}
