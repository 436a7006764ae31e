// Package compiler implements the offline `dacgen` step (spec §4.C): it
// parses Adblock filter lines, synthesizes the pattern/kind multiset,
// builds the Aho-Corasick automaton, prunes overlapping redundant patterns,
// and serializes the result into the on-disk DAC format that component D
// memory-maps at runtime. Grounded on
// original_source/src/dac/generate.rs.
package compiler

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/zhlob/proxy/internal/blocklist/ahocorasick"
	"github.com/zhlob/proxy/internal/blocklist/kind"
	"github.com/zhlob/proxy/internal/blocklist/psl"
)

// magic is the DAC file's outer header: 'D' 'A' 'C' followed by a version
// byte, preceding the 8-byte content hash and the automaton bytes.
var magic = [4]byte{'D', 'A', 'C', 1}

// Compiled holds the deduplicated (pattern -> kind tag) set produced by
// Compile, before automaton construction; Prune removes overlapping
// patterns from it in place.
type Compiled struct {
	patterns map[string]kind.Tag
}

// compileState is the per-Compile working set: the pattern map, and in
// blacklist the single-threaded inner-subdomain set of hosts registered by
// "://x.y.z." rules (spec §4.C step 5's AnyDomainPartBeforeETLD branch),
// consulted by step 6's dedup rule. Rebuilt fresh per Compile call.
type compileState struct {
	patterns  map[string]kind.Tag
	blacklist map[string]bool
}

func (s *compileState) addPattern(p string, k kind.Tag) {
	s.patterns[p] = k
}

// addSharedSubdomainPattern reports whether the rule should be skipped
// because its subdomain-without-www is already covered by a registered
// inner-subdomain blacklist entry (spec §4.C step 6).
func (s *compileState) addSharedSubdomainPattern(subWithoutWWW string) bool {
	return subWithoutWWW != "" && s.blacklist[subWithoutWWW]
}

// rejectedEmptyPatterns are removed after ingestion: garbage that would
// otherwise break overlap pruning by matching nearly everything.
var rejectedEmptyPatterns = []string{"", "/", ".", "./", "//"}

// Compile reads one or more Adblock filter sources and returns the
// deduplicated (not yet overlap-pruned) pattern set.
func Compile(inputs []io.Reader) (*Compiled, error) {
	st := &compileState{patterns: map[string]kind.Tag{}, blacklist: map[string]bool{}}

	for _, r := range inputs {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			processLine(st, strings.TrimSpace(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	for _, p := range rejectedEmptyPatterns {
		delete(st.patterns, p)
	}

	if len(st.patterns) == 0 {
		return nil, errors.New("compiler: no patterns found")
	}

	return &Compiled{patterns: st.patterns}, nil
}

func processLine(st *compileState, line string) {
	if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") ||
		strings.HasPrefix(line, "@@") ||
		strings.Contains(line, "##") || strings.Contains(line, "#@#") || strings.Contains(line, "#?#") {
		return
	}

	thirdParty := false
	if pos := lastIndexAny(line, "/$"); pos != -1 {
		if line[pos] == '$' {
			if pos < 1 {
				return
			}
			tp, ok := isValidScriptRule(line[pos+1:])
			if !ok {
				return
			}
			thirdParty = tp
			line = line[:pos]
		}
	}

	if (strings.HasSuffix(line, "/") && strings.HasPrefix(line, "/")) || strings.HasSuffix(line, "|") {
		return
	}

	existCaretAtEnd := false
	for {
		if strings.HasSuffix(line, "^") {
			existCaretAtEnd = true
		} else if !strings.HasSuffix(line, "*") {
			break
		}
		line = line[:len(line)-1]
	}

	if line == "" || strings.Contains(line, "*") || strings.Contains(line, "^") || !isASCII(line) {
		return
	}

	switch {
	case strings.HasPrefix(line, "://"):
		substr := line[len("://"):]
		if isValidDomainPartWithDot(substr) {
			host := substr[:len(substr)-1]
			st.blacklist[host] = true
			// AnyDomainPartBeforeETLD patterns are always third-party-only:
			// a subdomain label can never equal the document's own eTLD+1.
			st.addPattern(substr, kind.New(kind.AnyDomainPartBeforeETLD, true))
		} else {
			st.addPattern(line[1:], kind.New(kind.SlashedStart, thirdParty))
		}

	case strings.HasPrefix(line, "|"):
		var content string
		domainStartsWith := false
		if c, ok := strings.CutPrefix(line, "||"); ok {
			content = c
		} else {
			content = line[1:]
			domainStartsWith = true
		}
		for _, scheme := range []string{"http://", "https://", "ws://", "wss://", "://", "//"} {
			if rest, ok := strings.CutPrefix(content, scheme); ok {
				content = rest
				break
			}
		}

		filter, ok := psl.Prepare(content)
		if !ok {
			return
		}
		if st.addSharedSubdomainPattern(filter.SubdomainWithoutWWW) {
			return
		}

		suffix := strings.ReplaceAll(filter.PathSuffix, "^", "/")
		if existCaretAtEnd && !strings.HasSuffix(suffix, "/") {
			suffix += "/"
		}

		if domainStartsWith {
			st.addPattern("//"+filter.Domain+suffix, kind.New(kind.SlashedStart, thirdParty))
			return
		}

		if suffix == "" {
			suffix = "/"
		}
		if filter.ETLDPlus2 != "" {
			st.addPattern("."+filter.ETLDPlus2+suffix, kind.New(kind.DomainEndWithDotPrefix, thirdParty))
		} else {
			st.addPattern(filter.Domain+suffix, kind.New(kind.DomainEnd, thirdParty))
		}

	default:
		lineFixed := strings.ReplaceAll(line, "^", "/")
		filter, ok := psl.Prepare(lineFixed)
		if ok && st.addSharedSubdomainPattern(filter.SubdomainWithoutWWW) {
			return
		}
		st.addPattern(lineFixed, kind.New(kind.Substring, thirdParty))
	}
}

func lastIndexAny(s, chars string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if strings.IndexByte(chars, s[i]) != -1 {
			return i
		}
	}
	return -1
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// isValidDomainPartWithDot reports whether s is a dotted host label string
// (alphanumeric, '-' and '.', not starting or ending with '-' or '.')
// ending in a single trailing dot, e.g. "x.y.z.".
func isValidDomainPartWithDot(s string) bool {
	n := len(s)
	if n < 2 || s[n-1] != '.' {
		return false
	}
	body := s[:n-1]
	for i := 0; i < len(body); i++ {
		c := body[i]
		isAlnum := (c >= '0' && c <= '9') || (c|0x20 >= 'a' && c|0x20 <= 'z')
		if !isAlnum && c != '-' && c != '.' {
			return false
		}
	}
	first, last := body[0], body[len(body)-1]
	return first != '-' && first != '.' && last != '-' && last != '.'
}

// Prune runs the overlap-pruning pass described in spec §4.C: for every
// (pattern P, kind K), any overlapping hit Q found by matching P against
// itself that both outranks K (as a raw uint32) and is actually anchored
// (kind.IsMatch) removes P, since Q already subsumes it.
func (c *Compiled) Prune() {
	entries := c.entries()
	automaton := ahocorasick.Build(entries)

	toRemove := make(map[string]bool)
	for pattern, k := range c.patterns {
		src := []byte(pattern)
		host := hostRangeFor(pattern)
		removed := false
		automaton.FindOverlapping(src, func(m ahocorasick.Match) bool {
			if m.Value > uint32(k) {
				qTag := kind.Tag(m.Value)
				if qTag.IsMatch(src, m.Start, m.Length, host) {
					removed = true
					return false
				}
			}
			return true
		})
		if removed {
			toRemove[pattern] = true
		}
	}

	for p := range toRemove {
		delete(c.patterns, p)
	}
}

// hostRangeFor recomputes a pattern's own host byte-range the same way
// component D would for a resolved URL, so self-matching during pruning
// exercises the AnyDomainPartBeforeETLD anchor exactly as matching does. A
// pattern without a "//" scheme separator is treated as starting with its
// own host text, mirroring how these patterns are only ever self-tested
// when they originate from a bare "x.y.z." blacklist entry.
func hostRangeFor(pattern string) kind.HostRange {
	hostStart := 0
	if idx := strings.Index(pattern, "//"); idx != -1 {
		hostStart = idx + 2
	}

	hostEnd := len(pattern)
	if slash := strings.IndexByte(pattern[hostStart:], '/'); slash != -1 {
		hostEnd = hostStart + slash
	}
	host := pattern[hostStart:hostEnd]

	etld1, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimSuffix(host, "."))
	if err != nil || len(etld1) > len(host) {
		return kind.HostRange{HostStart: hostStart}
	}
	return kind.HostRange{HostStart: hostStart, ETLD1Start: hostEnd - len(etld1)}
}

// entries returns the patterns as ahocorasick.Entry values in a stable,
// sorted order (determinism matters for reproducible DAC bytes / hash).
func (c *Compiled) entries() []ahocorasick.Entry {
	keys := make([]string, 0, len(c.patterns))
	for p := range c.patterns {
		keys = append(keys, p)
	}
	sort.Strings(keys)

	out := make([]ahocorasick.Entry, 0, len(keys))
	for _, p := range keys {
		out = append(out, ahocorasick.Entry{Pattern: []byte(p), Value: uint32(c.patterns[p])})
	}
	return out
}

// Patterns exposes the compiled pattern strings, sorted, for the
// `dacgen --dump` text listing; their kind tags are not included.
func (c *Compiled) Patterns() []string {
	keys := make([]string, 0, len(c.patterns))
	for p := range c.patterns {
		keys = append(keys, p)
	}
	sort.Strings(keys)
	return keys
}

// Serialize builds the automaton from the current pattern set and wraps it
// in the on-disk DAC header: magic, 8-byte little-endian xxhash of the
// automaton bytes, then the automaton bytes themselves.
func (c *Compiled) Serialize() []byte {
	automatonBytes := ahocorasick.Build(c.entries()).Serialize()

	buf := make([]byte, 0, 12+len(automatonBytes))
	buf = append(buf, magic[:]...)

	var hashBuf [8]byte
	binary.LittleEndian.PutUint64(hashBuf[:], xxhash.Sum64(automatonBytes))
	buf = append(buf, hashBuf[:]...)

	return append(buf, automatonBytes...)
}
