package htmlrewrite

import "github.com/zhlob/proxy/pkg/pattern"

// extraStripPatterns supplements the built-in tracking-parameter list in
// querystring.go with operator-configured patterns. It is written once,
// before the pipeline starts serving requests, and only ever read
// afterward (the slice header is swapped, never mutated in place), so
// concurrent Minify calls never race with it.
var extraStripPatterns []*pattern.Pattern

// SetExtraStripPatterns compiles raw (exact/wildcard/regexp, see
// pkg/pattern) query-parameter patterns and installs them as a supplement
// to the built-in tracking-parameter list every rewritten <a href> already
// strips (<img src> values are not filtered). Grounded on the teacher's
// internal/common/config.CompileStripPatterns + ShouldStripParam, which
// compile an operator-supplied pattern list the same way.
func SetExtraStripPatterns(raw []string) error {
	compiled := make([]*pattern.Pattern, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		p, err := pattern.Compile(r)
		if err != nil {
			return err
		}
		compiled = append(compiled, p)
	}
	extraStripPatterns = compiled
	return nil
}

func matchesExtraStripPattern(key string) bool {
	for _, p := range extraStripPatterns {
		if p.Match(key) {
			return true
		}
	}
	return false
}
