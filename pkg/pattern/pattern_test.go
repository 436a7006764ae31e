package pattern

import "testing"

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name            string
		pattern         string
		expectedKind    patternKind
		expectedClean   string
		expectedCaseIns bool
	}{
		{"exact param name", "ref", kindExact, "ref", false},
		{"exact with query-like chars", "utm_source=1", kindExact, "utm_source=1", false},
		{"wildcard prefix", "mc_*", kindWildcard, "mc_*", false},
		{"wildcard catch-all", "*", kindWildcard, "*", false},
		{"wildcard middle", "ga_*_id", kindWildcard, "ga_*_id", false},
		{"regexp case-sensitive", "~^utm_.+$", kindRegexp, "^utm_.+$", false},
		{"regexp tilde only", "~test", kindRegexp, "test", false},
		{"regexp case-insensitive", "~*^(gclid|fbclid)$", kindRegexp, "^(gclid|fbclid)$", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, clean, caseIns := detectKind(tt.pattern)
			if kind != tt.expectedKind {
				t.Errorf("detectKind(%q) kind = %v, want %v", tt.pattern, kind, tt.expectedKind)
			}
			if clean != tt.expectedClean {
				t.Errorf("detectKind(%q) clean = %q, want %q", tt.pattern, clean, tt.expectedClean)
			}
			if caseIns != tt.expectedCaseIns {
				t.Errorf("detectKind(%q) caseInsensitive = %v, want %v", tt.pattern, caseIns, tt.expectedCaseIns)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		shouldError bool
		checkKind   patternKind
	}{
		{"compile exact", "ref", false, kindExact},
		{"compile wildcard", "mc_*", false, kindWildcard},
		{"compile regexp", "~^utm_.+$", false, kindRegexp},
		{"compile regexp case-insensitive", "~*^gclid$", false, kindRegexp},
		{"empty pattern", "", true, kindExact},
		{"invalid regexp", "~[invalid(", true, kindRegexp},
		{"invalid case-insensitive regexp", "~*[unclosed", true, kindRegexp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			if tt.shouldError {
				if err == nil {
					t.Errorf("Compile(%q) expected error, got nil", tt.pattern)
				}
				return
			}
			if err != nil {
				t.Errorf("Compile(%q) unexpected error: %v", tt.pattern, err)
			}
			if p == nil {
				t.Fatalf("Compile(%q) returned nil pattern", tt.pattern)
			}
			if p.kind != tt.checkKind {
				t.Errorf("Compile(%q) kind = %v, want %v", tt.pattern, p.kind, tt.checkKind)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		input    string
		expected bool
	}{
		{"exact match success", "ref", "ref", true},
		{"exact match fail", "ref", "refx", false},
		{"exact match case-insensitive", "UTM_Source", "utm_source", true},

		{"wildcard prefix match", "mc_*", "mc_cid", true},
		{"wildcard prefix case-insensitive", "mc_*", "MC_EID", true},
		{"wildcard prefix no match", "mc_*", "ga_cid", false},
		{"wildcard middle match", "ga_*_id", "ga_client_id", true},
		{"wildcard middle no match", "ga_*_id", "ga_client", false},
		{"wildcard catch-all", "*", "anything", true},

		{"regexp case-sensitive match", "~^utm_.+$", "utm_source", true},
		{"regexp case-sensitive no match", "~^utm_.+$", "UTM_SOURCE", false},
		{"regexp case-insensitive match", "~*^(gclid|fbclid)$", "FBCLID", true},
		{"regexp case-insensitive no match", "~*^(gclid|fbclid)$", "msclkid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tt.pattern, err)
			}
			if result := p.Match(tt.input); result != tt.expected {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.input, result, tt.expected)
			}
		})
	}
}

func TestMatchNilPattern(t *testing.T) {
	var p *Pattern
	if p.Match("anything") {
		t.Error("(*Pattern)(nil).Match(input) = true, want false")
	}
}

func TestMatchWildcardStandalone(t *testing.T) {
	if !MatchWildcard("mc_cid", "mc_*") {
		t.Error("MatchWildcard(\"mc_cid\", \"mc_*\") = false, want true")
	}
	if MatchWildcard("ga_cid", "mc_*") {
		t.Error("MatchWildcard(\"ga_cid\", \"mc_*\") = true, want false")
	}
}
