package compiler

import "strings"

// rejectOptions is the exact set of Adblock `$option` keywords that make a
// rule uncompilable for this proxy's script-blocking use case: negated
// script/all, badfilter, first-party/strict third-party variants, and
// every response-modifying or context-dependent option (csp, redirect,
// replace, cookie, popup, ...). Reproduced keyword-for-keyword from
// original_source/src/dac/generate.rs's is_valid_script_rule.
var rejectOptions = map[string]bool{
	"~script": true, "~all": true, "badfilter": true,
	"~third-party": true, "~3p": true, "~strict3p": true, "~strict-third-party": true,
	"first-party": true, "1p": true, "strict1p": true, "strict-first-party": true,
	"denyallow": true, "to": true, "header": true,
	"inline-script": true, "inline-font": true, "ipaddress": true,
	"permissions": true, "csp": true, "removeparam": true, "redirect": true,
	"empty": true, "mp4": true, "redirect-rule": true, "urlskip": true,
	"replace": true, "urltransform": true, "cookie": true, "popup": true,
	"popunder": true, "match-case": true,
}

// positiveResourceTypes are Adblock resource-type options other than
// script/all; seeing any of these without a positive script/all option
// also present disqualifies the rule (step 2 of spec §4.C).
var positiveResourceTypes = map[string]bool{
	"image": true, "css": true, "stylesheet": true, "frame": true,
	"subdocument": true, "document": true, "media": true, "font": true,
	"ping": true, "websocket": true, "other": true, "object": true,
	"webrtc": true, "csp_report": true, "xmlhttprequest": true, "xhr": true,
}

var thirdPartyOptions = map[string]bool{
	"third-party": true, "3p": true, "strict3p": true, "strict-third-party": true,
}

// isValidScriptRule implements spec §4.C step 2: it walks the comma
// separated $options of a rule and decides whether the rule is usable at
// all, and if so whether it carries the third-party restriction.
func isValidScriptRule(options string) (thirdParty bool, ok bool) {
	hasPositiveTypes := false
	scriptAllowed := false
	getAllowed := false
	hasPositiveMethods := false
	hasThirdParty := false

	for _, opt := range strings.Split(options, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}

		key, value, hasValue := opt, "", false
		if idx := strings.IndexByte(opt, '='); idx != -1 {
			key, value, hasValue = opt[:idx], opt[idx+1:], true
		}
		key = strings.ToLower(key)

		switch {
		case rejectOptions[key]:
			return false, false
		case key == "domain" || key == "from":
			if hasValue && value != "" {
				for _, d := range strings.Split(value, "|") {
					d = strings.TrimSpace(d)
					if d != "" && !strings.HasPrefix(d, "~") {
						return false, false
					}
				}
			}
		case key == "method":
			if hasValue && value != "" {
				for _, m := range strings.Split(value, "|") {
					m = strings.TrimSpace(m)
					if m == "" {
						continue
					}
					negated := strings.HasPrefix(m, "~")
					name := m
					if negated {
						name = m[1:]
					}
					if strings.EqualFold(name, "get") {
						if negated {
							return false, false
						}
						getAllowed = true
					}
					if !negated {
						hasPositiveMethods = true
					}
				}
			}
		case thirdPartyOptions[key]:
			hasThirdParty = true
		case key == "script" || key == "all":
			hasPositiveTypes = true
			scriptAllowed = true
		case positiveResourceTypes[key]:
			hasPositiveTypes = true
		}
	}

	if hasPositiveTypes && !scriptAllowed {
		return false, false
	}
	if hasPositiveMethods && !getAllowed {
		return false, false
	}
	return hasThirdParty, true
}
