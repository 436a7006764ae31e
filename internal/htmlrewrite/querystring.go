package htmlrewrite

import (
	"strconv"
	"strings"
)

// stripTrackingParams removes known tracking/analytics query parameters
// from href, preserving the path, any surviving query pairs, and the
// fragment. It returns href unchanged if it has no query string. Grounded
// on the teacher's <a href> rewrite: a short prefix-keyed switch over the
// first three bytes of each parameter name.
func stripTrackingParams(href string) string {
	qPos := strings.IndexByte(href, '?')
	if qPos == -1 {
		return href
	}
	base := href[:qPos]
	rest := href[qPos+1:]

	query, anchor := rest, ""
	if hPos := strings.IndexByte(rest, '#'); hPos != -1 {
		query, anchor = rest[:hPos], rest[hPos:]
	}

	var filtered strings.Builder
	filtered.Grow(len(href))
	first := true
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		keyEnd := strings.IndexByte(pair, '=')
		var key string
		if keyEnd == -1 {
			key = pair
		} else {
			key = pair[:keyEnd]
		}

		if keepQueryParam(key) {
			if !first {
				filtered.WriteByte('&')
			}
			filtered.WriteString(pair)
			first = false
		}
	}

	var out strings.Builder
	out.Grow(len(base) + filtered.Len() + len(anchor) + 1)
	out.WriteString(base)
	if filtered.Len() > 0 {
		out.WriteByte('?')
		out.WriteString(filtered.String())
	}
	out.WriteString(anchor)
	return out.String()
}

// keepQueryParam reports whether key is NOT a known tracking parameter,
// checking the built-in list first and then any operator-configured extra
// patterns installed via SetExtraStripPatterns.
func keepQueryParam(key string) bool {
	return keepBuiltinQueryParam(key) && !matchesExtraStripPattern(key)
}

// keepBuiltinQueryParam reports whether key is NOT one of the tracking
// parameters the teacher strips unconditionally.
func keepBuiltinQueryParam(key string) bool {
	if len(key) < 3 {
		return key != ""
	}
	switch key[:3] {
	case "utm":
		return !(strings.HasPrefix(key, "utm_") || strings.HasPrefix(key, "utm-"))
	case "fbc":
		return !strings.HasPrefix(key, "fbclid")
	case "gcl":
		return !strings.HasPrefix(key, "gclid")
	case "ycl":
		return !strings.HasPrefix(key, "yclid")
	case "ysc":
		return !strings.HasPrefix(key, "ysclid")
	case "_ga", "_gl":
		return false
	case "_op":
		return !strings.HasPrefix(key, "_openstat")
	case "rb_":
		return !strings.HasPrefix(key, "rb_clickid")
	default:
		return true
	}
}

// smallestSrcsetURL picks the lowest-weight candidate from a srcset
// attribute value: a "w" descriptor sorts by its literal integer, an "x"
// descriptor sorts by density*10000, and a missing descriptor sorts last
// (effectively infinite weight, so it only wins when nothing else parses).
func smallestSrcsetURL(srcset string) (string, bool) {
	bestURL := ""
	bestWeight := uint64(0)
	found := false

	for _, part := range strings.Split(srcset, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		url := fields[0]

		weight := uint64(1<<32 - 2)
		if len(fields) > 1 {
			d := fields[1]
			switch {
			case strings.HasSuffix(d, "w"):
				n, err := strconv.ParseUint(d[:len(d)-1], 10, 32)
				if err != nil {
					continue
				}
				weight = n
			case strings.HasSuffix(d, "x"):
				f, err := strconv.ParseFloat(d[:len(d)-1], 32)
				if err != nil {
					continue
				}
				weight = uint64(f * 10000.0)
			default:
				continue
			}
		}

		if !found || weight < bestWeight {
			bestURL, bestWeight, found = url, weight, true
		}
	}

	return bestURL, found
}
