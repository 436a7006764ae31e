package htmlrewrite

import "golang.org/x/net/html"

// attrList is a small helper over the tokenizer's attribute slice, kept in
// source order the way lol_html's Element::attributes() iterator is.
type attrList []html.Attribute

func (a attrList) get(key string) (string, bool) {
	for _, at := range a {
		if at.Key == key {
			return at.Val, true
		}
	}
	return "", false
}

func (a attrList) value(key string) string {
	v, _ := a.get(key)
	return v
}

func (a attrList) has(key string) bool {
	_, ok := a.get(key)
	return ok
}

func (a attrList) without(keys ...string) attrList {
	out := make(attrList, 0, len(a))
	for _, at := range a {
		drop := false
		for _, k := range keys {
			if at.Key == k {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, at)
		}
	}
	return out
}

// keepOnly returns a copy of a retaining only attributes whose key is in
// keep, mirroring the teacher rewrite's drop_attrs_except! macro.
func (a attrList) keepOnly(keep ...string) attrList {
	out := make(attrList, 0, len(a))
	for _, at := range a {
		for _, k := range keep {
			if at.Key == k {
				out = append(out, at)
				break
			}
		}
	}
	return out
}

func (a attrList) set(key, val string) attrList {
	for i := range a {
		if a[i].Key == key {
			a[i].Val = val
			return a
		}
	}
	return append(a, html.Attribute{Key: key, Val: val})
}

func hasAriaOrItemOrRole(key string) bool {
	switch key {
	case "itemprop", "itemscope", "itemtype", "role":
		return true
	}
	return len(key) > 5 && key[:5] == "aria-"
}

// stripGenericAttrs implements the universal "*" element policy: drop
// ARIA/microdata/role attributes from every surviving element.
func stripGenericAttrs(a attrList) attrList {
	out := make(attrList, 0, len(a))
	for _, at := range a {
		if !hasAriaOrItemOrRole(at.Key) {
			out = append(out, at)
		}
	}
	return out
}
