// Package querystring serializes parameter sets into the catalog's query
// string dialect: index-addressed arrays for most keys and bracket-only
// arrays for a per-resource list of non-indexed keys.
package querystring

import (
	"strconv"
	"strings"

	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/params"
)

// Encode writes the indexed fragment followed by the non-indexed fragment.
// Empty fragments are dropped so the result never carries a dangling '&'.
func Encode(s *params.Set, nonIndexed []string) string {
	skip := make(map[string]struct{}, len(nonIndexed))
	for _, k := range nonIndexed {
		skip[k] = struct{}{}
	}

	var indexed, brackets []string
	for _, m := range s.Members() {
		if _, ok := skip[m.Key]; ok {
			brackets = appendBrackets(brackets, escape(m.Key), m.Value)
			continue
		}
		indexed = appendIndexed(indexed, escape(m.Key), m.Value)
	}

	frags := make([]string, 0, 2)
	if len(indexed) > 0 {
		frags = append(frags, strings.Join(indexed, "&"))
	}
	if len(brackets) > 0 {
		frags = append(frags, strings.Join(brackets, "&"))
	}
	return strings.Join(frags, "&")
}

func appendIndexed(out []string, prefix string, v params.Value) []string {
	switch v.Kind() {
	case params.KindArray:
		for i, it := range v.Items() {
			out = appendIndexed(out, prefix+"["+strconv.Itoa(i)+"]", it)
		}
	case params.KindObject:
		for _, m := range v.Object().Members() {
			out = appendIndexed(out, prefix+"["+escape(m.Key)+"]", m.Value)
		}
	default:
		out = append(out, prefix+"="+escape(v.Text()))
	}
	return out
}

// nested arrays collapse onto the same key[] prefix
func appendBrackets(out []string, prefix string, v params.Value) []string {
	switch v.Kind() {
	case params.KindArray:
		for _, it := range v.Items() {
			out = appendBracketItem(out, prefix+"[]", it)
		}
	case params.KindObject:
		for _, m := range v.Object().Members() {
			out = appendBrackets(out, prefix+"["+escape(m.Key)+"]", m.Value)
		}
	default:
		out = append(out, prefix+"="+escape(v.Text()))
	}
	return out
}

func appendBracketItem(out []string, prefix string, v params.Value) []string {
	switch v.Kind() {
	case params.KindArray:
		for _, it := range v.Items() {
			out = appendBracketItem(out, prefix, it)
		}
	case params.KindObject:
		for _, m := range v.Object().Members() {
			out = appendBrackets(out, prefix+"["+escape(m.Key)+"]", m.Value)
		}
	default:
		out = append(out, prefix+"="+escape(v.Text()))
	}
	return out
}

const upperhex = "0123456789ABCDEF"

// RFC 3986: everything outside the unreserved set is percent-encoded
func escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
