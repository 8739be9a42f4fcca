// Package keys builds the redis keys used by the gateway.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "cgw"

// Collection is the key holding a collection's cached metadata entry.
func Collection(id string) string {
	return prefix + ":collection:" + sanitize(strings.TrimSpace(id))
}

func GranuleHits(id string) string {
	return prefix + ":hits:" + sanitize(strings.TrimSpace(id))
}

// Response keys a cached catalog response. The credential is hashed in so
// responses never leak across sessions, and it is never stored in clear.
func Response(resource, url, credential string) string {
	resource = sanitize(strings.TrimSpace(resource))

	const maxURLTextLen = 120
	urlSafe := sanitize(url)
	if len(urlSafe) > maxURLTextLen {
		urlSafe = urlSafe[:maxURLTextLen]
	}

	u := xxhash.Sum64String(url)
	c := xxhash.Sum64String(credential)
	return fmt.Sprintf("%s:resp:%s:%s:u=%016x:c=%016x", prefix, resource, urlSafe, u, c)
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == '.':
			out = r
		default:
			// everything else, including ':', becomes '-' so ids cannot forge segments
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
