// Package querycodec converts URL query strings to flat mappings and back.
//
// Decoding follows application/x-www-form-urlencoded rules ("+" is a space,
// percent escapes are decoded) and is lenient: a malformed escape is kept
// literally instead of failing. When a key repeats, the last value wins.
//
// Encoding is canonical: keys are sorted lexicographically and joined as
// key=value pairs with "&", without a leading "?". Two mappings holding the
// same pairs always encode to the same string, which is what makes no-op
// update detection possible.
package querycodec

import (
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// Mapping is a decoded query string: one string value per key.
type Mapping map[string]string

// Keys returns the keys in canonical (lexicographic) order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of m. A nil mapping clones to an empty one.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether m and other hold the same pairs.
func (m Mapping) Equal(other Mapping) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Normalize strips one leading "?" from search.
func Normalize(search string) string {
	return strings.TrimPrefix(search, "?")
}

// Decode parses search into a Mapping. A leading "?" is optional.
func Decode(search string) Mapping {
	search = Normalize(search)
	m := make(Mapping)
	if search == "" {
		return m
	}

	for _, part := range strings.Split(search, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		m[unescape(key)] = unescape(value)
	}
	return m
}

// Encode serializes m canonically: sorted keys, form-encoded, no "?".
func Encode(m Mapping) string {
	if len(m) == 0 {
		return ""
	}

	var b strings.Builder
	for i, k := range m.Keys() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(m[k]))
	}
	return b.String()
}

// Canonical returns the canonical form of search.
func Canonical(search string) string {
	return Encode(Decode(search))
}

// unescape form-decodes s, keeping malformed percent escapes literally.
func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return toValidUTF8(s)
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+':
			buf = append(buf, ' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
		default:
			buf = append(buf, c)
		}
	}

	return toValidUTF8(string(buf))
}

// toValidUTF8 replaces invalid byte sequences with U+FFFD, whether they
// arrived raw or percent-encoded.
func toValidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
