// Package share encodes editor source into a URL and back.
//
// A share link is the page URL with every existing query string and
// fragment removed and a single "code" parameter appended. The value is
// percent-encoded the way browsers' encodeURIComponent does it, so links
// produced here and by the page script are interchangeable.
package share

import (
	"fmt"
	"net/url"
	"strings"
)

// Param is the query parameter that carries shared source.
const Param = "code"

// Encode returns baseURL with its query and fragment replaced by
// "?code=<escaped source>".
func Encode(source, baseURL string) (string, error) {
	base := baseURL
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base + "?" + Param + "=" + Escape(source), nil
}

// Decode extracts the shared source from rawURL. ok is false when the URL
// carries no code parameter; a present but empty parameter yields "" and
// true.
func Decode(rawURL string) (source string, ok bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("parse share url: %w", err)
	}
	return FromQuery(u.RawQuery)
}

// FromQuery is Decode for an already-split raw query string. Malformed
// parameters other than code are ignored.
func FromQuery(rawQuery string) (source string, ok bool, err error) {
	values, err := url.ParseQuery(rawQuery)
	if values.Has(Param) {
		return values.Get(Param), true, nil
	}
	if err != nil && hasKey(rawQuery, Param) {
		return "", false, fmt.Errorf("parse share query: %w", err)
	}
	return "", false, nil
}

// hasKey reports whether any pair of rawQuery is named key, without
// unescaping values.
func hasKey(rawQuery, key string) bool {
	for _, pair := range strings.FieldsFunc(rawQuery, func(r rune) bool { return r == '&' || r == ';' }) {
		name, _, _ := strings.Cut(pair, "=")
		if name == key {
			return true
		}
		if unescaped, err := url.QueryUnescape(name); err == nil && unescaped == key {
			return true
		}
	}
	return false
}

// Escape percent-encodes s like encodeURIComponent: letters, digits and
// -_.!~*'() stay literal and everything else, including space, becomes
// %XX of its UTF-8 bytes.
func Escape(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
