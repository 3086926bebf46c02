// Package linkext splits hyperlinks out of tweet text and puts them back.
// Links are removed so that they do not count toward the tweet length limit;
// each one is remembered with the position it has to be reinserted at.
package linkext

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// pattern matches a link: the scheme, one or more URL characters and exactly
// one trailing whitespace character. A link without trailing whitespace is
// never matched, including one at the very end of the text.
var pattern = regexp.MustCompile(`(http|https)[-a-zA-Z0-9+&@#/%?=~_|!¡:,.;]+[\t\n\v\f\r ]`)

// Link is a link cut out of a text.
type Link struct {
	// Offset is the rune position in the stripped text where URL belongs.
	Offset int
	// URL is the matched text, trailing whitespace included.
	URL string
}

// Extract removes every link from text, scanning left to right without
// backtracking. Offsets are measured against the text with all earlier links
// already removed. It returns text unchanged and nil when nothing matches.
func Extract(text string) (string, []Link) {
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	links := make([]Link, 0, len(matches))
	var sb strings.Builder
	sb.Grow(len(text))

	prev := 0
	removed := 0 // runes removed so far
	for _, m := range matches {
		start, end := m[0], m[1]
		url := text[start:end]

		links = append(links, Link{
			Offset: utf8.RuneCountInString(text[:start]) - removed,
			URL:    url,
		})

		sb.WriteString(text[prev:start])
		removed += utf8.RuneCountInString(url)
		prev = end
	}
	sb.WriteString(text[prev:])

	return sb.String(), links
}

// Reinsert is the inverse of Extract. Links are applied in the order given,
// which must be the order Extract returned them in. Bytes that are not valid
// UTF-8 are kept as they are.
func Reinsert(stripped string, links []Link) string {
	if len(links) == 0 {
		return stripped
	}

	out := stripped
	shift := 0
	for _, l := range links {
		at := byteIndex(out, l.Offset+shift)
		out = out[:at] + l.URL + out[at:]
		shift += utf8.RuneCountInString(l.URL)
	}

	return out
}

// byteIndex returns the byte index of the n-th rune of s, clamped to s.
// An invalid byte counts as one rune, as in utf8.RuneCountInString.
func byteIndex(s string, n int) int {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// Len returns the length of text as counted against the tweet limit.
func Len(text string) int {
	return utf8.RuneCountInString(text)
}
