// Package sanitize cleans entity and aspect labels and scenario descriptions
// received from MCP clients before they enter a scene. Labels end up in DOT
// output, report tables, and the run store, so control characters and markup
// are stripped and lengths are bounded.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxLabelLength is the maximum allowed length for an entity or aspect label.
const MaxLabelLength = 64

// MaxDescriptionLength is the maximum allowed length for a scenario description.
const MaxDescriptionLength = 500

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reWhitespace matches runs of whitespace.
	reWhitespace = regexp.MustCompile(`\s+`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// Label normalizes an entity or aspect label: control characters and quotes
// are dropped, whitespace runs become a single underscore, repeated
// underscores collapse, and the result is truncated to MaxLabelLength.
// Labels made only of ASCII letters, digits, '_', '-' and '.' pass unchanged.
func Label(input string) string {
	if input == "" {
		return ""
	}

	s := strings.TrimSpace(stripControlChars(input))
	s = reWhitespace.ReplaceAllString(s, "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '"' || r == '\'' || r == '`' || r == '\\':
			continue
		case r == '<' || r == '>' || r == '{' || r == '}':
			continue
		case unicode.IsPrint(r):
			b.WriteRune(r)
		}
	}
	s = reRepeatedUnderscores.ReplaceAllString(b.String(), "_")

	if len(s) > MaxLabelLength {
		s = truncateRunes(s, MaxLabelLength)
	}
	return s
}

// Labels applies Label to every element, dropping those that become empty.
func Labels(inputs []string) []string {
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if s := Label(in); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Description cleans free text: control characters (except newline and tab)
// and XML/HTML tags are stripped, whitespace is trimmed, and the result is
// truncated to MaxDescriptionLength.
func Description(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if len(s) > MaxDescriptionLength {
		s = truncateRunes(s, MaxDescriptionLength) + "..."
	}
	return s
}

// stripControlChars removes ASCII control characters (0x00-0x1F, 0x7F),
// except newline and tab.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateRunes cuts s to at most maxBytes bytes without splitting a rune.
func truncateRunes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxBytes {
			break
		}
		cut = i
	}
	return s[:cut]
}
