package store

import (
	"html"
	"strings"
)

// The ampersand is not escaped: storing an escaped value again leaves it
// unchanged.
var escaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the characters that could open markup or break out of an
// attribute value with their entity form.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape decodes every HTML entity in s.
func Unescape(s string) string {
	return html.UnescapeString(s)
}
