// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended by the truncation helpers when text is cut.
const Ellipsis = "..."

// UNICODE: every helper here counts runes or display cells, never bytes,
// so multi-byte characters are never split.

// TruncateRunes cuts s to at most maxRunes runes, ellipsis included.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if maxRunes <= len(Ellipsis) {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-len(Ellipsis)]) + Ellipsis
}

// TruncateWidth cuts s to at most maxWidth terminal cells, ellipsis included.
// Wide runes (CJK, emoji) count as two cells.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(Ellipsis) {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// Excerpt collapses whitespace runs in s to single spaces and then limits the
// result to maxWidth cells, appending an ellipsis only when something was cut.
// Used for supporting-document previews.
func Excerpt(s string, maxWidth int) string {
	flat := strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(flat) <= maxWidth {
		return flat
	}
	return runewidth.Truncate(flat, maxWidth, "") + Ellipsis
}

// StringWidth returns the display width of s in terminal cells.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
