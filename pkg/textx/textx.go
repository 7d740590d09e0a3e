// Package textx provides small text utilities used across the project.
package textx

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// SanitizeText normalizes line endings to \n, removes control characters
// except tab/newline and trims surrounding space. Inner whitespace, blank
// lines included, is preserved.
func SanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Fold returns the NFKC form of s, trimmed and lowercased. Full-width and
// half-width variants of the same text fold to the same key.
func Fold(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// Truncate shortens s to at most n runes, the last three being "..." when
// cut. Below four runes there is no room for the marker and s is just cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// CountFold counts non-overlapping, case-insensitive occurrences of sub in s.
func CountFold(s, sub string) int {
	if sub == "" {
		return 0
	}
	return strings.Count(strings.ToLower(s), strings.ToLower(sub))
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// SafeFilename replaces runs of characters unsuitable for a download file name
// with a single underscore.
func SafeFilename(s string) string {
	s = unsafeFilename.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "untitled"
	}
	return s
}
