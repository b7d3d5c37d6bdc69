package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonDigitRegex   = regexp.MustCompile(`[^0-9]`)

	foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Fold lowercases, strips diacritics and collapses whitespace. All fuzzy
// comparisons in the matching code go through this so "Pocitos" and
// "pócitos " compare equal.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(foldTransform, s); err == nil {
		s = folded
	}
	return multiSpaceRegex.ReplaceAllString(s, " ")
}

// NeighborhoodsMatch applies the substring rule: folded names match when
// equal or when one contains the other ("pocitos" vs "pocitos nuevo").
// Empty names never match.
func NeighborhoodsMatch(a, b string) bool {
	fa, fb := Fold(a), Fold(b)
	if fa == "" || fb == "" {
		return false
	}
	return strings.Contains(fa, fb) || strings.Contains(fb, fa)
}

// AgenciesMatch is the stricter rule used for persisted consolidation:
// folded equality, no substring allowance.
func AgenciesMatch(a, b string) bool {
	fa, fb := Fold(a), Fold(b)
	return fa != "" && fa == fb
}

// PortalKey normalizes a portal label for grouping: lowercase with all
// whitespace removed, so "Gallito " and "gallito" land in the same bucket.
func PortalKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

// PhoneDigits strips everything but digits, so "(+598) 99 123 456" and
// "099123456" can be compared at matching time. Storage keeps the original.
func PhoneDigits(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}
