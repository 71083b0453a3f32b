package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NameMatchMode controls how person names are compared across the two stores.
type NameMatchMode string

const (
	// NameMatchFold compares names case-insensitively, ignoring diacritics
	// and surrounding/repeated whitespace.
	NameMatchFold NameMatchMode = "fold"
	// NameMatchExact compares names byte for byte after trimming.
	NameMatchExact NameMatchMode = "exact"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for cross-store comparison according
// to the given mode. The empty string means "no usable name".
func NormalizePersonName(name string, mode NameMatchMode) string {
	name = strings.TrimSpace(name)
	if mode == NameMatchExact {
		return name
	}
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	return strings.Join(strings.Fields(name), " ")
}
