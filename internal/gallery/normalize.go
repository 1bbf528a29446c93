package gallery

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeStudentID normalizes a roster name or image filename stem into a
// stable student identifier: diacritics folded, lowercased, separators
// collapsed to underscores ("Jiří Novák" -> "jiri_novak").
func NormalizeStudentID(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), "_")
}
