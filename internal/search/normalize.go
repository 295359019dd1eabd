package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures covers the letters unaccent rewrites that do not decompose
// under NFD.
var ligatures = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"Æ", "AE",
	"œ", "oe",
	"Œ", "OE",
	"ø", "o",
	"Ø", "O",
	"đ", "d",
	"Đ", "D",
	"ł", "l",
	"Ł", "L",
	"ı", "i",
)

// Unaccent strips diacritics from s, mirroring the Postgres unaccent
// dictionary for Latin scripts.
func Unaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return ligatures.Replace(out)
}

// Normalize returns the form of s that similarity, full-text matching and
// the alphabetical tie-break operate on.
func Normalize(s string) string {
	return strings.ToLower(Unaccent(s))
}

// words splits an already-normalized string into alphanumeric runs.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
