package competition

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

	// ligatures and letters NFD does not decompose into ASCII.
	slugReplacer = strings.NewReplacer(
		"æ", "ae", "Æ", "ae", "œ", "oe", "Œ", "oe", "ß", "ss",
		"ø", "o", "Ø", "o", "đ", "d", "Đ", "d", "ł", "l", "Ł", "l",
		"&", " and ",
	)
)

// Slugify derives the URL identifier of a competition from its name:
// "Coupe Régionale Été 2024" becomes "coupe-regionale-ete-2024".
func Slugify(name string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		slugReplacer.Replace(name),
	)
	if err != nil {
		stripped = name
	}

	slug := nonSlugChars.ReplaceAllString(strings.ToLower(stripped), "-")
	return strings.Trim(slug, "-")
}
