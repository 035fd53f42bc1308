package frame

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks: "Côte-d'Or" -> "Cote-d'Or". A chained
// transformer carries state, so each call builds its own.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

var columnReplacer = strings.NewReplacer(" ", "_", "-", "_", "\ufeff", "")

// NormalizeColumn turns an export header into a column key:
// "Valeur foncière" -> "valeur_fonciere", "Code-Département" -> "code_departement".
func NormalizeColumn(name string) string {
	s := StripAccents(strings.ToLower(strings.TrimSpace(name)))
	return columnReplacer.Replace(s)
}
