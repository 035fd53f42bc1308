package geo

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/climmo/pkg/frame"
)

var (
	nonDigits      = regexp.MustCompile(`\D+`)
	floatSuffix    = regexp.MustCompile(`\.0+$`)
	corsicaCommune = regexp.MustCompile(`^2[AB]\d{3}$`)
)

// NormalizeLabel lowercases, strips accents and folds typographic apostrophes,
// so "Provence-Alpes-Côte d’Azur" and "provence-alpes-cote d'azur" compare equal.
func NormalizeLabel(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "’", "'")
	return frame.StripAccents(strings.ToLower(s))
}

// NormalizeCode canonicalises a raw department code: surrounding and inner
// blanks are removed, letters are uppercased and bare digits are left padded
// to two characters. "2A"/"2B" are returned as is. Spreadsheet artefacts such
// as "1.0" are read as "01". The result is "" for blank input.
func NormalizeCode(raw string) string {
	c := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if c == "" {
		return ""
	}
	if c == "2A" || c == "2B" {
		return c
	}
	c = floatSuffix.ReplaceAllString(c, "")
	if isDigits(c) && len(c) < 2 {
		return strings.Repeat("0", 2-len(c)) + c
	}
	return c
}

// NormalizeCommune canonicalises an INSEE commune code to five characters.
// Non-digit noise is dropped, short codes are left padded, Corsican codes
// (2A004) are preserved and "00000" or unusable input gives "".
func NormalizeCommune(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if corsicaCommune.MatchString(c) {
		return c
	}
	c = nonDigits.ReplaceAllString(floatSuffix.ReplaceAllString(c, ""), "")
	if c == "" || len(c) > 5 {
		return ""
	}
	c = strings.Repeat("0", 5-len(c)) + c
	if c == "00000" {
		return ""
	}
	return c
}

// DepartementFromCommune returns the department part of a normalised commune
// code ("75056" -> "75", "2A004" -> "2A").
func DepartementFromCommune(commune string) string {
	if len(commune) != 5 {
		return ""
	}
	return commune[:2]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
