package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reColChars = regexp.MustCompile(`[^a-z0-9]`)
)

var accentFold = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u", "ç", "c",
	"â", "a", "ê", "e", "î", "i", "ô", "o", "û", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
)

// NormalizeColumn reduces a column header to a comparable token: lowercase,
// accents folded, punctuation and whitespace stripped. "Reservation Nº" and
// "reservation_no" normalize to the same value.
func NormalizeColumn(input string) string {
	s := accentFold.Replace(strings.TrimSpace(input))
	s = strings.ToLower(s)
	return reColChars.ReplaceAllString(s, "")
}

// NormalizeKey canonicalizes an external business key for matching: uppercase
// with inner whitespace removed, keeping only key-safe characters.
func NormalizeKey(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '/' || r == '.' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// CollapseSpaces trims and folds runs of whitespace, including NBSP, to a
// single space. Used for normalized string comparison when diffing.
func CollapseSpaces(input string) string {
	s := strings.ReplaceAll(input, " ", " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}
