package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02.01.2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate accepts the calendar formats spreadsheets commonly carry. The
// layout list is ordered; day-first beats month-first for slash dates.
func ParseDate(input string) (time.Time, error) {
	s := CollapseSpaces(input)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", input)
}

func CanonicalDate(t time.Time) string {
	return t.Format("2006-01-02")
}

var (
	reCurrencyEdge = regexp.MustCompile(`(?i)^(?:[$€£¥]|usd|eur|gbp|mxn|cop|pen|ars)\s*|\s*(?:[$€£¥]|usd|eur|gbp|mxn|cop|pen|ars)$`)
	reNumericBody  = regexp.MustCompile(`^-?[\d\s.,]+$`)
	reDotThousands = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+(?:,\d+)?$`)
	reComThousands = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
)

// ParseNumber coerces an amount cell: currency symbols at either edge and
// thousands separators are stripped, decimal comma is accepted. Any
// non-numeric remainder is an error, not a zero.
func ParseNumber(input string) (float64, error) {
	s := CollapseSpaces(input)
	s = reCurrencyEdge.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" || !reNumericBody.MatchString(s) {
		return 0, fmt.Errorf("not a number: %q", input)
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", input)
	}
	return parsed, nil
}

func CanonicalNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reDotThousands.MatchString(compact) {
		compact = strings.ReplaceAll(compact, ".", "")
		return strings.ReplaceAll(compact, ",", ".")
	}
	if reComThousands.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}

var truthyTokens = map[string]struct{}{
	"true": {}, "yes": {}, "y": {}, "1": {}, "x": {},
	"si": {}, "sí": {}, "paid": {}, "pagado": {}, "pagada": {},
	"active": {}, "activo": {}, "activa": {}, "enabled": {}, "on": {},
}

var falsyTokens = map[string]struct{}{
	"false": {}, "no": {}, "n": {}, "0": {},
	"unpaid": {}, "pendiente": {}, "pending": {},
	"inactive": {}, "inactivo": {}, "inactiva": {}, "disabled": {}, "off": {},
}

// ParseBool maps a closed set of truthy/falsy tokens; anything outside the
// set fails rather than defaulting.
func ParseBool(input string) (bool, error) {
	s := strings.ToLower(CollapseSpaces(input))
	if _, ok := truthyTokens[s]; ok {
		return true, nil
	}
	if _, ok := falsyTokens[s]; ok {
		return false, nil
	}
	return false, fmt.Errorf("not a boolean token: %q", input)
}

func CanonicalBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
