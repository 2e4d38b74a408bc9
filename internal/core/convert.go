package core

// convert.go turns raw cell text into typed values.
//
// The parsers are tolerant of what spreadsheets actually contain: currency
// symbols and ISO codes, accounting negatives, either separator convention,
// several date layouts. They return pgtype values with Valid=false when a
// value cannot be resolved unambiguously.
//
// Amount null conditions:
//   - empty after cleanup, or no digits at all
//   - characters other than digits, separators, one sign and currency markers
//   - a sign combined with parentheses
//   - the decimal separator appearing more than once
//   - thousands groups that are not exactly three digits (first group 1-3,
//     no leading zero)
//   - a lone separator read as thousands separator whose grouping is invalid,
//     so "12.5" is null without a locale while "12.50" and "1.250" resolve
//
// Date null conditions: no layout parses to a valid calendar date.

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/currency"
)

// numericRegex matches a plain number: integers, decimals, scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Date layouts, tried in order. dayFirstLayout and monthFirstLayout swap
// places for month-first locales.
const (
	isoLayout        = "2006-01-02"
	dayFirstLayout   = "2/1/2006"
	monthFirstLayout = "1/2/2006"
)

var isoTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
}

var longDateLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
}

// dateLayouts returns the ordered layout list for a locale.
func dateLayouts(loc Locale) []string {
	layouts := make([]string, 0, 3+len(isoTimestampLayouts)+len(longDateLayouts))
	layouts = append(layouts, isoLayout)
	layouts = append(layouts, isoTimestampLayouts...)
	if loc.monthFirst() {
		layouts = append(layouts, monthFirstLayout, dayFirstLayout)
	} else {
		layouts = append(layouts, dayFirstLayout, monthFirstLayout)
	}
	return append(layouts, longDateLayouts...)
}

// ParseDate parses s with the first layout that yields a valid calendar date.
func ParseDate(s string, loc Locale) pgtype.Date {
	s = CleanCell(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range dateLayouts(loc) {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// ParseAmount parses a money value.
//
// When both ',' and '.' appear, the rightmost one is the decimal separator.
// A single separator is resolved by the locale when one is given. Without a
// locale it is thousands when the digits form valid 3-digit groups ("1,234",
// "1.234") and decimal otherwise ("12.50", "12,5", "1234.5", "0,123").
//
// The result is null for empty or non-numeric input, a repeated decimal
// separator, invalid grouping on the integer side ("12,34.56", "1,234,56"),
// a trailing separator ("12."), or a sign inside accounting parentheses.
func ParseAmount(s string, loc Locale) pgtype.Numeric {
	s = stripCurrency(CleanCell(s))
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = stripCurrency(s[1 : len(s)-1])
	}

	sign := false
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = true, s[1:]
		if negative {
			return pgtype.Numeric{Valid: false}
		}
		negative = true
	case strings.HasPrefix(s, "+"):
		sign, s = true, s[1:]
	case strings.HasSuffix(s, "-"):
		sign, s = true, s[:len(s)-1]
		negative = true
	}
	if sign {
		s = stripCurrency(s)
	}

	intPart, frac, ok := splitAmount(s, loc)
	if !ok {
		return pgtype.Numeric{Valid: false}
	}

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	canonical := intPart
	if frac != "" {
		canonical += "." + frac
	}
	if negative {
		canonical = "-" + canonical
	}

	var n pgtype.Numeric
	if err := n.Scan(canonical); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// splitAmount resolves separators and returns the integer digits and the
// fractional digits.
func splitAmount(s string, loc Locale) (intPart, frac string, ok bool) {
	digits := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == ',' || c == '.':
		default:
			return "", "", false
		}
	}
	if digits == 0 {
		return "", "", false
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas == 0 && dots == 0:
		return s, "", true

	case commas > 0 && dots > 0:
		pos := max(strings.LastIndexByte(s, ','), strings.LastIndexByte(s, '.'))
		dec := s[pos]
		thousands := byte(',')
		if dec == ',' {
			thousands = '.'
		}
		if strings.Count(s, string(dec)) != 1 {
			return "", "", false
		}
		return decimalParts(s[:pos], s[pos+1:], thousands)

	default:
		sep := byte(',')
		count := commas
		if dots > 0 {
			sep, count = '.', dots
		}
		if count > 1 {
			grouped, ok := ungroup(s, sep)
			return grouped, "", ok
		}

		pos := strings.IndexByte(s, sep)
		if locSep, known := loc.decimalSeparator(); known {
			if sep == locSep {
				return decimalParts(s[:pos], s[pos+1:], 0)
			}
			grouped, ok := ungroup(s, sep)
			return grouped, "", ok
		}
		if grouped, ok := ungroup(s, sep); ok {
			return grouped, "", true
		}
		return decimalParts(s[:pos], s[pos+1:], 0)
	}
}

// decimalParts validates the integer side (grouped by thousands when
// thousands != 0) and the fractional side.
func decimalParts(intSide, fracSide string, thousands byte) (string, string, bool) {
	if fracSide == "" || strings.ContainsAny(fracSide, ",.") {
		return "", "", false
	}
	if intSide == "" {
		return "", fracSide, true
	}
	if thousands != 0 && strings.IndexByte(intSide, thousands) >= 0 {
		grouped, ok := ungroup(intSide, thousands)
		return grouped, fracSide, ok
	}
	if strings.ContainsAny(intSide, ",.") {
		return "", "", false
	}
	return intSide, fracSide, true
}

// ungroup removes thousands separators, requiring a 1-3 digit leading group
// without a leading zero, followed by 3-digit groups.
func ungroup(s string, sep byte) (string, bool) {
	groups := strings.Split(s, string(sep))
	if len(groups[0]) == 0 || len(groups[0]) > 3 || groups[0][0] == '0' {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

// stripCurrency removes currency symbols, whitespace and leading or trailing
// ISO 4217 codes.
func stripCurrency(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if code := leadingLetters(s); len(code) == 3 && isCurrencyCode(code) {
		s = s[3:]
	}
	if code := trailingLetters(s); len(code) == 3 && isCurrencyCode(code) {
		s = s[:len(s)-3]
	}
	return s
}

func isCurrencyCode(code string) bool {
	_, err := currency.ParseISO(strings.ToUpper(code))
	return err == nil
}

func leadingLetters(s string) string {
	i := 0
	for i < len(s) && isASCIILetter(s[i]) {
		i++
	}
	return s[:i]
}

func trailingLetters(s string) string {
	i := len(s)
	for i > 0 && isASCIILetter(s[i-1]) {
		i--
	}
	return s[i:]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsNumericCell reports whether a cleaned cell is purely numeric, allowing
// comma thousands grouping.
func IsNumericCell(s string) bool {
	s = strings.ReplaceAll(s, ",", "")
	return s != "" && numericRegex.MatchString(s)
}

// AmountString renders a valid amount in canonical form without trailing
// fractional zeros ("1234.5", "-12"). Invalid amounts render as "".
func AmountString(n pgtype.Numeric) string {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return ""
	}

	digits := n.Int.String()
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var s string
	switch exp := int(n.Exp); {
	case exp >= 0:
		s = digits + strings.Repeat("0", exp)
	case len(digits) <= -exp:
		s = "0." + strings.Repeat("0", -exp-len(digits)) + digits
	default:
		point := len(digits) + exp
		s = digits[:point] + "." + digits[point:]
	}
	if neg {
		s = "-" + s
	}

	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

// DateString renders a valid date as YYYY-MM-DD. Invalid dates render as "".
func DateString(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(isoLayout)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// NormalizeText lowercases s and collapses internal whitespace. Natural keys
// built from free text use it so "Acme  Corp" and "acme corp" collide.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
