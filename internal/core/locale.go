package core

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Locale is an explicit parsing locale. The zero value means "no locale":
// money and date parsing fall back to the separator and format heuristics.
type Locale struct {
	tag language.Tag
	set bool
}

// ParseLocale parses a BCP 47 tag such as "en-US" or "de". An empty string
// returns the zero Locale.
func ParseLocale(s string) (Locale, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locale{}, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return Locale{}, fmt.Errorf("invalid locale %q: %w", s, err)
	}
	return LocaleFor(tag), nil
}

// LocaleFor wraps an already parsed tag, such as one of the language
// package's predefined tags.
func LocaleFor(tag language.Tag) Locale {
	return Locale{tag: tag, set: true}
}

// IsZero reports whether no locale was given.
func (l Locale) IsZero() bool { return !l.set }

// String returns the tag, or "" for the zero Locale.
func (l Locale) String() string {
	if !l.set {
		return ""
	}
	return l.tag.String()
}

// Languages whose conventional decimal separator is a comma.
var commaDecimalLanguages = map[string]bool{
	"de": true, "fr": true, "es": true, "it": true, "nl": true, "pt": true,
	"ru": true, "pl": true, "tr": true, "sv": true, "da": true, "nb": true,
	"nn": true, "no": true, "fi": true, "cs": true, "sk": true, "hu": true,
	"ro": true, "el": true, "id": true, "uk": true, "bg": true, "hr": true,
	"sl": true, "sr": true, "lt": true, "lv": true, "et": true, "vi": true,
}

// Regions that use a point decimal even where the language usually does not.
var pointDecimalRegions = map[string]bool{"CH": true, "LI": true, "MX": true}

// Regions that write dates month first.
var monthFirstRegions = map[string]bool{
	"US": true, "PH": true, "FM": true, "MH": true, "PW": true, "BZ": true,
}

// decimalSeparator returns the locale's decimal separator; ok is false for the
// zero Locale.
func (l Locale) decimalSeparator() (sep byte, ok bool) {
	if !l.set {
		return 0, false
	}
	if region, conf := l.tag.Region(); conf != language.No && pointDecimalRegions[region.String()] {
		return '.', true
	}
	base, _ := l.tag.Base()
	if commaDecimalLanguages[base.String()] {
		return ',', true
	}
	return '.', true
}

// monthFirst reports whether MM/DD/YYYY should be tried before DD/MM/YYYY.
func (l Locale) monthFirst() bool {
	if !l.set {
		return false
	}
	region, conf := l.tag.Region()
	return conf != language.No && monthFirstRegions[region.String()]
}
