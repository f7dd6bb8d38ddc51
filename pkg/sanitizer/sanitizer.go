package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reRegistrationNoise = regexp.MustCompile(`[^0-9A-Za-z]+`)
	reMultiSpace        = regexp.MustCompile(`\s+`)
)

func upper(s string) string {
	return strings.ToUpper(s)
}

func lower(s string) string {
	return strings.ToLower(s)
}

// SanitizeRegistration turns "ka-01 ab 1234" into "KA01AB1234".
func SanitizeRegistration(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		func(s string) string { return reRegistrationNoise.ReplaceAllString(s, "") },
		upper,
	}
	return p.Apply(input)
}

func SanitizeEmail(input string) string {
	return Pipeline{strings.TrimSpace, lower}.Apply(input)
}

// SanitizePlace normalizes a district or location name to single-spaced title case.
func SanitizePlace(input string) string {
	p := Pipeline{
		TrimAndNormalize,
		lower,
		titleWords,
	}
	return p.Apply(input)
}

// SanitizeLabel is used for enum-like values such as car type or fuel.
func SanitizeLabel(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		lower,
		func(s string) string { return reMultiSpace.ReplaceAllString(s, "_") },
	}
	return p.Apply(input)
}

// SearchPattern builds a case-insensitive anchored regex matching input literally.
func SearchPattern(input string) string {
	input = TrimAndNormalize(input)
	if input == "" {
		return ""
	}
	return "^" + regexp.QuoteMeta(input) + "$"
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
