package textmatch

import (
	"slices"
	"strings"
	"unicode"
)

// variantSeparators are the joiners used when respelling an identifier.
var variantSeparators = []string{" ", "-", "_"}

// isSeparator reports whether r separates identifier parts.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '/'
}

// GenerateVariants returns the canonical spelling and spacing variants of an
// identifier token, sorted and without duplicates.
//
// The result always contains the trimmed token itself, its separator-free form,
// the space/hyphen/underscore joined forms of its parts and the same joins of
// its letter/digit segments. An empty token yields [""].
func GenerateVariants(token string) []string {
	token = strings.TrimSpace(token)
	if token == "" {
		return []string{""}
	}

	set := make(map[string]struct{})
	add := func(s string) {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	addJoins := func(parts []string) {
		if len(parts) < 2 {
			return
		}
		for _, sep := range variantSeparators {
			add(strings.Join(parts, sep))
		}
	}

	add(token)

	parts := strings.FieldsFunc(token, isSeparator)
	joined := strings.Join(parts, "")
	add(joined)
	addJoins(parts)

	addJoins(splitClasses(joined, true, true))
	addJoins(splitClasses(joined, true, false))
	addJoins(splitClasses(joined, false, true))

	variants := make([]string, 0, len(set))
	for v := range set {
		variants = append(variants, v)
	}
	slices.Sort(variants)
	return variants
}

// splitClasses cuts s where a letter meets a digit.
// letterDigit cuts "AB12" style boundaries, digitLetter cuts "12AB" style ones.
func splitClasses(s string, letterDigit, digitLetter bool) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	var segments []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		cut := (letterDigit && unicode.IsLetter(prev) && unicode.IsDigit(cur)) ||
			(digitLetter && unicode.IsDigit(prev) && unicode.IsLetter(cur))
		if cut {
			segments = append(segments, string(runes[start:i]))
			start = i
		}
	}
	return append(segments, string(runes[start:]))
}

// Canonical returns the folded, separator-free form of s.
// Every variant produced by GenerateVariants(s) has the same canonical form as s.
func Canonical(s string) string {
	return strings.Join(strings.FieldsFunc(Fold(s), isSeparator), "")
}

// ContainsCanonical reports whether needle appears in haystack once both are
// reduced to their canonical forms.
func ContainsCanonical(haystack, needle string) bool {
	n := Canonical(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Canonical(haystack), n)
}
