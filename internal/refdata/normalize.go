// Package refdata holds the curated securities master and the alias cache
// the linker (C7) resolves company mentions against (§4.3).
package refdata

import (
	"strings"
	"unicode"
)

var legalFormSuffixes = []string{
	"пао", "ао", "зао", "ооо", "нко", "пифр",
}

// Normalize lowercases, strips punctuation and common Russian legal-entity
// suffixes, and collapses whitespace, so "ПАО «Газпром»" and "Газпром" map
// to the same alias key.
func Normalize(raw string) string {
	lowered := strings.ToLower(raw)

	var b strings.Builder
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if isLegalSuffix(f) {
			continue
		}
		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}

func isLegalSuffix(word string) bool {
	for _, suffix := range legalFormSuffixes {
		if word == suffix {
			return true
		}
	}
	return false
}
