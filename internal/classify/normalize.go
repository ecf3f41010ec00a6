package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s into the form every rule matches against: accents
// removed, lower-case, every rune outside [a-z0-9] turned into a space, runs
// of spaces collapsed and the result trimmed.
//
//	"The-Living_World.xlsx" -> "the living world xlsx"
//	"Évolution (Part 2)"    -> "evolution part 2"
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// transform.Chain is stateful, so build one per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := true // suppress leading spaces
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}
