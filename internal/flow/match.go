package flow

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, strips diacritics and collapses whitespace so
// that model output can be compared loosely.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// ContainsFold reports whether text contains expected after normalization.
// An empty expectation never matches.
func ContainsFold(text, expected string) bool {
	needle := Normalize(expected)
	if needle == "" {
		return false
	}
	return strings.Contains(Normalize(text), needle)
}

// PickAction returns the first candidate whose description or element text
// contains the needle.
func PickAction(actions []Action, needle string) (Action, bool) {
	for _, a := range actions {
		if ContainsFold(a.Description, needle) || ContainsFold(a.Element.Text, needle) {
			return a, true
		}
	}
	return Action{}, false
}
