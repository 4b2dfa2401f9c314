package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// searchKey folds text for substring search: case-folded, with combining
// marks removed, so "Brännvin" and "brannvin" share a key.
// Transformers are stateful, so a fresh chain is built per call.
func searchKey(parts ...string) string {
	joined := strings.Join(parts, " ")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, joined)
	if err != nil {
		stripped = norm.NFC.String(joined)
	}
	return cases.Fold().String(strings.TrimSpace(stripped))
}

// likePattern builds a LIKE pattern matching key anywhere, escaping the LIKE
// wildcards with a backslash.
func likePattern(key string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(key) + "%"
}
