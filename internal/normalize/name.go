// Package normalize canonicalizes entity names into comparable keys.
package normalize

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrEmptyQuery is returned when a query is empty after trimming
var ErrEmptyQuery = errors.New("normalize: query is empty")

// Name is a normalized entity name
type Name struct {
	// Key is the case-insensitive comparison key used for store matching
	Key string

	// Display is the Title-Case form persisted as a record name
	Display string
}

// Normalize trims, collapses internal whitespace and Title-Cases raw.
// Normalize(Normalize(x).Display) == Normalize(x) for every non-empty x.
func Normalize(raw string) (Name, error) {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return Name{}, ErrEmptyQuery
	}

	for i, tok := range tokens {
		tokens[i] = titleWord(strings.ToLower(tok))
	}

	display := strings.Join(tokens, " ")
	return Name{
		Key:     strings.ToLower(display),
		Display: display,
	}, nil
}

// Key returns only the comparison key for raw, or "" when raw is blank
func Key(raw string) string {
	n, err := Normalize(raw)
	if err != nil {
		return ""
	}
	return n.Key
}

// titleWord upper-cases the first rune of an already lower-cased word
func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}
