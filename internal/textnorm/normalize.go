// Package textnorm canonicalizes company names into dedup keys and compares
// them. Every function is pure.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are corporate suffixes and generic venue nouns dropped as whole
// words from a normalized name.
var stopWords = map[string]struct{}{
	"inc":          {},
	"incorporated": {},
	"llc":          {},
	"corp":         {},
	"corporation":  {},
	"co":           {},
	"company":      {},
	"ltd":          {},
	"restaurant":   {},
	"restaurants":  {},
	"cafe":         {},
	"grill":        {},
	"kitchen":      {},
	"bar":          {},
	"eatery":       {},
	"the":          {},
}

var apostrophes = strings.NewReplacer("'", "", "’", "", "‘", "", "`", "", "ʼ", "")

// Normalize returns the canonical comparison key for a company name:
//  1. Fold diacritics and lower-case
//  2. Drop apostrophes so possessives collapse ("Joe's" -> "joes")
//  3. Strip all remaining punctuation and symbols
//  4. Drop stop words as whole words and collapse whitespace
//
// Normalize is idempotent.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = foldDiacritics(name)
	name = strings.ToLower(name)
	name = apostrophes.Replace(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
