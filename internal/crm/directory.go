// Package crm cross-references new leads against existing CRM contacts and
// clients.
package crm

import (
	"context"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/hunter/internal/textnorm"
)

// DefaultMinKeyLength is the shortest normalized name that may match.
const DefaultMinKeyLength = 3

// candidateLimit bounds the rows fetched per prefilter query.
const candidateLimit = 25

// ContactMatch is an existing CRM contact whose company matches a lead.
// ClientID is empty when the contact has no client.
type ContactMatch struct {
	ID       string
	ClientID string
}

// ClientMatch is an existing CRM client whose name matches a lead.
type ClientMatch struct {
	ID string
}

// Directory looks up contacts and clients by fuzzy company name. A nil
// match with a nil error means nothing matched.
type Directory interface {
	FindContact(ctx context.Context, name string) (*ContactMatch, error)
	FindClient(ctx context.Context, name string) (*ClientMatch, error)
}

// None is a Directory that never matches.
type None struct{}

func (None) FindContact(context.Context, string) (*ContactMatch, error) { return nil, nil }
func (None) FindClient(context.Context, string) (*ClientMatch, error)   { return nil, nil }

// matcher holds the shared prefilter and confirmation rules.
type matcher struct {
	minKeyLength int
}

func newMatcher(minKeyLength int) matcher {
	if minKeyLength <= 0 {
		minKeyLength = DefaultMinKeyLength
	}
	return matcher{minKeyLength: minKeyLength}
}

// key returns the normalized name and the prefilter terms for it, or
// ok=false when the name is too short to match anything.
//
// CRM names are stored as typed, so a single normalized token can miss them:
// "mcalisters" is not a substring of "McAlister's". Terms:
//   - the longest normalized token
//   - that token with a trailing "s" dropped
//   - the longest raw alphanumeric fragment of name
//
// Candidates are still confirmed against the full key.
func (m matcher) key(name string) (key string, terms []string, ok bool) {
	key = textnorm.Normalize(name)
	if utf8.RuneCountInString(key) < m.minKeyLength {
		return "", nil, false
	}

	token := longest(strings.Fields(key), func(string) bool { return true })
	add := func(t string) {
		if utf8.RuneCountInString(t) < m.minKeyLength || slices.Contains(terms, t) {
			return
		}
		terms = append(terms, t)
	}
	add(token)
	add(strings.TrimSuffix(token, "s"))

	fragments := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	add(longest(fragments, func(f string) bool { return textnorm.Normalize(f) != "" }))

	if len(terms) == 0 {
		terms = []string{token}
	}
	return key, terms, true
}

// longest returns the first longest string accepted by keep.
func longest(ss []string, keep func(string) bool) string {
	var out string
	for _, s := range ss {
		if keep(s) && utf8.RuneCountInString(s) > utf8.RuneCountInString(out) {
			out = s
		}
	}
	return out
}

// confirm reports whether a candidate name is similar to the normalized key.
// Candidates that normalize to fewer than minKeyLength runes never match.
func (m matcher) confirm(key, candidate string) bool {
	c := textnorm.Normalize(candidate)
	if utf8.RuneCountInString(c) < m.minKeyLength {
		return false
	}
	return textnorm.Similar(key, c)
}

// likePattern escapes LIKE wildcards and wraps s for a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// sqlPunct is the punctuation removed from stored names before the LIKE
// prefilter, so "Chick-fil-A" is searchable as "chickfila".
var sqlPunct = []string{"'", "’", "‘", "`", "-", "–", "—", ".", ",", "&", "!", "/", "(", ")", ":", "+"}

// sqlSearchable wraps col in LOWER and one REPLACE per sqlPunct entry. The
// expression is valid in both Postgres and SQLite.
func sqlSearchable(col string) string {
	expr := "LOWER(" + col + ")"
	for _, p := range sqlPunct {
		expr = "REPLACE(" + expr + ", '" + strings.ReplaceAll(p, "'", "''") + "', '')"
	}
	return expr
}

// likeAny renders "(expr LIKE p1 OR expr LIKE p2 ...)" for n patterns.
// placeholder renders the i-th bind parameter, counting from 1.
func likeAny(expr string, n int, placeholder func(i int) string, escape string) string {
	conds := make([]string, n)
	for i := range conds {
		conds[i] = expr + " LIKE " + placeholder(i+1) + escape
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// likeArgs returns the LIKE patterns for terms followed by extra args.
func likeArgs(terms []string, extra ...any) []any {
	args := make([]any, 0, len(terms)+len(extra))
	for _, t := range terms {
		args = append(args, likePattern(t))
	}
	return append(args, extra...)
}
