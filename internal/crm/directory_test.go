package crm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherKey(t *testing.T) {
	m := newMatcher(0)
	assert.Equal(t, DefaultMinKeyLength, m.minKeyLength)

	key, terms, ok := m.key("Joe's Pizza Inc.")
	require.True(t, ok)
	assert.Equal(t, "joes pizza", key)
	assert.Equal(t, []string{"pizza"}, terms)

	key, terms, ok = m.key("McAlister's Deli")
	require.True(t, ok)
	assert.Equal(t, "mcalisters deli", key)
	assert.Equal(t, []string{"mcalisters", "mcalister"}, terms)

	key, terms, ok = m.key("Chick-fil-A")
	require.True(t, ok)
	assert.Equal(t, "chickfila", key)
	assert.Equal(t, []string{"chickfila", "chick"}, terms)

	_, terms, ok = m.key("Acme Corporation")
	require.True(t, ok)
	assert.Equal(t, []string{"acme"}, terms, "stop-word fragments are not terms")

	_, _, ok = m.key("The Co")
	assert.False(t, ok, "stop words only")

	_, _, ok = m.key("Ax")
	assert.False(t, ok, "shorter than min key length")
}

func TestMatcherConfirm(t *testing.T) {
	m := newMatcher(3)

	assert.True(t, m.confirm("joes pizza", "Joe's Pizza LLC"))
	assert.True(t, m.confirm("joes pizza", "Joes Piza"))
	assert.False(t, m.confirm("joes pizza", "Pizza Hut"))
	assert.False(t, m.confirm("joes pizza", "Jo"), "short candidate")
	assert.False(t, m.confirm("joes pizza", "The Restaurant"), "candidate normalizes to empty")
}

func TestSQLSearchable(t *testing.T) {
	expr := sqlSearchable("company")
	assert.True(t, strings.HasPrefix(expr, strings.Repeat("REPLACE(", len(sqlPunct))+"LOWER(company), '''', '')"))
	assert.True(t, strings.HasSuffix(expr, "'+', '')"))
}

func TestLikeAny(t *testing.T) {
	got := likeAny("name", 2, func(i int) string { return fmt.Sprintf("$%d", i) }, "")
	assert.Equal(t, "(name LIKE $1 OR name LIKE $2)", got)
	assert.Equal(t, []any{"%a%", "%b%", 25}, likeArgs([]string{"a", "b"}, 25))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%pizza%`, likePattern("pizza"))
	assert.Equal(t, `%100\%\_off%`, likePattern("100%_off"))
}

func TestNone(t *testing.T) {
	var d Directory = None{}
	c, err := d.FindContact(context.Background(), "Acme")
	assert.NoError(t, err)
	assert.Nil(t, c)
	cl, err := d.FindClient(context.Background(), "Acme")
	assert.NoError(t, err)
	assert.Nil(t, cl)
}
