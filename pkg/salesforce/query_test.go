package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client for testing.
type mockClient struct {
	queryFn func(ctx context.Context, soql string, out any) error
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	if m.queryFn != nil {
		return m.queryFn(ctx, soql, out)
	}
	return nil
}

func TestFindAccountsByName(t *testing.T) {
	t.Run("returns matching accounts", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "FROM Account WHERE Name LIKE '%joes pizza%'")
				assert.Contains(t, soql, "LIMIT 5")

				accounts := out.(*[]Account)
				*accounts = []Account{{ID: "001xx", Name: "Joe's Pizza Inc"}}
				return nil
			},
		}

		accts, err := FindAccountsByName(context.Background(), mock, []string{"joes pizza"}, 5)
		require.NoError(t, err)
		require.Len(t, accts, 1)
		assert.Equal(t, "001xx", accts[0].ID)
	})

	t.Run("escapes wildcards and quotes", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, _ any) error {
				assert.Contains(t, soql, `LIKE '%o\'brien\_s 100\%%'`)
				assert.Contains(t, soql, "LIMIT 10")
				return nil
			},
		}

		accts, err := FindAccountsByName(context.Background(), mock, []string{"o'brien_s 100%"}, 0)
		require.NoError(t, err)
		assert.Empty(t, accts)
	})

	t.Run("ORs several terms", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, _ any) error {
				assert.Contains(t, soql, "WHERE (Name LIKE '%mcalisters%' OR Name LIKE '%mcalister%') ORDER BY Name")
				return nil
			},
		}

		_, err := FindAccountsByName(context.Background(), mock, []string{"mcalisters", "mcalister"}, 5)
		require.NoError(t, err)
	})

	t.Run("rejects empty terms", func(t *testing.T) {
		_, err := FindAccountsByName(context.Background(), &mockClient{}, nil, 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no search terms")
	})

	t.Run("returns error on query failure", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				return errors.New("connection refused")
			},
		}

		_, err := FindAccountsByName(context.Background(), mock, []string{"acme"}, 5)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "find accounts by name")
	})
}

func TestFindContactByAccount(t *testing.T) {
	t.Run("returns first contact", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "WHERE AccountId = '001xx'")
				contacts := out.(*[]Contact)
				*contacts = []Contact{{ID: "003aa", Name: "Alice", AccountID: "001xx"}}
				return nil
			},
		}

		c, err := FindContactByAccount(context.Background(), mock, "001xx")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "003aa", c.ID)
		assert.Equal(t, "001xx", c.AccountID)
	})

	t.Run("returns nil when account has no contacts", func(t *testing.T) {
		c, err := FindContactByAccount(context.Background(), &mockClient{}, "001xx")
		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
	assert.Equal(t, "plain", escapeSoql("plain"))
}
