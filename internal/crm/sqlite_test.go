package crm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hunter/internal/store"
)

func newTestSQLiteDirectory(t *testing.T) *SQLiteDirectory {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	_, err = st.DB().Exec(`
		INSERT INTO clients (id, name) VALUES ('cl-1', 'Blue Bottle Coffee'), ('cl-2', 'Tacos 100% Real');
		INSERT INTO contacts (id, client_id, company) VALUES
			('ct-1', NULL, 'Sweetgreen'),
			('ct-2', 'cl-1', 'Blue Bottle Coffee Co.'),
			('ct-3', 'cl-2', 'McAlister''s Deli'),
			('ct-4', NULL, 'Chick-fil-A');
	`)
	require.NoError(t, err)
	return NewSQLite(st.DB(), 3)
}

func TestSQLiteDirectory_FindContact(t *testing.T) {
	d := newTestSQLiteDirectory(t)
	ctx := context.Background()

	m, err := d.FindContact(ctx, "Blue Bottle Coffee")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "ct-2", m.ID)
	assert.Equal(t, "cl-1", m.ClientID)

	m, err = d.FindContact(ctx, "SWEETGREEN, INC.")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "ct-1", m.ID)
	assert.Empty(t, m.ClientID)

	m, err = d.FindContact(ctx, "Shake Shack")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSQLiteDirectory_FindContact_Punctuation(t *testing.T) {
	d := newTestSQLiteDirectory(t)
	ctx := context.Background()

	tests := []struct {
		name string
		want string
	}{
		{"McAlister's Deli", "ct-3"},
		{"McAlisters Deli", "ct-3"},
		{"MCALISTER’S DELI", "ct-3"},
		{"Chick-fil-A", "ct-4"},
		{"Chickfila", "ct-4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := d.FindContact(ctx, tt.name)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.ID)
		})
	}
}

func TestSQLiteDirectory_FindClient(t *testing.T) {
	d := newTestSQLiteDirectory(t)
	ctx := context.Background()

	c, err := d.FindClient(ctx, "Blue Bottle Coffee LLC")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "cl-1", c.ID)

	c, err = d.FindClient(ctx, "Tacos Real")
	require.NoError(t, err)
	assert.Nil(t, c)
}
