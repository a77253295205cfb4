package lock

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvisory_LockAndRelease(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(advisoryKey("acme")).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	release, err := NewAdvisory(mock).Lock(context.Background(), "acme")
	require.NoError(t, err)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisory_LockError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(advisoryKey("acme")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = NewAdvisory(mock).Lock(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock: advisory lock acme")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryKey_Stable(t *testing.T) {
	assert.Equal(t, advisoryKey("acme"), advisoryKey("acme"))
	assert.NotEqual(t, advisoryKey("acme"), advisoryKey("acme2"))
}
