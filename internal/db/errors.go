package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateKey is returned by store writes that hit a unique constraint.
var ErrDuplicateKey = errors.New("db: duplicate key")

// ErrStaleWrite is returned by a guarded update whose row changed since it
// was read.
var ErrStaleWrite = errors.New("db: stale write")

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation
// from Postgres or SQLite, or already wraps ErrDuplicateKey.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateKey) || strings.Contains(err.Error(), ErrDuplicateKey.Error()) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// modernc.org/sqlite reports "constraint failed: UNIQUE constraint failed: t.col (2067)"
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsStaleWrite reports whether err is or wraps ErrStaleWrite.
func IsStaleWrite(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrStaleWrite) || strings.Contains(err.Error(), ErrStaleWrite.Error())
}
