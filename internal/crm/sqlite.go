package crm

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
)

// SQLiteDirectory reads the contacts and clients tables of a SQLite store.
type SQLiteDirectory struct {
	db *sql.DB
	m  matcher
}

// NewSQLite creates a SQLiteDirectory.
func NewSQLite(db *sql.DB, minKeyLength int) *SQLiteDirectory {
	return &SQLiteDirectory{db: db, m: newMatcher(minKeyLength)}
}

// FindContact returns the first contact whose company is similar to name.
func (d *SQLiteDirectory) FindContact(ctx context.Context, name string) (*ContactMatch, error) {
	key, terms, ok := d.m.key(name)
	if !ok {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, COALESCE(client_id, ''), company FROM contacts
		 WHERE `+likeAny(sqlSearchable("company"), len(terms), sqliteParam, sqliteEscape)+`
		 ORDER BY id LIMIT ?`,
		likeArgs(terms, candidateLimit)...,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "crm: query contacts for %q", name)
	}
	defer rows.Close()

	for rows.Next() {
		var id, clientID, company string
		if err := rows.Scan(&id, &clientID, &company); err != nil {
			return nil, eris.Wrap(err, "crm: scan contact")
		}
		if d.m.confirm(key, company) {
			return &ContactMatch{ID: id, ClientID: clientID}, nil
		}
	}
	return nil, eris.Wrap(rows.Err(), "crm: iterate contacts")
}

// FindClient returns the first client whose name is similar to name.
func (d *SQLiteDirectory) FindClient(ctx context.Context, name string) (*ClientMatch, error) {
	key, terms, ok := d.m.key(name)
	if !ok {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name FROM clients
		 WHERE `+likeAny(sqlSearchable("name"), len(terms), sqliteParam, sqliteEscape)+`
		 ORDER BY id LIMIT ?`,
		likeArgs(terms, candidateLimit)...,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "crm: query clients for %q", name)
	}
	defer rows.Close()

	for rows.Next() {
		var id, clientName string
		if err := rows.Scan(&id, &clientName); err != nil {
			return nil, eris.Wrap(err, "crm: scan client")
		}
		if d.m.confirm(key, clientName) {
			return &ClientMatch{ID: id}, nil
		}
	}
	return nil, eris.Wrap(rows.Err(), "crm: iterate clients")
}

const sqliteEscape = ` ESCAPE '\'`

func sqliteParam(int) string { return "?" }
