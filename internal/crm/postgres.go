package crm

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hunter/internal/db"
)

// PostgresDirectory reads the contacts and clients tables of the store
// database.
type PostgresDirectory struct {
	pool db.Pool
	m    matcher
}

// NewPostgres creates a PostgresDirectory.
func NewPostgres(pool db.Pool, minKeyLength int) *PostgresDirectory {
	return &PostgresDirectory{pool: pool, m: newMatcher(minKeyLength)}
}

// FindContact returns the first contact whose company is similar to name.
func (d *PostgresDirectory) FindContact(ctx context.Context, name string) (*ContactMatch, error) {
	key, terms, ok := d.m.key(name)
	if !ok {
		return nil, nil
	}

	rows, err := d.pool.Query(ctx,
		`SELECT id, COALESCE(client_id, ''), company FROM contacts
		 WHERE `+likeAny(sqlSearchable("company"), len(terms), pgParam, "")+`
		 ORDER BY id LIMIT `+pgParam(len(terms)+1),
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
func (d *PostgresDirectory) FindClient(ctx context.Context, name string) (*ClientMatch, error) {
	key, terms, ok := d.m.key(name)
	if !ok {
		return nil, nil
	}

	rows, err := d.pool.Query(ctx,
		`SELECT id, name FROM clients
		 WHERE `+likeAny(sqlSearchable("name"), len(terms), pgParam, "")+`
		 ORDER BY id LIMIT `+pgParam(len(terms)+1),
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

func pgParam(i int) string { return "$" + strconv.Itoa(i) }
