package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hunter/internal/db"
	"github.com/sells-group/hunter/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geography sets are
// stored as JSON arrays.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single writer connection keeps busy errors out of concurrent runs.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS signals (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source       TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	published_at DATETIME,
	content_type TEXT NOT NULL DEFAULT 'article',
	raw_content  TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	is_processed INTEGER NOT NULL DEFAULT 0,
	processed_at DATETIME,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	concept_name        TEXT NOT NULL,
	normalized_name     TEXT NOT NULL UNIQUE,
	website             TEXT,
	industry_segment    TEXT NOT NULL DEFAULT '',
	signal_strength     TEXT NOT NULL,
	score_reasoning     TEXT NOT NULL DEFAULT '',
	target_geography    TEXT NOT NULL DEFAULT '[]',
	geo_relevance       REAL NOT NULL DEFAULT 0,
	key_person_name     TEXT,
	key_person_title    TEXT,
	status              TEXT NOT NULL DEFAULT 'new',
	existing_contact_id TEXT,
	existing_client_id  TEXT,
	news_only           INTEGER NOT NULL DEFAULT 0,
	first_seen_at       DATETIME NOT NULL,
	last_signal_at      DATETIME NOT NULL,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL,
	version             INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS lead_signals (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id             INTEGER NOT NULL REFERENCES leads(id),
	signal_id           INTEGER NOT NULL REFERENCES signals(id),
	extraction_summary  TEXT NOT NULL DEFAULT '',
	mentioned_geography TEXT NOT NULL DEFAULT '[]',
	mentioned_person    TEXT,
	created_at          DATETIME NOT NULL,
	UNIQUE (lead_id, signal_id)
);

CREATE TABLE IF NOT EXISTS hunt_runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	result       TEXT,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_hunt_runs_source ON hunt_runs(source, started_at);

CREATE TABLE IF NOT EXISTS clients (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id        TEXT PRIMARY KEY,
	client_id TEXT REFERENCES clients(id),
	company   TEXT NOT NULL DEFAULT ''
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// columnsAdded lists columns added after a table's first release. SQLite
// has no ADD COLUMN IF NOT EXISTS.
var columnsAdded = []struct{ table, name, decl string }{
	{"signals", "attempts", "INTEGER NOT NULL DEFAULT 0"},
	{"signals", "last_error", "TEXT"},
	{"leads", "version", "INTEGER NOT NULL DEFAULT 1"},
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	for _, c := range columnsAdded {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.name,
		).Scan(&n); err != nil {
			return eris.Wrapf(err, "sqlite: migrate: inspect %s.%s", c.table, c.name)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE `+c.table+` ADD COLUMN `+c.name+` `+c.decl); err != nil {
			return eris.Wrapf(err, "sqlite: migrate: add %s.%s", c.table, c.name)
		}
	}
	_, err := s.db.ExecContext(ctx, `
DROP INDEX IF EXISTS idx_signals_unprocessed;
CREATE INDEX IF NOT EXISTS idx_signals_backlog ON signals(source, is_processed, attempts, id);`)
	return eris.Wrap(err, "sqlite: migrate: signal index")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Signals ---

func (s *SQLiteStore) SignalExists(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM signals WHERE content_hash = ?)`, contentHash,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: signal exists")
	}
	return exists, nil
}

func (s *SQLiteStore) CreateSignal(ctx context.Context, sig *model.Signal) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (source, source_url, title, published_at, content_type, raw_content, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (content_hash) DO NOTHING`,
		sig.Source, sig.SourceURL, sig.Title, nullTime(sig.PublishedAt), sig.ContentType, sig.RawContent, sig.ContentHash, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: create signal %s", sig.SourceURL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: last insert id")
	}
	sig.ID = id
	sig.CreatedAt = now
	return true, nil
}

func (s *SQLiteStore) ListUnprocessedSignals(ctx context.Context, source string, limit int) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		 WHERE source = ? AND is_processed = 0 AND attempts < ?
		 ORDER BY attempts ASC, id ASC LIMIT ?`,
		source, model.MaxSignalAttempts, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unprocessed signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var published, processed sql.NullTime
		var lastErr sql.NullString
		if err := rows.Scan(&sig.ID, &sig.Source, &sig.SourceURL, &sig.Title, &published,
			&sig.ContentType, &sig.RawContent, &sig.ContentHash, &sig.IsProcessed, &processed,
			&sig.Attempts, &lastErr, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.PublishedAt = timePtr(published)
		sig.ProcessedAt = timePtr(processed)
		sig.LastError = stringPtr(lastErr)
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list unprocessed signals iterate")
}

func (s *SQLiteStore) MarkSignalProcessed(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET is_processed = 1, processed_at = COALESCE(processed_at, ?) WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark signal %d processed", id)
	}
	return checkRowsAffected(res, "signal", id)
}

func (s *SQLiteStore) RecordSignalFailure(ctx context.Context, id int64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record signal %d failure", id)
	}
	return checkRowsAffected(res, "signal", id)
}

// --- Leads ---

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var website, personName, personTitle, contactID, clientID sql.NullString
	var geoJSON string
	err := row.Scan(&l.ID, &l.ConceptName, &l.NormalizedName, &website, &l.IndustrySegment,
		&l.SignalStrength, &l.ScoreReasoning, &geoJSON, &l.GeoRelevance,
		&personName, &personTitle, &l.Status, &contactID, &clientID,
		&l.NewsOnly, &l.FirstSeenAt, &l.LastSignalAt, &l.CreatedAt, &l.UpdatedAt, &l.Version)
	if err != nil {
		return nil, err
	}
	geo, err := decodeGeography(geoJSON)
	if err != nil {
		return nil, err
	}
	l.TargetGeography = geo
	l.Website = stringPtr(website)
	l.KeyPersonName = stringPtr(personName)
	l.KeyPersonTitle = stringPtr(personTitle)
	l.ExistingContactID = stringPtr(contactID)
	l.ExistingClientID = stringPtr(clientID)
	return &l, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %d", id)
	}
	return l, nil
}

func (s *SQLiteStore) GetLeadByNormalizedName(ctx context.Context, normalizedName string) (*model.Lead, error) {
	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE normalized_name = ?`, normalizedName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get lead by name %q", normalizedName)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Strength != "" {
		query += ` AND signal_strength = ?`
		args = append(args, string(filter.Strength))
	}
	query += ` ORDER BY last_signal_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	geoJSON, err := encodeGeography(lead.TargetGeography)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (concept_name, normalized_name, website, industry_segment, signal_strength,
			score_reasoning, target_geography, geo_relevance, key_person_name, key_person_title, status,
			existing_contact_id, existing_client_id, news_only, first_seen_at, last_signal_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ConceptName, lead.NormalizedName, nullString(lead.Website), lead.IndustrySegment, string(lead.SignalStrength),
		lead.ScoreReasoning, geoJSON, lead.GeoRelevance, nullString(lead.KeyPersonName), nullString(lead.KeyPersonTitle),
		string(lead.Status), nullString(lead.ExistingContactID), nullString(lead.ExistingClientID), lead.NewsOnly,
		lead.FirstSeenAt.UTC(), lead.LastSignalAt.UTC(), now, now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(db.ErrDuplicateKey, "sqlite: create lead %q", lead.NormalizedName)
		}
		return eris.Wrapf(err, "sqlite: create lead %q", lead.NormalizedName)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	lead.ID = id
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.Version = 1
	return nil
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, id int64, patch model.LeadPatch) (*model.Lead, error) {
	cols, args := leadSetClauses(patch)
	sets := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		sets = append(sets, c+" = ?")
		switch v := args[i].(type) {
		case []string:
			geoJSON, err := encodeGeography(v)
			if err != nil {
				return nil, err
			}
			args[i] = geoJSON
		case time.Time:
			args[i] = v.UTC()
		}
	}
	sets = append(sets, "updated_at = ?", "version = version + 1")
	args = append(args, time.Now().UTC(), id)
	where := "id = ?"
	if patch.IfVersion != nil {
		where += " AND version = ?"
		args = append(args, *patch.IfVersion)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE `+where, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update lead %d", id)
	}
	if err := checkRowsAffected(res, "lead", id); err != nil {
		if patch.IfVersion == nil {
			return nil, err
		}
		current, getErr := s.GetLead(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, err
		}
		return nil, eris.Wrapf(db.ErrStaleWrite, "sqlite: update lead %d at version %d", id, *patch.IfVersion)
	}
	return s.GetLead(ctx, id)
}

// --- Lead signals ---

func (s *SQLiteStore) CreateLeadSignal(ctx context.Context, ls *model.LeadSignal) error {
	geoJSON, err := encodeGeography(ls.MentionedGeography)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_signals (lead_id, signal_id, extraction_summary, mentioned_geography, mentioned_person, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ls.LeadID, ls.SignalID, ls.ExtractionSummary, geoJSON, nullString(ls.MentionedPerson), now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(db.ErrDuplicateKey, "sqlite: link signal %d to lead %d", ls.SignalID, ls.LeadID)
		}
		return eris.Wrapf(err, "sqlite: link signal %d to lead %d", ls.SignalID, ls.LeadID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	ls.ID = id
	ls.CreatedAt = now
	return nil
}

func (s *SQLiteStore) ListLeadSignals(ctx context.Context, leadID int64) ([]model.LeadSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, signal_id, extraction_summary, mentioned_geography, mentioned_person, created_at
		 FROM lead_signals WHERE lead_id = ? ORDER BY id ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list lead signals %d", leadID)
	}
	defer rows.Close()

	var out []model.LeadSignal
	for rows.Next() {
		var ls model.LeadSignal
		var geoJSON string
		var person sql.NullString
		if err := rows.Scan(&ls.ID, &ls.LeadID, &ls.SignalID, &ls.ExtractionSummary,
			&geoJSON, &person, &ls.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead signal")
		}
		geo, err := decodeGeography(geoJSON)
		if err != nil {
			return nil, err
		}
		ls.MentionedGeography = geo
		ls.MentionedPerson = stringPtr(person)
		out = append(out, ls)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lead signals iterate")
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hunt_runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for %s", source)
	}
	return &model.Run{ID: id, Source: source, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, "", result)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string, result *model.RunResult) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, errMsg, result)
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string, result *model.RunResult) error {
	var resultJSON sql.NullString
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run result")
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}
	errText := sql.NullString{String: errMsg, Valid: errMsg != ""}

	res, err := s.db.ExecContext(ctx,
		`UPDATE hunt_runs SET status = ?, result = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), resultJSON, errText, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, result, error, started_at, completed_at FROM hunt_runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var resultJSON, errText sql.NullString
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &resultJSON, &errText, &r.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if resultJSON.Valid {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run result")
			}
		}
		r.Error = errText.String
		r.CompletedAt = timePtr(completed)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %v", entity, id)
	}
	return nil
}

func encodeGeography(geo []string) (string, error) {
	if geo == nil {
		geo = []string{}
	}
	b, err := json.Marshal(geo)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal geography")
	}
	return string(b), nil
}

func decodeGeography(s string) ([]string, error) {
	var geo []string
	if s == "" {
		return []string{}, nil
	}
	if err := json.Unmarshal([]byte(s), &geo); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal geography")
	}
	return geo, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}
