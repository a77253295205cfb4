package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hunter/internal/db"
	"github.com/sells-group/hunter/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that query
// tables outside the Store interface (e.g., the CRM directory).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS signals (
	id           BIGSERIAL PRIMARY KEY,
	source       TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	content_type TEXT NOT NULL DEFAULT 'article',
	raw_content  TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	is_processed BOOLEAN NOT NULL DEFAULT false,
	processed_at TIMESTAMPTZ,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE signals ADD COLUMN IF NOT EXISTS attempts INTEGER NOT NULL DEFAULT 0;
ALTER TABLE signals ADD COLUMN IF NOT EXISTS last_error TEXT;

DROP INDEX IF EXISTS idx_signals_unprocessed;
CREATE INDEX IF NOT EXISTS idx_signals_backlog ON signals(source, attempts, id) WHERE NOT is_processed;

CREATE TABLE IF NOT EXISTS leads (
	id                  BIGSERIAL PRIMARY KEY,
	concept_name        TEXT NOT NULL,
	normalized_name     TEXT NOT NULL UNIQUE,
	website             TEXT,
	industry_segment    TEXT NOT NULL DEFAULT '',
	signal_strength     TEXT NOT NULL,
	score_reasoning     TEXT NOT NULL DEFAULT '',
	target_geography    TEXT[] NOT NULL DEFAULT '{}',
	geo_relevance       DOUBLE PRECISION NOT NULL DEFAULT 0,
	key_person_name     TEXT,
	key_person_title    TEXT,
	status              TEXT NOT NULL DEFAULT 'new',
	existing_contact_id TEXT,
	existing_client_id  TEXT,
	news_only           BOOLEAN NOT NULL DEFAULT false,
	first_seen_at       TIMESTAMPTZ NOT NULL,
	last_signal_at      TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	version             BIGINT NOT NULL DEFAULT 1
);

ALTER TABLE leads ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1;

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_last_signal ON leads(last_signal_at DESC);

CREATE TABLE IF NOT EXISTS lead_signals (
	id                  BIGSERIAL PRIMARY KEY,
	lead_id             BIGINT NOT NULL REFERENCES leads(id),
	signal_id           BIGINT NOT NULL REFERENCES signals(id),
	extraction_summary  TEXT NOT NULL DEFAULT '',
	mentioned_geography TEXT[] NOT NULL DEFAULT '{}',
	mentioned_person    TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (lead_id, signal_id)
);

CREATE TABLE IF NOT EXISTS hunt_runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	result       JSONB,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_hunt_runs_source ON hunt_runs(source, started_at DESC);

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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Signals ---

const signalColumns = `id, source, source_url, title, published_at, content_type, raw_content, content_hash, is_processed, processed_at, attempts, last_error, created_at`

func (s *PostgresStore) SignalExists(ctx context.Context, contentHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM signals WHERE content_hash = $1)`,
		contentHash,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: signal exists")
	}
	return exists, nil
}

// CreateSignal inserts sig unless a signal with the same content hash
// exists. It reports whether a row was created and fills ID and CreatedAt.
func (s *PostgresStore) CreateSignal(ctx context.Context, sig *model.Signal) (bool, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO signals (source, source_url, title, published_at, content_type, raw_content, content_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (content_hash) DO NOTHING
		 RETURNING id, created_at`,
		sig.Source, sig.SourceURL, sig.Title, sig.PublishedAt, sig.ContentType, sig.RawContent, sig.ContentHash,
	).Scan(&sig.ID, &sig.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrapf(err, "postgres: create signal %s", sig.SourceURL)
	}
	return true, nil
}

// ListUnprocessedSignals returns the source's backlog: signals that are not
// processed and have failed fewer than model.MaxSignalAttempts times. Fresh
// signals come before retries.
func (s *PostgresStore) ListUnprocessedSignals(ctx context.Context, source string, limit int) ([]model.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalColumns+` FROM signals
		 WHERE source = $1 AND NOT is_processed AND attempts < $2
		 ORDER BY attempts ASC, id ASC LIMIT $3`,
		source, model.MaxSignalAttempts, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unprocessed signals")
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		if err := rows.Scan(&sig.ID, &sig.Source, &sig.SourceURL, &sig.Title, &sig.PublishedAt,
			&sig.ContentType, &sig.RawContent, &sig.ContentHash, &sig.IsProcessed, &sig.ProcessedAt, &sig.Attempts, &sig.LastError, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list unprocessed signals iterate")
}

// MarkSignalProcessed flips the processed flag. Repeating it keeps the first
// processed_at.
func (s *PostgresStore) MarkSignalProcessed(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET is_processed = true, processed_at = COALESCE(processed_at, $2) WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark signal %d processed", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("signal not found: %d", id)
	}
	return nil
}

// RecordSignalFailure counts one failed processing attempt and keeps the
// latest error message.
func (s *PostgresStore) RecordSignalFailure(ctx context.Context, id int64, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, errMsg,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record signal %d failure", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("signal not found: %d", id)
	}
	return nil
}

// --- Leads ---

const leadColumns = `id, concept_name, normalized_name, website, industry_segment, signal_strength, score_reasoning,
	target_geography, geo_relevance, key_person_name, key_person_title, status, existing_contact_id,
	existing_client_id, news_only, first_seen_at, last_signal_at, created_at, updated_at, version`

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.ID, &l.ConceptName, &l.NormalizedName, &l.Website, &l.IndustrySegment,
		&l.SignalStrength, &l.ScoreReasoning, &l.TargetGeography, &l.GeoRelevance,
		&l.KeyPersonName, &l.KeyPersonTitle, &l.Status, &l.ExistingContactID, &l.ExistingClientID,
		&l.NewsOnly, &l.FirstSeenAt, &l.LastSignalAt, &l.CreatedAt, &l.UpdatedAt, &l.Version)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	l, err := scanPgLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lead %d", id)
	}
	return l, nil
}

func (s *PostgresStore) GetLeadByNormalizedName(ctx context.Context, normalizedName string) (*model.Lead, error) {
	l, err := scanPgLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE normalized_name = $1`, normalizedName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lead by name %q", normalizedName)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Strength != "" {
		query += fmt.Sprintf(` AND signal_strength = $%d`, argIdx)
		args = append(args, string(filter.Strength))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY last_signal_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// CreateLead inserts lead and fills ID, CreatedAt, UpdatedAt and Version.
func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	geo := lead.TargetGeography
	if geo == nil {
		geo = []string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (concept_name, normalized_name, website, industry_segment, signal_strength,
			score_reasoning, target_geography, geo_relevance, key_person_name, key_person_title, status,
			existing_contact_id, existing_client_id, news_only, first_seen_at, last_signal_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id, created_at, updated_at, version`,
		lead.ConceptName, lead.NormalizedName, lead.Website, lead.IndustrySegment, string(lead.SignalStrength),
		lead.ScoreReasoning, geo, lead.GeoRelevance, lead.KeyPersonName, lead.KeyPersonTitle, string(lead.Status),
		lead.ExistingContactID, lead.ExistingClientID, lead.NewsOnly, lead.FirstSeenAt, lead.LastSignalAt,
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt, &lead.Version)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(db.ErrDuplicateKey, "postgres: create lead %q", lead.NormalizedName)
		}
		return eris.Wrapf(err, "postgres: create lead %q", lead.NormalizedName)
	}
	return nil
}

// leadSetClauses renders the columns a patch writes, in a fixed order.
func leadSetClauses(p model.LeadPatch) ([]string, []any) {
	var cols []string
	var args []any
	if p.SignalStrength != nil {
		cols = append(cols, "signal_strength")
		args = append(args, string(*p.SignalStrength))
	}
	if p.ScoreReasoning != nil {
		cols = append(cols, "score_reasoning")
		args = append(args, *p.ScoreReasoning)
	}
	if p.GeoRelevance != nil {
		cols = append(cols, "geo_relevance")
		args = append(args, *p.GeoRelevance)
	}
	if p.KeyPersonName != nil {
		cols = append(cols, "key_person_name")
		args = append(args, *p.KeyPersonName)
	}
	if p.KeyPersonTitle != nil {
		cols = append(cols, "key_person_title")
		args = append(args, *p.KeyPersonTitle)
	}
	if p.TargetGeography != nil {
		cols = append(cols, "target_geography")
		args = append(args, p.TargetGeography)
	}
	if p.Website != nil {
		cols = append(cols, "website")
		args = append(args, *p.Website)
	}
	if p.IndustrySegment != nil {
		cols = append(cols, "industry_segment")
		args = append(args, *p.IndustrySegment)
	}
	if p.LastSignalAt != nil {
		cols = append(cols, "last_signal_at")
		args = append(args, *p.LastSignalAt)
	}
	return cols, args
}

// UpdateLead writes only the fields set in patch and returns the updated row.
// UpdateLead applies patch and bumps the version. A patch carrying
// IfVersion fails with db.ErrStaleWrite when the lead has moved on.
func (s *PostgresStore) UpdateLead(ctx context.Context, id int64, patch model.LeadPatch) (*model.Lead, error) {
	cols, args := leadSetClauses(patch)
	sets := make([]string, 0, len(cols)+2)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)), "version = version + 1")
	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if patch.IfVersion != nil {
		args = append(args, *patch.IfVersion)
		where += fmt.Sprintf(" AND version = $%d", len(args))
	}

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, leadColumns)

	l, err := scanPgLead(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: update lead %d", id)
	}
	if patch.IfVersion != nil {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, eris.Wrapf(err, "postgres: update lead %d", id)
		}
		if exists {
			return nil, eris.Wrapf(db.ErrStaleWrite, "postgres: update lead %d at version %d", id, *patch.IfVersion)
		}
	}
	return nil, eris.Errorf("lead not found: %d", id)
}

// --- Lead signals ---

func (s *PostgresStore) CreateLeadSignal(ctx context.Context, ls *model.LeadSignal) error {
	geo := ls.MentionedGeography
	if geo == nil {
		geo = []string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO lead_signals (lead_id, signal_id, extraction_summary, mentioned_geography, mentioned_person)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		ls.LeadID, ls.SignalID, ls.ExtractionSummary, geo, ls.MentionedPerson,
	).Scan(&ls.ID, &ls.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(db.ErrDuplicateKey, "postgres: link signal %d to lead %d", ls.SignalID, ls.LeadID)
		}
		return eris.Wrapf(err, "postgres: link signal %d to lead %d", ls.SignalID, ls.LeadID)
	}
	return nil
}

func (s *PostgresStore) ListLeadSignals(ctx context.Context, leadID int64) ([]model.LeadSignal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, signal_id, extraction_summary, mentioned_geography, mentioned_person, created_at
		 FROM lead_signals WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list lead signals %d", leadID)
	}
	defer rows.Close()

	var out []model.LeadSignal
	for rows.Next() {
		var ls model.LeadSignal
		if err := rows.Scan(&ls.ID, &ls.LeadID, &ls.SignalID, &ls.ExtractionSummary,
			&ls.MentionedGeography, &ls.MentionedPerson, &ls.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead signal")
		}
		out = append(out, ls)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lead signals iterate")
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO hunt_runs (id, source, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for %s", source)
	}
	return &model.Run{ID: id, Source: source, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, "", result)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string, result *model.RunResult) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, errMsg, result)
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string, result *model.RunResult) error {
	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run result")
		}
	}
	var errText *string
	if errMsg != "" {
		errText = &errMsg
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE hunt_runs SET status = $1, result = $2, error = $3, completed_at = $4 WHERE id = $5`,
		string(status), resultJSON, errText, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, result, error, started_at, completed_at FROM hunt_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var resultJSON []byte
		var errText *string
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &resultJSON, &errText, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(resultJSON) > 0 {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run result")
			}
		}
		if errText != nil {
			r.Error = *errText
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
