package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, which keeps Postgres tests hermetic.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used in tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	sector       TEXT NOT NULL,
	region       TEXT NOT NULL,
	max_leads    INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      JSONB,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS leads (
	id                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	run_id              TEXT NOT NULL REFERENCES runs(id),
	raw_name            TEXT NOT NULL,
	address             TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	snippet             TEXT NOT NULL DEFAULT '',
	source              TEXT NOT NULL,
	sector_hint         TEXT NOT NULL DEFAULT '',
	region              TEXT NOT NULL DEFAULT '',
	fingerprint         TEXT NOT NULL,
	validation_state    TEXT NOT NULL DEFAULT 'pending',
	rejection_reason    TEXT NOT NULL DEFAULT '',
	quality_flag        BOOLEAN NOT NULL DEFAULT FALSE,
	qualification_score DOUBLE PRECISION,
	below_floor         BOOLEAN NOT NULL DEFAULT FALSE,
	tags                JSONB,
	collected_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fingerprints (
	fingerprint     TEXT PRIMARY KEY,
	first_run_id    TEXT NOT NULL DEFAULT '',
	last_seen_count BIGINT NOT NULL DEFAULT 1,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_sector ON runs(sector);
CREATE INDEX IF NOT EXISTS idx_leads_run_id ON leads(run_id);
CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_state ON leads(validation_state);
CREATE INDEX IF NOT EXISTS idx_leads_fingerprint ON leads(fingerprint);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.CollectionRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, sector, region, max_leads, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Sector, run.Region, run.MaxLeads, string(run.Status), run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, runErr string) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, error = $3, completed_at = now() WHERE id = $4`,
		string(status), summaryJSON, runErr, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.CollectionRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, sector, region, max_leads, status, summary, error, started_at, completed_at
		 FROM runs WHERE id = $1`, runID)
	return scanRunPG(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.CollectionRun, error) {
	query := `SELECT id, sector, region, max_leads, status, summary, error, started_at, completed_at
	          FROM runs WHERE ($1 = '' OR status = $1) AND ($2 = '' OR sector = $2)
	          ORDER BY started_at DESC LIMIT $3 OFFSET $4`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, query, string(filter.Status), filter.Sector, limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.CollectionRun
	for rows.Next() {
		r, err := scanRunPG(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveLeads(ctx context.Context, leads []*model.Lead) error {
	for _, l := range leads {
		if l.CollectedAt.IsZero() {
			l.CollectedAt = time.Now().UTC()
		}
		tagsJSON, err := marshalTags(l.Tags)
		if err != nil {
			return err
		}
		row := s.pool.QueryRow(ctx,
			`INSERT INTO leads (run_id, raw_name, address, phone, website, snippet, source,
			                    sector_hint, region, fingerprint, validation_state, rejection_reason,
			                    quality_flag, qualification_score, below_floor, tags, collected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			 RETURNING id`,
			l.RunID, l.RawName, l.Address, l.Phone, l.Website, l.Snippet, string(l.Source),
			l.SectorHint, l.Region, l.Fingerprint, string(l.ValidationState), l.RejectionReason,
			l.QualityFlag, l.QualificationScore, l.BelowFloor, tagsJSON, l.CollectedAt,
		)
		if err := row.Scan(&l.ID); err != nil {
			return eris.Wrapf(err, "postgres: insert lead %q", l.RawName)
		}
	}
	return nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, run_id, raw_name, address, phone, website, snippet, source,
	                 sector_hint, region, fingerprint, validation_state, rejection_reason,
	                 quality_flag, qualification_score, below_floor, tags, collected_at
	          FROM leads
	          WHERE ($1 = '' OR run_id = $1)
	            AND ($2 = '' OR source = $2)
	            AND ($3 = '' OR validation_state = $3)
	            AND ($4 = 0 OR qualification_score >= $4)
	          ORDER BY qualification_score DESC NULLS LAST, id ASC
	          LIMIT $5 OFFSET $6`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.pool.Query(ctx, query,
		filter.RunID, string(filter.Source), string(filter.State), filter.MinScore, limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLeadPG(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) LeadStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByState:  make(map[string]int),
		BySource: make(map[model.SourceID]int),
	}

	rows, err := s.pool.Query(ctx,
		`SELECT validation_state, source, COUNT(*) FROM leads GROUP BY validation_state, source`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lead stats")
	}
	defer rows.Close()

	for rows.Next() {
		var state, source string
		var n int
		if err := rows.Scan(&state, &source, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead stats")
		}
		stats.TotalLeads += n
		stats.ByState[state] += n
		stats.BySource[model.SourceID(source)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: lead stats iterate")
	}

	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(qualification_score), 0),
		        COUNT(*) FILTER (WHERE below_floor)
		 FROM leads WHERE qualification_score IS NOT NULL`)
	if err := row.Scan(&stats.AvgScore, &stats.BelowFloor); err != nil {
		return nil, eris.Wrap(err, "postgres: scan score stats")
	}
	return stats, nil
}

func (s *PostgresStore) RecordFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO fingerprints (fingerprint, last_seen_count) VALUES ($1, 1)
		 ON CONFLICT (fingerprint) DO UPDATE SET last_seen_count = fingerprints.last_seen_count + 1
		 RETURNING last_seen_count`,
		fingerprint,
	)
	var count int64
	if err := row.Scan(&count); err != nil {
		return false, eris.Wrap(err, "postgres: record fingerprint")
	}
	return count == 1, nil
}

func scanRunPG(row pgx.Row) (*model.CollectionRun, error) {
	var r model.CollectionRun
	var status string
	var summaryJSON []byte
	var errMsg, completedAt any

	err := row.Scan(&r.ID, &r.Sector, &r.Region, &r.MaxLeads, &status,
		&summaryJSON, &errMsg, &r.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	r.Status = model.RunStatus(status)
	if msg, ok := errMsg.(string); ok {
		r.Error = msg
	}
	if len(summaryJSON) > 0 {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	if t, ok := completedAt.(time.Time); ok {
		r.CompletedAt = &t
	}
	return &r, nil
}

func scanLeadPG(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var source, state string
	var score *float64
	var tagsJSON []byte

	err := row.Scan(&l.ID, &l.RunID, &l.RawName, &l.Address, &l.Phone, &l.Website, &l.Snippet,
		&source, &l.SectorHint, &l.Region, &l.Fingerprint, &state, &l.RejectionReason,
		&l.QualityFlag, &score, &l.BelowFloor, &tagsJSON, &l.CollectedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	l.Source = model.SourceID(source)
	l.ValidationState = model.ValidationState(state)
	l.QualificationScore = score
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &l.Tags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal tags")
		}
	}
	return &l, nil
}
