package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	sector       TEXT NOT NULL,
	region       TEXT NOT NULL,
	max_leads    INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      TEXT,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS leads (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
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
	quality_flag        INTEGER NOT NULL DEFAULT 0,
	qualification_score REAL,
	below_floor         INTEGER NOT NULL DEFAULT 0,
	tags                TEXT,
	collected_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fingerprints (
	fingerprint     TEXT PRIMARY KEY,
	first_run_id    TEXT NOT NULL DEFAULT '',
	last_seen_count INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_sector ON runs(sector);
CREATE INDEX IF NOT EXISTS idx_leads_run_id ON leads(run_id);
CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_state ON leads(validation_state);
CREATE INDEX IF NOT EXISTS idx_leads_fingerprint ON leads(fingerprint);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.CollectionRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, sector, region, max_leads, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Sector, run.Region, run.MaxLeads, string(run.Status), run.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, runErr string) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.CollectionRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sector, region, max_leads, status, summary, error, started_at, completed_at
		 FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.CollectionRun, error) {
	query := `SELECT id, sector, region, max_leads, status, summary, error, started_at, completed_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Sector != "" {
		query += ` AND sector = ?`
		args = append(args, filter.Sector)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.CollectionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveLeads(ctx context.Context, leads []*model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save leads")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (run_id, raw_name, address, phone, website, snippet, source,
		                    sector_hint, region, fingerprint, validation_state, rejection_reason,
		                    quality_flag, qualification_score, below_floor, tags, collected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert lead")
	}
	defer stmt.Close() //nolint:errcheck

	for _, l := range leads {
		if l.CollectedAt.IsZero() {
			l.CollectedAt = time.Now().UTC()
		}
		tagsJSON, err := marshalTags(l.Tags)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx,
			l.RunID, l.RawName, l.Address, l.Phone, l.Website, l.Snippet, string(l.Source),
			l.SectorHint, l.Region, l.Fingerprint, string(l.ValidationState), l.RejectionReason,
			l.QualityFlag, l.QualificationScore, l.BelowFloor, tagsJSON, l.CollectedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert lead %q", l.RawName)
		}
		if id, err := res.LastInsertId(); err == nil {
			l.ID = id
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save leads")
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, run_id, raw_name, address, phone, website, snippet, source,
	                 sector_hint, region, fingerprint, validation_state, rejection_reason,
	                 quality_flag, qualification_score, below_floor, tags, collected_at
	          FROM leads WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.State != "" {
		query += ` AND validation_state = ?`
		args = append(args, string(filter.State))
	}
	if filter.MinScore > 0 {
		query += ` AND qualification_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY qualification_score DESC NULLS LAST, id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) LeadStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByState:  make(map[string]int),
		BySource: make(map[model.SourceID]int),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT validation_state, source, COUNT(*) FROM leads GROUP BY validation_state, source`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lead stats")
	}
	defer rows.Close()

	for rows.Next() {
		var state, source string
		var n int
		if err := rows.Scan(&state, &source, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead stats")
		}
		stats.TotalLeads += n
		stats.ByState[state] += n
		stats.BySource[model.SourceID(source)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: lead stats iterate")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(qualification_score), 0),
		        COALESCE(SUM(below_floor), 0)
		 FROM leads WHERE qualification_score IS NOT NULL`)
	if err := row.Scan(&stats.AvgScore, &stats.BelowFloor); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan score stats")
	}
	return stats, nil
}

func (s *SQLiteStore) RecordFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	// Single statement keeps check-and-record atomic under concurrency.
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO fingerprints (fingerprint, last_seen_count) VALUES (?, 1)
		 ON CONFLICT(fingerprint) DO UPDATE SET last_seen_count = last_seen_count + 1
		 RETURNING last_seen_count`,
		fingerprint,
	)
	var count int64
	if err := row.Scan(&count); err != nil {
		return false, eris.Wrap(err, "sqlite: record fingerprint")
	}
	return count == 1, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.CollectionRun, error) {
	var r model.CollectionRun
	var status string
	var summaryJSON, errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Sector, &r.Region, &r.MaxLeads, &status,
		&summaryJSON, &errMsg, &r.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	r.Error = errMsg.String
	if summaryJSON.Valid && summaryJSON.String != "" {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return &r, nil
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var source, state string
	var score sql.NullFloat64
	var tagsJSON sql.NullString

	err := row.Scan(&l.ID, &l.RunID, &l.RawName, &l.Address, &l.Phone, &l.Website, &l.Snippet,
		&source, &l.SectorHint, &l.Region, &l.Fingerprint, &state, &l.RejectionReason,
		&l.QualityFlag, &score, &l.BelowFloor, &tagsJSON, &l.CollectedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	l.Source = model.SourceID(source)
	l.ValidationState = model.ValidationState(state)
	if score.Valid {
		l.QualificationScore = &score.Float64
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &l.Tags); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal tags")
		}
	}
	return &l, nil
}

func marshalTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, eris.Wrap(err, "marshal tags")
	}
	return string(b), nil
}
