package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "Clínicas", "Curitiba", 50, "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.CollectionRun{ID: "run-1", Sector: "Clínicas", Region: "Curitiba", MaxLeads: 50, Status: model.RunStatusRunning}
	require.NoError(t, s.CreateRun(context.Background(), run))
	assert.False(t, run.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("complete", pgxmock.AnyArg(), "", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", model.RunStatusComplete, model.NewRunSummary(), "")
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, sector, region, max_leads, status, summary, error, started_at, completed_at`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordFingerprint(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO fingerprints`).
		WithArgs("w:sorriso.com.br").
		WillReturnRows(pgxmock.NewRows([]string{"last_seen_count"}).AddRow(int64(1)))

	admitted, err := s.RecordFingerprint(context.Background(), "w:sorriso.com.br")
	require.NoError(t, err)
	assert.True(t, admitted)

	mock.ExpectQuery(`INSERT INTO fingerprints`).
		WithArgs("w:sorriso.com.br").
		WillReturnRows(pgxmock.NewRows([]string{"last_seen_count"}).AddRow(int64(2)))

	admitted, err = s.RecordFingerprint(context.Background(), "w:sorriso.com.br")
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs("run-1", "Clínica Sorriso", "", "(41) 3333-4444", "https://sorriso.com.br", "",
			"maps", "Clínicas", "Curitiba", "w:sorriso.com.br", "accepted", "",
			false, pgxmock.AnyArg(), false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	score := 82.0
	lead := &model.Lead{
		RunID: "run-1", RawName: "Clínica Sorriso", Phone: "(41) 3333-4444",
		Website: "https://sorriso.com.br", Source: model.SourceMaps,
		SectorHint: "Clínicas", Region: "Curitiba", Fingerprint: "w:sorriso.com.br",
		ValidationState: model.ValidationAccepted, QualificationScore: &score,
	}
	require.NoError(t, s.SaveLeads(context.Background(), []*model.Lead{lead}))
	assert.Equal(t, int64(7), lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
