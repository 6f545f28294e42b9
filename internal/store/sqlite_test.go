package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newRun() *model.CollectionRun {
	return &model.CollectionRun{
		ID:       uuid.New().String(),
		Sector:   "Clínicas",
		Region:   "Curitiba",
		MaxLeads: 50,
		Status:   model.RunStatusRunning,
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := newRun()
	require.NoError(t, st.CreateRun(ctx, run))

	summary := model.NewRunSummary()
	summary.Accepted = 12
	summary.Duplicates = 3
	summary.Rejected["invalid_keyword"] = 5
	summary.SourceStatsFor(model.SourceMaps).Records = 20

	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary, ""))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 12, got.Summary.Accepted)
	assert.Equal(t, 5, got.Summary.Rejected["invalid_keyword"])
	assert.Equal(t, 20, got.Summary.Sources[model.SourceMaps].Records)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.CompleteRun(context.Background(), "missing", model.RunStatusFailed, model.NewRunSummary(), "boom")
	assert.Error(t, err)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	running := newRun()
	require.NoError(t, st.CreateRun(ctx, running))

	done := newRun()
	require.NoError(t, st.CreateRun(ctx, done))
	require.NoError(t, st.CompleteRun(ctx, done.ID, model.RunStatusComplete, model.NewRunSummary(), ""))

	runs, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, done.ID, runs[0].ID)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_SaveAndListLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := newRun()
	require.NoError(t, st.CreateRun(ctx, run))

	high := 82.0
	low := 30.0
	leads := []*model.Lead{
		{
			RunID: run.ID, RawName: "Clínica Sorriso", Phone: "(41) 3333-4444",
			Website: "https://sorriso.com.br", Source: model.SourceMaps,
			SectorHint: "Clínicas", Region: "Curitiba", Fingerprint: "w:sorriso.com.br",
			ValidationState: model.ValidationAccepted, QualificationScore: &high,
			Tags: []string{"independent"},
		},
		{
			RunID: run.ID, RawName: "Consultório Lima", Source: model.SourceWebSearch,
			Fingerprint: "n:consultorio lima|curitiba",
			ValidationState: model.ValidationAccepted, QualificationScore: &low, BelowFloor: true,
		},
		{
			RunID: run.ID, RawName: "As 10 melhores clínicas", Source: model.SourceWebSearch,
			Fingerprint: "n:as 10 melhores clinicas|curitiba",
			ValidationState: model.ValidationRejected, RejectionReason: "listicle_pattern",
		},
	}
	require.NoError(t, st.SaveLeads(ctx, leads))
	for _, l := range leads {
		assert.NotZero(t, l.ID, "SaveLeads should backfill IDs")
	}

	accepted, err := st.ListLeads(ctx, LeadFilter{RunID: run.ID, State: model.ValidationAccepted})
	require.NoError(t, err)
	require.Len(t, accepted, 2)
	assert.Equal(t, "Clínica Sorriso", accepted[0].RawName, "ordered by score descending")
	assert.Equal(t, []string{"independent"}, accepted[0].Tags)
	require.NotNil(t, accepted[0].QualificationScore)
	assert.Equal(t, 82.0, *accepted[0].QualificationScore)

	scored, err := st.ListLeads(ctx, LeadFilter{RunID: run.ID, MinScore: 50})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "Clínica Sorriso", scored[0].RawName)
}

func TestSQLite_LeadStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := newRun()
	require.NoError(t, st.CreateRun(ctx, run))

	s1, s2 := 80.0, 40.0
	require.NoError(t, st.SaveLeads(ctx, []*model.Lead{
		{RunID: run.ID, RawName: "A", Source: model.SourceMaps, Fingerprint: "n:a|x",
			ValidationState: model.ValidationAccepted, QualificationScore: &s1},
		{RunID: run.ID, RawName: "B", Source: model.SourceWebSearch, Fingerprint: "n:b|x",
			ValidationState: model.ValidationAccepted, QualificationScore: &s2, BelowFloor: true},
		{RunID: run.ID, RawName: "C", Source: model.SourceWebSearch, Fingerprint: "n:c|x",
			ValidationState: model.ValidationRejected, RejectionReason: "empty_name"},
	}))

	stats, err := st.LeadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalLeads)
	assert.Equal(t, 2, stats.ByState[string(model.ValidationAccepted)])
	assert.Equal(t, 1, stats.ByState[string(model.ValidationRejected)])
	assert.Equal(t, 2, stats.BySource[model.SourceWebSearch])
	assert.InDelta(t, 60.0, stats.AvgScore, 1e-9)
	assert.Equal(t, 1, stats.BelowFloor)
}

func TestSQLite_RecordFingerprint(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	admitted, err := st.RecordFingerprint(ctx, "w:sorriso.com.br")
	require.NoError(t, err)
	assert.True(t, admitted)

	admitted, err = st.RecordFingerprint(ctx, "w:sorriso.com.br")
	require.NoError(t, err)
	assert.False(t, admitted)

	admitted, err = st.RecordFingerprint(ctx, "p:4133334444")
	require.NoError(t, err)
	assert.True(t, admitted, "different fingerprint is independent")
}

func TestSQLite_RecordFingerprint_ConcurrentAdmitOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admittedCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.RecordFingerprint(ctx, "n:clinica sorriso|curitiba")
			require.NoError(t, err)
			if ok {
				mu.Lock()
				admittedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admittedCount)
}
