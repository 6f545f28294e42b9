package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
)

// memStore is an in-memory store.Store for orchestrator tests.
type memStore struct {
	mu    sync.Mutex
	runs  map[string]*model.CollectionRun
	leads []*model.Lead
	fps   map[string]int
	fpErr error

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		runs: make(map[string]*model.CollectionRun),
		fps:  make(map[string]int),
	}
}

func (m *memStore) CreateRun(_ context.Context, run *model.CollectionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.StartedAt = time.Now().UTC()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *memStore) CompleteRun(_ context.Context, runID string, status model.RunStatus, summary *model.RunSummary, runErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return eris.New("run not found")
	}
	now := time.Now().UTC()
	run.Status = status
	run.Summary = summary
	run.Error = runErr
	run.CompletedAt = &now
	return nil
}

func (m *memStore) GetRun(_ context.Context, runID string) (*model.CollectionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, eris.New("run not found")
	}
	cp := *run
	return &cp, nil
}

func (m *memStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.CollectionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CollectionRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) SaveLeads(_ context.Context, leads []*model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range leads {
		m.nextID++
		l.ID = m.nextID
		m.leads = append(m.leads, l)
	}
	return nil
}

func (m *memStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, l := range m.leads {
		if filter.RunID != "" && l.RunID != filter.RunID {
			continue
		}
		if filter.State != "" && l.ValidationState != filter.State {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (m *memStore) LeadStats(_ context.Context) (*store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &store.Stats{TotalLeads: len(m.leads)}, nil
}

func (m *memStore) RecordFingerprint(_ context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fpErr != nil {
		return false, m.fpErr
	}
	m.fps[fp]++
	return m.fps[fp] == 1, nil
}

func (m *memStore) fingerprintCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fps)
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// fakeAdapter returns its canned records on the first call and nothing
// afterwards, unless err is set.
type fakeAdapter struct {
	id      model.SourceID
	records []model.RawRecord
	err     error

	mu    sync.Mutex
	calls int
}

func (f *fakeAdapter) ID() model.SourceID { return f.id }

func (f *fakeAdapter) Search(_ context.Context, _ source.Query) ([]model.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls > 1 {
		return nil, nil
	}
	return f.records, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
