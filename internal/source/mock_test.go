package source

import (
	"context"
	"sync"

	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/websearch"
)

// mockSearchClient returns err on every call, or failErr for the first
// `failures` calls and resp afterwards.
type mockSearchClient struct {
	resp *websearch.SearchResponse
	err  error

	failures int
	failErr  error

	mu    sync.Mutex
	calls int
}

func (m *mockSearchClient) Search(_ context.Context, _ string, _ ...websearch.SearchOption) (*websearch.SearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.calls <= m.failures {
		return nil, m.failErr
	}
	return m.resp, nil
}

func (m *mockSearchClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPlacesClient struct {
	resp *places.TextSearchResponse
	err  error

	failures int
	failErr  error

	mu        sync.Mutex
	calls     int
	lastQuery string
}

func (m *mockPlacesClient) TextSearch(_ context.Context, query string) (*places.TextSearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	if m.calls <= m.failures {
		return nil, m.failErr
	}
	return m.resp, nil
}

func (m *mockPlacesClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
