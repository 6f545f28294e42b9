package source

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/websearch"
)

// fastRetry keeps adapter retry tests from sleeping through real backoff.
func fastRetry() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
}

func TestWebSearchAdapter_Search(t *testing.T) {
	client := &mockSearchClient{resp: &websearch.SearchResponse{
		Data: []websearch.SearchResult{
			{Title: "Clínica Sorriso", URL: "https://sorriso.com.br", Description: "Dentista em Curitiba"},
			{Title: "", URL: "https://skipped.com"},
			{Title: "Clínica Bem Estar", URL: "https://bemestar.com.br"},
		},
	}}
	a := NewWebSearchAdapter(client)

	records, err := a.Search(context.Background(), Query{Keyword: "clínica odontológica", Region: "Curitiba"})
	require.NoError(t, err)
	require.Len(t, records, 2, "untitled results are dropped")

	assert.Equal(t, "Clínica Sorriso", records[0].Name)
	assert.Equal(t, "https://sorriso.com.br", records[0].Website)
	assert.Equal(t, "Dentista em Curitiba", records[0].Snippet)
	assert.Empty(t, records[0].Phone)
}

func TestWebSearchAdapter_Throttled(t *testing.T) {
	client := &mockSearchClient{err: websearch.ErrRateLimited}
	a := NewWebSearchAdapter(client)

	_, err := a.Search(context.Background(), Query{Keyword: "x", Region: "y"})
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 1, client.callCount(), "rate limiting is reported upstream, never retried inline")
}

func TestWebSearchAdapter_RetriesTransientThenSucceeds(t *testing.T) {
	client := &mockSearchClient{
		failures: 1,
		failErr:  resilience.Transient(eris.New("websearch: status 503"), 503),
		resp: &websearch.SearchResponse{
			Data: []websearch.SearchResult{{Title: "Clínica Sorriso", URL: "https://sorriso.com.br"}},
		},
	}
	a := NewWebSearchAdapter(client)
	a.retry = fastRetry()

	records, err := a.Search(context.Background(), Query{Keyword: "clínica", Region: "Curitiba"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, client.callCount())
}

func TestWebSearchAdapter_Unavailable(t *testing.T) {
	client := &mockSearchClient{err: resilience.Transient(eris.New("502"), 502)}
	a := NewWebSearchAdapter(client)
	a.retry = fastRetry()

	_, err := a.Search(context.Background(), Query{Keyword: "x", Region: "y"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, client.callCount(), "transient failures are retried until the policy gives up")
}

func TestWebSearchAdapter_PermanentErrorNotRetried(t *testing.T) {
	client := &mockSearchClient{err: eris.New("websearch: unexpected status 401")}
	a := NewWebSearchAdapter(client)
	a.retry = fastRetry()

	_, err := a.Search(context.Background(), Query{Keyword: "x", Region: "y"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, client.callCount())
}

func TestWebSearchAdapter_CancellationPassesThrough(t *testing.T) {
	a := NewWebSearchAdapter(&mockSearchClient{err: context.Canceled})

	_, err := a.Search(context.Background(), Query{Keyword: "x", Region: "y"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
