package source

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/places"
)

func TestMapsAdapter_Search(t *testing.T) {
	client := &mockPlacesClient{resp: &places.TextSearchResponse{
		Places: []places.Place{
			{
				DisplayName:         places.DisplayName{Text: "Clínica Sorriso"},
				FormattedAddress:    "Rua XV de Novembro, 100 - Curitiba",
				NationalPhoneNumber: "(41) 3333-4444",
				WebsiteURI:          "https://sorriso.com.br",
				Rating:              4.7,
				UserRatingCount:     120,
				PrimaryTypeDisplay:  places.DisplayName{Text: "Clínica odontológica"},
				BusinessStatus:      "OPERATIONAL",
			},
			{
				DisplayName:    places.DisplayName{Text: "Clínica Fechada"},
				BusinessStatus: "CLOSED_PERMANENTLY",
			},
		},
	}}
	a := NewMapsAdapter(client)

	records, err := a.Search(context.Background(), Query{Keyword: "clínica odontológica", Region: "Curitiba"})
	require.NoError(t, err)
	require.Len(t, records, 1, "permanently closed places are dropped")

	assert.Equal(t, "clínica odontológica em Curitiba", client.lastQuery)

	rec := records[0]
	assert.Equal(t, "Clínica Sorriso", rec.Name)
	assert.Equal(t, "Rua XV de Novembro, 100 - Curitiba", rec.Address)
	assert.Equal(t, "(41) 3333-4444", rec.Phone)
	assert.Equal(t, "https://sorriso.com.br", rec.Website)
	assert.Contains(t, rec.Snippet, "4.7")
}

func TestMapsAdapter_Throttled(t *testing.T) {
	client := &mockPlacesClient{err: places.ErrRateLimited}
	a := NewMapsAdapter(client)

	_, err := a.Search(context.Background(), Query{Keyword: "x", Region: "y"})
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 1, client.callCount(), "rate limiting is never retried inline")
}

func TestMapsAdapter_RetriesTransientThenSucceeds(t *testing.T) {
	client := &mockPlacesClient{
		failures: 1,
		failErr:  resilience.Transient(eris.New("places: status 500"), 500),
		resp: &places.TextSearchResponse{
			Places: []places.Place{{DisplayName: places.DisplayName{Text: "Clínica Sorriso"}}},
		},
	}
	a := NewMapsAdapter(client)
	a.retry = fastRetry()

	records, err := a.Search(context.Background(), Query{Keyword: "clínica", Region: "Curitiba"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, client.callCount())
}
