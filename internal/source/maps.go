package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/places"
)

// MapsAdapter sources leads from place text search. It is the richest
// source: results usually carry address, phone, and website together.
type MapsAdapter struct {
	client places.Client
	retry  resilience.Policy
	log    *zap.Logger
}

// NewMapsAdapter wraps a places client as a source adapter.
func NewMapsAdapter(client places.Client) *MapsAdapter {
	retry := resilience.DefaultPolicy()
	retry.OnRetry = resilience.LogRetries(string(model.SourceMaps), "textsearch")
	return &MapsAdapter{
		client: client,
		retry:  retry,
		log:    zap.L().With(zap.String("source", string(model.SourceMaps))),
	}
}

func (a *MapsAdapter) ID() model.SourceID { return model.SourceMaps }

func (a *MapsAdapter) Search(ctx context.Context, q Query) ([]model.RawRecord, error) {
	query := fmt.Sprintf("%s em %s", q.Keyword, q.Region)

	resp, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (*places.TextSearchResponse, error) {
		return a.client.TextSearch(ctx, query)
	})
	if err != nil {
		return nil, classify(err, places.ErrRateLimited)
	}

	records := make([]model.RawRecord, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.DisplayName.Text == "" || p.BusinessStatus == "CLOSED_PERMANENTLY" {
			continue
		}
		snippet := p.PrimaryTypeDisplay.Text
		if p.UserRatingCount > 0 {
			snippet = fmt.Sprintf("%s (%.1f, %d avaliações)", snippet, p.Rating, p.UserRatingCount)
		}
		records = append(records, model.RawRecord{
			Name:    p.DisplayName.Text,
			Address: p.FormattedAddress,
			Phone:   p.NationalPhoneNumber,
			Website: p.WebsiteURI,
			Snippet: snippet,
		})
	}

	a.log.Debug("text search complete",
		zap.String("query", query),
		zap.Int("records", len(records)),
	)
	return records, nil
}
