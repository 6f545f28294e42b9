package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/websearch"
)

// WebSearchAdapter sources leads from general web search results.
type WebSearchAdapter struct {
	client websearch.Client
	retry  resilience.Policy
	log    *zap.Logger
}

// NewWebSearchAdapter wraps a search client as a source adapter.
// Transient client errors are retried in place; rate limiting is not,
// since throttling belongs to the orchestrator's limiter.
func NewWebSearchAdapter(client websearch.Client) *WebSearchAdapter {
	retry := resilience.DefaultPolicy()
	retry.OnRetry = resilience.LogRetries(string(model.SourceWebSearch), "search")
	return &WebSearchAdapter{
		client: client,
		retry:  retry,
		log:    zap.L().With(zap.String("source", string(model.SourceWebSearch))),
	}
}

func (a *WebSearchAdapter) ID() model.SourceID { return model.SourceWebSearch }

func (a *WebSearchAdapter) Search(ctx context.Context, q Query) ([]model.RawRecord, error) {
	query := fmt.Sprintf("%s %s", q.Keyword, q.Region)

	resp, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (*websearch.SearchResponse, error) {
		return a.client.Search(ctx, query, websearch.WithCountry("BR"))
	})
	if err != nil {
		return nil, classify(err, websearch.ErrRateLimited)
	}

	records := make([]model.RawRecord, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.Title == "" {
			continue
		}
		records = append(records, model.RawRecord{
			Name:    r.Title,
			Website: r.URL,
			Snippet: r.Description,
		})
	}

	a.log.Debug("search complete",
		zap.String("query", query),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// classify maps a client error onto the adapter sentinels. The client's
// own rate-limit sentinel becomes ErrThrottled; everything except
// cancellation becomes ErrUnavailable from the orchestrator's point of
// view.
func classify(err error, rateLimited error) error {
	switch {
	case errors.Is(err, rateLimited):
		return eris.Wrap(ErrThrottled, err.Error())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return eris.Wrap(ErrUnavailable, err.Error())
	}
}
