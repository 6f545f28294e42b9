// Package source defines the lead source adapters. An adapter turns one
// search query into raw business records; it never validates, dedupes, or
// scores them.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// Sentinel failures an adapter may report. The orchestrator treats all
// three the same way (skip and move on) but tallies them separately.
var (
	// ErrUnavailable means the source could not be reached or answered
	// with a server-side failure.
	ErrUnavailable = eris.New("source: unavailable")
	// ErrThrottled means the source explicitly rejected the call for rate
	// reasons. The orchestrator feeds this into the limiter's backoff.
	ErrThrottled = eris.New("source: throttled")
	// ErrParseFailure means the response arrived but could not be
	// interpreted.
	ErrParseFailure = eris.New("source: parse failure")
)

// Query is one search against a source.
type Query struct {
	// Keyword is the sector search term, e.g. "clínica odontológica".
	Keyword string
	// Region scopes the search geographically, e.g. "Curitiba".
	Region string
}

// Adapter is implemented once per external source.
type Adapter interface {
	ID() model.SourceID
	// Search runs one query and returns raw records. An empty slice with a
	// nil error is a valid outcome.
	Search(ctx context.Context, q Query) ([]model.RawRecord, error)
}
