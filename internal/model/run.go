package model

import "time"

// RunStatus tracks the lifecycle of a collection run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// CollectionRun records one execution of the orchestrator.
type CollectionRun struct {
	ID          string      `json:"id" db:"id"`
	Sector      string      `json:"sector" db:"sector"`
	Region      string      `json:"region" db:"region"`
	MaxLeads    int         `json:"max_leads" db:"max_leads"`
	Status      RunStatus   `json:"status" db:"status"`
	Summary     *RunSummary `json:"summary,omitempty" db:"summary"`
	Error       string      `json:"error,omitempty" db:"error"`
	StartedAt   time.Time   `json:"started_at" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// SourceStats counts activity against a single source within one run.
type SourceStats struct {
	Attempted    int `json:"attempted"`
	Records      int `json:"records"`
	Errors       int `json:"errors"`
	RateExceeded int `json:"rate_exceeded"`
}

// RunSummary aggregates the outcome of a collection run. A run always
// produces a summary, even when no leads were accepted.
type RunSummary struct {
	Sources    map[SourceID]*SourceStats `json:"sources"`
	Rejected   map[string]int            `json:"rejected"`
	Duplicates int                       `json:"duplicates"`
	Accepted   int                       `json:"accepted"`
	Scored     int                       `json:"scored"`
	BelowFloor int                       `json:"below_floor"`

	// IntelCostUSD is the estimated spend on intelligence analysis calls.
	IntelCostUSD float64 `json:"intel_cost_usd,omitempty"`
}

// NewRunSummary returns an empty summary with initialized maps.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		Sources:  make(map[SourceID]*SourceStats),
		Rejected: make(map[string]int),
	}
}

// SourceStatsFor returns the stats bucket for a source, creating it if
// needed.
func (s *RunSummary) SourceStatsFor(id SourceID) *SourceStats {
	st, ok := s.Sources[id]
	if !ok {
		st = &SourceStats{}
		s.Sources[id] = st
	}
	return st
}

// TotalRejected sums rejections across all reasons.
func (s *RunSummary) TotalRejected() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}
	return total
}
