// Package store persists collection runs, leads, and dedup fingerprints.
// Two backends implement the same interface: SQLite for local single-user
// work and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/prospector/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Sector string          `json:"sector,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	RunID    string                `json:"run_id,omitempty"`
	Source   model.SourceID        `json:"source,omitempty"`
	State    model.ValidationState `json:"state,omitempty"`
	MinScore float64               `json:"min_score,omitempty"`
	Limit    int                   `json:"limit,omitempty"`
	Offset   int                   `json:"offset,omitempty"`
}

// Stats aggregates the lead table for reporting.
type Stats struct {
	TotalLeads int                    `json:"total_leads"`
	ByState    map[string]int         `json:"by_state"`
	BySource   map[model.SourceID]int `json:"by_source"`
	AvgScore   float64                `json:"avg_score"`
	BelowFloor int                    `json:"below_floor"`
}

// Store defines persistence for the collection pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.CollectionRun) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, runErr string) error
	GetRun(ctx context.Context, runID string) (*model.CollectionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.CollectionRun, error)

	// Leads
	SaveLeads(ctx context.Context, leads []*model.Lead) error
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	LeadStats(ctx context.Context) (*Stats, error)

	// Fingerprints. RecordFingerprint is atomic: concurrent calls with the
	// same fingerprint admit exactly one caller.
	RecordFingerprint(ctx context.Context, fingerprint string) (admitted bool, err error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
