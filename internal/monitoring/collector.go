// Package monitoring aggregates persisted collection runs into
// point-in-time metric snapshots.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

// MetricsSnapshot holds a point-in-time view of collection health.
type MetricsSnapshot struct {
	// Run metrics within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// Lead flow within the lookback window, summed over run summaries.
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	Duplicates     int     `json:"duplicates"`
	Scored         int     `json:"scored"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	IntelCostUSD   float64 `json:"intel_cost_usd"`

	// Per-source trouble within the window.
	SourceErrors       map[model.SourceID]int `json:"source_errors,omitempty"`
	SourceRateExceeded map[model.SourceID]int `json:"source_rate_exceeded,omitempty"`

	// All-time lead store figures.
	TotalLeads int     `json:"total_leads"`
	AvgScore   float64 `json:"avg_score"`
	BelowFloor int     `json:"below_floor"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect builds a snapshot over the given lookback window. Run volume is
// small, so the window filter is applied in memory.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		SourceErrors:       make(map[model.SourceID]int),
		SourceRateExceeded: make(map[model.SourceID]int),
		LookbackHours:      lookbackHours,
		CollectedAt:        time.Now().UTC(),
	}
	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Summary == nil {
			continue
		}
		snap.Accepted += r.Summary.Accepted
		snap.Rejected += r.Summary.TotalRejected()
		snap.Duplicates += r.Summary.Duplicates
		snap.Scored += r.Summary.Scored
		snap.IntelCostUSD += r.Summary.IntelCostUSD
		for id, st := range r.Summary.Sources {
			snap.SourceErrors[id] += st.Errors
			snap.SourceRateExceeded[id] += st.RateExceeded
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if processed := snap.Accepted + snap.Rejected + snap.Duplicates; processed > 0 {
		snap.AcceptanceRate = float64(snap.Accepted) / float64(processed)
	}

	stats, err := c.store.LeadStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: lead stats")
	}
	snap.TotalLeads = stats.TotalLeads
	snap.AvgScore = stats.AvgScore
	snap.BelowFloor = stats.BelowFloor

	return snap, nil
}
