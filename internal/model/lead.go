// Package model defines the core domain types shared across the pipeline.
package model

import "time"

// SourceID identifies an external lead source.
type SourceID string

const (
	// SourceWebSearch is the general web search source.
	SourceWebSearch SourceID = "websearch"
	// SourceMaps is the map/place search source.
	SourceMaps SourceID = "maps"
	// SourceDirectory is the local business directory source.
	SourceDirectory SourceID = "directory"
)

// ValidationState tracks the outcome of validator evaluation for a lead.
type ValidationState string

const (
	ValidationPending  ValidationState = "pending"
	ValidationAccepted ValidationState = "accepted"
	ValidationRejected ValidationState = "rejected"
)

// RawRecord is a single result returned by a source adapter. Fields other
// than Name are frequently absent; adapters leave them empty rather than
// guessing.
type RawRecord struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Lead is a candidate business record under qualification.
type Lead struct {
	ID         int64    `json:"id,omitempty" db:"id"`
	RunID      string   `json:"run_id" db:"run_id"`
	RawName    string   `json:"raw_name" db:"raw_name"`
	Address    string   `json:"address,omitempty" db:"address"`
	Phone      string   `json:"phone,omitempty" db:"phone"`
	Website    string   `json:"website,omitempty" db:"website"`
	Snippet    string   `json:"snippet,omitempty" db:"snippet"`
	Source     SourceID `json:"source" db:"source"`
	SectorHint string   `json:"sector_hint" db:"sector_hint"`
	Region     string   `json:"region" db:"region"`

	// Fingerprint is the stable identity key used for deduplication. It is
	// recomputed only when the normalized name, phone, or website changes.
	Fingerprint string `json:"fingerprint" db:"fingerprint"`

	ValidationState ValidationState `json:"validation_state" db:"validation_state"`
	RejectionReason string          `json:"rejection_reason,omitempty" db:"rejection_reason"`

	// QualityFlag marks leads accepted without a sector keyword match when
	// validator strictness is not high.
	QualityFlag bool `json:"quality_flag,omitempty" db:"quality_flag"`

	// QualificationScore is in [0,100]; nil means not yet scored.
	QualificationScore *float64 `json:"qualification_score,omitempty" db:"qualification_score"`

	// BelowFloor marks leads that scored under the run's quality floor.
	BelowFloor bool `json:"below_floor,omitempty" db:"below_floor"`

	// Tags come from the intelligence analyzer, when available.
	Tags []string `json:"tags,omitempty" db:"tags"`

	CollectedAt time.Time `json:"collected_at" db:"collected_at"`
}

// Scored reports whether the lead has a qualification score.
func (l *Lead) Scored() bool {
	return l.QualificationScore != nil
}

// Score returns the qualification score, or the neutral default for
// unscored leads. Unscored leads sort after any scored lead at the same
// value, so the neutral default only matters relative to other unscored
// leads.
func (l *Lead) Score() float64 {
	if l.QualificationScore == nil {
		return NeutralScore
	}
	return *l.QualificationScore
}

// NeutralScore is assigned for ranking purposes when scoring was not
// possible for a lead.
const NeutralScore = 50.0
