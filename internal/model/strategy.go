package model

// ExpectedQuality grades how good a source's results tend to be for a
// given strategy. It drives strategy priority.
type ExpectedQuality string

const (
	QualityHigh   ExpectedQuality = "high"
	QualityMedium ExpectedQuality = "medium"
	QualityLow    ExpectedQuality = "low"
)

// PriorityFor maps expected quality to a numeric priority (higher = tried
// first).
func PriorityFor(q ExpectedQuality) int {
	switch q {
	case QualityHigh:
		return 3
	case QualityMedium:
		return 2
	default:
		return 1
	}
}

// SearchStrategy is a plan for querying one source. Strategies are built
// per collection run, consumed once, and never persisted.
type SearchStrategy struct {
	Source          SourceID          `json:"source"`
	Keywords        []string          `json:"keywords"`
	Filters         map[string]string `json:"filters,omitempty"`
	Priority        int               `json:"priority"`
	ExpectedQuality ExpectedQuality   `json:"expected_quality"`
}
