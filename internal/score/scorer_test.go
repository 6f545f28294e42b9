package score

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		PhoneWeight:       20,
		WebsiteWeight:     10,
		NoWebsiteBonus:    25,
		KeywordWeight:     5,
		MaxKeywordPoints:  25,
		IntelligenceBlend: 0.4,
	}
}

func testIntelConfig() config.IntelligenceConfig {
	return config.IntelligenceConfig{TimeoutSecs: 5, MaxConcurrency: 2}
}

type mockAnalyzer struct {
	assessment *Assessment
	err        error
	calls      atomic.Int64
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ *model.Lead, _ string) (*Assessment, error) {
	m.calls.Add(1)
	return m.assessment, m.err
}

func TestBase(t *testing.T) {
	s := New(testScoringConfig(), testIntelConfig(), nil)
	keywords := []string{"clínica", "dentista"}

	tests := []struct {
		name string
		lead model.Lead
		want float64
	}{
		{
			name: "phone and website, both keywords",
			lead: model.Lead{RawName: "Clínica Sorriso", Snippet: "dentista", Phone: "41 3333", Website: "x.com"},
			// 25 base + 20 phone + 10 website + 10 keywords
			want: 65,
		},
		{
			name: "no website gets the bonus",
			lead: model.Lead{RawName: "Clínica Sorriso", Phone: "41 3333"},
			// 25 + 20 + 25 + 5
			want: 75,
		},
		{
			name: "quality flag costs ten",
			lead: model.Lead{RawName: "Padaria Central", Phone: "41 3333", QualityFlag: true},
			// 25 + 20 + 25 - 10
			want: 60,
		},
		{
			name: "bare name only",
			lead: model.Lead{RawName: "Empresa X"},
			// 25 + 25 no-website bonus
			want: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Base(&tt.lead, keywords))
		})
	}
}

func TestBase_KeywordPointsCapped(t *testing.T) {
	s := New(testScoringConfig(), testIntelConfig(), nil)
	keywords := []string{"a", "b", "c", "d", "e", "f", "g"}

	lead := model.Lead{RawName: "abcdefg"}
	// 25 base + 25 no-website + 25 capped keyword points
	assert.Equal(t, 75.0, s.Base(&lead, keywords))
}

func TestScoreAll_BaseOnly(t *testing.T) {
	s := New(testScoringConfig(), testIntelConfig(), nil)

	leads := []*model.Lead{
		{RawName: "Clínica Sorriso", Phone: "41 3333", Website: "x.com", Snippet: "dentista"},
		{RawName: "Empresa X"},
	}

	out, err := s.ScoreAll(context.Background(), leads, []string{"dentista"}, 55)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Scored)
	assert.Equal(t, 1, out.BelowFloor)
	assert.Zero(t, out.AnalyzerFailures)

	require.True(t, leads[0].Scored())
	assert.False(t, leads[0].BelowFloor)
	assert.True(t, leads[1].BelowFloor, "lead under the floor is kept but flagged")
}

func TestScoreAll_BlendsAnalyzerScore(t *testing.T) {
	analyzer := &mockAnalyzer{assessment: &Assessment{Score: 100, Tags: []string{"independent"}, CostUSD: 0.002}}
	s := New(testScoringConfig(), testIntelConfig(), analyzer)

	leads := []*model.Lead{{RawName: "Clínica Sorriso", Phone: "41 3333", Website: "x.com", Snippet: "dentista"}}
	out, err := s.ScoreAll(context.Background(), leads, []string{"dentista"}, 40)
	require.NoError(t, err)

	// base 60, blended 0.6*60 + 0.4*100 = 76
	assert.InDelta(t, 76, *leads[0].QualificationScore, 1e-9)
	assert.Equal(t, []string{"independent"}, leads[0].Tags)
	assert.InDelta(t, 0.002, out.CostUSD, 1e-9)
}

func TestScoreAll_AnalyzerFailureFallsBackToBase(t *testing.T) {
	analyzer := &mockAnalyzer{err: eris.New("api down")}
	s := New(testScoringConfig(), testIntelConfig(), analyzer)

	leads := []*model.Lead{
		{RawName: "Clínica A", Snippet: "dentista"},
		{RawName: "Clínica B", Snippet: "dentista"},
		{RawName: "Clínica C", Snippet: "dentista"},
	}
	out, err := s.ScoreAll(context.Background(), leads, []string{"dentista"}, 40)
	require.NoError(t, err, "analyzer failure must not fail the run")

	assert.Equal(t, 3, out.Scored)
	assert.Equal(t, 3, out.AnalyzerFailures)
	for _, l := range leads {
		assert.True(t, l.Scored())
	}
}

func TestParseAssessment(t *testing.T) {
	a, err := parseAssessment("Here you go:\n```json\n{\"score\": 72.5, \"tags\": [\"local\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, 72.5, a.Score)
	assert.Equal(t, []string{"local"}, a.Tags)

	_, err = parseAssessment("no json here")
	assert.Error(t, err)

	_, err = parseAssessment(`{"score": 150}`)
	assert.Error(t, err)
}
