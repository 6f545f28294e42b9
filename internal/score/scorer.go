// Package score assigns qualification scores to accepted leads. The base
// score is deterministic; an optional intelligence analyzer refines it.
// Scoring can degrade but never fails a collection run.
package score

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

// Assessment is the analyzer's judgment of one lead.
type Assessment struct {
	// Score is in [0,100].
	Score float64
	Tags  []string
	// CostUSD is the estimated API cost of producing this assessment.
	CostUSD float64
}

// Analyzer produces lead assessments from an external model. A nil
// Analyzer on the Scorer disables enhancement entirely.
type Analyzer interface {
	Analyze(ctx context.Context, lead *model.Lead, sector string) (*Assessment, error)
}

// Outcome summarizes one scoring pass.
type Outcome struct {
	Scored     int
	BelowFloor int
	// AnalyzerFailures counts leads whose enhancement failed and fell back
	// to the base score.
	AnalyzerFailures int
	CostUSD          float64
}

// Scorer scores leads in place.
type Scorer struct {
	cfg      config.ScoringConfig
	analyzer Analyzer

	maxConcurrency int
	analyzerCfg    config.IntelligenceConfig
	log            *zap.Logger
}

// New creates a Scorer. analyzer may be nil.
func New(cfg config.ScoringConfig, intelCfg config.IntelligenceConfig, analyzer Analyzer) *Scorer {
	mc := intelCfg.MaxConcurrency
	if mc <= 0 {
		mc = 4
	}
	return &Scorer{
		cfg:            cfg,
		analyzer:       analyzer,
		maxConcurrency: mc,
		analyzerCfg:    intelCfg,
		log:            zap.L().With(zap.String("component", "scorer")),
	}
}

// Base computes the deterministic score for a lead from field presence
// and sector keyword matches. The result is clamped to [0,100].
func (s *Scorer) Base(lead *model.Lead, sectorKeywords []string) float64 {
	score := 25.0

	if lead.Phone != "" {
		score += s.cfg.PhoneWeight
	}
	if lead.Website != "" {
		score += s.cfg.WebsiteWeight
	} else {
		// A business with no web presence is exactly who outbound
		// prospecting reaches.
		score += s.cfg.NoWebsiteBonus
	}

	haystack := strings.ToLower(lead.RawName + " " + lead.Snippet)
	var kwPoints float64
	for _, kw := range sectorKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			kwPoints += s.cfg.KeywordWeight
		}
	}
	if kwPoints > s.cfg.MaxKeywordPoints {
		kwPoints = s.cfg.MaxKeywordPoints
	}
	score += kwPoints

	if lead.QualityFlag {
		score -= 10
	}

	return clamp(score)
}

// ScoreAll scores every lead in place, fanning analyzer calls out with
// bounded concurrency. Analyzer failures fall back to the base score; the
// first failure is logged, the rest only counted. The returned error is
// always nil unless the context was cancelled.
func (s *Scorer) ScoreAll(ctx context.Context, leads []*model.Lead, sectorKeywords []string, qualityFloor float64) (*Outcome, error) {
	out := &Outcome{}
	var failures atomic.Int64
	var costMicro atomic.Int64
	var logOnce sync.Once

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for _, lead := range leads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			score := s.Base(lead, sectorKeywords)

			if s.analyzer != nil {
				callCtx, cancel := context.WithTimeout(gctx, s.analyzerCfg.Timeout())
				assessment, err := s.analyzer.Analyze(callCtx, lead, lead.SectorHint)
				cancel()
				switch {
				case err != nil:
					failures.Add(1)
					logOnce.Do(func() {
						s.log.Warn("intelligence analyzer failed, using base scores",
							zap.String("run_id", lead.RunID),
							zap.Error(err),
						)
					})
				case assessment != nil:
					blend := s.cfg.IntelligenceBlend
					score = clamp(score*(1-blend) + assessment.Score*blend)
					lead.Tags = assessment.Tags
					costMicro.Add(int64(assessment.CostUSD * 1e6))
				}
			}

			lead.QualificationScore = &score
			lead.BelowFloor = score < qualityFloor
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}

	for _, lead := range leads {
		if lead.Scored() {
			out.Scored++
			if lead.BelowFloor {
				out.BelowFloor++
			}
		}
	}
	out.AnalyzerFailures = int(failures.Load())
	out.CostUSD = float64(costMicro.Load()) / 1e6
	return out, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
