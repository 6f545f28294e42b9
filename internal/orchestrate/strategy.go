// Package orchestrate plans per-source search strategies and runs the
// collection pipeline across them.
package orchestrate

import (
	"sort"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

// BuildStrategies produces one search strategy per enabled source using
// the sector's taxonomy keywords. Strategies are ordered by priority
// descending; ties break on the configured source reliability order, so
// two medium-quality sources always execute in a deterministic order.
func BuildStrategies(cfg config.SourcesConfig, keywords []string) []model.SearchStrategy {
	perSource := []struct {
		id  model.SourceID
		cfg config.SourceConfig
	}{
		{model.SourceWebSearch, cfg.WebSearch},
		{model.SourceMaps, cfg.Maps},
		{model.SourceDirectory, cfg.Directory},
	}

	var strategies []model.SearchStrategy
	for _, s := range perSource {
		if !s.cfg.Enabled {
			continue
		}
		quality := model.ExpectedQuality(s.cfg.Quality)
		strategies = append(strategies, model.SearchStrategy{
			Source:          s.id,
			Keywords:        keywords,
			Priority:        model.PriorityFor(quality),
			ExpectedQuality: quality,
		})
	}

	rank := reliabilityRank(cfg.ReliabilityOrder)
	sort.SliceStable(strategies, func(i, j int) bool {
		if strategies[i].Priority != strategies[j].Priority {
			return strategies[i].Priority > strategies[j].Priority
		}
		return rank[strategies[i].Source] < rank[strategies[j].Source]
	})
	return strategies
}

func reliabilityRank(order []string) map[model.SourceID]int {
	rank := make(map[model.SourceID]int, len(order))
	for i, id := range order {
		rank[model.SourceID(id)] = i
	}
	for _, id := range []model.SourceID{model.SourceWebSearch, model.SourceMaps, model.SourceDirectory} {
		if _, ok := rank[id]; !ok {
			// Sources missing from the declared order sort last.
			rank[id] = len(order) + len(rank)
		}
	}
	return rank
}
