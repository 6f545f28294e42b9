package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

func TestBuildStrategies_PriorityOrder(t *testing.T) {
	cfg := config.SourcesConfig{
		WebSearch:        config.SourceConfig{Enabled: true, Quality: "medium"},
		Maps:             config.SourceConfig{Enabled: true, Quality: "high"},
		Directory:        config.SourceConfig{Enabled: true, Quality: "low"},
		ReliabilityOrder: []string{"maps", "websearch", "directory"},
	}

	strategies := BuildStrategies(cfg, []string{"clínica odontológica"})
	require.Len(t, strategies, 3)
	assert.Equal(t, model.SourceMaps, strategies[0].Source)
	assert.Equal(t, model.SourceWebSearch, strategies[1].Source)
	assert.Equal(t, model.SourceDirectory, strategies[2].Source)
	assert.Equal(t, 3, strategies[0].Priority)
	assert.Equal(t, []string{"clínica odontológica"}, strategies[0].Keywords)
}

func TestBuildStrategies_TieBrokenByReliabilityOrder(t *testing.T) {
	cfg := config.SourcesConfig{
		WebSearch:        config.SourceConfig{Enabled: true, Quality: "medium"},
		Directory:        config.SourceConfig{Enabled: true, Quality: "medium"},
		ReliabilityOrder: []string{"websearch", "directory"},
	}
	strategies := BuildStrategies(cfg, nil)
	require.Len(t, strategies, 2)
	assert.Equal(t, model.SourceWebSearch, strategies[0].Source)

	cfg.ReliabilityOrder = []string{"directory", "websearch"}
	strategies = BuildStrategies(cfg, nil)
	require.Len(t, strategies, 2)
	assert.Equal(t, model.SourceDirectory, strategies[0].Source)
}

func TestBuildStrategies_DisabledSourceExcluded(t *testing.T) {
	cfg := config.SourcesConfig{
		WebSearch: config.SourceConfig{Enabled: true, Quality: "medium"},
		Maps:      config.SourceConfig{Enabled: false, Quality: "high"},
	}
	strategies := BuildStrategies(cfg, nil)
	require.Len(t, strategies, 1)
	assert.Equal(t, model.SourceWebSearch, strategies[0].Source)
}
