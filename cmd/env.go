package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/dedupe"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/orchestrate"
	"github.com/sells-group/prospector/internal/ratelimit"
	"github.com/sells-group/prospector/internal/score"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/internal/taxonomy"
	"github.com/sells-group/prospector/internal/validate"
	anthropicpkg "github.com/sells-group/prospector/pkg/anthropic"
	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/websearch"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prospector.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// collectEnv holds everything the collect and serve commands need.
type collectEnv struct {
	Store        store.Store
	Orchestrator *orchestrate.Orchestrator
}

// Close releases resources held by the environment.
func (e *collectEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initCollect wires the store, source adapters, limiter, validator, and
// scorer into an orchestrator. Callers should defer env.Close().
func initCollect(ctx context.Context, strict bool) (*collectEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var adapters []source.Adapter
	if cfg.Sources.WebSearch.Enabled {
		client := websearch.NewClient(cfg.Sources.WebSearch.Key,
			websearch.WithBaseURL(cfg.Sources.WebSearch.BaseURL))
		adapters = append(adapters, source.NewWebSearchAdapter(client))
	}
	if cfg.Sources.Maps.Enabled {
		if cfg.Sources.Maps.Key == "" {
			zap.L().Warn("maps source enabled but no API key set, skipping")
		} else {
			client := places.NewClient(cfg.Sources.Maps.Key,
				places.WithBaseURL(cfg.Sources.Maps.BaseURL))
			adapters = append(adapters, source.NewMapsAdapter(client))
		}
	}
	if cfg.Sources.Directory.Enabled {
		adapters = append(adapters, source.NewDirectoryAdapter(cfg.Sources.Directory.BaseURL))
	}

	limiter := ratelimit.New(ratelimit.Config{
		Limits: map[model.SourceID]ratelimit.SourceLimit{
			model.SourceWebSearch: sourceLimit(cfg.Sources.WebSearch),
			model.SourceMaps:      sourceLimit(cfg.Sources.Maps),
			model.SourceDirectory: sourceLimit(cfg.Sources.Directory),
		},
		BackoffBase: time.Duration(cfg.Sources.BackoffBaseSecs) * time.Second,
		BackoffCap:  time.Duration(cfg.Sources.BackoffCapSecs) * time.Second,
	})

	vcfg := cfg.Validator
	if strict {
		vcfg.Strictness = "high"
	}
	validator, err := validate.New(vcfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var analyzer score.Analyzer
	if cfg.Intelligence.Enabled && cfg.Intelligence.Key != "" {
		analyzer = score.NewLLMAnalyzer(anthropicpkg.NewClient(cfg.Intelligence.Key), cfg.Intelligence)
		zap.L().Info("intelligence analyzer enabled", zap.String("model", cfg.Intelligence.Model))
	}
	scorer := score.New(cfg.Scoring, cfg.Intelligence, analyzer)

	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		// Keywords fall back to the sector name itself.
		zap.L().Warn("taxonomy not loaded, using generic keywords", zap.Error(err))
		tax = nil
	}

	orch := orchestrate.New(orchestrate.Options{
		Adapters:     adapters,
		Limiter:      limiter,
		Validator:    validator,
		Scorer:       scorer,
		Store:        st,
		Fingerprints: dedupe.NewFingerprinter(cfg.Dedupe.DefaultCountryCode),
		Taxonomy:     tax,
		Sources:      cfg.Sources,
	})

	return &collectEnv{Store: st, Orchestrator: orch}, nil
}

func sourceLimit(sc config.SourceConfig) ratelimit.SourceLimit {
	return ratelimit.SourceLimit{
		Requests: sc.RateLimit,
		Window:   time.Duration(sc.WindowSecs) * time.Second,
		MaxWait:  time.Duration(sc.MaxWaitSecs) * time.Second,
	}
}
