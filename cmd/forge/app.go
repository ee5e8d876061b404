package main

import (
	"context"
	"fmt"

	"intentforge/internal/config"
	"intentforge/internal/engine"
	"intentforge/internal/grounding"
	"intentforge/internal/kv"
	"intentforge/internal/llm"
	"intentforge/internal/logging"
	"intentforge/internal/search"
	"intentforge/internal/session"
	"intentforge/internal/validator"
)

// app is the composition root: all ports are constructed here, once, from the
// loaded configuration.
type app struct {
	cfg     *config.Config
	coach   *engine.Coach
	store   *session.Store
	watcher *config.Watcher
	kvStore kv.Store
}

// buildApp wires the engine from configuration. The returned app owns every
// resource and must be closed.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Storage: badger for durable sessions and the grounding cache, memory
	// for ephemeral runs.
	var store kv.Store
	if ephemeral {
		store = kv.NewMemoryStore()
	} else {
		store, err = kv.OpenBadger(cfg.Session.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open session storage: %w", err)
		}
	}

	// Analytics mirror is optional and never blocks the conversation path.
	var mirror *session.Mirror
	if !ephemeral && cfg.Session.MirrorPath != "" {
		mirror, err = session.NewMirror(cfg.Session.MirrorPath)
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("Analytics mirror unavailable, continuing without: %v", err)
			mirror = nil
		}
	}

	sessions := session.NewStore(store, cfg.GetSessionTTL(), session.Limits{
		MaxTurns:     cfg.Session.MaxTurns,
		MaxTokensIn:  cfg.Session.MaxTokensIn,
		MaxTokensOut: cfg.Session.MaxTokensOut,
	}, mirror)

	// LLM port.
	var client llm.Client
	switch cfg.LLM.Provider {
	case "gemini":
		client, err = llm.NewGeminiClient(llm.GeminiConfig{
			APIKey:          cfg.LLM.APIKey,
			Model:           cfg.LLM.Model,
			Timeout:         cfg.GetLLMTimeout(),
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	default:
		client = llm.NewNullClient()
	}

	// Search port.
	var searcher search.Provider
	switch cfg.Search.Provider {
	case "http":
		searcher = search.NewHTTPProvider(search.HTTPConfig{
			BaseURL: cfg.Search.BaseURL,
			Timeout: cfg.GetSearchTimeout(),
		})
	default:
		searcher = search.NewNullProvider()
	}

	short, medium, long := cfg.GetGroundingTTLs()
	cache := grounding.NewCache(store, grounding.CacheConfig{
		TTLShort:     short,
		TTLMedium:    medium,
		TTLLong:      long,
		FastTopics:   cfg.Grounding.FastTopics,
		StableTopics: cfg.Grounding.StableTopics,
	})

	// The coach model doubles as the grounding self-assessor.
	grounder := grounding.NewEngine(grounding.EngineConfig{
		FastTopics:    cfg.Grounding.FastTopics,
		AssessmentTTL: cfg.GetAssessmentCacheTTL(),
	}, client)

	coach, err := engine.NewCoach(engine.Deps{
		Sessions:  sessions,
		LLM:       client,
		Search:    searcher,
		Grounding: grounder,
		Cache:     cache,
		Validator: validator.New(validator.Config{
			MinWords:    cfg.Validator.MinWords,
			MaxWords:    cfg.Validator.MaxWords,
			MaxWarnings: cfg.Validator.MaxWarnings,
		}),
		MaxSearchResults: cfg.Search.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, coach: coach, store: sessions, kvStore: store}

	// Hot-reload the fast-topic table on config edits.
	if watcher, werr := config.NewWatcher(configPath); werr == nil {
		watcher.OnReload(func(next *config.Config) {
			grounder.SetFastTopics(next.Grounding.FastTopics)
			logging.Reconfigure(logSettings(next.Logging))
			logging.Config("Fast-topic table reloaded (%d topics)", len(next.Grounding.FastTopics))
		})
		if serr := watcher.Start(ctx); serr == nil {
			a.watcher = watcher
		} else {
			logging.Get(logging.CategoryConfig).Warn("Config watcher disabled: %v", serr)
		}
	}

	return a, nil
}

func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Get(logging.CategoryBoot).Warn("Session store close: %v", err)
		}
	}
	if a.kvStore != nil {
		if err := a.kvStore.Close(); err != nil {
			logging.Get(logging.CategoryBoot).Warn("KV store close: %v", err)
		}
	}
}
