package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"deckflow/internal/artifact"
	"deckflow/internal/assemble"
	"deckflow/internal/asset"
	"deckflow/internal/audit"
	"deckflow/internal/config"
	"deckflow/internal/fit"
	"deckflow/internal/layout"
	"deckflow/internal/llm"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/logger"
	"deckflow/internal/pipeline"
	"deckflow/internal/session"
	"deckflow/internal/template"
)

// app holds everything one process needs; close releases it.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	orch     *pipeline.Orchestrator
	sessions *session.Registry
	audit    *audit.Log
	catalog  *template.Catalog
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.log.Sync()
}

func loadBase(configPath string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, log, err := loadBase(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	inner, err := llmclient.New(ctx, llmclient.Options{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	// hooks sit outermost so one prompt draft is archived per stage call
	client := llm.Wrap(inner,
		llm.WithHooks(),
		llm.WithLogging(log),
		llm.RateLimit(cfg.LLM.RPS, cfg.LLM.Burst),
		llm.Retry(cfg.LLM.Retries+1, 0),
		llm.Timeout(cfg.LLM.Timeout),
	)
	a.closers = append(a.closers, client.Close)

	store, closeStore, err := artifact.Open(ctx, cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	a.closers = append(a.closers, closeStore)

	a.catalog, err = template.NewCatalog(cfg.Templates.CacheSize, log)
	if err != nil {
		return nil, err
	}
	a.audit = audit.NewLog(cfg.Audit.Dir, log)
	a.sessions = session.NewRegistry()

	resolver := &asset.Resolver{
		LLM:           client,
		DiagramTypes:  cfg.Assets.DiagramTypes,
		ImageRetries:  cfg.Assets.ImageRetries,
		RenderTimeout: cfg.Assets.RenderTimeout,
		Log:           log,
	}
	switch strings.ToLower(cfg.Assets.Renderer) {
	case "mermaid":
		resolver.Renderer = asset.NewMermaidRenderer(cfg.Assets.MermaidCLI)
	default:
		resolver.Renderer = asset.NewChartRenderer()
	}
	if u := strings.TrimSpace(cfg.Assets.SearxngURL); u != "" {
		sx := asset.NewSearXNG(u)
		resolver.Search, resolver.Fetch = sx, sx
		resolver.Limiter = llm.NewLimiter(cfg.Assets.SearchRPS, 1)
	}

	pc := cfg.Pipeline
	a.orch = &pipeline.Orchestrator{
		Outline: &pipeline.OutlineStage{
			LLM: client, Candidates: pc.Candidates, Retries: pc.StageRetries,
			Weights: pc.Outline, Drafts: a.audit, Log: log,
		},
		Content: &pipeline.ContentStage{
			LLM: client, Candidates: pc.Candidates, Retries: pc.StageRetries,
			Weights: pc.Content, Drafts: a.audit, Log: log,
		},
		Assembler: &pipeline.Assembler{
			Selector: &layout.Selector{LLM: client, Retries: pc.StageRetries, Log: log},
			Mapper:   &layout.Mapper{LLM: client, Retries: pc.StageRetries, Log: log},
			Assets:   resolver,
			Fit:      fit.Engine{Fonts: pc.Fonts, MaxRetries: pc.FitRetries, Log: log},
			LLM:      client,
			WorkDir:  filepath.Join(pc.OutDir, "work"),
			Drafts:   a.audit,
			Log:      log,
		},
		Templates: a.catalog,
		Sessions:  a.sessions,
		Audit:     a.audit,
		Writer:    &assemble.Writer{Store: store, Fonts: pc.Fonts, Previews: pc.Previews, Log: log},
		Workers:   pc.Workers,
		Log:       log,
	}
	log.Info("deckflow ready",
		"llm", client.Name(),
		"artifacts", cfg.Artifact.Backend,
		"renderer", cfg.Assets.Renderer,
		"workers", pc.Workers,
	)
	ok = true
	return a, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
