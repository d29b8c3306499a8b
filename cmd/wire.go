package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/extraction"
	"github.com/sells-group/pim-enrich/internal/gateway"
	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/internal/registry"
	"github.com/sells-group/pim-enrich/internal/resilience"
	"github.com/sells-group/pim-enrich/internal/schema"
	"github.com/sells-group/pim-enrich/internal/session"
	"github.com/sells-group/pim-enrich/internal/store"
	"github.com/sells-group/pim-enrich/pkg/akeneo"
	anthropicpkg "github.com/sells-group/pim-enrich/pkg/anthropic"
	"github.com/sells-group/pim-enrich/pkg/gemini"
	"github.com/sells-group/pim-enrich/pkg/notion"
)

// appEnv holds the collaborators shared by the serve and extract commands.
type appEnv struct {
	Store     store.Store
	Gateway   *gateway.Gateway
	Resolver  *schema.Resolver
	Extractor extraction.Extractor
	Prompts   *registry.Registry
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// sessionDeps returns the session collaborators.
func (e *appEnv) sessionDeps() session.Deps {
	deps := session.Deps{
		Gateway:   e.Gateway,
		Resolver:  e.Resolver,
		Extractor: e.Extractor,
		Prompts:   e.Prompts,
	}
	if e.Store != nil {
		deps.Runs = e.Store
	}
	return deps
}

// initEnv builds everything a session needs. The caller must Close it.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	env := &appEnv{Store: st}

	env.Gateway = initGateway()
	env.Resolver = schema.NewResolver(env.Gateway, schema.Config{
		MaxAttributes: cfg.Enrichment.MaxAttributes,
		Concurrency:   cfg.Enrichment.SchemaConcurrency,
		Allowlist:     cfg.Enrichment.AttributeAllowlist,
	})

	if env.Extractor, err = initExtractor(ctx); err != nil {
		env.Close()
		return nil, err
	}
	if env.Prompts, err = initRegistry(ctx); err != nil {
		env.Close()
		return nil, err
	}

	zap.L().Info("environment ready",
		zap.String("transport", cfg.Akeneo.Transport),
		zap.String("extractor", cfg.Extractor.Provider),
		zap.String("store", cfg.Store.Driver),
		zap.Int("prompts", len(env.Prompts.List())),
	)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pim-enrich.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initGateway() *gateway.Gateway {
	hc := &http.Client{Timeout: time.Duration(cfg.Akeneo.TimeoutSecs) * time.Second}

	var t akeneo.Transport
	if cfg.Akeneo.Transport == "proxy" {
		t = akeneo.NewProxyTransport(cfg.Akeneo.ProxyURL, hc)
	} else {
		t = akeneo.NewDirectTransport(akeneo.DirectConfig{
			BaseURL:  cfg.Akeneo.BaseURL,
			ClientID: cfg.Akeneo.ClientID,
			Secret:   cfg.Akeneo.Secret,
			Username: cfg.Akeneo.Username,
			Password: cfg.Akeneo.Password,
		}, hc)
	}

	var opts []akeneo.Option
	if cfg.Akeneo.RateLimit > 0 {
		opts = append(opts, akeneo.WithRateLimit(cfg.Akeneo.RateLimit))
	}
	client := akeneo.NewClient(t, opts...)
	return gateway.New(client, gateway.WithRetry(resilience.FromConfig(cfg.Akeneo.MaxAttempts, cfg.Akeneo.BackoffMs)))
}

func promptBuilder() extraction.PromptBuilder {
	return extraction.PromptBuilder{
		Locale:           cfg.Enrichment.UILocale,
		MaxOptionSamples: cfg.Enrichment.MaxOptionSamples,
	}
}

func initExtractor(ctx context.Context) (extraction.Extractor, error) {
	switch cfg.Extractor.Provider {
	case "webhook":
		return extraction.NewWebhookExtractor(cfg.Extractor.WebhookURL, cfg.Extractor.WebhookAPIKey,
			extraction.WithLabelLocale(cfg.Enrichment.UILocale)), nil
	case "anthropic":
		return extraction.NewModelExtractor(&extraction.AnthropicGenerator{
			Client:    anthropicpkg.NewClient(cfg.Anthropic.Key),
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		}, promptBuilder()), nil
	case "gemini":
		gc, err := gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, err
		}
		return extraction.NewModelExtractor(&extraction.GeminiGenerator{
			Client:          gc,
			Model:           cfg.Gemini.Model,
			Temperature:     cfg.Gemini.Temperature,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		}, promptBuilder()), nil
	default:
		return nil, eris.Errorf("unsupported extractor provider: %s", cfg.Extractor.Provider)
	}
}

func initRegistry(ctx context.Context) (*registry.Registry, error) {
	opts := registry.Options{
		Source:     cfg.Prompts.Source,
		File:       cfg.Prompts.File,
		DatabaseID: cfg.Notion.PromptDB,
	}
	if cfg.Notion.Token != "" {
		opts.Notion = notion.NewClient(cfg.Notion.Token)
	}
	reg, err := registry.Load(ctx, opts)
	if err != nil {
		return nil, eris.Wrap(err, "load prompt registry")
	}
	return reg, nil
}

func sessionConfig() session.Config {
	return session.Config{
		Threshold:      cfg.Enrichment.ConfidenceThreshold,
		MaxFileBytes:   cfg.Extractor.MaxFileBytes(),
		SupportedTypes: cfg.Extractor.SupportedTypes,
		DefaultPrompt:  cfg.Enrichment.DefaultPrompt,
		DefaultMode:    model.ParseExtractionMode(cfg.Enrichment.DefaultMode),
	}
}
