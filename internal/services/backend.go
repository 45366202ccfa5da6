package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/docsummaryflow/internal/cache"
	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/extractor"
	"github.com/Lllllllleong/docsummaryflow/internal/gcp"
	"github.com/Lllllllleong/docsummaryflow/internal/llm"
	"github.com/Lllllllleong/docsummaryflow/internal/pipeline"
	"github.com/Lllllllleong/docsummaryflow/internal/retry"
	"github.com/Lllllllleong/docsummaryflow/internal/splitter"
	"github.com/Lllllllleong/docsummaryflow/internal/summarizer"
)

// Backend is a model provider able to serve every model call of the pipeline.
type Backend interface {
	extractor.TextRecognizer
	extractor.Captioner
	summarizer.Model
}

// NewBackend creates the backend selected by cfg.Model.Provider. The returned
// close function releases its clients.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, func() error, error) {
	switch cfg.Model.Provider {
	case config.ProviderVertex:
		vc, err := gcp.NewVertexClient(ctx, cfg.GCP.ProjectID, cfg.GCP.Region, cfg.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return vc, vc.Close, nil
	case config.ProviderOpenAI:
		oc, err := llm.NewOpenAIClient(cfg.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return oc, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

// NewExtractionCache returns a Redis cache when one is configured and a
// bounded in-memory cache otherwise. Redis being unreachable is not fatal.
// The returned close function releases the Redis connection.
func NewExtractionCache(ctx context.Context, cfg config.CacheConfig) (extractor.Cache, func() error) {
	noop := func() error { return nil }
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore(cfg.MemoryEntries, cfg.TTL), noop
	}
	store, err := cache.NewRedisStore(ctx, cfg)
	if err != nil {
		slog.Warn("Redis cache unavailable, falling back to in-memory cache.", "redisAddr", cfg.RedisAddr, "error", err)
		return cache.NewMemoryStore(cfg.MemoryEntries, cfg.TTL), noop
	}
	return store, store.Close
}

// NewController wires the splitter, extractor and orchestrator around backend.
func NewController(cfg *config.Config, backend Backend, extractCache extractor.Cache, recorder pipeline.StatusRecorder, logger *slog.Logger) *pipeline.Controller {
	if logger == nil {
		logger = slog.Default()
	}
	policy := retry.FromConfig(cfg.Pipeline)
	return pipeline.NewController(cfg.Pipeline, pipeline.Deps{
		Splitter: splitter.New(cfg.Pipeline, splitter.WithLogger(logger)),
		Extractor: extractor.New(backend, backend, extractor.Options{
			Retry:         policy,
			Concurrency:   cfg.Pipeline.ExtractConcurrency,
			RatePerSecond: cfg.Pipeline.ExtractRatePerSecond,
			Cache:         extractCache,
			Logger:        logger,
		}),
		Summarizer: summarizer.NewOrchestrator(backend, policy, cfg.Pipeline.DigestMaxSentences, logger),
		Recorder:   recorder,
		Logger:     logger,
	})
}
