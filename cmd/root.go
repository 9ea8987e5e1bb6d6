// Package cmd defines the CLI commands for the ragline executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/archive"
	"github.com/praxis-search/ragline/internal/config"
	"github.com/praxis-search/ragline/internal/crawler"
	"github.com/praxis-search/ragline/internal/fetch"
	collyfetch "github.com/praxis-search/ragline/internal/fetch/colly"
	"github.com/praxis-search/ragline/internal/fetch/headless"
	"github.com/praxis-search/ragline/internal/ingest"
	"github.com/praxis-search/ragline/internal/logging"
	"github.com/praxis-search/ragline/internal/metrics"
	"github.com/praxis-search/ragline/internal/provider/gemini"
	"github.com/praxis-search/ragline/internal/rag"
	"github.com/praxis-search/ragline/internal/storage"
)

var cfgFile string

// app holds the assembled service graph shared by subcommands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    rag.Store
	ingestor *ingest.Ingestor
	engine   *rag.Engine
	renderer fetch.Renderer
}

// newApp loads config and wires the full pipeline: fetcher, scheduler,
// ingestor, store, provider, and retrieval engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	store, err := storage.New(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		DSN:       cfg.Storage.DSN,
		CacheSize: cfg.Storage.CacheSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	provider, err := gemini.New(ctx, gemini.Config{
		APIKey:        cfg.Provider.APIKey,
		EmbedModel:    cfg.Provider.EmbedModel,
		CompleteModel: cfg.Provider.CompleteModel,
	})
	if err != nil {
		return nil, err
	}

	getter := collyfetch.New(collyfetch.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.CrawlTimeout(),
	})

	var renderer fetch.Renderer
	if cfg.Headless.Enabled {
		renderer, err = headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.CrawlTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
	}

	var sink crawler.PageSink
	if cfg.Archive.Enabled {
		sink, err = archive.New(cfg.Archive.Dir, logger)
		if err != nil {
			return nil, err
		}
	}

	scraper := fetch.NewScraper(getter, renderer, logger)
	scheduler := crawler.NewScheduler(scraper, sink, cfg.Crawler.UserAgent, logger)

	ingestor := ingest.New(scheduler, provider, store, ingest.Config{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	}, logger)

	engine := rag.NewEngine(provider, provider, store, rag.NewCalculator(), rag.EngineConfig{
		SimilarityGate: cfg.RAG.SimilarityGate,
		TopK:           cfg.RAG.TopK,
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		ingestor: ingestor,
		engine:   engine,
		renderer: renderer,
	}, nil
}

// close releases the store and the browser allocator.
func (a *app) close(ctx context.Context) {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("store close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragline",
		Short: "Policy-gated web crawler and retrieval engine",
		Long: `ragline crawls documentation sites politely, stores the content as
embedded chunks, and answers questions over it with confidence-scored
retrieval.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newDocsCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
