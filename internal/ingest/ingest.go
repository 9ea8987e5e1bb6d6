// Package ingest ties the crawler to the retrieval store: crawl a site, chunk
// each page, embed the chunks, and persist them as documents.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/crawler"
	"github.com/praxis-search/ragline/internal/id/uuid"
	"github.com/praxis-search/ragline/internal/metrics"
	"github.com/praxis-search/ragline/internal/rag"
)

// Crawler is the slice of the scheduler the ingestor needs.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, opts crawler.Options) (crawler.Result, error)
}

// Config holds the chunking knobs. Zero values fall back to the defaults.
type Config struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// Report summarizes one ingestion run. Per-page and per-chunk failures are
// accumulated in Errors; they never abort the run.
type Report struct {
	Crawl           crawler.Result `json:"crawl"`
	DocumentsStored int            `json:"documents_stored"`
	Errors          []string       `json:"errors"`
}

// Ingestor runs the crawl-chunk-embed-store pipeline.
type Ingestor struct {
	crawler  Crawler
	embedder rag.Embedder
	store    rag.Store
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	newID    func() (string, error)
}

// New builds an Ingestor.
func New(c Crawler, embedder rag.Embedder, store rag.Store, cfg Config, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	gen := uuid.New()
	return &Ingestor{
		crawler:  c,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    gen.NewID,
	}
}

// Run crawls startURL and stores every chunk of every fetched page. The
// returned error is non-nil only when the crawl itself could not start.
func (in *Ingestor) Run(ctx context.Context, startURL string, opts crawler.Options) (Report, error) {
	crawlResult, err := in.crawler.Crawl(ctx, startURL, opts)
	if err != nil {
		return Report{}, fmt.Errorf("crawl %s: %w", startURL, err)
	}

	report := Report{
		Crawl:  crawlResult,
		Errors: append([]string{}, crawlResult.Errors...),
	}

	for _, page := range crawlResult.Pages {
		stored, errs := in.ingestPage(ctx, page)
		report.DocumentsStored += stored
		report.Errors = append(report.Errors, errs...)
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("ingest interrupted: %v", ctx.Err()))
			break
		}
	}

	metrics.ObserveIngest(report.DocumentsStored)
	in.logger.Info("ingestion finished",
		zap.String("start_url", startURL),
		zap.Int("pages", len(crawlResult.Pages)),
		zap.Int("documents", report.DocumentsStored),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// ingestPage chunks one page and stores each chunk with its embedding.
func (in *Ingestor) ingestPage(ctx context.Context, page crawler.Page) (int, []string) {
	chunks := Chunk(page.Content, in.cfg.ChunkSize, in.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	timestamp := in.now().UTC().Format(time.RFC3339)
	stored := 0
	var errs []string
	for i, content := range chunks {
		embedding, err := in.embedder.Embed(ctx, content)
		if err != nil {
			errs = append(errs, fmt.Sprintf("embed %s chunk %d: %v", page.URL, i, err))
			continue
		}
		id, err := in.newID()
		if err != nil {
			errs = append(errs, fmt.Sprintf("generate id for %s chunk %d: %v", page.URL, i, err))
			continue
		}
		doc := rag.Document{
			ID:      id,
			Content: content,
			Metadata: map[string]string{
				rag.MetaURL:       page.URL,
				rag.MetaSource:    page.URL,
				rag.MetaTitle:     page.Title,
				rag.MetaTimestamp: timestamp,
				rag.MetaChunk:     fmt.Sprintf("%d/%d", i+1, len(chunks)),
			},
		}
		if err := in.store.AddDocument(ctx, doc, embedding); err != nil {
			errs = append(errs, fmt.Sprintf("store %s chunk %d: %v", page.URL, i, err))
			continue
		}
		stored++
	}
	return stored, errs
}
