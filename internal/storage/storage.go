// Package storage resolves the configured storage backend into a concrete
// rag.Store. The choice is a tagged variant decided once at startup; no
// environment lookups happen inside crawl or retrieval logic.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/rag"
	"github.com/praxis-search/ragline/internal/storage/memory"
	"github.com/praxis-search/ragline/internal/storage/postgres"
)

// Backend names accepted in configuration.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config selects and parameterizes the storage backend.
type Config struct {
	Backend   string `mapstructure:"backend"`
	DSN       string `mapstructure:"dsn"`
	CacheSize int    `mapstructure:"cache_size"`
}

// New builds the configured backend and initializes it. Initialization
// failure is fatal here: a service without storage cannot serve.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (rag.Store, error) {
	var store rag.Store
	switch cfg.Backend {
	case BackendMemory, "":
		store = memory.New()
	case BackendPostgres:
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:       cfg.DSN,
			CacheSize: cfg.CacheSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		store = pg
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize %s store: %w", cfg.Backend, err)
	}
	return store, nil
}
