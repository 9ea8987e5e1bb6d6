// Package postgres implements the persistent storage backend on PostgreSQL
// with the pgvector extension.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/rag"
	"github.com/praxis-search/ragline/internal/retry"
)

const defaultCacheSize = 128

// Pool is the subset of pgxpool.Pool the store needs. Narrowing it lets
// pgxmock stand in during tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Config controls the Postgres connection pool and store behavior.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	CacheSize       int
	Retry           retry.Config
}

// Store persists documents, embeddings, and version history in Postgres.
// Concurrent readers and independent concurrent writers are safe; Postgres
// row locking provides the granularity, the store holds no global lock
// around queries.
type Store struct {
	mu       sync.Mutex // guards pool replacement on reconnect
	pool     Pool
	dial     func(ctx context.Context) (Pool, error)
	cache    *lru.Cache[string, rag.Document]
	retryCfg retry.Config
	logger   *zap.Logger
}

// New connects to Postgres using cfg.DSN. Connection failure here is fatal;
// there is no degraded mode without storage.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	dial := func(ctx context.Context) (Pool, error) {
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			poolCfg.MinConns = cfg.MinConns
		}
		if cfg.MaxConnLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
		}
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pool, nil
	}

	pool, err := dial(ctx)
	if err != nil {
		return nil, err
	}
	return newStore(pool, dial, cfg, logger)
}

// NewWithPool constructs a store from an existing pool, primarily for tests.
func NewWithPool(pool Pool, cfg Config, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newStore(pool, nil, cfg, logger)
}

func newStore(pool Pool, dial func(ctx context.Context) (Pool, error), cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, rag.Document](size)
	if err != nil {
		return nil, fmt.Errorf("build document cache: %w", err)
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.DefaultConfig()
	}
	return &Store{
		pool:     pool,
		dial:     dial,
		cache:    cache,
		retryCfg: retryCfg,
		logger:   logger,
	}, nil
}

// Initialize creates the schema. Every statement is idempotent and safe to
// run on each process start.
func (s *Store) Initialize(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embeddings (
			document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			embedding vector(%d) NOT NULL
		)`, rag.EmbeddingDims),
		`CREATE TABLE IF NOT EXISTS document_versions (
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (document_id, version)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.currentPool().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema setup: %w", err)
		}
	}
	return nil
}

// AddDocument upserts the document row, appends a version history row, and
// replaces the embedding. It is the only operation retried automatically.
func (s *Store) AddDocument(ctx context.Context, doc rag.Document, embedding []float32) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required")
	}
	metadata, err := json.Marshal(orEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	return retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		pool, err := s.livePool(ctx)
		if err != nil {
			return err
		}

		var version int
		err = pool.QueryRow(ctx, `
INSERT INTO documents (id, content, metadata)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    metadata = EXCLUDED.metadata,
    version = documents.version + 1,
    updated_at = now()
RETURNING version`, doc.ID, doc.Content, metadata).Scan(&version)
		if err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}

		if _, err := pool.Exec(ctx, `
INSERT INTO document_versions (document_id, version, content, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id, version) DO NOTHING`, doc.ID, version, doc.Content, metadata); err != nil {
			return fmt.Errorf("insert version row: %w", err)
		}

		if _, err := pool.Exec(ctx, `
INSERT INTO embeddings (document_id, embedding)
VALUES ($1, $2)
ON CONFLICT (document_id) DO UPDATE
SET embedding = EXCLUDED.embedding`, doc.ID, pgvector.NewVector(embedding)); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}

		s.cache.Remove(doc.ID)
		return nil
	})
}

// GetDocument reads a document, serving repeated reads from the cache.
func (s *Store) GetDocument(ctx context.Context, id string) (rag.Document, error) {
	if doc, ok := s.cache.Get(id); ok {
		return doc, nil
	}
	pool, err := s.livePool(ctx)
	if err != nil {
		return rag.Document{}, err
	}

	var (
		doc rag.Document
		raw []byte
	)
	err = pool.QueryRow(ctx,
		`SELECT id, content, metadata, version FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Content, &raw, &doc.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rag.Document{}, fmt.Errorf("document %q not found", id)
		}
		return rag.Document{}, fmt.Errorf("get document: %w", err)
	}
	if doc.Metadata, err = unmarshalMetadata(raw); err != nil {
		return rag.Document{}, err
	}
	s.cache.Add(id, doc)
	return doc, nil
}

// Search orders by vector distance ascending; similarity is 1 - distance.
func (s *Store) Search(ctx context.Context, embedding []float32, limit int) ([]rag.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}
	if limit <= 0 {
		limit = 5
	}
	pool, err := s.livePool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
SELECT d.id, d.content, d.metadata, d.version,
       1 - (e.embedding <=> $1) AS similarity
FROM embeddings e
JOIN documents d ON d.id = e.document_id
ORDER BY e.embedding <=> $1
LIMIT $2`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []rag.SearchResult
	for rows.Next() {
		var (
			res rag.SearchResult
			raw []byte
		)
		if err := rows.Scan(&res.ID, &res.Content, &raw, &res.Version, &res.Similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if res.Metadata, err = unmarshalMetadata(raw); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return results, nil
}

// DeleteDocument removes the document; embeddings and version history follow
// via ON DELETE CASCADE.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	pool, err := s.livePool(ctx)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %q not found", id)
	}
	s.cache.Remove(id)
	return nil
}

// ListDocuments returns every stored document, oldest first.
func (s *Store) ListDocuments(ctx context.Context) ([]rag.Document, error) {
	pool, err := s.livePool(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx,
		`SELECT id, content, metadata, version FROM documents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		var (
			doc rag.Document
			raw []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &raw, &doc.Version); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		if doc.Metadata, err = unmarshalMetadata(raw); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return docs, nil
}

// Close releases the pool.
func (s *Store) Close(context.Context) error {
	s.currentPool().Close()
	return nil
}

// livePool verifies the connection is alive before an operation and
// transparently reconnects when the ping fails and a dialer is available.
func (s *Store) livePool(ctx context.Context) (Pool, error) {
	pool := s.currentPool()
	if err := pool.Ping(ctx); err == nil {
		return pool, nil
	} else if s.dial == nil {
		return nil, fmt.Errorf("connection lost: %w", err)
	}

	s.logger.Warn("postgres connection lost; reconnecting")
	fresh, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}

	s.mu.Lock()
	old := s.pool
	s.pool = fresh
	s.mu.Unlock()
	old.Close()
	return fresh, nil
}

func (s *Store) currentPool() Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func unmarshalMetadata(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
