// Package rag defines the core types and collaborator interfaces for the
// retrieval engine, plus the confidence calculator and query orchestrator.
package rag

import (
	"context"
)

// Metadata keys used across the ingestion and query paths.
const (
	MetaURL       = "url"
	MetaSource    = "source"
	MetaTitle     = "title"
	MetaTimestamp = "timestamp"
	MetaChunk     = "chunk"
)

// EmbeddingDims is the vector width expected from the embedding provider.
const EmbeddingDims = 1536

// Document is the unit of storage. Metadata is a flat string map so the
// storage backends can persist it as JSON without a fixed schema.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Version  int               `json:"version,omitempty"`
}

// SearchResult is a Document plus its raw cosine similarity in [0,1].
type SearchResult struct {
	Document
	Similarity float64 `json:"similarity"`
}

// Level buckets a confidence score.
type Level string

// Confidence levels, thresholded at 0.7 and 0.4.
const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// LevelForScore maps a composite score onto a Level.
func LevelForScore(score float64) Level {
	switch {
	case score >= 0.7:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Factors holds the individual confidence components, each in [0,1].
type Factors struct {
	Similarity  float64 `json:"similarity"`
	SourceCount float64 `json:"source_count"`
	Recency     float64 `json:"recency"`
	Diversity   float64 `json:"diversity"`
}

// ConfidenceResult is the calculator output.
type ConfidenceResult struct {
	Score       float64 `json:"score"`
	Level       Level   `json:"level"`
	Explanation string  `json:"explanation"`
	Factors     Factors `json:"factors"`
}

// Chunk is a context fragment returned alongside an answer.
type Chunk struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Response is the final result of a query.
type Response struct {
	Answer                string   `json:"answer"`
	Confidence            float64  `json:"confidence"`
	ConfidenceLevel       Level    `json:"confidence_level"`
	ConfidenceExplanation string   `json:"confidence_explanation"`
	Sources               []string `json:"sources"`
	Chunks                []Chunk  `json:"chunks"`
}

// Embedder turns text into a vector. Implementations must reject empty input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer synthesizes an answer from an assembled prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Store is the storage strategy shared by the ingestion and query paths.
// Search returns results in descending similarity order.
type Store interface {
	Initialize(ctx context.Context) error
	AddDocument(ctx context.Context, doc Document, embedding []float32) error
	GetDocument(ctx context.Context, id string) (Document, error)
	Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context) ([]Document, error)
	Close(ctx context.Context) error
}

// SourceRef returns the user-facing source identifier for a document:
// the full original URL when present, then the source field, then the id.
// Values are never truncated to a bare domain.
func SourceRef(doc Document) string {
	if u := doc.Metadata[MetaURL]; u != "" {
		return u
	}
	if s := doc.Metadata[MetaSource]; s != "" {
		return s
	}
	return doc.ID
}
