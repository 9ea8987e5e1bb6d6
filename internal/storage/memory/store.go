// Package memory implements the ephemeral in-process storage backend.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/praxis-search/ragline/internal/rag"
)

type entry struct {
	doc       rag.Document
	embedding []float32
}

// Store keeps documents and embeddings in a keyed map. Search is an O(n)
// cosine scan with no similarity floor; ranking only. The backend is bounded
// and single-process, and makes no concurrent-mutation guarantee beyond the
// internal lock.
type Store struct {
	mu   sync.RWMutex
	docs map[string]entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]entry)}
}

// Initialize is a no-op for the in-memory backend.
func (s *Store) Initialize(context.Context) error { return nil }

// AddDocument stores doc keyed by id, replacing any previous version.
func (s *Store) AddDocument(_ context.Context, doc rag.Document, embedding []float32) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = entry{doc: doc, embedding: append([]float32(nil), embedding...)}
	return nil
}

// GetDocument returns the document with the given id.
func (s *Store) GetDocument(_ context.Context, id string) (rag.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[id]
	if !ok {
		return rag.Document{}, fmt.Errorf("document %q not found", id)
	}
	return e.doc, nil
}

// Search scans every stored embedding and returns the top limit matches in
// descending similarity order.
func (s *Store) Search(_ context.Context, embedding []float32, limit int) ([]rag.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	results := make([]rag.SearchResult, 0, len(s.docs))
	for _, e := range s.docs {
		results = append(results, rag.SearchResult{
			Document:   e.doc,
			Similarity: cosineSimilarity(embedding, e.embedding),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteDocument removes a document by draining the map and re-adding every
// entry except the target. Acceptable only because this backend is bounded
// and single-process.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %q not found", id)
	}
	drained := s.docs
	s.docs = make(map[string]entry, len(drained))
	for key, e := range drained {
		if key == id {
			continue
		}
		s.docs[key] = e
	}
	return nil
}

// ListDocuments returns all stored documents in unspecified order.
func (s *Store) ListDocuments(context.Context) ([]rag.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]rag.Document, 0, len(s.docs))
	for _, e := range s.docs {
		docs = append(docs, e.doc)
	}
	return docs, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close(context.Context) error { return nil }

// cosineSimilarity returns the cosine of the angle between a and b, clamped
// to [0,1]. Mismatched or zero-magnitude vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	default:
		return sim
	}
}
