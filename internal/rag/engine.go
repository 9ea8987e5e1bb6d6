package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/metrics"
)

// EngineConfig tunes the query pipeline.
type EngineConfig struct {
	// SimilarityGate is the minimum raw similarity a result must clear before
	// it participates in confidence scoring and context assembly. The gate
	// runs before the composite score so source-count and diversity bonuses
	// cannot inflate confidence when nothing found is actually relevant.
	SimilarityGate float64
	// TopK caps how many results are requested from the store.
	TopK int
}

// fallbackAnswer is returned whenever retrieval produces nothing usable.
// Returning a fixed honest refusal instead of synthesizing is deliberate.
const fallbackAnswer = "I don't have enough information to answer that question."

// Engine orchestrates a query: embed, search, gate, score, assemble, answer.
type Engine struct {
	embedder  Embedder
	completer Completer
	store     Store
	calc      *Calculator
	cfg       EngineConfig
	logger    *zap.Logger
}

// NewEngine wires the query pipeline from its collaborators.
func NewEngine(embedder Embedder, completer Completer, store Store, calc *Calculator, cfg EngineConfig, logger *zap.Logger) *Engine {
	if calc == nil {
		calc = NewCalculator()
	}
	if cfg.SimilarityGate <= 0 {
		cfg.SimilarityGate = 0.3
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		embedder:  embedder,
		completer: completer,
		store:     store,
		calc:      calc,
		cfg:       cfg,
		logger:    logger,
	}
}

// queryState is threaded through the pipeline stages.
type queryState struct {
	query     string
	embedding []float32
	results   []SearchResult
	kept      []SearchResult
	resp      Response
	done      bool
}

// stage is one step of the query pipeline. Stages share a single signature
// so the pipeline is an ordered slice folded with short-circuit on failure.
type stage func(ctx context.Context, st *queryState) error

// Answer runs the full query pipeline and returns the assembled response.
func (e *Engine) Answer(ctx context.Context, query string) (Response, error) {
	if strings.TrimSpace(query) == "" {
		return Response{}, fmt.Errorf("query must not be empty")
	}

	start := time.Now()
	st := &queryState{query: query}
	stages := []stage{
		e.embedQuery,
		e.searchStore,
		e.applyGate,
		e.scoreConfidence,
		e.synthesize,
	}
	for _, run := range stages {
		if err := run(ctx, st); err != nil {
			return Response{}, err
		}
		if st.done {
			break
		}
	}

	metrics.ObserveQuery(string(st.resp.ConfidenceLevel), time.Since(start))
	e.logger.Debug("query answered",
		zap.String("level", string(st.resp.ConfidenceLevel)),
		zap.Float64("confidence", st.resp.Confidence),
		zap.Int("sources", len(st.resp.Sources)),
	)
	return st.resp, nil
}

func (e *Engine) embedQuery(ctx context.Context, st *queryState) error {
	embedding, err := e.embedder.Embed(ctx, st.query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}
	st.embedding = embedding
	return nil
}

func (e *Engine) searchStore(ctx context.Context, st *queryState) error {
	results, err := e.store.Search(ctx, st.embedding, e.cfg.TopK)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		st.resp = Response{
			Answer:                fallbackAnswer,
			Confidence:            0,
			ConfidenceLevel:       LevelLow,
			ConfidenceExplanation: "No relevant sources were found for this query.",
			Sources:               []string{},
			Chunks:                []Chunk{},
		}
		st.done = true
		return nil
	}
	st.results = results
	return nil
}

// applyGate drops results below the similarity floor. When everything is
// filtered out, the reported confidence is the best raw similarity among the
// candidates, not a composite score.
func (e *Engine) applyGate(_ context.Context, st *queryState) error {
	kept := make([]SearchResult, 0, len(st.results))
	maxRaw := 0.0
	for _, r := range st.results {
		if r.Similarity > maxRaw {
			maxRaw = r.Similarity
		}
		if r.Similarity >= e.cfg.SimilarityGate {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		e.logger.Debug("all candidates below similarity gate",
			zap.Float64("gate", e.cfg.SimilarityGate),
			zap.Float64("max_similarity", maxRaw),
		)
		st.resp = Response{
			Answer:                fallbackAnswer,
			Confidence:            maxRaw,
			ConfidenceLevel:       LevelLow,
			ConfidenceExplanation: "The retrieved sources were not similar enough to the query to be usable.",
			Sources:               []string{},
			Chunks:                []Chunk{},
		}
		st.done = true
		return nil
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Similarity > kept[j].Similarity })
	st.kept = kept
	return nil
}

func (e *Engine) scoreConfidence(_ context.Context, st *queryState) error {
	input := ConfidenceInput{
		SimilarityScores: make([]float64, 0, len(st.kept)),
		Timestamps:       make([]string, 0, len(st.kept)),
		Sources:          make([]string, 0, len(st.kept)),
	}
	for _, r := range st.kept {
		input.SimilarityScores = append(input.SimilarityScores, r.Similarity)
		input.Timestamps = append(input.Timestamps, r.Metadata[MetaTimestamp])
		input.Sources = append(input.Sources, SourceRef(r.Document))
	}
	conf := e.calc.Calculate(input)
	st.resp.Confidence = conf.Score
	st.resp.ConfidenceLevel = conf.Level
	st.resp.ConfidenceExplanation = conf.Explanation
	return nil
}

func (e *Engine) synthesize(ctx context.Context, st *queryState) error {
	prompt := buildPrompt(st.query, st.kept)
	answer, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	sources := make([]string, 0, len(st.kept))
	chunks := make([]Chunk, 0, len(st.kept))
	for _, r := range st.kept {
		sources = append(sources, SourceRef(r.Document))
		chunks = append(chunks, Chunk{Content: r.Content, Similarity: r.Similarity})
	}
	st.resp.Answer = answer
	st.resp.Sources = sources
	st.resp.Chunks = chunks
	return nil
}

// buildPrompt concatenates surviving documents in descending-similarity order
// and instructs the answerer to admit when the context is insufficient.
func buildPrompt(query string, kept []SearchResult) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain enough information to answer, say so explicitly instead of guessing.\n\n")
	b.WriteString("Context:\n")
	for i, r := range kept {
		fmt.Fprintf(&b, "--- Source %d (%s) ---\n", i+1, SourceRef(r.Document))
		b.WriteString(r.Content)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\n", query)
	return b.String()
}
