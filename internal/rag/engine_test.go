package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("empty input")
	}
	return s.vec, s.err
}

type stubCompleter struct {
	answer string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.answer, s.err
}

type stubStore struct {
	Store
	results []SearchResult
	err     error
}

func (s *stubStore) Search(context.Context, []float32, int) ([]SearchResult, error) {
	return s.results, s.err
}

func docWithURL(id, content, url string, sim float64) SearchResult {
	return SearchResult{
		Document: Document{
			ID:      id,
			Content: content,
			Metadata: map[string]string{
				MetaURL:       url,
				MetaTimestamp: ageTS(0),
			},
		},
		Similarity: sim,
	}
}

func newTestEngine(store Store, completer Completer) *Engine {
	return NewEngine(
		&stubEmbedder{vec: make([]float32, 4)},
		completer,
		store,
		NewCalculatorAt(fixedClock),
		EngineConfig{SimilarityGate: 0.3, TopK: 5},
		zap.NewNop(),
	)
}

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(&stubStore{}, &stubCompleter{})
	_, err := engine.Answer(context.Background(), "   ")
	require.Error(t, err)
}

func TestAnswerEmptySearchTerminatesLow(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{answer: "should not be called"}
	engine := newTestEngine(&stubStore{results: nil}, completer)

	resp, err := engine.Answer(context.Background(), "what is the policy?")
	require.NoError(t, err)
	assert.Equal(t, LevelLow, resp.ConfidenceLevel)
	assert.Equal(t, 0.0, resp.Confidence)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, completer.prompt, "completer must not run when search is empty")
	assert.Contains(t, resp.Answer, "don't have enough information")
}

func TestAnswerGateFiltersEverything(t *testing.T) {
	t.Parallel()

	store := &stubStore{results: []SearchResult{
		docWithURL("d1", "low relevance", "https://a.example.com/1", 0.21),
		docWithURL("d2", "lower relevance", "https://b.example.com/2", 0.12),
	}}
	completer := &stubCompleter{answer: "should not be called"}
	engine := newTestEngine(store, completer)

	resp, err := engine.Answer(context.Background(), "unrelated question")
	require.NoError(t, err)
	assert.Equal(t, LevelLow, resp.ConfidenceLevel)
	// Confidence is the best raw similarity among candidates, not a composite.
	assert.InDelta(t, 0.21, resp.Confidence, 1e-9)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, completer.prompt)
}

func TestAnswerHappyPath(t *testing.T) {
	t.Parallel()

	store := &stubStore{results: []SearchResult{
		docWithURL("d2", "second chunk", "https://example.com/page-two", 0.82),
		docWithURL("d1", "first chunk", "https://example.com/page-one?tab=2#frag", 0.91),
		docWithURL("d3", "noise", "https://example.com/noise", 0.05),
	}}
	completer := &stubCompleter{answer: "the synthesized answer"}
	engine := newTestEngine(store, completer)

	resp, err := engine.Answer(context.Background(), "what does the page say?")
	require.NoError(t, err)
	assert.Equal(t, "the synthesized answer", resp.Answer)

	// Sources stay full URLs in descending-similarity order; no domain collapsing.
	require.Equal(t, []string{
		"https://example.com/page-one?tab=2#frag",
		"https://example.com/page-two",
	}, resp.Sources)
	require.Len(t, resp.Chunks, 2)
	assert.Equal(t, "first chunk", resp.Chunks[0].Content)

	// The prompt concatenates kept content best-first and carries the
	// insufficient-context instruction.
	assert.Less(t,
		strings.Index(completer.prompt, "first chunk"),
		strings.Index(completer.prompt, "second chunk"),
	)
	assert.Contains(t, completer.prompt, "does not contain enough information")
	assert.NotContains(t, completer.prompt, "noise")
}

func TestAnswerDistinctPathsStayDistinct(t *testing.T) {
	t.Parallel()

	store := &stubStore{results: []SearchResult{
		docWithURL("d1", "a", "https://docs.example.com/guide/install", 0.9),
		docWithURL("d2", "b", "https://docs.example.com/guide/configure", 0.8),
		docWithURL("d3", "c", "https://docs.example.com/guide/deploy", 0.7),
	}}
	engine := newTestEngine(store, &stubCompleter{answer: "ok"})

	resp, err := engine.Answer(context.Background(), "how do I set this up?")
	require.NoError(t, err)
	require.Len(t, resp.Sources, 3)
	seen := map[string]bool{}
	for _, s := range resp.Sources {
		seen[s] = true
		assert.True(t, strings.HasPrefix(s, "https://docs.example.com/guide/"))
	}
	assert.Len(t, seen, 3, "three distinct paths must yield three distinct sources")
}

func TestAnswerSourceFallbackOrder(t *testing.T) {
	t.Parallel()

	store := &stubStore{results: []SearchResult{
		{
			Document: Document{
				ID:       "doc-id-only",
				Content:  "x",
				Metadata: map[string]string{MetaTimestamp: ageTS(0)},
			},
			Similarity: 0.8,
		},
		{
			Document: Document{
				ID:       "doc-with-source",
				Content:  "y",
				Metadata: map[string]string{MetaSource: "manual-upload.txt", MetaTimestamp: ageTS(0)},
			},
			Similarity: 0.7,
		},
	}}
	engine := newTestEngine(store, &stubCompleter{answer: "ok"})

	resp, err := engine.Answer(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-id-only", "manual-upload.txt"}, resp.Sources)
}

func TestAnswerPropagatesCollaboratorErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend down")
	engine := newTestEngine(&stubStore{err: boom}, &stubCompleter{})
	_, err := engine.Answer(context.Background(), "q")
	require.ErrorIs(t, err, boom)

	engine = newTestEngine(
		&stubStore{results: []SearchResult{docWithURL("d", "c", "https://e.com/1", 0.9)}},
		&stubCompleter{err: boom},
	)
	_, err = engine.Answer(context.Background(), "q")
	require.ErrorIs(t, err, boom)
}
