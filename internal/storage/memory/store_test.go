package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis-search/ragline/internal/rag"
	"github.com/praxis-search/ragline/internal/storage/memory"
)

func doc(id string) rag.Document {
	return rag.Document{
		ID:       id,
		Content:  "content of " + id,
		Metadata: map[string]string{rag.MetaURL: "https://example.com/" + id},
	}
}

func TestAddThenSearchReturnsExactMatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Initialize(ctx))

	e := []float32{0.1, 0.7, 0.2, 0.5}
	require.NoError(t, store.AddDocument(ctx, doc("a"), e))
	require.NoError(t, store.AddDocument(ctx, doc("b"), []float32{0.9, 0.1, 0.1, 0.1}))

	results, err := store.Search(ctx, e, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6, "identical embedding scores ~1.0")
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchDescendingAndLimited(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	query := []float32{1, 0, 0}
	for i := 0; i < 6; i++ {
		// Increasing i drifts the vector away from the query.
		e := []float32{1, float32(i) * 0.4, 0}
		require.NoError(t, store.AddDocument(ctx, doc(fmt.Sprintf("d%d", i)), e))
	}

	results, err := store.Search(ctx, query, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
	assert.Equal(t, "d0", results[0].ID)
}

func TestSearchHasNoSimilarityFloor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.AddDocument(ctx, doc("orthogonal"), []float32{0, 1, 0}))

	results, err := store.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1, "ranking only: even zero-similarity documents are returned")
	assert.Equal(t, 0.0, results[0].Similarity)
}

func TestDeleteDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.AddDocument(ctx, doc("keep"), []float32{1, 0}))
	require.NoError(t, store.AddDocument(ctx, doc("drop"), []float32{0, 1}))

	require.NoError(t, store.DeleteDocument(ctx, "drop"))
	require.Error(t, store.DeleteDocument(ctx, "drop"), "second delete fails")

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep", docs[0].ID)

	_, err = store.GetDocument(ctx, "drop")
	require.Error(t, err)
}

func TestAddDocumentValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.Error(t, store.AddDocument(ctx, rag.Document{}, []float32{1}))
	require.Error(t, store.AddDocument(ctx, doc("x"), nil))
}

func TestAddDocumentReplacesExisting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.AddDocument(ctx, doc("a"), []float32{1, 0}))

	updated := doc("a")
	updated.Content = "updated content"
	require.NoError(t, store.AddDocument(ctx, updated, []float32{0, 1}))

	got, err := store.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "updated content", got.Content)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
