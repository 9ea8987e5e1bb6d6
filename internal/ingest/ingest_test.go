package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/crawler"
	"github.com/praxis-search/ragline/internal/rag"
)

type fakeCrawler struct {
	result crawler.Result
	err    error
}

func (f *fakeCrawler) Crawl(_ context.Context, _ string, _ crawler.Options) (crawler.Result, error) {
	return f.result, f.err
}

type fakeEmbedder struct {
	failOn map[string]bool
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn[text] {
		return nil, errors.New("embedding provider unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeStore struct {
	rag.Store
	docs    []rag.Document
	failAdd bool
}

func (f *fakeStore) AddDocument(_ context.Context, doc rag.Document, _ []float32) error {
	if f.failAdd {
		return errors.New("database unavailable")
	}
	f.docs = append(f.docs, doc)
	return nil
}

func newTestIngestor(c Crawler, e rag.Embedder, s rag.Store) *Ingestor {
	in := New(c, e, s, Config{ChunkSize: 10, ChunkOverlap: 2}, zap.NewNop())
	in.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	counter := 0
	in.newID = func() (string, error) {
		counter++
		return fmt.Sprintf("doc-%d", counter), nil
	}
	return in
}

func TestRunStoresChunkedPages(t *testing.T) {
	c := &fakeCrawler{result: crawler.Result{
		StartURL:     "https://example.com/",
		PagesVisited: 1,
		Pages: []crawler.Page{{
			URL:     "https://example.com/docs?v=2",
			Title:   "Docs",
			Content: "abcdefghij klmnop",
		}},
	}}
	store := &fakeStore{}
	in := newTestIngestor(c, &fakeEmbedder{}, store)

	report, err := in.Run(context.Background(), "https://example.com/", crawler.Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, len(store.docs), report.DocumentsStored)
	require.NotEmpty(t, store.docs)

	first := store.docs[0]
	assert.Equal(t, "doc-1", first.ID)
	assert.Equal(t, "https://example.com/docs?v=2", first.Metadata[rag.MetaURL])
	assert.Equal(t, "Docs", first.Metadata[rag.MetaTitle])
	assert.Equal(t, "2025-06-15T12:00:00Z", first.Metadata[rag.MetaTimestamp])
	assert.Equal(t, fmt.Sprintf("1/%d", len(store.docs)), first.Metadata[rag.MetaChunk])
}

func TestRunAccumulatesEmbedFailures(t *testing.T) {
	c := &fakeCrawler{result: crawler.Result{Pages: []crawler.Page{
		{URL: "https://example.com/a", Content: "good page"},
		{URL: "https://example.com/b", Content: "bad page"},
	}}}
	store := &fakeStore{}
	in := newTestIngestor(c, &fakeEmbedder{failOn: map[string]bool{"bad page": true}}, store)

	report, err := in.Run(context.Background(), "https://example.com/", crawler.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.DocumentsStored)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "embed https://example.com/b")
}

func TestRunAccumulatesStoreFailures(t *testing.T) {
	c := &fakeCrawler{result: crawler.Result{Pages: []crawler.Page{
		{URL: "https://example.com/a", Content: "some page"},
	}}}
	in := newTestIngestor(c, &fakeEmbedder{}, &fakeStore{failAdd: true})

	report, err := in.Run(context.Background(), "https://example.com/", crawler.Options{})
	require.NoError(t, err)
	assert.Zero(t, report.DocumentsStored)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "store https://example.com/a")
}

func TestRunCarriesCrawlErrors(t *testing.T) {
	c := &fakeCrawler{result: crawler.Result{
		Pages:  []crawler.Page{},
		Errors: []string{"fetch https://example.com/broken: connection refused"},
	}}
	in := newTestIngestor(c, &fakeEmbedder{}, &fakeStore{})

	report, err := in.Run(context.Background(), "https://example.com/", crawler.Options{})
	require.NoError(t, err)
	assert.Zero(t, report.DocumentsStored)
	assert.Equal(t, c.result.Errors, report.Errors)
}

func TestRunCrawlFailureIsFatal(t *testing.T) {
	c := &fakeCrawler{err: errors.New("start url is required")}
	in := newTestIngestor(c, &fakeEmbedder{}, &fakeStore{})

	_, err := in.Run(context.Background(), "", crawler.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl")
}

func TestRunSkipsBlankPages(t *testing.T) {
	c := &fakeCrawler{result: crawler.Result{Pages: []crawler.Page{
		{URL: "https://example.com/empty", Content: "   \n  "},
	}}}
	e := &fakeEmbedder{}
	in := newTestIngestor(c, e, &fakeStore{})

	report, err := in.Run(context.Background(), "https://example.com/", crawler.Options{})
	require.NoError(t, err)
	assert.Zero(t, report.DocumentsStored)
	assert.Zero(t, e.calls)
	assert.Empty(t, report.Errors)
}
