package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScraper struct {
	pages map[string]ScrapedPage
	fail  map[string]error
	calls []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (ScrapedPage, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.fail[url]; ok {
		return ScrapedPage{}, err
	}
	page, ok := f.pages[url]
	if !ok {
		return ScrapedPage{}, fmt.Errorf("no such page")
	}
	return page, nil
}

func fastOpts() Options {
	return Options{CrawlDelay: time.Millisecond}
}

func newTestScheduler(scraper Scraper) *Scheduler {
	return NewScheduler(scraper, nil, "test-bot/1.0", zap.NewNop())
}

func TestCrawlBFSInvariants(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{pages: map[string]ScrapedPage{
		"https://site.test/": {
			Title:   "Home",
			Content: "root",
			Links:   []string{"/a", "/b", "https://elsewhere.test/off-domain"},
		},
		"https://site.test/a":      {Title: "A", Content: "a", Links: []string{"/a/deep", "/"}},
		"https://site.test/b":      {Title: "B", Content: "b", Links: []string{"/a"}},
		"https://site.test/a/deep": {Title: "Deep", Content: "d", Links: []string{"/a/deeper"}},
	}}

	opts := fastOpts()
	opts.MaxDepth = 2
	result, err := newTestScheduler(scraper).Crawl(context.Background(), "https://site.test/", opts)
	require.NoError(t, err)

	require.Equal(t, len(result.Pages), result.PagesVisited)
	require.Len(t, result.Pages, 4)

	seen := map[string]bool{}
	for _, p := range result.Pages {
		assert.False(t, seen[p.URL], "url %s repeated", p.URL)
		seen[p.URL] = true
		assert.LessOrEqual(t, p.Depth, 2)
	}
	// BFS ordering: the root precedes its children.
	assert.Equal(t, "https://site.test/", result.Pages[0].URL)
	assert.Equal(t, 0, result.Pages[0].Depth)

	// The off-domain link is normalized into Links but never fetched.
	assert.Contains(t, result.Pages[0].Links, "https://elsewhere.test/off-domain")
	assert.NotContains(t, scraper.calls, "https://elsewhere.test/off-domain")
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	t.Parallel()

	pages := map[string]ScrapedPage{}
	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("/p%d", i))
		pages[fmt.Sprintf("https://site.test/p%d", i)] = ScrapedPage{Content: "x"}
	}
	pages["https://site.test/"] = ScrapedPage{Content: "root", Links: links}

	opts := fastOpts()
	opts.MaxPages = 3
	result, err := newTestScheduler(&fakeScraper{pages: pages}).Crawl(context.Background(), "https://site.test/", opts)
	require.NoError(t, err)
	assert.Equal(t, 3, result.PagesVisited)
	assert.Len(t, result.Pages, 3)
}

func TestCrawlMaxDepthStopsExpansion(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{pages: map[string]ScrapedPage{
		"https://site.test/":   {Content: "root", Links: []string{"/l1"}},
		"https://site.test/l1": {Content: "1", Links: []string{"/l2"}},
		"https://site.test/l2": {Content: "2", Links: []string{"/l3"}},
		"https://site.test/l3": {Content: "3"},
	}}

	opts := fastOpts()
	opts.MaxDepth = 1
	result, err := newTestScheduler(scraper).Crawl(context.Background(), "https://site.test/", opts)
	require.NoError(t, err)
	assert.Len(t, result.Pages, 2, "depth 1 crawl fetches the root and its children only")
}

func TestCrawlPartialFailure(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		pages: map[string]ScrapedPage{
			"https://site.test/":   {Content: "root", Links: []string{"/ok", "/broken"}},
			"https://site.test/ok": {Content: "fine"},
		},
		fail: map[string]error{
			"https://site.test/broken": errors.New("connection reset"),
		},
	}

	result, err := newTestScheduler(scraper).Crawl(context.Background(), "https://site.test/", fastOpts())
	require.NoError(t, err)
	assert.Len(t, result.Pages, 2, "one page failing must not abort the crawl")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "https://site.test/broken")
	assert.Contains(t, result.Errors[0], "connection reset")
}

func TestCrawlIncludeExcludePatterns(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{pages: map[string]ScrapedPage{
		"https://site.test/docs/":        {Content: "docs", Links: []string{"/docs/a", "/blog/b", "/docs/skip-me"}},
		"https://site.test/docs/a":       {Content: "a"},
		"https://site.test/blog/b":       {Content: "b"},
		"https://site.test/docs/skip-me": {Content: "s"},
	}}

	opts := fastOpts()
	opts.IncludePatterns = []string{`/docs/`}
	opts.ExcludePatterns = []string{`skip-me`}
	result, err := newTestScheduler(scraper).Crawl(context.Background(), "https://site.test/docs/", opts)
	require.NoError(t, err)

	var urls []string
	for _, p := range result.Pages {
		urls = append(urls, p.URL)
	}
	assert.ElementsMatch(t, []string{"https://site.test/docs/", "https://site.test/docs/a"}, urls)
}

func TestCrawlInvalidInputs(t *testing.T) {
	t.Parallel()

	sched := newTestScheduler(&fakeScraper{})

	_, err := sched.Crawl(context.Background(), "not a url", fastOpts())
	require.Error(t, err)

	opts := fastOpts()
	opts.IncludePatterns = []string{"["}
	_, err = sched.Crawl(context.Background(), "https://site.test/", opts)
	require.Error(t, err)
}

func TestCrawlRobotsBlockedStartURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	scraper := &fakeScraper{}
	opts := fastOpts()
	opts.RespectRobots = true
	result, err := newTestScheduler(scraper).Crawl(context.Background(), srv.URL+"/private/page", opts)
	require.NoError(t, err)

	assert.Zero(t, result.PagesVisited)
	assert.Empty(t, result.Pages)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "disallowed by robots.txt")
	assert.Empty(t, scraper.calls, "no page may be fetched when the seed is disallowed")
}

func TestCrawlRobotsSkipsDisallowedChildren(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /admin\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	scraper := &fakeScraper{pages: map[string]ScrapedPage{
		srv.URL + "/":     {Content: "root", Links: []string{"/admin/panel", "/open"}},
		srv.URL + "/open": {Content: "open"},
	}}

	opts := fastOpts()
	opts.RespectRobots = true
	result, err := newTestScheduler(scraper).Crawl(context.Background(), srv.URL+"/", opts)
	require.NoError(t, err)
	assert.Len(t, result.Pages, 2)
	assert.NotContains(t, scraper.calls, srv.URL+"/admin/panel")
}

func TestCrawlFollowSitemap(t *testing.T) {
	t.Parallel()

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			fmt.Fprintf(w, `<urlset>
  <url><loc>%s/from-sitemap</loc></url>
  <url><loc>https://other.test/ignored</loc></url>
</urlset>`, srvURL)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	srvURL = srv.URL

	scraper := &fakeScraper{pages: map[string]ScrapedPage{
		srv.URL + "/":             {Content: "root"},
		srv.URL + "/from-sitemap": {Content: "listed"},
	}}

	opts := fastOpts()
	opts.FollowSitemap = true
	result, err := newTestScheduler(scraper).Crawl(context.Background(), srv.URL+"/", opts)
	require.NoError(t, err)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, srv.URL+"/from-sitemap", result.Pages[1].URL)
	assert.Equal(t, 1, result.Pages[1].Depth, "sitemap URLs enter the frontier at depth 1")
	assert.NotContains(t, scraper.calls, "https://other.test/ignored")
}

func TestCrawlHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{pages: map[string]ScrapedPage{
		"https://site.test/":  {Content: "root", Links: []string{"/a", "/b", "/c"}},
		"https://site.test/a": {Content: "a"},
		"https://site.test/b": {Content: "b"},
		"https://site.test/c": {Content: "c"},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{CrawlDelay: 50 * time.Millisecond}
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()
	result, err := newTestScheduler(scraper).Crawl(ctx, "https://site.test/", opts)
	require.NoError(t, err, "cancellation yields a partial result, not an error")
	assert.Less(t, len(result.Pages), 4)
	assert.NotEmpty(t, result.Errors)
}
