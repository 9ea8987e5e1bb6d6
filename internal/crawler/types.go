// Package crawler implements the policy-gated BFS crawl engine: robots and
// sitemap handling, link normalization, frontier management, and pacing.
package crawler

import (
	"context"
	"time"
)

// Default crawl limits applied when Options leaves them zero.
const (
	DefaultMaxDepth   = 2
	DefaultMaxPages   = 25
	DefaultCrawlDelay = time.Second
)

// Options captures the per-crawl knobs passed through from the caller.
type Options struct {
	MaxDepth        int           `json:"max_depth"`
	MaxPages        int           `json:"max_pages"`
	IncludePatterns []string      `json:"include_patterns"`
	ExcludePatterns []string      `json:"exclude_patterns"`
	RespectRobots   bool          `json:"respect_robots"`
	FollowSitemap   bool          `json:"follow_sitemap"`
	CrawlDelay      time.Duration `json:"crawl_delay"`
}

// Page is produced for each successfully fetched URL. It is never mutated
// after creation.
type Page struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Depth   int      `json:"depth"`
	Links   []string `json:"links"`
}

// Result summarizes one crawl run. PagesVisited always equals len(Pages);
// per-page failures land in Errors and never abort the run.
type Result struct {
	StartURL     string   `json:"start_url"`
	PagesVisited int      `json:"pages_visited"`
	Pages        []Page   `json:"pages"`
	Errors       []string `json:"errors"`
	CrawlTimeMs  int64    `json:"crawl_time_ms"`
}

// ScrapedPage is what the fetch collaborator returns for a single URL.
type ScrapedPage struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Links     []string  `json:"links"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Scraper fetches and renders a single page. A non-nil error is a per-page
// failure signal; the scheduler records it and moves on.
type Scraper interface {
	Scrape(ctx context.Context, url string) (ScrapedPage, error)
}

// PageSink receives successfully fetched pages for optional archival.
type PageSink interface {
	SavePage(ctx context.Context, page Page) error
}

// RobotsRules holds the directives parsed from the User-agent: * block of a
// robots.txt file. Parsed once per crawl, read-only afterward.
type RobotsRules struct {
	Disallow   []string
	Allow      []string
	CrawlDelay time.Duration
}
