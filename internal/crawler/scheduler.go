package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/metrics"
)

// Scheduler drives a breadth-first crawl: it owns the frontier, consults the
// policy engine, paces fetches, and delegates page retrieval to the Scraper.
type Scheduler struct {
	scraper   Scraper
	sink      PageSink
	policy    *policyClient
	userAgent string
	logger    *zap.Logger
}

// NewScheduler builds a Scheduler. sink may be nil when page archival is
// disabled.
func NewScheduler(scraper Scraper, sink PageSink, userAgent string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = "ragline-bot/1.0"
	}
	return &Scheduler{
		scraper:   scraper,
		sink:      sink,
		policy:    newPolicyClient(userAgent, logger),
		userAgent: userAgent,
		logger:    logger,
	}
}

// Crawl runs one crawl session rooted at startURL. Per-page failures are
// recorded in Result.Errors and never abort the run; the returned error is
// non-nil only when the input itself is invalid.
func (s *Scheduler) Crawl(ctx context.Context, startURL string, opts Options) (Result, error) {
	base, err := ParseStartURL(startURL)
	if err != nil {
		return Result{}, err
	}
	filters, err := compileFilters(opts)
	if err != nil {
		return Result{}, err
	}
	opts = withDefaults(opts)

	start := time.Now()
	result := Result{
		StartURL: startURL,
		Pages:    []Page{},
		Errors:   []string{},
	}
	finish := func() Result {
		result.PagesVisited = len(result.Pages)
		result.CrawlTimeMs = time.Since(start).Milliseconds()
		metrics.ObserveCrawl(time.Since(start))
		return result
	}

	var robots RobotsRules
	if opts.RespectRobots {
		robots = s.policy.Robots(ctx, base)
		if !robots.Allowed(base.Path) {
			// The one case where the whole operation short-circuits: a seed
			// the site has asked us not to fetch.
			result.Errors = append(result.Errors,
				fmt.Sprintf("start url %s is disallowed by robots.txt", startURL))
			return finish(), nil
		}
	}

	pace := newPacer(opts, robots)
	front := newFrontier()
	front.Push(startURL, 0)

	if opts.FollowSitemap {
		for _, loc := range s.policy.Sitemap(ctx, base) {
			if u, err := url.Parse(loc); err == nil && sameHost(base, u) {
				front.Push(loc, 1)
			}
		}
	}

	for len(result.Pages) < opts.MaxPages {
		entry, ok := front.Pop()
		if !ok {
			break
		}
		if entry.depth > opts.MaxDepth {
			continue
		}
		if !filters.match(entry.url) {
			continue
		}
		entryURL, err := url.Parse(entry.url)
		if err != nil {
			continue
		}
		if opts.RespectRobots && !robots.Allowed(entryURL.Path) {
			continue
		}

		if err := pace.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("crawl interrupted: %v", err))
			break
		}

		site := metrics.SanitizeSite(entry.url)
		scraped, err := s.scraper.Scrape(ctx, entry.url)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch %s: %v", entry.url, err))
			metrics.ObservePageError(site)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		metrics.ObservePage(site)

		links := s.normalizeLinks(entryURL, scraped.Links)
		page := Page{
			URL:     entry.url,
			Title:   scraped.Title,
			Content: scraped.Content,
			Depth:   entry.depth,
			Links:   links,
		}
		result.Pages = append(result.Pages, page)

		if s.sink != nil {
			if err := s.sink.SavePage(ctx, page); err != nil {
				s.logger.Warn("page archive failed", zap.String("url", page.URL), zap.Error(err))
			}
		}

		if entry.depth < opts.MaxDepth {
			for _, link := range links {
				if child, err := url.Parse(link); err == nil && sameHost(base, child) {
					front.Push(link, entry.depth+1)
				}
			}
		}
	}

	s.logger.Info("crawl finished",
		zap.String("start_url", startURL),
		zap.Int("pages", len(result.Pages)),
		zap.Int("errors", len(result.Errors)),
	)
	return finish(), nil
}

// normalizeLinks resolves raw hrefs against the page URL, preserving query
// strings and fragments, and drops anything unparseable.
func (s *Scheduler) normalizeLinks(pageURL *url.URL, hrefs []string) []string {
	links := make([]string, 0, len(hrefs))
	seen := make(map[string]struct{}, len(hrefs))
	for _, href := range hrefs {
		resolved, err := ResolveLink(pageURL, href)
		if err != nil {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	}
	return links
}

func withDefaults(opts Options) Options {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.CrawlDelay <= 0 {
		opts.CrawlDelay = DefaultCrawlDelay
	}
	return opts
}

// urlFilters gates frontier entries on the include/exclude pattern sets.
type urlFilters struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

func compileFilters(opts Options) (urlFilters, error) {
	var f urlFilters
	for _, p := range opts.IncludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return urlFilters{}, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		f.include = append(f.include, re)
	}
	for _, p := range opts.ExcludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return urlFilters{}, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		f.exclude = append(f.exclude, re)
	}
	return f, nil
}

// match reports whether url passes the filters: excluded never, and when a
// non-empty include set exists, only URLs matching at least one entry.
func (f urlFilters) match(url string) bool {
	for _, re := range f.exclude {
		if re.MatchString(url) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
