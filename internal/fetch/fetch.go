// Package fetch turns raw HTTP responses into scraped pages and decides when
// a page needs a headless browser to render.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/crawler"
)

// RawPage is an unparsed fetch result.
type RawPage struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Getter performs a plain HTTP fetch of a single URL.
type Getter interface {
	Get(ctx context.Context, url string) (RawPage, error)
}

// Renderer executes JavaScript and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close()
}

// Scraper combines a plain fetcher with an optional headless renderer,
// promoting pages the heuristic flags as script-rendered. It implements
// crawler.Scraper.
type Scraper struct {
	getter    Getter
	renderer  Renderer
	heuristic *Heuristic
	logger    *zap.Logger
	now       func() time.Time
}

// NewScraper builds a Scraper. renderer may be nil to disable promotion.
func NewScraper(getter Getter, renderer Renderer, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		getter:    getter,
		renderer:  renderer,
		heuristic: NewHeuristic(0),
		logger:    logger,
		now:       time.Now,
	}
}

// Scrape fetches url, escalating to the renderer when the plain response
// looks like an unrendered application shell.
func (s *Scraper) Scrape(ctx context.Context, url string) (crawler.ScrapedPage, error) {
	raw, err := s.getter.Get(ctx, url)
	if err != nil {
		return crawler.ScrapedPage{}, err
	}
	if raw.StatusCode >= 400 {
		return crawler.ScrapedPage{}, fmt.Errorf("http status %d", raw.StatusCode)
	}

	body := raw.Body
	if s.renderer != nil && s.heuristic.ShouldPromote(raw) {
		s.logger.Debug("promoting to headless render", zap.String("url", url))
		html, renderErr := s.renderer.Render(ctx, url)
		if renderErr != nil {
			// Fall back to whatever the plain fetch produced.
			s.logger.Warn("headless render failed", zap.String("url", url), zap.Error(renderErr))
		} else {
			body = []byte(html)
		}
	}

	page, err := ParsePage(raw.URL, body)
	if err != nil {
		return crawler.ScrapedPage{}, err
	}
	page.ScrapedAt = s.now().UTC()
	return page, nil
}

// ParsePage extracts the title, visible text, and out-links from an HTML
// document. Script and style contents are excluded from the text.
func ParsePage(pageURL string, body []byte) (crawler.ScrapedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.ScrapedPage{}, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links = append(links, strings.TrimSpace(href))
		}
	})

	content := doc.Find("body").Text()
	if content == "" {
		content = doc.Text()
	}

	return crawler.ScrapedPage{
		URL:     pageURL,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Content: collapseWhitespace(content),
		Links:   links,
	}, nil
}

// collapseWhitespace squeezes runs of whitespace down to single spaces so
// chunking operates on prose, not markup indentation.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
