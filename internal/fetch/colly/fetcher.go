// Package collyfetch implements plain HTTP page retrieval using gocolly.
package collyfetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/praxis-search/ragline/internal/fetch"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements fetch.Getter using a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher with a pooled transport shared across fetches.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	// Robots policy is enforced by the crawl scheduler before a URL reaches
	// this fetcher, so the collector must not second-guess it.
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(newHTTPTransport())

	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Get fetches a single URL and returns the raw response.
func (f *Fetcher) Get(ctx context.Context, url string) (fetch.RawPage, error) {
	var (
		result   fetch.RawPage
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		result = fetch.RawPage{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result = fetch.RawPage{
				URL:        url,
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
			}
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fetch.RawPage{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		// A non-2xx response surfaces through OnError with the status still
		// captured; report it as a status, not a transport failure.
		if result.StatusCode >= 400 {
			return result, nil
		}
		if err != nil {
			return fetch.RawPage{}, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return fetch.RawPage{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
