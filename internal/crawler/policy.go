package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const policyBodyLimit = 1 << 20 // robots.txt / sitemap.xml read cap

// policyClient fetches and parses per-host crawl policy artifacts.
type policyClient struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

func newPolicyClient(userAgent string, logger *zap.Logger) *policyClient {
	return &policyClient{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Robots fetches and parses <host>/robots.txt. A fetch failure or non-200
// response yields empty (allow-everything) rules: an unreachable robots file
// must not stall the crawl.
func (p *policyClient) Robots(ctx context.Context, base *url.URL) RobotsRules {
	body, err := p.fetch(ctx, base, "/robots.txt")
	if err != nil {
		p.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", base.Host), zap.Error(err))
		return RobotsRules{}
	}
	return ParseRobots(body)
}

// Sitemap fetches and parses <host>/sitemap.xml, returning the listed URLs.
func (p *policyClient) Sitemap(ctx context.Context, base *url.URL) []string {
	body, err := p.fetch(ctx, base, "/sitemap.xml")
	if err != nil {
		p.logger.Debug("sitemap fetch failed",
			zap.String("host", base.Host), zap.Error(err))
		return nil
	}
	urls, err := ParseSitemap(body)
	if err != nil {
		p.logger.Warn("sitemap parse failed",
			zap.String("host", base.Host), zap.Error(err))
		return nil
	}
	return urls
}

func (p *policyClient) fetch(ctx context.Context, base *url.URL, path string) (string, error) {
	target := *base
	target.Path = path
	target.RawQuery = ""
	target.Fragment = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			p.logger.Debug("close policy response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, policyBodyLimit))
	if err != nil {
		return "", fmt.Errorf("read %s body: %w", path, err)
	}
	return string(body), nil
}
