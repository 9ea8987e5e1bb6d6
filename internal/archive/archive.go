// Package archive persists raw crawled pages to the local filesystem so a
// crawl can be inspected or re-ingested without refetching.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/crawler"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Sink writes one JSON snapshot per page under a date-partitioned directory.
type Sink struct {
	baseDir string
	now     func() time.Time
	logger  *zap.Logger
}

// snapshot is the on-disk page format.
type snapshot struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Depth      int      `json:"depth"`
	Links      []string `json:"links"`
	ArchivedAt string   `json:"archived_at"`
}

// New creates a Sink rooted at baseDir, creating the directory if needed and
// verifying it is writable.
func New(baseDir string, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("archive base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir %s: %w", baseDir, err)
	}
	probe := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("archive dir is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{baseDir: baseDir, now: time.Now, logger: logger}, nil
}

// SavePage writes the page snapshot. Archival is best-effort from the
// scheduler's point of view, but the sink itself reports every failure.
func (s *Sink) SavePage(ctx context.Context, page crawler.Page) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	now := s.now().UTC()
	target := filepath.Join(s.baseDir, now.Format("2006-01-02"), pageBasename(page.URL)+".json")
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create archive date dir: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot{
		URL:        page.URL,
		Title:      page.Title,
		Content:    page.Content,
		Depth:      page.Depth,
		Links:      page.Links,
		ArchivedAt: now.Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page snapshot: %w", err)
	}
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot %s: %w", target, err)
	}
	s.logger.Debug("page archived", zap.String("url", page.URL), zap.String("path", target))
	return nil
}

// pageBasename derives a stable, filesystem-safe name from the page URL:
// host and path for readability, a hash suffix for uniqueness (two URLs that
// differ only in query or fragment must not collide).
func pageBasename(raw string) string {
	digest := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(digest[:])[:16]

	u, err := url.Parse(raw)
	if err != nil {
		return hash
	}
	host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		p = "root"
	}
	p = invalidFilenameChars.ReplaceAllString(p, "_")
	return fmt.Sprintf("%s_%s_%s", host, p, hash)
}
