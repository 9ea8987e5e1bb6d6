package crawler

import (
	"context"

	"golang.org/x/time/rate"
)

// pacer enforces the per-origin crawl delay between fetches. A crawl is
// sequential by design, so a single limiter with burst 1 is enough.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(opts Options, robots RobotsRules) *pacer {
	delay := opts.CrawlDelay
	if robots.CrawlDelay > delay {
		delay = robots.CrawlDelay
	}
	if delay <= 0 {
		return &pacer{}
	}
	return &pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next fetch is due or the context finishes.
func (p *pacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// frontier is the BFS queue plus the seen set that keeps already-discovered
// URLs out of the queue.
type frontier struct {
	queue []frontierEntry
	seen  map[string]struct{}
}

type frontierEntry struct {
	url   string
	depth int
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]struct{})}
}

// Push enqueues url at depth unless it has been seen before.
func (f *frontier) Push(url string, depth int) bool {
	if url == "" {
		return false
	}
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	f.queue = append(f.queue, frontierEntry{url: url, depth: depth})
	return true
}

func (f *frontier) Pop() (frontierEntry, bool) {
	if len(f.queue) == 0 {
		return frontierEntry{}, false
	}
	entry := f.queue[0]
	f.queue = f.queue[1:]
	return entry, true
}

func (f *frontier) Len() int { return len(f.queue) }
