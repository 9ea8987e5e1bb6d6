package crawler

import (
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// ParseRobots extracts the rules from the User-agent: * block of a robots.txt
// body. Blocks for specific agents are ignored. Unknown directives inside the
// wildcard block are skipped.
func ParseRobots(text string) RobotsRules {
	var rules RobotsRules
	inWildcard := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			// A new user-agent line opens a block; only the wildcard block
			// applies to us.
			inWildcard = value == "*"
		case "disallow":
			if inWildcard && value != "" {
				rules.Disallow = append(rules.Disallow, value)
			}
		case "allow":
			if inWildcard && value != "" {
				rules.Allow = append(rules.Allow, value)
			}
		case "crawl-delay":
			if inWildcard {
				if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
					rules.CrawlDelay = time.Duration(secs * float64(time.Second))
				}
			}
		}
	}
	return rules
}

// Allowed reports whether path may be fetched under the rules. A path is
// blocked when some Disallow prefix matches it, unless any Allow prefix also
// matches. The allow override applies regardless of relative specificity,
// which diverges from the most-specific-match convention on purpose: it
// matches the rule sets this crawler was built against.
func (r RobotsRules) Allowed(path string) bool {
	if path == "" {
		path = "/"
	}
	blocked := false
	for _, prefix := range r.Disallow {
		if strings.HasPrefix(path, prefix) {
			blocked = true
			break
		}
	}
	if !blocked {
		return true
	}
	for _, prefix := range r.Allow {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ParseSitemap extracts every <loc> value from a sitemap document. It handles
// both <urlset> and <sitemapindex> payloads since <loc> appears in each.
func ParseSitemap(xml string) ([]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, err
	}
	var urls []string
	for _, el := range doc.FindElements("//loc") {
		if loc := strings.TrimSpace(el.Text()); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}
