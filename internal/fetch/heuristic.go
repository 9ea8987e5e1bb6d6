package fetch

import (
	"bytes"
	"strings"
)

// Heuristic flags responses that look like script-rendered application
// shells, where a plain fetch yields little or no usable text.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a Heuristic. A zero threshold selects the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// ShouldPromote reports whether a headless render is likely to recover more
// content than the plain response contains.
func (h *Heuristic) ShouldPromote(raw RawPage) bool {
	if raw.StatusCode != 200 {
		return false
	}
	body := raw.Body
	if len(body) == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script tags cover at least a quarter of
// the document.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	searchPos := 0

	for {
		relStart := strings.Index(lower[searchPos:], openTag)
		if relStart == -1 {
			break
		}
		start := searchPos + relStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Malformed tag; count the rest of the document.
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relEnd := strings.Index(lower[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			// Script never closes; count the rest.
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}

		coverage += next - start
		searchPos = next
	}

	if coverage == 0 {
		return false
	}
	return coverage*100/total >= 25
}
