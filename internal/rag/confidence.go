package rag

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Factor weights for the composite score.
const (
	weightSimilarity  = 0.4
	weightSourceCount = 0.2
	weightRecency     = 0.2
	weightDiversity   = 0.2
)

// ConfidenceInput carries the raw search outcome into the calculator.
// Timestamps and Sources are parallel to SimilarityScores where available;
// missing or malformed entries degrade individual factors, never the call.
type ConfidenceInput struct {
	SimilarityScores []float64
	Timestamps       []string
	Sources          []string
}

// Calculator turns raw search results into a calibrated confidence score.
// It sits on every query's critical path and therefore never fails: any
// degenerate input yields a well-formed result.
type Calculator struct {
	now func() time.Time
}

// NewCalculator builds a Calculator using the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// NewCalculatorAt builds a Calculator with an injected clock, for tests.
func NewCalculatorAt(now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{now: now}
}

// Calculate computes the weighted confidence score and its explanation.
func (c *Calculator) Calculate(input ConfidenceInput) ConfidenceResult {
	if len(input.SimilarityScores) == 0 {
		return ConfidenceResult{
			Score:       0,
			Level:       LevelLow,
			Explanation: "No relevant sources were found for this query.",
		}
	}

	factors := Factors{
		Similarity:  c.similarityFactor(input.SimilarityScores),
		SourceCount: sourceCountFactor(len(input.SimilarityScores)),
		Recency:     c.recencyFactor(input.Timestamps),
		Diversity:   diversityFactor(input.Sources),
	}

	score := factors.Similarity*weightSimilarity +
		factors.SourceCount*weightSourceCount +
		factors.Recency*weightRecency +
		factors.Diversity*weightDiversity
	score = clamp01(score)

	level := LevelForScore(score)
	return ConfidenceResult{
		Score:       score,
		Level:       level,
		Explanation: explain(level, factors, len(input.SimilarityScores)),
		Factors:     factors,
	}
}

func (c *Calculator) similarityFactor(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return clamp01(sum / float64(len(scores)))
}

// sourceCountFactor saturates at five or more sources.
func sourceCountFactor(count int) float64 {
	return clamp01(float64(count) * 0.2)
}

// recencyFactor buckets the mean source age. Timestamps that fail to parse
// contribute zero to the age accumulator rather than aborting.
func (c *Calculator) recencyFactor(timestamps []string) float64 {
	if len(timestamps) == 0 {
		return 0.1
	}
	now := c.now()
	var totalDays float64
	for _, ts := range timestamps {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		age := now.Sub(parsed)
		if age < 0 {
			age = 0
		}
		totalDays += age.Hours() / 24
	}
	meanDays := totalDays / float64(len(timestamps))
	switch {
	case meanDays < 1:
		return 1.0
	case meanDays < 7:
		return 0.8
	case meanDays < 30:
		return 0.5
	case meanDays < 90:
		return 0.3
	default:
		return 0.1
	}
}

// diversityFactor rewards answers drawn from multiple distinct domains.
func diversityFactor(sources []string) float64 {
	total := len(sources)
	if total == 0 {
		return 0
	}
	if total == 1 {
		return 0.5
	}
	unique := make(map[string]struct{}, total)
	for _, src := range sources {
		unique[domainOf(src)] = struct{}{}
	}
	return 0.5 + 0.5*(float64(len(unique))/float64(total))
}

func domainOf(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(source)
	}
	return strings.ToLower(u.Hostname())
}

// explain renders a deterministic, level-driven explanation string.
func explain(level Level, f Factors, count int) string {
	var b strings.Builder
	switch level {
	case LevelHigh:
		fmt.Fprintf(&b, "High confidence: the answer is supported by %d relevant source%s", count, plural(count))
	case LevelMedium:
		fmt.Fprintf(&b, "Moderate confidence: the answer draws on %d source%s of mixed relevance", count, plural(count))
	default:
		fmt.Fprintf(&b, "Low confidence: only %d weakly matching source%s found", count, plural(count))
	}
	if f.Recency >= 0.7 {
		b.WriteString(", based on recent information")
	} else if f.Recency <= 0.3 {
		b.WriteString(", based on older information")
	}
	if f.Diversity > 0.7 && count > 1 {
		b.WriteString(", drawing on diverse sources")
	}
	if f.Similarity < 0.4 {
		b.WriteString(", with limited relevance to the question")
	}
	b.WriteString(".")
	if level == LevelLow {
		b.WriteString(" This answer may not be reliable.")
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
