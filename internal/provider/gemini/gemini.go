// Package gemini implements the embedding and completion providers using
// Google Gemini.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/praxis-search/ragline/internal/rag"
)

// Default model identifiers.
const (
	DefaultEmbedModel    = "gemini-embedding-001"
	DefaultCompleteModel = "gemini-2.5-flash"
)

// Config selects the API key and models.
type Config struct {
	APIKey        string `mapstructure:"api_key"`
	EmbedModel    string `mapstructure:"embed_model"`
	CompleteModel string `mapstructure:"complete_model"`
}

// Ensure Provider satisfies both collaborator interfaces at compile time.
var (
	_ rag.Embedder  = (*Provider)(nil)
	_ rag.Completer = (*Provider)(nil)
)

// Provider implements rag.Embedder and rag.Completer against the Gemini API.
type Provider struct {
	client *genai.Client
	cfg    Config
}

// New connects to the Gemini API.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	cfg = withDefaults(cfg)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to gemini: %w", err)
	}
	return &Provider{client: client, cfg: cfg}, nil
}

// NewWithClient builds a Provider around an existing client.
func NewWithClient(client *genai.Client, cfg Config) *Provider {
	return &Provider{client: client, cfg: withDefaults(cfg)}
}

func withDefaults(cfg Config) Config {
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.CompleteModel == "" {
		cfg.CompleteModel = DefaultCompleteModel
	}
	return cfg
}

// Embed returns the embedding vector for text. Empty input is rejected
// before any API call is made.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	dims := int32(rag.EmbeddingDims)
	result, err := p.client.Models.EmbedContent(ctx, p.cfg.EmbedModel,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: text}},
		}},
		&genai.EmbedContentConfig{OutputDimensionality: &dims},
	)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, fmt.Errorf("gemini returned no embedding")
	}
	values := result.Embeddings[0].Values
	if len(values) != rag.EmbeddingDims {
		return nil, fmt.Errorf("unexpected embedding width %d, want %d", len(values), rag.EmbeddingDims)
	}
	return values, nil
}

// Complete synthesizes an answer from an assembled prompt.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}

	result, err := p.client.Models.GenerateContent(ctx, p.cfg.CompleteModel,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
		}},
		CompletionConfig(),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("gemini returned nil result")
	}
	return result.Text(), nil
}

// CompletionConfig returns the GenerateContentConfig used for answers.
func CompletionConfig() *genai.GenerateContentConfig {
	temp := float32(0.4)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{
				Text: "You are a helpful assistant answering questions from crawled web content. Answer based only on the context provided. If the answer is not in the context, say so.",
			}},
		},
		Temperature: &temp,
	}
}
