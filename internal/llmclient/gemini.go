package llmclient

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// GeminiOption tweaks the genai client configuration.
type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at another endpoint (tests, proxies).
func WithGeminiBaseURL(u string) GeminiOption {
	return func(cc *genai.ClientConfig) {
		if u = strings.TrimSpace(u); u != "" {
			cc.HTTPOptions.BaseURL = u
		}
	}
}

// NewGeminiClient creates a Gemini API client. The key is passed explicitly
// rather than read from the environment.
func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	for _, opt := range opts {
		opt(cc)
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string  { return "Gemini:" + g.model }
func (g *GeminiClient) Model() string { return g.model }

// Generate sends prompt as a single user turn with the shared temperature and
// output cap, and returns the concatenated text of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(Temperature),
			MaxOutputTokens: MaxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	txt := resp.Text()
	if txt == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return txt, nil
}
