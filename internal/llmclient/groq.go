package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultGroqURL is the Groq Chat Completions endpoint (OpenAI-compatible).
// See: https://console.groq.com/docs/api-reference
const DefaultGroqURL = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient calls the Groq Chat Completions API with a single user message.
type GroqClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
	logger  *log.Logger

	rlMu      sync.RWMutex
	rlLast    RateLimitHeaders
	rlHasLast bool
}

// GroqOption configures a GroqClient.
type GroqOption func(*GroqClient)

// WithGroqBaseURL overrides the endpoint (proxies, tests).
func WithGroqBaseURL(u string) GroqOption {
	return func(g *GroqClient) {
		if u = strings.TrimSpace(u); u != "" {
			g.baseURL = u
		}
	}
}

// WithGroqHTTPClient replaces the default HTTP client.
func WithGroqHTTPClient(h *http.Client) GroqOption {
	return func(g *GroqClient) {
		if h != nil {
			g.http = h
		}
	}
}

// WithGroqLogger receives rate-limit notices.
func WithGroqLogger(l *log.Logger) GroqOption {
	return func(g *GroqClient) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGroqClient creates a Groq client for model. The key is sent as a bearer token.
func NewGroqClient(apiKey, model string, opts ...GroqOption) *GroqClient {
	g := &GroqClient{
		http:    &http.Client{Timeout: 120 * time.Second},
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		baseURL: DefaultGroqURL,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GroqClient) Name() string  { return "Groq:" + g.model }
func (g *GroqClient) Model() string { return g.model }

// LastRateLimitHeaders returns the rate-limit signals of the most recent reply.
func (g *GroqClient) LastRateLimitHeaders() (RateLimitHeaders, bool) {
	g.rlMu.RLock()
	defer g.rlMu.RUnlock()
	return g.rlLast, g.rlHasLast
}

type groqChatReq struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}
type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type groqChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate posts prompt as the only user message and returns the first choice.
func (g *GroqClient) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("groq: %w", ErrMissingAPIKey)
	}
	reqBody := groqChatReq{
		Model:       g.model,
		Messages:    []groqMessage{{Role: "user", Content: prompt}},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq: %w", err)
	}
	defer resp.Body.Close()
	rl, hasRL := g.recordRateLimit(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		const max = 2048
		if len(body) > max {
			body = body[:max]
		}
		serr := &StatusError{Provider: "groq", StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
		if hasRL {
			serr.RetryAfter = HeaderRateLimitControlAdapter{}.NextWait(rl)
		}
		return "", serr
	}
	var out groqChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("groq: decode response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("groq: %w", ErrEmptyResponse)
	}
	return out.Choices[0].Message.Content, nil
}

func (g *GroqClient) recordRateLimit(h http.Header) (RateLimitHeaders, bool) {
	rl, ok := parseGroqRateLimitHeaders(h)
	if !ok {
		return rl, false
	}
	g.rlMu.Lock()
	g.rlLast, g.rlHasLast = rl, true
	g.rlMu.Unlock()
	if wait := (HeaderRateLimitControlAdapter{}).NextWait(rl); wait > 0 {
		g.logger.Printf("warning: groq: rate limit reached, next request allowed in %s", wait)
	}
	return rl, true
}
