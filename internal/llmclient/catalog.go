package llmclient

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Provider names a completion backend.
type Provider string

const (
	ProviderGroq   Provider = "groq"
	ProviderGemini Provider = "gemini"
)

// catalog lists the models surfaced to callers; the first entry is the default.
var catalog = map[Provider][]string{
	ProviderGroq:   {"llama3-70b-8192", "llama3-8b-8192", "mixtral-8x7b-32768"},
	ProviderGemini: {"gemini-2.5-flash", "gemini-2.5-pro"},
}

// Providers returns the supported providers in a stable order.
func Providers() []Provider { return []Provider{ProviderGroq, ProviderGemini} }

// ParseProvider maps a config string to a Provider; empty means groq.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderGroq, nil
	case ProviderGroq, ProviderGemini:
		return p, nil
	default:
		return "", fmt.Errorf("llmclient: unknown provider %q", s)
	}
}

// Models returns the catalog entries for p.
func Models(p Provider) []string { return append([]string(nil), catalog[p]...) }

// DefaultModel is the first catalog entry for p.
func DefaultModel(p Provider) string {
	if m := catalog[p]; len(m) > 0 {
		return m[0]
	}
	return ""
}

// KnownModel reports whether model is in the catalog for p.
func KnownModel(p Provider, model string) bool {
	for _, m := range catalog[p] {
		if m == model {
			return true
		}
	}
	return false
}

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	// Model defaults to DefaultModel(Provider). Unknown models are allowed.
	Model  string
	APIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// MaxAttempts bounds retries of transient failures; <= 0 uses DefaultMaxAttempts.
	MaxAttempts int
	Logger      *log.Logger
}

// New builds the configured Generator wrapped with retries and request logging.
func New(ctx context.Context, cfg Config) (Generator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	p := cfg.Provider
	if p == "" {
		p = ProviderGroq
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel(p)
	}
	if !KnownModel(p, model) {
		logger.Printf("warning: llmclient: model %q is not in the %s catalog; using it anyway", model, p)
	}

	var gen Generator
	switch p {
	case ProviderGroq:
		gen = NewGroqClient(cfg.APIKey, model, WithGroqBaseURL(cfg.BaseURL), WithGroqLogger(logger))
	case ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.APIKey, model, WithGeminiBaseURL(cfg.BaseURL))
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", p)
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return Wrap(gen, WithRetry(attempts, 0, logger), WithLogging(logger)), nil
}
