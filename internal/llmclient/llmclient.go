// Package llmclient sends the README prompt to a chat-completion provider.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request parameters shared by every provider.
const (
	Temperature float32 = 0.3
	MaxTokens           = 4000
)

var (
	ErrEmptyResponse = errors.New("empty response from LLM")
	ErrMissingAPIKey = errors.New("missing API key")
)

// Generator performs one synchronous completion for a single user prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
	// RetryAfter is parsed from the response headers when present.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s: %s", e.Provider, e.Status, e.Body)
}

// Unavailable returns a Generator that always fails with err. Callers use it
// when a provider could not be constructed so the run still ends in the
// fallback document.
func Unavailable(err error) Generator { return unavailable{err: err} }

type unavailable struct{ err error }

func (unavailable) Name() string { return "unavailable" }

func (u unavailable) Generate(context.Context, string) (string, error) { return "", u.err }
