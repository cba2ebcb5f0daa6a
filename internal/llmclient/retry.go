package llmclient

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultMaxAttempts sends exactly one request; retries are opt-in.
	DefaultMaxAttempts = 1
	// MaxRetryWait is the longest server-requested wait WithRetry will honor.
	MaxRetryWait = 30 * time.Second
)

// WithRetry retries transient failures up to maxAttempts with exponential
// backoff starting at baseDelay. A provider wait hint (StatusError.RetryAfter)
// replaces the backoff when it is longer; hints above MaxRetryWait end the
// retries. Canceling ctx stops immediately.
func WithRetry(maxAttempts int, baseDelay time.Duration, logger *log.Logger) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return func(next Generator) Generator {
		return &retrying{next: next, max: maxAttempts, base: baseDelay, log: logger}
	}
}

type retrying struct {
	next Generator
	max  int
	base time.Duration
	log  *log.Logger
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		last = err
		if i == r.max-1 || !retryable(err) {
			break
		}
		wait := r.base * time.Duration(1<<i)
		var serr *StatusError
		if errors.As(err, &serr) && serr.RetryAfter > wait {
			if serr.RetryAfter > MaxRetryWait {
				break
			}
			wait = serr.RetryAfter
		}
		r.log.Printf("warning: %s: attempt %d/%d failed, retrying in %s: %v", r.next.Name(), i+1, r.max, wait, err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", last
}

// retryable reports rate limiting, server errors and network failures.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.StatusCode == http.StatusTooManyRequests || serr.StatusCode >= 500
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
