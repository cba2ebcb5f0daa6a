package llmclient

import (
	"context"
	"log"
	"time"
)

// Middleware decorates a Generator.
type Middleware func(next Generator) Generator

// Wrap applies mws so that the first one is outermost.
func Wrap(g Generator, mws ...Middleware) Generator {
	for i := len(mws) - 1; i >= 0; i-- {
		g = mws[i](g)
	}
	return g
}

// WithLogging logs request size, latency and errors. Provide a custom logger
// or nil to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Generator) Generator {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Generator
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }

func (l *logging) Generate(ctx context.Context, prompt string) (string, error) {
	l.log.Printf("LLM request (%s): %d bytes", l.next.Name(), len(prompt))
	start := time.Now()
	out, err := l.next.Generate(ctx, prompt)
	if err != nil {
		l.log.Printf("LLM error (%s) after %s: %v", l.next.Name(), time.Since(start).Round(time.Millisecond), err)
		return out, err
	}
	l.log.Printf("LLM response (%s): %d bytes in %s", l.next.Name(), len(out), time.Since(start).Round(time.Millisecond))
	return out, nil
}
