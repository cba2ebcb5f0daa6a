package llmclient

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// GenerationError wraps any failure of the generation call.
type GenerationError struct {
	Generator string
	Err       error
}

func (e *GenerationError) Error() string { return e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// Result is the outcome of Writer.Write.
type Result struct {
	Markdown string
	// Fallback is set when Markdown is the placeholder document.
	Fallback bool
	Err      *GenerationError
}

// FallbackDocument is the placeholder README produced when generation fails.
func FallbackDocument(projectName string, err error) string {
	return fmt.Sprintf("# %s\n\nError generating README: %v", projectName, err)
}

// Writer turns generation failures into a placeholder document.
type Writer struct {
	gen    Generator
	logger *log.Logger
}

// NewWriter wraps gen; a nil logger uses log.Default().
func NewWriter(gen Generator, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{gen: gen, logger: logger}
}

// Write generates the README for projectName. It never fails: on any error the
// result carries the fallback document and the cause.
func (w *Writer) Write(ctx context.Context, projectName, prompt string) Result {
	if w == nil || w.gen == nil {
		return w.fallback(projectName, "", errors.New("no generator configured"))
	}
	out, err := w.gen.Generate(ctx, prompt)
	if err != nil {
		return w.fallback(projectName, w.gen.Name(), err)
	}
	return Result{Markdown: out}
}

func (w *Writer) fallback(projectName, name string, err error) Result {
	logger := log.Default()
	if w != nil && w.logger != nil {
		logger = w.logger
	}
	logger.Printf("warning: README generation failed: %v", err)
	return Result{
		Markdown: FallbackDocument(projectName, err),
		Fallback: true,
		Err:      &GenerationError{Generator: name, Err: err},
	}
}
