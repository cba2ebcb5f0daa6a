// Package pipeline runs collect, structure, classify, prompt and generate in sequence.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"readmegen/internal/keyfiles"
	"readmegen/internal/llmclient"
	"readmegen/internal/prompt"
	"readmegen/internal/source"
	"readmegen/internal/tree"
	t "readmegen/internal/types"
)

// CollectError is a failure of the acquisition stage. It wraps the source
// error, so e.g. *github.InvalidURLError stays reachable via errors.As.
type CollectError struct {
	Kind source.Kind
	Err  error
}

func (e *CollectError) Error() string { return fmt.Sprintf("collect %s: %v", e.Kind, e.Err) }
func (e *CollectError) Unwrap() error { return e.Err }

// Error is an unexpected failure inside the structure, classify or prompt
// stages. No partial output accompanies it.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("pipeline: %s failed: %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Result is everything a run produced.
type Result struct {
	Snapshot  *t.Snapshot
	Structure string
	KeyFiles  keyfiles.Index
	Prompt    string
	Readme    string
	// Fallback is set when Readme is the placeholder document.
	Fallback      bool
	GenerationErr *llmclient.GenerationError
}

// Options configures a Pipeline.
type Options struct {
	TreeStyle tree.Style
	Prompt    prompt.Builder
	// Classifier is shared across runs; nil creates one.
	Classifier *keyfiles.Classifier
	Logger     *log.Logger
}

// RunOptions are per-run settings.
type RunOptions struct {
	Source   source.Options
	Observer Observer
}

// Pipeline is safe for concurrent runs.
type Pipeline struct {
	writer     *llmclient.Writer
	classifier *keyfiles.Classifier
	builder    prompt.Builder
	style      tree.Style
	logger     *log.Logger

	render func(paths []string, style tree.Style) string
}

// New creates a pipeline that generates through writer. A nil writer is
// allowed for Prepare-only use; Run then yields the fallback document.
func New(writer *llmclient.Writer, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cls := opts.Classifier
	if cls == nil {
		c, err := keyfiles.New(0)
		if err != nil {
			return nil, err
		}
		cls = c
	}
	style := opts.TreeStyle
	if style == "" {
		style = tree.StyleIndent
	}
	return &Pipeline{
		writer:     writer,
		classifier: cls,
		builder:    opts.Prompt,
		style:      style,
		logger:     logger,
		render:     tree.RenderStyle,
	}, nil
}

// Run executes every stage including generation. Generation failures do not
// produce an error; they surface as Result.Fallback.
func (p *Pipeline) Run(ctx context.Context, src source.Source, ro RunOptions) (*Result, error) {
	res, err := p.Prepare(ctx, src, ro)
	if err != nil {
		return nil, err
	}
	gen := p.writer.Write(ctx, res.Snapshot.Name(), res.Prompt)
	res.Readme = gen.Markdown
	res.Fallback = gen.Fallback
	res.GenerationErr = gen.Err
	ro.Observer.emit(StageGenerate, "README generation complete!")
	return res, nil
}

// Prepare runs every stage except generation.
func (p *Pipeline) Prepare(ctx context.Context, src source.Source, ro RunOptions) (*Result, error) {
	if src == nil {
		return nil, &CollectError{Err: fmt.Errorf("no source")}
	}
	snap, err := src.Collect(ctx, ro.Source)
	if err != nil {
		return nil, &CollectError{Kind: src.Kind(), Err: err}
	}
	if snap == nil {
		return nil, &Error{Stage: StageCollect, Err: fmt.Errorf("%s source returned no snapshot", src.Kind())}
	}
	p.logger.Printf("pipeline: %s %q: found %d files (%d readable)", src.Kind(), snap.Name(), snap.Len(), snap.ReadableCount())
	for _, w := range snap.Warnings() {
		p.logger.Printf("warning: pipeline: %s", w)
	}
	ro.Observer.emit(StageCollect, fmt.Sprintf("Collected %d files", snap.Len()))

	res := &Result{Snapshot: snap}
	if err := guard(StageStructure, func() {
		res.Structure = p.render(snap.Paths(), p.style)
	}); err != nil {
		return nil, err
	}
	ro.Observer.emit(StageStructure, "Generated directory structure")

	if err := guard(StageClassify, func() {
		res.KeyFiles = p.classifier.Classify(snap)
	}); err != nil {
		return nil, err
	}
	ro.Observer.emit(StageClassify, fmt.Sprintf("Identified %d key files", len(res.KeyFiles.All())))

	if err := guard(StageExcerpts, func() {
		res.Prompt = p.builder.Build(prompt.Input{
			ProjectName: snap.Name(),
			Structure:   res.Structure,
			KeyFiles:    res.KeyFiles,
			Snapshot:    snap,
		})
	}); err != nil {
		return nil, err
	}
	ro.Observer.emit(StageExcerpts, "Extracted file contents")
	return res, nil
}

func guard(stage Stage, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	fn()
	return nil
}
