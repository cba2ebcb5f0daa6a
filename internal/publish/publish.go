// Package publish delivers a generated README somewhere the user can fetch it.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is used when a sink is given no explicit file name.
const DefaultFileName = "README.md"

// Sink stores content for project name and reports where it went.
type Sink interface {
	Publish(ctx context.Context, name string, content []byte) (location string, err error)
}

// FileSink writes into Dir/FileName.
type FileSink struct {
	Dir      string
	FileName string
}

// NewFileSink splits path into directory and file name.
func NewFileSink(path string) FileSink {
	path = strings.TrimSpace(path)
	if path == "" {
		return FileSink{Dir: ".", FileName: DefaultFileName}
	}
	return FileSink{Dir: filepath.Dir(path), FileName: filepath.Base(path)}
}

func (s FileSink) Publish(ctx context.Context, _ string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	name := s.FileName
	if name == "" {
		name = DefaultFileName
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("publish: mkdir %s: %w", dir, err)
	}
	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".readme-*")
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish: write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish: rename %s: %w", target, err)
	}
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	return target, nil
}

// WriterSink copies content to W (typically os.Stdout).
type WriterSink struct {
	W io.Writer
}

// StdoutSink writes to the process's standard output.
func StdoutSink() WriterSink { return WriterSink{W: os.Stdout} }

func (s WriterSink) Publish(_ context.Context, _ string, content []byte) (string, error) {
	w := s.W
	if w == nil {
		w = os.Stdout
	}
	if _, err := w.Write(content); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	if len(content) > 0 && content[len(content)-1] != '\n' {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return "", fmt.Errorf("publish: %w", err)
		}
	}
	return "stdout", nil
}
