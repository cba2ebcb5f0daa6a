// Package source turns one of four acquisition inputs into a project snapshot.
package source

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"readmegen/internal/github"
	"readmegen/internal/scan"
	t "readmegen/internal/types"
)

// Kind names an acquisition mode.
type Kind string

const (
	KindArchive Kind = "archive"
	KindFiles   Kind = "files"
	KindRemote  Kind = "github"
	KindLocal   Kind = "local"
)

// DefaultFilesName is used for discrete uploads when no name is supplied.
const DefaultFilesName = "My Project"

// fallbackArchiveName is used when an archive has neither a file name nor a single top directory.
const fallbackArchiveName = "project"

// Options carries the knobs shared by every mode.
type Options struct {
	// ProjectName overrides the per-mode name when non-empty.
	ProjectName string
	// MaxFileSize is the "too large" threshold; <= 0 uses t.DefaultMaxFileSize.
	MaxFileSize int64
	// MaxDepth caps remote recursion when GitHub is nil; <= 0 uses github.DefaultMaxDepth.
	MaxDepth int
	// GitHub is the contents API client for Remote; nil builds a default one.
	GitHub *github.Client
	// ScratchDir is the parent for archive extraction.
	ScratchDir string
	Logger     *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func (o Options) scanOptions() scan.Options {
	return scan.Options{MaxFileSize: o.MaxFileSize, ScratchDir: o.ScratchDir, Logger: o.Logger}
}

func (o Options) name(derived string) string {
	if n := strings.TrimSpace(o.ProjectName); n != "" {
		return n
	}
	return derived
}

// Source is one acquisition mode.
type Source interface {
	Kind() Kind
	Collect(ctx context.Context, opts Options) (*t.Snapshot, error)
}

// Archive is a ZIP container held in memory.
type Archive struct {
	// FileName is the uploaded archive's name (e.g. "myproj.zip"); optional.
	FileName string
	Data     []byte
}

func (Archive) Kind() Kind { return KindArchive }

// Collect extracts the archive to a scratch directory, walks it like Local and
// removes the scratch directory whatever the outcome.
func (a Archive) Collect(ctx context.Context, opts Options) (*t.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := scan.WalkArchive(a.Data, opts.scanOptions())
	if err != nil {
		return nil, fmt.Errorf("source: archive: %w", err)
	}
	return t.NewSnapshot(opts.name(archiveName(a.FileName, res.TopDir)), res.Files), nil
}

func archiveName(fileName, topDir string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" && stem != "." && stem != "/" {
		return stem
	}
	if topDir != "" {
		return topDir
	}
	return fallbackArchiveName
}

// Upload is one discrete file. Content holds the raw bytes as a string; an
// upload that is not valid UTF-8 is recorded as Unreadable.
type Upload struct {
	Name    string
	Content string
}

// Files is a list of discrete uploads in caller order.
type Files struct {
	Uploads []Upload
}

// FilesFromMap builds Files from a name -> content map, ordered by name.
func FilesFromMap(m map[string]string) Files {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	up := make([]Upload, 0, len(names))
	for _, n := range names {
		up = append(up, Upload{Name: n, Content: m[n]})
	}
	return Files{Uploads: up}
}

func (Files) Kind() Kind { return KindFiles }

// Collect records each upload as text with size equal to its byte length.
// No size sentinel is applied; undecodable uploads become Unreadable. A
// repeated name replaces the earlier content in place.
func (f Files) Collect(ctx context.Context, opts Options) (*t.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := make([]t.FileRecord, 0, len(f.Uploads))
	index := make(map[string]int, len(f.Uploads))
	for _, u := range f.Uploads {
		rec := t.TextRecord(u.Name, int64(len(u.Content)), u.Content)
		if rec.Path == "" {
			opts.logger().Printf("warning: source: skipping upload with empty name")
			continue
		}
		if !utf8.ValidString(u.Content) {
			opts.logger().Printf("warning: source: %s is not valid UTF-8", rec.Path)
			rec = t.UnreadableRecord(rec.Path, rec.Size)
		}
		if i, ok := index[rec.Path]; ok {
			records[i] = rec
			continue
		}
		index[rec.Path] = len(records)
		records = append(records, rec)
	}
	return t.NewSnapshot(opts.name(DefaultFilesName), records), nil
}

// Remote is a public or token-authenticated GitHub repository.
type Remote struct {
	URL   string
	Token string
}

func (Remote) Kind() Kind { return KindRemote }

// Collect validates the URL before any network call, then walks the
// repository. Per-file and per-directory failures end up as snapshot
// warnings; the only error is *github.InvalidURLError (or ctx cancellation).
func (r Remote) Collect(ctx context.Context, opts Options) (*t.Snapshot, error) {
	repo, err := github.ParseRepoURL(r.URL)
	if err != nil {
		return nil, fmt.Errorf("source: remote: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := opts.GitHub
	if client == nil {
		gopts := []github.Option{github.WithMaxFileSize(opts.MaxFileSize), github.WithLogger(opts.Logger)}
		if opts.MaxDepth > 0 {
			gopts = append(gopts, github.WithMaxDepth(opts.MaxDepth))
		}
		client = github.NewClient(r.Token, gopts...)
	} else {
		client = client.Authenticated(r.Token)
	}

	res := client.Fetch(ctx, repo)
	if res.Truncated {
		opts.logger().Printf("source: %s truncated at depth cap", repo)
	}
	return t.NewSnapshot(opts.name(repo.Name), res.Files,
		t.WithTruncated(res.Truncated),
		t.WithWarnings(res.Warnings)), nil
}

// Local is a directory on the local filesystem.
type Local struct {
	Path string
}

func (Local) Kind() Kind { return KindLocal }

// Collect walks the directory; the name defaults to its base name.
func (l Local) Collect(ctx context.Context, opts Options) (*t.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(l.Path) == "" {
		return nil, fmt.Errorf("source: local: empty path")
	}
	files, err := scan.Walk(l.Path, opts.scanOptions())
	if err != nil {
		return nil, fmt.Errorf("source: local: %w", err)
	}
	return t.NewSnapshot(opts.name(scan.ProjectName(l.Path)), files), nil
}
