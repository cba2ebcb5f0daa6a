package scan

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"readmegen/internal/safeio"
	t "readmegen/internal/types"
)

// FileVisit carries per-file metadata to user callbacks.
type FileVisit struct {
	// Repo-relative path using forward slashes (e.g., "src/app.py").
	Path string
	// Absolute filesystem path.
	AbsPath string
	// File size in bytes.
	Size int64
	// Content state recorded for the file.
	State t.ContentState
}

// VisitFunc is an optional callback invoked for every recorded file.
type VisitFunc func(f FileVisit)

// Options controls a local walk.
type Options struct {
	// MaxFileSize is the "too large" threshold; <= 0 means t.DefaultMaxFileSize.
	MaxFileSize int64
	// ScratchDir is the parent for archive extraction dirs; empty uses os.TempDir().
	ScratchDir string
	// MaxExtractBytes caps the total decompressed size of an archive; <= 0
	// means DefaultMaxExtractBytes.
	MaxExtractBytes int64
	// Logger receives skip warnings; nil uses log.Default().
	Logger *log.Logger
}

func (o Options) maxFileSize() int64 {
	if o.MaxFileSize <= 0 {
		return t.DefaultMaxFileSize
	}
	return o.MaxFileSize
}

func (o Options) maxExtractBytes() int64 {
	if o.MaxExtractBytes <= 0 {
		return DefaultMaxExtractBytes
	}
	return o.MaxExtractBytes
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Walk scans root and returns one record per surviving file in walk order.
// It is equivalent to WalkWithCallback(root, opts, nil).
func Walk(root string, opts Options) ([]t.FileRecord, error) {
	return WalkWithCallback(root, opts, nil)
}

// WalkWithCallback scans root like Walk and also invokes cb for each recorded file.
//
// Ignored and hidden directories are pruned, hidden and binary files are
// skipped. Files above the size threshold get the TooLarge sentinel and files
// that are not valid UTF-8 get the Unreadable sentinel.
func WalkWithCallback(root string, opts Options, cb VisitFunc) ([]t.FileRecord, error) {
	fsys, err := safeio.NewSafeFS(root)
	if err != nil {
		return nil, fmt.Errorf("scan: open root %s: %w", root, err)
	}
	absRoot := fsys.Root()
	limit := opts.maxFileSize()
	logger := opts.logger()

	var records []t.FileRecord
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			logger.Printf("warning: scan: skip %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != absRoot && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if SkipFile(d.Name()) {
			return nil
		}

		rel, err := fsys.Rel(path)
		if err != nil {
			return nil
		}
		info, err := fsys.Stat(rel)
		if err != nil {
			logger.Printf("warning: scan: stat %s: %v", rel, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		size := info.Size()

		var rec t.FileRecord
		switch {
		case size > limit:
			rec = t.TooLargeRecord(rel, size)
		default:
			rec = readRecord(fsys, rel, size)
		}
		records = append(records, rec)

		if cb != nil {
			cb(FileVisit{Path: rec.Path, AbsPath: path, Size: size, State: rec.State})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk %s: %w", root, err)
	}
	return records, nil
}

func readRecord(fsys *safeio.SafeFS, rel string, size int64) t.FileRecord {
	b, err := fsys.ReadFile(rel)
	if err != nil || !utf8.Valid(b) {
		return t.UnreadableRecord(rel, size)
	}
	return t.TextRecord(rel, size, string(b))
}

// ProjectName derives a display name from a directory path.
func ProjectName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	name := filepath.Base(filepath.Clean(abs))
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return ""
	}
	return name
}
