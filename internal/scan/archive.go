package scan

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"readmegen/internal/safeio"
	t "readmegen/internal/types"
)

// DefaultMaxExtractBytes bounds the decompressed size of one archive.
const DefaultMaxExtractBytes int64 = 512 << 20

// ErrArchiveTooLarge is returned when decompressed entries exceed the extract cap.
var ErrArchiveTooLarge = errors.New("archive expands beyond the extract limit")

// ArchiveResult is the outcome of walking an extracted archive.
type ArchiveResult struct {
	Files []t.FileRecord
	// TopDir is the single top-level directory shared by every entry, if any.
	TopDir string
}

// WalkArchive extracts a ZIP archive into a scratch directory, walks it like a
// local directory, and removes the scratch directory before returning.
func WalkArchive(data []byte, opts Options) (ArchiveResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("scan: open archive: %w", err)
	}

	scratch, err := os.MkdirTemp(opts.ScratchDir, "readmegen-archive-*")
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("scan: create scratch dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			opts.logger().Printf("warning: scan: remove scratch dir %s: %v", scratch, rmErr)
		}
	}()

	oversized, err := ExtractZip(zr, scratch, opts)
	if err != nil {
		return ArchiveResult{}, err
	}
	files, err := Walk(scratch, opts)
	if err != nil {
		return ArchiveResult{}, err
	}
	for i, rec := range files {
		if size, ok := oversized[rec.Path]; ok {
			files[i].Size = size
		}
	}
	return ArchiveResult{Files: files, TopDir: topLevelDir(zr)}, nil
}

// ExtractZip writes every regular entry of zr below dest. Entries that would
// land outside dest are rejected. Entries above the size threshold are written
// only up to threshold+1 bytes, enough for the walk to mark them TooLarge; their
// full decompressed sizes are returned keyed by slash-separated relative path.
func ExtractZip(zr *zip.Reader, dest string, opts Options) (map[string]int64, error) {
	oversized := map[string]int64{}
	budget := opts.maxExtractBytes()
	limit := opts.maxFileSize()
	for _, f := range zr.File {
		target, err := safeio.JoinWithin(dest, f.Name)
		if err != nil {
			return nil, fmt.Errorf("scan: archive entry: %w", err)
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("scan: mkdir %s: %w", f.Name, err)
			}
		case mode.IsRegular():
			size, err := extractFile(f, target, limit, budget)
			if err != nil {
				return nil, err
			}
			budget -= size
			if size > limit {
				if rel, err := filepath.Rel(dest, target); err == nil {
					oversized[filepath.ToSlash(rel)] = size
				}
			}
		default:
			// symlinks and devices are not materialized
		}
	}
	return oversized, nil
}

// extractFile writes at most limit+1 bytes of f to target and returns the
// entry's decompressed size, reading no more than budget bytes in total.
func extractFile(f *zip.File, target string, limit, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("scan: mkdir for %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("scan: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("scan: create %s: %w", f.Name, err)
	}
	src := io.LimitReader(rc, budget+1)
	written, err := io.Copy(out, io.LimitReader(src, limit+1))
	if err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("scan: extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	rest, err := io.Copy(io.Discard, src)
	if err != nil {
		return 0, fmt.Errorf("scan: extract %s: %w", f.Name, err)
	}
	size := written + rest
	if size > budget {
		return 0, fmt.Errorf("scan: extract %s: %w", f.Name, ErrArchiveTooLarge)
	}
	return size, nil
}

func topLevelDir(zr *zip.Reader) string {
	top := ""
	for _, f := range zr.File {
		name := strings.TrimLeft(strings.ReplaceAll(f.Name, "\\", "/"), "/")
		if name == "" {
			continue
		}
		first, _, nested := strings.Cut(name, "/")
		if !nested {
			// a file at the archive root
			return ""
		}
		if top == "" {
			top = first
		} else if top != first {
			return ""
		}
	}
	return top
}
