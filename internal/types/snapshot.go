package types

import (
	"path/filepath"
	"strings"
)

// ContentState tells whether a FileRecord carries real text or a sentinel.
type ContentState int

const (
	ContentText ContentState = iota
	// ContentTooLarge marks files above the configured size threshold.
	ContentTooLarge
	// ContentUnreadable marks files that could not be decoded as text.
	ContentUnreadable
)

func (s ContentState) String() string {
	switch s {
	case ContentTooLarge:
		return "too_large"
	case ContentUnreadable:
		return "unreadable"
	default:
		return "text"
	}
}

// Placeholder texts shown to the model in place of sentinel content.
const (
	TooLargePlaceholder   = "File too large to include in analysis"
	UnreadablePlaceholder = "Unable to read file content"
)

// DefaultMaxFileSize is the "too large" threshold in bytes (100 KiB).
const DefaultMaxFileSize int64 = 100 * 1024

// FileRecord is one scanned file.
// Content is only meaningful when State == ContentText; Size is always the
// on-disk byte length.
type FileRecord struct {
	Path    string       `json:"path"`
	Size    int64        `json:"size"`
	Content string       `json:"content,omitempty"`
	State   ContentState `json:"state"`
}

// TextRecord builds a record holding concrete content.
func TextRecord(path string, size int64, content string) FileRecord {
	return FileRecord{Path: NormalizePath(path), Size: size, Content: content, State: ContentText}
}

// TooLargeRecord builds a record whose content is the TooLarge sentinel.
func TooLargeRecord(path string, size int64) FileRecord {
	return FileRecord{Path: NormalizePath(path), Size: size, State: ContentTooLarge}
}

// UnreadableRecord builds a record whose content is the Unreadable sentinel.
func UnreadableRecord(path string, size int64) FileRecord {
	return FileRecord{Path: NormalizePath(path), Size: size, State: ContentUnreadable}
}

// HasText reports whether the record carries concrete content.
func (r FileRecord) HasText() bool { return r.State == ContentText }

// Excerpt returns the text handed to the prompt: the content itself, or the
// placeholder for a sentinel.
func (r FileRecord) Excerpt() string {
	switch r.State {
	case ContentTooLarge:
		return TooLargePlaceholder
	case ContentUnreadable:
		return UnreadablePlaceholder
	default:
		return r.Content
	}
}

// NormalizePath converts p to a relative, forward-slash path
// ("./a\\b.py" -> "a/b.py", "/x/y" -> "x/y").
func NormalizePath(p string) string {
	p = strings.ReplaceAll(filepath.ToSlash(p), "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimLeft(p, "/")
}

// Snapshot is the immutable record of scanned files for one run.
type Snapshot struct {
	name      string
	files     []FileRecord
	truncated bool
	warnings  []string
}

// SnapshotOption tweaks a snapshot at construction time.
type SnapshotOption func(*Snapshot)

// WithTruncated marks the snapshot as cut short by a traversal limit.
func WithTruncated(v bool) SnapshotOption {
	return func(s *Snapshot) { s.truncated = v }
}

// WithWarnings attaches acquisition warnings.
func WithWarnings(w []string) SnapshotOption {
	return func(s *Snapshot) { s.warnings = append([]string(nil), w...) }
}

// NewSnapshot copies files so later mutation by the caller cannot leak in.
func NewSnapshot(name string, files []FileRecord, opts ...SnapshotOption) *Snapshot {
	s := &Snapshot{
		name:  name,
		files: append([]FileRecord(nil), files...),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Snapshot) Name() string { return s.name }

// Files returns a copy of the records in discovery order.
func (s *Snapshot) Files() []FileRecord { return append([]FileRecord(nil), s.files...) }

func (s *Snapshot) Len() int { return len(s.files) }

// Truncated reports whether remote recursion skipped directories past the depth cap.
func (s *Snapshot) Truncated() bool { return s.truncated }

func (s *Snapshot) Warnings() []string { return append([]string(nil), s.warnings...) }

// Paths lists file paths in discovery order.
func (s *Snapshot) Paths() []string {
	out := make([]string, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f.Path)
	}
	return out
}

// Lookup finds a record by path.
func (s *Snapshot) Lookup(path string) (FileRecord, bool) {
	for _, f := range s.files {
		if f.Path == path {
			return f, true
		}
	}
	return FileRecord{}, false
}

// ReadableCount counts records with concrete content.
func (s *Snapshot) ReadableCount() int {
	n := 0
	for _, f := range s.files {
		if f.HasText() {
			n++
		}
	}
	return n
}
