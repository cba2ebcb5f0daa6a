package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"a/b.py":     "a/b.py",
		"./a/b.py":   "a/b.py",
		`a\b\c.go`:   "a/b/c.go",
		"/abs/x.txt": "abs/x.txt",
		"":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePath(in), "input %q", in)
	}
}

func TestFileRecord_Excerpt(t *testing.T) {
	assert.Equal(t, "hello", TextRecord("a.txt", 5, "hello").Excerpt())
	assert.Equal(t, TooLargePlaceholder, TooLargeRecord("big.bin", 200000).Excerpt())
	assert.Equal(t, UnreadablePlaceholder, UnreadableRecord("x.dat", 3).Excerpt())

	big := TooLargeRecord("big.txt", 200000)
	assert.Equal(t, int64(200000), big.Size)
	assert.Empty(t, big.Content)
	assert.False(t, big.HasText())
}

func TestSnapshot_IsIsolatedFromCaller(t *testing.T) {
	files := []FileRecord{TextRecord("a.py", 1, "x")}
	s := NewSnapshot("demo", files, WithTruncated(true), WithWarnings([]string{"w1"}))

	files[0].Path = "mutated"
	got := s.Files()
	got[0].Path = "mutated-again"

	require.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"a.py"}, s.Paths())
	assert.Equal(t, "demo", s.Name())
	assert.True(t, s.Truncated())
	assert.Equal(t, []string{"w1"}, s.Warnings())

	rec, ok := s.Lookup("a.py")
	require.True(t, ok)
	assert.Equal(t, "x", rec.Content)
	assert.Equal(t, 1, s.ReadableCount())
}
