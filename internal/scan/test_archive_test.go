package scan

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readmegen/internal/safeio"
	t "readmegen/internal/types"
)

func requireEmptyDir(tt *testing.T, dir string) {
	tt.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(tt, err)
	assert.Empty(tt, entries, "scratch dir must be removed")
}

func TestWalkArchive_ExtractsWalksAndCleansUp(tt *testing.T) {
	scratch := tt.TempDir()
	data := zipOf(tt, map[string]string{
		"demo/":                 "",
		"demo/app.py":           "print(1)",
		"demo/requirements.txt": "flask",
		"demo/.git/HEAD":        "ref",
		"demo/big.log":          strings.Repeat("z", int(t.DefaultMaxFileSize)+10),
	})

	res, err := WalkArchive(data, Options{ScratchDir: scratch, Logger: quiet()})
	require.NoError(tt, err)
	assert.Equal(tt, "demo", res.TopDir)

	got := byPath(res.Files)
	require.Len(tt, got, 3)
	assert.Equal(tt, "print(1)", got["demo/app.py"].Content)
	assert.Equal(tt, t.ContentTooLarge, got["demo/big.log"].State)
	assert.Equal(tt, int64(t.DefaultMaxFileSize)+10, got["demo/big.log"].Size)

	requireEmptyDir(tt, scratch)
}

func TestWalkArchive_NoSingleTopDir(tt *testing.T) {
	data := zipOf(tt, map[string]string{
		"main.py":     "x",
		"pkg/util.py": "y",
	})
	res, err := WalkArchive(data, Options{Logger: quiet()})
	require.NoError(tt, err)
	assert.Empty(tt, res.TopDir)
	assert.Len(tt, res.Files, 2)
}

func TestWalkArchive_RejectsZipSlipAndCleansUp(tt *testing.T) {
	scratch := tt.TempDir()
	data := zipOf(tt, map[string]string{"../../evil.sh": "rm -rf /"})

	_, err := WalkArchive(data, Options{ScratchDir: scratch, Logger: quiet()})
	require.Error(tt, err)
	assert.ErrorIs(tt, err, safeio.ErrOutsideRoot)
	requireEmptyDir(tt, scratch)
}

func TestWalkArchive_CorruptData(tt *testing.T) {
	_, err := WalkArchive([]byte("not a zip"), Options{Logger: quiet()})
	assert.Error(tt, err)
}

func TestExtractZip_WritesFiles(tt *testing.T) {
	data := zipOf(tt, map[string]string{"a/b.txt": "hello"})
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(tt, err)

	dest := tt.TempDir()
	oversized, err := ExtractZip(zr, dest, Options{})
	require.NoError(tt, err)
	assert.Empty(tt, oversized)
	b, err := os.ReadFile(filepath.Join(dest, "a", "b.txt"))
	require.NoError(tt, err)
	assert.Equal(tt, "hello", string(b))
}

func TestExtractZip_BoundsOversizedEntriesOnDisk(tt *testing.T) {
	data := zipOf(tt, map[string]string{"pkg/huge.txt": strings.Repeat("z", 5000), "pkg/small.txt": "ok"})
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(tt, err)

	dest := tt.TempDir()
	oversized, err := ExtractZip(zr, dest, Options{MaxFileSize: 100})
	require.NoError(tt, err)
	assert.Equal(tt, map[string]int64{"pkg/huge.txt": 5000}, oversized)

	info, err := os.Stat(filepath.Join(dest, "pkg", "huge.txt"))
	require.NoError(tt, err)
	assert.Equal(tt, int64(101), info.Size())
}

func TestWalkArchive_OversizedEntryKeepsTrueSize(tt *testing.T) {
	data := zipOf(tt, map[string]string{"big.log": strings.Repeat("z", 5000)})
	res, err := WalkArchive(data, Options{MaxFileSize: 100, Logger: quiet()})
	require.NoError(tt, err)
	require.Len(tt, res.Files, 1)
	assert.Equal(tt, t.ContentTooLarge, res.Files[0].State)
	assert.Equal(tt, int64(5000), res.Files[0].Size)
}

func TestWalkArchive_ExtractLimit(tt *testing.T) {
	scratch := tt.TempDir()
	data := zipOf(tt, map[string]string{
		"a.txt": strings.Repeat("a", 3000),
		"b.txt": strings.Repeat("b", 3000),
	})
	_, err := WalkArchive(data, Options{ScratchDir: scratch, MaxExtractBytes: 4000, Logger: quiet()})
	require.Error(tt, err)
	assert.ErrorIs(tt, err, ErrArchiveTooLarge)
	requireEmptyDir(tt, scratch)
}
