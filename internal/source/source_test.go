package source

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readmegen/internal/github"
	t "readmegen/internal/types"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func writeFile(tt *testing.T, root, rel, content string) {
	tt.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(tt, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(tt, os.WriteFile(p, []byte(content), 0o644))
}

func zipBytes(tt *testing.T, entries ...[2]string) []byte {
	tt.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		require.NoError(tt, err)
		_, err = w.Write([]byte(e[1]))
		require.NoError(tt, err)
	}
	require.NoError(tt, zw.Close())
	return buf.Bytes()
}

func TestKinds(tt *testing.T) {
	for want, src := range map[Kind]Source{
		KindArchive: Archive{},
		KindFiles:   Files{},
		KindRemote:  Remote{},
		KindLocal:   Local{},
	} {
		assert.Equal(tt, want, src.Kind())
	}
}

func TestLocal_CollectsAndNamesAfterDirectory(tt *testing.T) {
	root := filepath.Join(tt.TempDir(), "myproj")
	writeFile(tt, root, "app.py", "print(1)")
	writeFile(tt, root, "pkg/util.py", "x = 1")
	writeFile(tt, root, ".git/config", "[core]")

	snap, err := Local{Path: root}.Collect(context.Background(), Options{Logger: quiet()})
	require.NoError(tt, err)
	assert.Equal(tt, "myproj", snap.Name())
	assert.ElementsMatch(tt, []string{"app.py", "pkg/util.py"}, snap.Paths())
}

func TestLocal_ExplicitNameWins(tt *testing.T) {
	root := tt.TempDir()
	writeFile(tt, root, "a.txt", "a")
	snap, err := Local{Path: root}.Collect(context.Background(), Options{ProjectName: "  Custom  ", Logger: quiet()})
	require.NoError(tt, err)
	assert.Equal(tt, "Custom", snap.Name())
}

func TestLocal_MissingDirFails(tt *testing.T) {
	_, err := Local{Path: filepath.Join(tt.TempDir(), "nope")}.Collect(context.Background(), Options{Logger: quiet()})
	require.Error(tt, err)
	_, err = Local{}.Collect(context.Background(), Options{Logger: quiet()})
	require.Error(tt, err)
}

func TestArchive_NameResolution(tt *testing.T) {
	data := zipBytes(tt, [2]string{"proj/main.py", "print(1)"}, [2]string{"proj/README.md", "# p"})
	opts := Options{ScratchDir: tt.TempDir(), Logger: quiet()}

	snap, err := Archive{FileName: "upload.zip", Data: data}.Collect(context.Background(), opts)
	require.NoError(tt, err)
	assert.Equal(tt, "upload", snap.Name())
	assert.ElementsMatch(tt, []string{"proj/main.py", "proj/README.md"}, snap.Paths())

	snap, err = Archive{Data: data}.Collect(context.Background(), opts)
	require.NoError(tt, err)
	assert.Equal(tt, "proj", snap.Name())

	flat := zipBytes(tt, [2]string{"a.py", "1"}, [2]string{"b/c.py", "2"})
	snap, err = Archive{Data: flat}.Collect(context.Background(), opts)
	require.NoError(tt, err)
	assert.Equal(tt, "project", snap.Name())

	opts.ProjectName = "Given"
	snap, err = Archive{FileName: "upload.zip", Data: data}.Collect(context.Background(), opts)
	require.NoError(tt, err)
	assert.Equal(tt, "Given", snap.Name())

	entries, err := os.ReadDir(opts.ScratchDir)
	require.NoError(tt, err)
	assert.Empty(tt, entries, "scratch area must be removed")
}

func TestArchive_CorruptFails(tt *testing.T) {
	_, err := Archive{FileName: "x.zip", Data: []byte("not a zip")}.Collect(context.Background(), Options{Logger: quiet()})
	require.Error(tt, err)
}

func TestFiles_RecordsUploadsDirectly(tt *testing.T) {
	big := strings.Repeat("a", 200*1024)
	snap, err := Files{Uploads: []Upload{
		{Name: "app.py", Content: "print(1)"},
		{Name: "big.txt", Content: big},
		{Name: `sub\win.py`, Content: "é"},
	}}.Collect(context.Background(), Options{Logger: quiet()})
	require.NoError(tt, err)

	assert.Equal(tt, DefaultFilesName, snap.Name())
	assert.Equal(tt, []string{"app.py", "big.txt", "sub/win.py"}, snap.Paths())

	rec, ok := snap.Lookup("big.txt")
	require.True(tt, ok)
	assert.Equal(tt, t.ContentText, rec.State, "uploads never get a size sentinel")
	assert.Equal(tt, int64(len(big)), rec.Size)

	rec, _ = snap.Lookup("sub/win.py")
	assert.Equal(tt, int64(2), rec.Size, "size is the byte length")
}

func TestFiles_DuplicateReplacesAndEmptySkipped(tt *testing.T) {
	snap, err := Files{Uploads: []Upload{
		{Name: "a.py", Content: "old"},
		{Name: "", Content: "lost"},
		{Name: "b.py", Content: "b"},
		{Name: "./a.py", Content: "new"},
	}}.Collect(context.Background(), Options{Logger: quiet()})
	require.NoError(tt, err)
	assert.Equal(tt, []string{"a.py", "b.py"}, snap.Paths())
	rec, _ := snap.Lookup("a.py")
	assert.Equal(tt, "new", rec.Content)
}

func TestFiles_InvalidUTF8IsUnreadable(tt *testing.T) {
	raw := string([]byte{0xff, 0xfe, 'A', 0x80, 'B'})
	snap, err := Files{Uploads: []Upload{
		{Name: "test_logo.py", Content: raw},
		{Name: "ok.py", Content: "pass"},
	}}.Collect(context.Background(), Options{Logger: quiet()})
	require.NoError(tt, err)

	rec, ok := snap.Lookup("test_logo.py")
	require.True(tt, ok)
	assert.Equal(tt, t.ContentUnreadable, rec.State)
	assert.Equal(tt, int64(5), rec.Size, "size keeps the original byte length")
	assert.Empty(tt, rec.Content)

	rec, _ = snap.Lookup("ok.py")
	assert.Equal(tt, t.ContentText, rec.State)
}

func TestFilesFromMap_IsSorted(tt *testing.T) {
	f := FilesFromMap(map[string]string{"z.py": "z", "a.py": "a", "m.py": "m"})
	require.Len(tt, f.Uploads, 3)
	assert.Equal(tt, "a.py", f.Uploads[0].Name)
	assert.Equal(tt, "m.py", f.Uploads[1].Name)
	assert.Equal(tt, "z.py", f.Uploads[2].Name)
}

func TestRemote_InvalidURLFailsBeforeNetwork(tt *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	gh := github.NewClient("", github.WithAPIBase(srv.URL), github.WithLogger(quiet()))
	_, err := Remote{URL: "https://gitlab.com/o/r"}.Collect(context.Background(), Options{GitHub: gh, Logger: quiet()})

	var invalid *github.InvalidURLError
	require.True(tt, errors.As(err, &invalid), "got %v", err)
	assert.Equal(tt, int32(0), atomic.LoadInt32(&hits))
}

func TestRemote_CollectsWithTokenAndName(tt *testing.T) {
	var auth atomic.Value
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/repos/octo/hello/contents":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"type": "file", "name": "main.py", "path": "main.py", "size": 8, "download_url": srvURL + "/raw/main.py"},
			})
		case "/raw/main.py":
			_, _ = io.WriteString(w, "print(1)")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	gh := github.NewClient("", github.WithAPIBase(srv.URL), github.WithLogger(quiet()))
	snap, err := Remote{URL: "https://github.com/octo/hello.git", Token: "tkn"}.Collect(context.Background(), Options{GitHub: gh, Logger: quiet()})
	require.NoError(tt, err)

	assert.Equal(tt, "hello", snap.Name())
	assert.Equal(tt, []string{"main.py"}, snap.Paths())
	assert.False(tt, snap.Truncated())
	assert.Empty(tt, snap.Warnings())
	assert.Equal(tt, "token tkn", auth.Load())
	assert.False(tt, gh.HasToken(), "shared client must not be mutated")
}

func TestRemote_FailuresBecomeWarnings(tt *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	gh := github.NewClient("", github.WithAPIBase(srv.URL), github.WithLogger(quiet()))
	snap, err := Remote{URL: "https://github.com/octo/hello"}.Collect(context.Background(), Options{GitHub: gh, Logger: quiet()})
	require.NoError(tt, err)
	assert.Equal(tt, 0, snap.Len())
	require.Len(tt, snap.Warnings(), 1)
	assert.Contains(tt, snap.Warnings()[0], "403")
}

func TestCollect_CanceledContext(tt *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, src := range []Source{Files{}, Local{Path: tt.TempDir()}, Archive{}} {
		_, err := src.Collect(ctx, Options{Logger: quiet()})
		assert.ErrorIs(tt, err, context.Canceled, string(src.Kind()))
	}
}

func TestAllModesProduceRelativeForwardSlashPaths(tt *testing.T) {
	root := tt.TempDir()
	writeFile(tt, root, "a/b/c.py", "1")
	data := zipBytes(tt, [2]string{"x/y.py", "1"})
	srcs := []Source{
		Local{Path: root},
		Archive{Data: data},
		Files{Uploads: []Upload{{Name: `/abs\path.py`, Content: "1"}}},
	}
	for _, src := range srcs {
		snap, err := src.Collect(context.Background(), Options{ScratchDir: tt.TempDir(), Logger: quiet()})
		require.NoError(tt, err)
		for _, p := range snap.Paths() {
			assert.False(tt, strings.HasPrefix(p, "/"), p)
			assert.NotContains(tt, p, `\`)
		}
	}
}
