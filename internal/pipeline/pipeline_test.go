package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readmegen/internal/github"
	"readmegen/internal/keyfiles"
	"readmegen/internal/llmclient"
	"readmegen/internal/source"
	"readmegen/internal/tree"
	t "readmegen/internal/types"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func demoFiles() source.Files {
	return source.Files{Uploads: []source.Upload{
		{Name: "app.py", Content: "print(1)"},
		{Name: "requirements.txt", Content: "flask"},
		{Name: "README.md", Content: "old"},
	}}
}

func groqWriter(tt *testing.T, status int, content string) (*llmclient.Writer, func() string) {
	tt.Helper()
	var mu sync.Mutex
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) > 0 {
			mu.Lock()
			gotPrompt = body.Messages[0].Content
			mu.Unlock()
		}
		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
	tt.Cleanup(srv.Close)
	gen := llmclient.NewGroqClient("k", "llama3-70b-8192", llmclient.WithGroqBaseURL(srv.URL), llmclient.WithGroqLogger(quiet()))
	return llmclient.NewWriter(gen, quiet()), func() string {
		mu.Lock()
		defer mu.Unlock()
		return gotPrompt
	}
}

func TestRun_EndToEndDemo(tt *testing.T) {
	w, sent := groqWriter(tt, http.StatusOK, "# demo\n\nA generated README.")
	p, err := New(w, Options{Logger: quiet()})
	require.NoError(tt, err)

	var events []Event
	res, err := p.Run(context.Background(), demoFiles(), RunOptions{
		Source:   source.Options{ProjectName: "demo"},
		Observer: func(ev Event) { events = append(events, ev) },
	})
	require.NoError(tt, err)

	assert.Equal(tt, []string{"app.py"}, res.KeyFiles.Paths(keyfiles.Entrypoint))
	assert.Equal(tt, []string{"requirements.txt"}, res.KeyFiles.Paths(keyfiles.DependencyManifest))
	assert.Equal(tt, []string{"README.md"}, res.KeyFiles.Paths(keyfiles.Documentation))
	assert.NotEmpty(tt, res.Prompt)
	assert.Contains(tt, res.Prompt, "demo")
	assert.Equal(tt, res.Prompt, sent())

	assert.Equal(tt, "# demo\n\nA generated README.", res.Readme)
	assert.False(tt, res.Fallback)
	assert.Nil(tt, res.GenerationErr)
	assert.Equal(tt, "demo", res.Snapshot.Name())
	assert.Contains(tt, res.Structure, "📄 app.py")

	var percents []int
	for _, ev := range events {
		percents = append(percents, ev.Percent)
	}
	assert.Equal(tt, []int{20, 40, 60, 70, 100}, percents)
	assert.Equal(tt, StageGenerate, events[len(events)-1].Stage)
}

func TestRun_GenerationFailureDegradesToFallback(tt *testing.T) {
	w, _ := groqWriter(tt, http.StatusBadGateway, "")
	p, err := New(w, Options{Logger: quiet()})
	require.NoError(tt, err)

	res, err := p.Run(context.Background(), demoFiles(), RunOptions{Source: source.Options{ProjectName: "demo"}})
	require.NoError(tt, err)
	assert.True(tt, res.Fallback)
	assert.True(tt, strings.HasPrefix(res.Readme, "# demo\n\nError generating README:"))
	require.NotNil(tt, res.GenerationErr)
}

func TestPrepare_SkipsGeneration(tt *testing.T) {
	p, err := New(nil, Options{Logger: quiet(), TreeStyle: tree.StyleBranches})
	require.NoError(tt, err)

	var events []Event
	res, err := p.Prepare(context.Background(), demoFiles(), RunOptions{Observer: func(ev Event) { events = append(events, ev) }})
	require.NoError(tt, err)
	assert.Equal(tt, source.DefaultFilesName, res.Snapshot.Name())
	assert.Empty(tt, res.Readme)
	assert.Contains(tt, res.Structure, "└── ")
	require.Len(tt, events, 4)
	assert.Equal(tt, 70, events[3].Percent)
}

func TestRun_NilWriterFallsBack(tt *testing.T) {
	p, err := New(nil, Options{Logger: quiet()})
	require.NoError(tt, err)
	res, err := p.Run(context.Background(), demoFiles(), RunOptions{})
	require.NoError(tt, err)
	assert.True(tt, res.Fallback)
}

func TestRun_InvalidURLIsCollectError(tt *testing.T) {
	p, err := New(nil, Options{Logger: quiet()})
	require.NoError(tt, err)

	_, err = p.Run(context.Background(), source.Remote{URL: "https://bitbucket.org/a/b"}, RunOptions{})
	var cerr *CollectError
	require.True(tt, errors.As(err, &cerr))
	assert.Equal(tt, source.KindRemote, cerr.Kind)
	var invalid *github.InvalidURLError
	assert.True(tt, errors.As(err, &invalid))
}

func TestPrepare_PanicIsPipelineError(tt *testing.T) {
	p, err := New(nil, Options{Logger: quiet()})
	require.NoError(tt, err)
	p.render = func([]string, tree.Style) string { panic("boom") }

	res, err := p.Prepare(context.Background(), demoFiles(), RunOptions{})
	assert.Nil(tt, res)
	var perr *Error
	require.True(tt, errors.As(err, &perr))
	assert.Equal(tt, StageStructure, perr.Stage)
	assert.Contains(tt, err.Error(), "boom")
}

type nilSource struct{}

func (nilSource) Kind() source.Kind { return "nil" }
func (nilSource) Collect(context.Context, source.Options) (*t.Snapshot, error) {
	return nil, nil
}

func TestPrepare_NilSnapshotIsPipelineError(tt *testing.T) {
	p, err := New(nil, Options{Logger: quiet()})
	require.NoError(tt, err)
	_, err = p.Prepare(context.Background(), nilSource{}, RunOptions{})
	var perr *Error
	require.True(tt, errors.As(err, &perr))

	_, err = p.Prepare(context.Background(), nil, RunOptions{})
	var cerr *CollectError
	assert.True(tt, errors.As(err, &cerr))
}

func TestChannelObserver_DoesNotBlock(tt *testing.T) {
	ch := make(chan Event, 1)
	obs := ChannelObserver(ch)
	obs(Event{Stage: StageCollect, Percent: 20})
	obs(Event{Stage: StageStructure, Percent: 40})
	require.Len(tt, ch, 1)
	assert.Equal(tt, StageCollect, (<-ch).Stage)
}

func TestPrepare_TruncatesLongExcerpts(tt *testing.T) {
	p, err := New(nil, Options{Logger: quiet()})
	require.NoError(tt, err)
	files := source.Files{Uploads: []source.Upload{{Name: "main.py", Content: strings.Repeat("q", 1500)}}}
	res, err := p.Prepare(context.Background(), files, RunOptions{})
	require.NoError(tt, err)
	assert.Contains(tt, res.Prompt, strings.Repeat("q", 1000)+"... [content truncated]")
}

func TestPrepare_LogsAcquisitionWarningsOnce(tt *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var logs strings.Builder
	logger := log.New(&logs, "", 0)
	p, err := New(nil, Options{Logger: logger})
	require.NoError(tt, err)

	gh := github.NewClient("", github.WithAPIBase(srv.URL), github.WithLogger(logger))
	res, err := p.Prepare(context.Background(), source.Remote{URL: "https://github.com/octo/hello"},
		RunOptions{Source: source.Options{GitHub: gh, Logger: logger}})
	require.NoError(tt, err)
	require.Len(tt, res.Snapshot.Warnings(), 1)
	assert.Equal(tt, 1, strings.Count(logs.String(), "warning:"), logs.String())
}
