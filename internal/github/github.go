package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"readmegen/internal/scan"
	t "readmegen/internal/types"
)

const (
	// DefaultAPIBase is the public GitHub REST endpoint.
	DefaultAPIBase = "https://api.github.com"
	// DefaultMaxDepth bounds directory recursion below the repository root.
	DefaultMaxDepth = 5

	maxListingBytes = 8 << 20
)

// Client walks a repository through the GitHub contents API.
type Client struct {
	http        *http.Client
	apiBase     string
	token       string
	maxDepth    int
	maxFileSize int64
	logger      *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithAPIBase points the client at another API host (GitHub Enterprise, tests).
func WithAPIBase(base string) Option {
	return func(c *Client) {
		if b := strings.TrimRight(strings.TrimSpace(base), "/"); b != "" {
			c.apiBase = b
		}
	}
}

// WithMaxDepth sets the recursion cap; values < 0 are ignored.
func WithMaxDepth(d int) Option {
	return func(c *Client) {
		if d >= 0 {
			c.maxDepth = d
		}
	}
}

// WithMaxFileSize sets the size above which files are skipped.
func WithMaxFileSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxFileSize = n
		}
	}
}

// WithLogger routes traversal progress messages to logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a contents API client. token may be empty for public repos.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: 60 * time.Second},
		apiBase:     DefaultAPIBase,
		token:       strings.TrimSpace(token),
		maxDepth:    DefaultMaxDepth,
		maxFileSize: t.DefaultMaxFileSize,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasToken reports whether requests carry an Authorization header.
func (c *Client) HasToken() bool { return c.token != "" }

// Authenticated returns a copy of c that sends token instead of its own.
// An empty token returns c unchanged.
func (c *Client) Authenticated(token string) *Client {
	token = strings.TrimSpace(token)
	if token == "" {
		return c
	}
	cp := *c
	cp.token = token
	return &cp
}

// contentEntry is one element of a contents API directory listing.
type contentEntry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
	URL         string `json:"url"`
}

// FetchResult is the partial-or-complete outcome of a repository walk.
type FetchResult struct {
	Files []t.FileRecord
	// Truncated is set when directories below the depth cap were skipped.
	Truncated bool
	// Warnings lists per-file and per-directory failures that were tolerated.
	Warnings []string
}

// Fetch lists the repository recursively and downloads every eligible file.
// Failures on individual files or directories are collected as warnings;
// Fetch itself never fails.
func (c *Client) Fetch(ctx context.Context, repo Repo) FetchResult {
	var res FetchResult
	root := fmt.Sprintf("%s/repos/%s/%s/contents", c.apiBase, url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	c.walk(ctx, root, "", 0, &res)
	return res
}

func (c *Client) walk(ctx context.Context, listURL, dir string, depth int, res *FetchResult) {
	if err := ctx.Err(); err != nil {
		c.warn(res, "github: list %s: %v", displayDir(dir), err)
		return
	}
	entries, err := c.list(ctx, listURL)
	if err != nil {
		c.warn(res, "github: list %s: %v", displayDir(dir), err)
		return
	}

	for _, e := range entries {
		rel := e.Path
		if rel == "" {
			rel = path.Join(dir, e.Name)
		}
		switch e.Type {
		case "file":
			c.fetchFile(ctx, e, rel, res)
		case "dir":
			if scan.SkipDir(e.Name) {
				continue
			}
			if depth+1 > c.maxDepth {
				res.Truncated = true
				c.logger.Printf("github: depth cap %d reached, skipping %s", c.maxDepth, rel)
				continue
			}
			next := e.URL
			if next == "" {
				next = listURL + "/" + url.PathEscape(e.Name)
			}
			c.walk(ctx, next, rel, depth+1, res)
		}
	}
}

func (c *Client) fetchFile(ctx context.Context, e contentEntry, rel string, res *FetchResult) {
	if e.Size > c.maxFileSize {
		return
	}
	if scan.SkipFile(e.Name) || e.DownloadURL == "" {
		return
	}
	body, status, err := c.get(ctx, e.DownloadURL, c.maxFileSize+1)
	if err != nil {
		c.warn(res, "github: download %s: %v", rel, err)
		return
	}
	if status != http.StatusOK {
		return
	}
	if int64(len(body)) > c.maxFileSize {
		c.logger.Printf("github: %s is larger than its listed size, skipping", rel)
		return
	}
	if !utf8.Valid(body) {
		return
	}
	res.Files = append(res.Files, t.TextRecord(rel, int64(len(body)), string(body)))
}

func (c *Client) list(ctx context.Context, listURL string) ([]contentEntry, error) {
	body, status, err := c.get(ctx, listURL, maxListingBytes)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		const max = 512
		if len(body) > max {
			body = body[:max]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body)))
	}
	var entries []contentEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return entries, nil
}

// get reads at most limit bytes of the response body.
func (c *Client) get(ctx context.Context, target string, limit int64) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "readmegen")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// warn records a tolerated failure. Callers surface FetchResult.Warnings;
// the client does not log them itself.
func (c *Client) warn(res *FetchResult, format string, args ...any) {
	res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
}

func displayDir(dir string) string {
	if dir == "" {
		return "/"
	}
	return dir
}
