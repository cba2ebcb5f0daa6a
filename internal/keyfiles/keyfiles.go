// Package keyfiles tags project files into fixed categories by base name.
package keyfiles

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	t "readmegen/internal/types"
)

// Category is one key-file class.
type Category string

const (
	Entrypoint         Category = "entrypoint"
	Configuration      Category = "configuration"
	DependencyManifest Category = "dependency-manifest"
	Tests              Category = "tests"
	Documentation      Category = "documentation"
	License            Category = "license"
)

// Categories lists every category in presentation order.
var Categories = []Category{Entrypoint, Configuration, DependencyManifest, Tests, Documentation, License}

var (
	entrypointNames = set("main.py", "app.py", "index.js", "app.js", "server.js", "index.html")
	configNames     = set("config.json", "package.json", ".env.example", "dockerfile", "docker-compose.yml")
	manifestNames   = set("requirements.txt", "package.json", "pipfile", "poetry.lock")
	docNames        = set("readme.md", "contributing.md", "changelog.md", "documentation.md")
)

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// CategoriesOf returns the categories a base file name belongs to, in
// presentation order. Matching is case-insensitive.
func CategoriesOf(name string) []Category {
	lower := strings.ToLower(name)
	var out []Category
	if _, ok := entrypointNames[lower]; ok {
		out = append(out, Entrypoint)
	}
	if _, ok := configNames[lower]; ok {
		out = append(out, Configuration)
	}
	if _, ok := manifestNames[lower]; ok {
		out = append(out, DependencyManifest)
	}
	if strings.Contains(lower, "test") || strings.HasPrefix(lower, "test_") {
		out = append(out, Tests)
	}
	if _, ok := docNames[lower]; ok {
		out = append(out, Documentation)
	}
	if strings.Contains(lower, "license") {
		out = append(out, License)
	}
	return out
}

// Index maps every category to its matching paths in discovery order.
type Index struct {
	byCategory map[Category][]string
}

func newIndex() Index {
	m := make(map[Category][]string, len(Categories))
	for _, c := range Categories {
		m[c] = []string{}
	}
	return Index{byCategory: m}
}

// Paths returns a copy of the paths in category c.
func (ix Index) Paths(c Category) []string {
	return append([]string{}, ix.byCategory[c]...)
}

// All is the union of every category in discovery order, without duplicates.
func (ix Index) All() []string {
	seen := map[string]struct{}{}
	var order []string
	for _, c := range Categories {
		for _, p := range ix.byCategory[c] {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				order = append(order, p)
			}
		}
	}
	return order
}

// Empty reports whether no file was classified.
func (ix Index) Empty() bool {
	for _, c := range Categories {
		if len(ix.byCategory[c]) > 0 {
			return false
		}
	}
	return true
}

// Map returns the index as a plain map keyed by category name.
func (ix Index) Map() map[string][]string {
	out := make(map[string][]string, len(Categories))
	for _, c := range Categories {
		out[string(c)] = ix.Paths(c)
	}
	return out
}

// MarshalJSON emits categories in presentation order.
func (ix Index) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(string(c))
		v, err := json.Marshal(ix.Paths(c))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DefaultMemoSize bounds the base-name memo.
const DefaultMemoSize = 1024

// Classifier builds Index values. It memoizes base name -> categories and is
// safe for concurrent use.
type Classifier struct {
	memo *lru.Cache[string, []Category]
}

// New creates a classifier whose memo holds up to size base names;
// size <= 0 uses DefaultMemoSize.
func New(size int) (*Classifier, error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	cache, err := lru.New[string, []Category](size)
	if err != nil {
		return nil, err
	}
	return &Classifier{memo: cache}, nil
}

func (c *Classifier) categories(base string) []Category {
	if c == nil || c.memo == nil {
		return CategoriesOf(base)
	}
	if cats, ok := c.memo.Get(base); ok {
		return cats
	}
	cats := CategoriesOf(base)
	c.memo.Add(base, cats)
	return cats
}

// ClassifyPaths indexes paths. The result always has every category key.
func (c *Classifier) ClassifyPaths(paths []string) Index {
	ix := newIndex()
	for _, p := range paths {
		for _, cat := range c.categories(path.Base(p)) {
			ix.byCategory[cat] = append(ix.byCategory[cat], p)
		}
	}
	return ix
}

// Classify indexes the files of snap; a nil snapshot yields an empty index.
func (c *Classifier) Classify(snap *t.Snapshot) Index {
	if snap == nil {
		return newIndex()
	}
	return c.ClassifyPaths(snap.Paths())
}

// Cached reports how many base names are memoized.
func (c *Classifier) Cached() int {
	if c == nil || c.memo == nil {
		return 0
	}
	return c.memo.Len()
}
