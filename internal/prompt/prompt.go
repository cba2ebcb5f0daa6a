// Package prompt assembles the README generation prompt.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"readmegen/internal/keyfiles"
	t "readmegen/internal/types"
)

const (
	// DefaultExcerptLimit caps each file excerpt, in characters.
	DefaultExcerptLimit = 1000
	// TruncationMarker is appended to excerpts cut at the limit.
	TruncationMarker = "... [content truncated]"
)

// Sections lists the README sections the model is asked to produce.
var Sections = []string{
	"Project title and description (summarize what the project does)",
	"Badges for relevant languages/technologies",
	"Installation instructions",
	"Usage examples",
	"Features",
	"Dependencies",
	"Contributing guidelines",
	"License information",
	"A table of contents",
	"Any other sections you deem appropriate based on the project content",
}

// Input is everything the prompt is built from.
type Input struct {
	ProjectName string
	// Structure is the rendered directory diagram.
	Structure string
	KeyFiles  keyfiles.Index
	Snapshot  *t.Snapshot
}

// Excerpt is a length-capped view of one key file.
type Excerpt struct {
	Path      string
	Text      string
	Truncated bool
}

// Builder renders prompts. The zero value uses DefaultExcerptLimit and no budget.
type Builder struct {
	// ExcerptLimit caps each excerpt in characters; <= 0 uses DefaultExcerptLimit.
	ExcerptLimit int
	// MaxPromptChars bounds the whole prompt in characters; 0 disables the bound.
	// Once an excerpt would overflow it, it and every later excerpt are omitted.
	MaxPromptChars int
}

func (b Builder) excerptLimit() int {
	if b.ExcerptLimit <= 0 {
		return DefaultExcerptLimit
	}
	return b.ExcerptLimit
}

// Truncate cuts s to limit characters and appends TruncationMarker when it
// was longer. Shorter strings are returned unchanged.
func Truncate(s string, limit int) (string, bool) {
	if limit < 0 {
		limit = 0
	}
	if len(s) <= limit || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	cut := 0
	for i := range s {
		if limit == 0 {
			cut = i
			break
		}
		limit--
	}
	return s[:cut] + TruncationMarker, true
}

// Excerpts returns one excerpt per key file in snapshot order. Files never
// classified as key are excluded.
func (b Builder) Excerpts(snap *t.Snapshot, index keyfiles.Index) []Excerpt {
	if snap == nil {
		return nil
	}
	wanted := map[string]struct{}{}
	for _, p := range index.All() {
		wanted[p] = struct{}{}
	}
	var out []Excerpt
	for _, rec := range snap.Files() {
		if _, ok := wanted[rec.Path]; !ok {
			continue
		}
		text, cut := Truncate(rec.Excerpt(), b.excerptLimit())
		out = append(out, Excerpt{Path: rec.Path, Text: text, Truncated: cut})
	}
	return out
}

// Build renders the prompt. It never fails; an empty index still yields a
// well-formed prompt with empty key-file sections.
func (b Builder) Build(in Input) string {
	excerpts := b.Excerpts(in.Snapshot, in.KeyFiles)

	head := renderHead(in)
	tail := renderTail()

	var body bytes.Buffer
	budget := -1
	if b.MaxPromptChars > 0 {
		budget = b.MaxPromptChars - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	}
	for i, ex := range excerpts {
		block := formatExcerpt(ex)
		if budget >= 0 {
			n := utf8.RuneCountInString(block)
			if n > budget {
				fmt.Fprintf(&body, "\n[%d more file excerpt(s) omitted to fit the prompt budget]\n", len(excerpts)-i)
				break
			}
			budget -= n
		}
		body.WriteString(block)
	}
	return head + body.String() + tail
}

func formatExcerpt(ex Excerpt) string {
	return "\n--- " + ex.Path + " ---\n" + ex.Text + "\n"
}

func renderHead(in Input) string {
	var buf bytes.Buffer
	buf.WriteString("You are an expert developer tasked with creating a professional GitHub README.md file.\n\n")
	buf.WriteString("PROJECT INFORMATION:\n")
	fmt.Fprintf(&buf, "- Project Name: %s\n\n", in.ProjectName)

	buf.WriteString("DIRECTORY STRUCTURE:\n```\n")
	buf.WriteString(in.Structure)
	if in.Structure != "" && !strings.HasSuffix(in.Structure, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("```\n\n")

	buf.WriteString("KEY FILES:\n")
	buf.WriteString(formatKeyFiles(in.KeyFiles))
	buf.WriteString("\n")

	buf.WriteString("I'm providing the content of key files to help you understand the project:\n")
	return buf.String()
}

func formatKeyFiles(ix keyfiles.Index) string {
	var buf strings.Builder
	for _, c := range keyfiles.Categories {
		paths := ix.Paths(c)
		if len(paths) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n%s:\n", strings.ToUpper(string(c)))
		for _, p := range paths {
			fmt.Fprintf(&buf, "- %s\n", p)
		}
	}
	return buf.String()
}

func renderTail() string {
	var buf bytes.Buffer
	buf.WriteString("\nBased on this information, generate a comprehensive, professional README.md file in GitHub markdown format. Include:\n\n")
	for i, s := range Sections {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, s)
	}
	buf.WriteString("\nFormat the README.md file professionally with proper markdown formatting. ")
	buf.WriteString("Include code blocks with appropriate language syntax highlighting where relevant. ")
	buf.WriteString("Focus on clarity and usefulness.\n")
	return buf.String()
}
