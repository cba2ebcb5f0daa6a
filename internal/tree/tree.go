package tree

import (
	"sort"
	"strings"
)

// Style selects how a tree is rendered.
type Style string

const (
	// StyleIndent renders "📂 dir/" and "📄 file" lines indented two spaces per level.
	StyleIndent Style = "indent"
	// StyleBranches renders box-drawing branches (├── / └──).
	StyleBranches Style = "branches"
)

// ParseStyle maps a config string to a Style, defaulting to StyleIndent.
func ParseStyle(s string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleBranches:
		return StyleBranches
	default:
		return StyleIndent
	}
}

// Node is one directory in the tree. Children are kept sorted.
type Node struct {
	Name  string
	Dirs  []*Node
	Files []string
}

// Build converts slash-separated file paths into a directory tree.
// All segments but the last are directories; the last is a file leaf.
func Build(paths []string) *Node {
	root := &Node{}
	for _, p := range paths {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		parts := strings.Split(p, "/")
		cur := root
		for _, dir := range parts[:len(parts)-1] {
			if dir == "" || dir == "." {
				continue
			}
			cur = cur.child(dir)
		}
		cur.addFile(parts[len(parts)-1])
	}
	root.sort()
	return root
}

func (n *Node) child(name string) *Node {
	for _, d := range n.Dirs {
		if d.Name == name {
			return d
		}
	}
	d := &Node{Name: name}
	n.Dirs = append(n.Dirs, d)
	return d
}

func (n *Node) addFile(name string) {
	for _, f := range n.Files {
		if f == name {
			return
		}
	}
	n.Files = append(n.Files, name)
}

func (n *Node) sort() {
	sort.Slice(n.Dirs, func(i, j int) bool { return n.Dirs[i].Name < n.Dirs[j].Name })
	sort.Strings(n.Files)
	for _, d := range n.Dirs {
		d.sort()
	}
}

// Render renders paths as the indented diagram. An empty list renders as "".
func Render(paths []string) string {
	var sb strings.Builder
	renderIndent(&sb, Build(paths), "")
	return sb.String()
}

// RenderBranches renders paths with box-drawing branches, same ordering as Render.
func RenderBranches(paths []string) string {
	var sb strings.Builder
	renderBranches(&sb, Build(paths), "")
	return sb.String()
}

// RenderStyle dispatches to Render or RenderBranches.
func RenderStyle(paths []string, style Style) string {
	if style == StyleBranches {
		return RenderBranches(paths)
	}
	return Render(paths)
}

// Example for a/b.py, a/c.py, d.py:
//
//	📂 a/
//	  📄 b.py
//	  📄 c.py
//	📄 d.py
func renderIndent(sb *strings.Builder, n *Node, prefix string) {
	for _, d := range n.Dirs {
		sb.WriteString(prefix + "📂 " + d.Name + "/\n")
		renderIndent(sb, d, prefix+"  ")
	}
	for _, f := range n.Files {
		sb.WriteString(prefix + "📄 " + f + "\n")
	}
}

func renderBranches(sb *strings.Builder, n *Node, prefix string) {
	total := len(n.Dirs) + len(n.Files)
	i := 0
	for _, d := range n.Dirs {
		i++
		last := i == total
		sb.WriteString(prefix + branch(last) + d.Name + "/\n")
		next := prefix + "│   "
		if last {
			next = prefix + "    "
		}
		renderBranches(sb, d, next)
	}
	for _, f := range n.Files {
		i++
		sb.WriteString(prefix + branch(i == total) + f + "\n")
	}
}

func branch(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}
