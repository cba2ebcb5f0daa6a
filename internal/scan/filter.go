package scan

import (
	"path"
	"strings"
)

// ignoredDirs are pruned from every traversal, in addition to hidden dirs.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
}

// binaryExts is the fixed extension denylist shared by local and remote scans.
var binaryExts = map[string]bool{
	".pyc":   true,
	".class": true,
	".o":     true,
	".so":    true,
	".dll":   true,
	".exe":   true,
}

// SkipDir reports whether a directory with this base name is pruned.
func SkipDir(name string) bool {
	return ignoredDirs[name] || strings.HasPrefix(name, ".")
}

// SkipFile reports whether a local file with this base name is ignored.
func SkipFile(name string) bool {
	return strings.HasPrefix(name, ".") || IsBinaryExt(name)
}

// IsBinaryExt reports whether name carries a denylisted extension (case-insensitive).
func IsBinaryExt(name string) bool {
	return binaryExts[strings.ToLower(path.Ext(name))]
}
