package github

import (
	"fmt"
	"net/url"
	"strings"
)

// InvalidURLError reports a repository URL that is not https://github.com/<owner>/<repo>.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid GitHub URL %q: %s (expected https://github.com/<owner>/<repo>)", e.URL, e.Reason)
}

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// ParseRepoURL validates raw and extracts owner and repository name.
// Trailing slashes, a ".git" suffix and extra path segments (e.g. /tree/main)
// are tolerated.
func ParseRepoURL(raw string) (Repo, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Repo{}, &InvalidURLError{URL: raw, Reason: "empty"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return Repo{}, &InvalidURLError{URL: raw, Reason: err.Error()}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Repo{}, &InvalidURLError{URL: raw, Reason: "scheme must be https"}
	}
	if !strings.EqualFold(u.Host, "github.com") {
		return Repo{}, &InvalidURLError{URL: raw, Reason: "host must be github.com"}
	}
	owner, repo, ok := splitOwnerRepo(u.Path)
	if !ok {
		return Repo{}, &InvalidURLError{URL: raw, Reason: "missing owner or repository"}
	}
	return Repo{Owner: owner, Name: repo}, nil
}

func splitOwnerRepo(repoPath string) (owner, repo string, ok bool) {
	parts := strings.Split(strings.Trim(repoPath, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSuffix(strings.TrimSpace(parts[1]), ".git")
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
