// Package ghutil contains helpers to interpret GitHub identifiers, timestamps
// and account names.
package ghutil

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// IssueRef identifies an issue or pull request in a repository.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// URL returns the html url of the issue.
func (r IssueRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s/issues/%d", r.Owner, r.Repo, r.Number)
}

// ParseIssueURL parses an issue or pull request html url of the form
// https://github.com/<owner>/<repo>/<issues|pull>/<number>.
func ParseIssueURL(rawURL string) (IssueRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return IssueRef{}, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	path := strings.Split(u.Path, "/")
	if len(path) != 5 || path[0] != "" {
		return IssueRef{}, fmt.Errorf("invalid url %q: path must have the form /<owner>/<repo>/<type>/<number>", rawURL)
	}

	if path[1] == "" || path[2] == "" {
		return IssueRef{}, fmt.Errorf("invalid url %q: owner or repository is empty", rawURL)
	}

	nr, err := strconv.Atoi(path[4])
	if err != nil || nr <= 0 {
		return IssueRef{}, fmt.Errorf("invalid url %q: %q is not a valid issue number", rawURL, path[4])
	}

	return IssueRef{
		Owner:  path[1],
		Repo:   path[2],
		Number: nr,
	}, nil
}

// SplitFullName splits a "owner/repo" string.
func SplitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, found := strings.Cut(fullName, "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%q is not in the format owner/repository", fullName)
	}

	return owner, repo, nil
}
