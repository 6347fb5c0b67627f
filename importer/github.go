// Package importer pulls issues from external trackers into work items.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

// IssueSource lists the issues of a repository, pull requests excluded.
type IssueSource interface {
	ListIssues(ctx context.Context, owner, repo string) ([]*github.Issue, error)
}

// GitHubSource reads issues through the GitHub REST API.
type GitHubSource struct {
	client *github.Client
	logger *slog.Logger
}

// NewGitHubSource creates a source authenticated with token. An empty token
// makes unauthenticated requests. baseURL selects a GitHub Enterprise API
// endpoint such as https://ghe.example.com/api/v3/; empty means github.com.
func NewGitHubSource(ctx context.Context, token, baseURL string, logger *slog.Logger) (*GitHubSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(hc)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
		client.UploadURL = u
	}
	return &GitHubSource{client: client, logger: logger}, nil
}

// ListIssues fetches open and closed issues, 100 per page.
func (s *GitHubSource) ListIssues(ctx context.Context, owner, repo string) ([]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.Issue
	for {
		issues, resp, err := s.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list github issues %s/%s: %w", owner, repo, err)
		}
		for _, is := range issues {
			// The issues endpoint also returns pull requests.
			if is.IsPullRequest() {
				continue
			}
			all = append(all, is)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	s.logger.DebugContext(ctx, "github issues fetched",
		slog.String("repo", owner+"/"+repo), slog.Int("count", len(all)))
	return all, nil
}

// SplitRepository parses "owner/repo".
func SplitRepository(repository string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(repository), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// ExternalRef is the reference stored on items imported from GitHub.
func ExternalRef(owner, repo string, number int) string {
	return fmt.Sprintf("github:%s/%s#%d", owner, repo, number)
}
