// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "devdigest/internal/errors"
)

// CommitSummary is the typed shape of one entry from the commit-list call.
// Diff statistics are absent; fetch the detail for those.
type CommitSummary struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthorDate  time.Time
	URL         string
}

// CommitDetail is a CommitSummary plus the diff statistics only available
// from the per-commit endpoint.
type CommitDetail struct {
	CommitSummary
	Additions    int
	Deletions    int
	ChangedFiles int
}

// Fetcher is the history-provider contract consumed by the sync orchestrator
// and the registration handler.
type Fetcher interface {
	ListCommitsSince(ctx context.Context, owner, name string, since time.Time) ([]CommitSummary, error)
	GetCommitDetail(ctx context.Context, owner, name, sha string) (CommitDetail, error)
	RepositoryExists(ctx context.Context, owner, name string) (bool, error)
}

// Client is a wrapper around the go-github client. Every external payload is
// converted to a typed internal shape immediately after the call; nothing
// downstream sees raw provider data.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

var _ Fetcher = (*Client)(nil)

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// ListCommitsSince fetches all commits newer than since.
// It handles API pagination transparently.
func (c *Client) ListCommitsSince(ctx context.Context, owner, name string, since time.Time) ([]CommitSummary, error) {
	var all []CommitSummary

	opts := &github.CommitsListOptions{
		Since: since,
		ListOptions: github.ListOptions{
			PerPage: 100, // Max per page
		},
	}

	for {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", opts.Page)

		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, &apperrors.FetchError{Owner: owner, Name: name, Op: "commit list", Err: err}
		}

		for _, commit := range commits {
			all = append(all, toCommitSummary(commit))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetCommitDetail fetches one commit including its diff statistics.
func (c *Client) GetCommitDetail(ctx context.Context, owner, name, sha string) (CommitDetail, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		return CommitDetail{}, &apperrors.FetchError{Owner: owner, Name: name, Op: "commit detail", Err: err}
	}

	return CommitDetail{
		CommitSummary: toCommitSummary(commit),
		Additions:     commit.GetStats().GetAdditions(),
		Deletions:     commit.GetStats().GetDeletions(),
		ChangedFiles:  len(commit.Files),
	}, nil
}

// RepositoryExists reports whether the repository is reachable on the
// external source. A 404 means false; any other failure propagates.
func (c *Client) RepositoryExists(ctx context.Context, owner, name string) (bool, error) {
	_, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return false, nil
		}
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, &apperrors.FetchError{Owner: owner, Name: name, Op: "repository lookup", Err: err}
	}
	return true, nil
}

// toCommitSummary translates a github.RepositoryCommit to the internal shape.
func toCommitSummary(c *github.RepositoryCommit) CommitSummary {
	return CommitSummary{
		SHA:         c.GetSHA(),
		Message:     c.GetCommit().GetMessage(),
		AuthorName:  c.GetCommit().GetAuthor().GetName(),
		AuthorEmail: c.GetCommit().GetAuthor().GetEmail(),
		AuthorDate:  c.GetCommit().GetAuthor().GetDate().Time,
		URL:         c.GetHTMLURL(),
	}
}
