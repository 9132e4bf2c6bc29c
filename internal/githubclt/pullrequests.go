package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

var ErrPullRequestNotMerged = errors.New("pull request was not merged")

// OpenPullRequest creates a pull request to merge head into base.
func (clt *Client) OpenPullRequest(ctx context.Context, owner, repo, head, base, title, body string) (*github.PullRequest, error) {
	if err := clt.wait(ctx); err != nil {
		return nil, err
	}

	pr, _, err := clt.restClt.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	clt.logger.Info("pull request created",
		logfields.Event("github_pull_request_created"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Branch(head),
		logfields.BaseBranch(base),
		logfields.PullRequest(pr.GetNumber()),
	)

	return pr, nil
}

type PRIterator interface {
	Next() (*github.PullRequest, error)
}

type PRIter struct {
	clt *Client

	ctx   context.Context
	owner string
	repo  string
	head  string

	unseen []*github.PullRequest

	nextPage int
	finished bool
}

// Next returns the next pullRequest.
// When the last result was returned a nil PullRequest is returned.
func (it *PRIter) Next() (*github.PullRequest, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return result, nil
	}

	if it.finished {
		return nil, nil
	}

	if err := it.clt.wait(it.ctx); err != nil {
		return nil, err
	}

	prs, resp, err := it.clt.restClt.PullRequests.List(it.ctx, it.owner, it.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  it.head,
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: perPage,
		},
	})
	if err != nil {
		return nil, it.clt.wrapRetryableErrors(err)
	}

	if resp.NextPage == 0 || len(prs) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = prs
	if len(it.unseen) == 0 {
		return nil, nil
	}

	return it.Next()
}

// ListOpenPullRequests returns an iterator over the open pull requests of a
// repository.
// If head is not empty, only pull requests with that head are returned, head
// has the format "<user>:<branch>".
func (clt *Client) ListOpenPullRequests(ctx context.Context, owner, repo, head string) PRIterator { // interface is returned to make the method mockable
	return &PRIter{
		clt:      clt,
		ctx:      ctx,
		owner:    owner,
		repo:     repo,
		head:     head,
		nextPage: 1,
	}
}

// GetPullRequest returns a pull request.
func (clt *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	if err := clt.wait(ctx); err != nil {
		return nil, err
	}

	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("pull request %s/%s#%d: %w", owner, repo, number, mkerr.ErrNotFound)
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	return pr, nil
}

// TimelineEvent contains the timestamps of an issue timeline event.
// Depending on the event type, different fields are set. They are returned
// unparsed.
type TimelineEvent struct {
	Event       string `json:"event"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Timestamp   string `json:"timestamp"`
	CommentedAt string `json:"commented_at"`
	SubmittedAt string `json:"submitted_at"`
}

// TimelineEvents returns all timeline events of an issue or pull request.
func (clt *Client) TimelineEvents(ctx context.Context, owner, repo string, number int) ([]*TimelineEvent, error) {
	var result []*TimelineEvent

	page := 1
	for {
		if err := clt.wait(ctx); err != nil {
			return nil, err
		}

		u := fmt.Sprintf("repos/%s/%s/issues/%d/timeline?per_page=%d&page=%d", owner, repo, number, perPage, page)
		req, err := clt.restClt.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		var events []*TimelineEvent
		resp, err := clt.restClt.Do(ctx, req, &events)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, events...)

		if resp.NextPage == 0 || len(events) == 0 {
			return result, nil
		}

		page = resp.NextPage
	}
}

// ListReviews returns all reviews of a pull request.
func (clt *Client) ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error) {
	var result []*github.PullRequestReview

	opts := github.ListOptions{PerPage: perPage}
	for {
		if err := clt.wait(ctx); err != nil {
			return nil, err
		}

		reviews, resp, err := clt.restClt.PullRequests.ListReviews(ctx, owner, repo, number, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, reviews...)

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// MergePullRequest merges a pull request and returns the SHA of the merge
// commit.
func (clt *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, commitMsg string) (string, error) {
	if err := clt.wait(ctx); err != nil {
		return "", err
	}

	res, _, err := clt.restClt.PullRequests.Merge(ctx, owner, repo, number, commitMsg, nil)
	if err != nil {
		return "", clt.wrapRetryableErrors(err)
	}

	if !res.GetMerged() {
		return "", fmt.Errorf("%w: %s", ErrPullRequestNotMerged, res.GetMessage())
	}

	clt.logger.Info("pull request merged",
		logfields.Event("github_pull_request_merged"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.Commit(res.GetSHA()),
	)

	return res.GetSHA(), nil
}

// LinkedPullRequest is a pull request that closes an issue when it is merged.
type LinkedPullRequest struct {
	Owner  string
	Repo   string
	Number int
	URL    string
}

// LinkedPullRequests returns the open, non-draft pull requests that reference
// the issue with a closing keyword.
func (clt *Client) LinkedPullRequests(ctx context.Context, owner, repo string, issueNumber int) ([]*LinkedPullRequest, error) {
	type graphQLQueryLinkedPRs struct {
		Repository struct {
			Issue struct {
				ClosedByPullRequestsReferences struct {
					PageInfo struct {
						EndCursor   string
						HasNextPage bool
					}
					Nodes []struct {
						Number     int
						URL        string
						State      githubv4.PullRequestState
						IsDraft    bool
						Repository struct {
							Name  string
							Owner struct {
								Login string
							}
						}
					}
				} `graphql:"closedByPullRequestsReferences(first: $first, includeClosedPrs: false, after: $after)"`
			} `graphql:"issue(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	var result []*LinkedPullRequest

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"number": githubv4.Int(issueNumber),
		"first":  githubv4.Int(10),
		"after":  (*githubv4.String)(nil),
	}

	for {
		if err := clt.wait(ctx); err != nil {
			return nil, err
		}

		var q graphQLQueryLinkedPRs
		if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
			return nil, clt.wrapGraphQLRetryableErrors(err)
		}

		refs := q.Repository.Issue.ClosedByPullRequestsReferences
		for _, node := range refs.Nodes {
			if node.State != githubv4.PullRequestStateOpen || node.IsDraft {
				continue
			}

			result = append(result, &LinkedPullRequest{
				Owner:  node.Repository.Owner.Login,
				Repo:   node.Repository.Name,
				Number: node.Number,
				URL:    node.URL,
			})
		}

		if !refs.PageInfo.HasNextPage {
			return result, nil
		}

		if refs.PageInfo.EndCursor == "" {
			return nil, errors.New("retrieving all linked pull requests failed, HasNextPage is true, expected non-empty EndCursor")
		}

		vars["after"] = githubv4.NewString(githubv4.String(refs.PageInfo.EndCursor))
	}
}
