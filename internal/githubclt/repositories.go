package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

// MainBranch is the branch development branches are merged into.
const MainBranch = "main"

const baseDoesNotExistMsg = "Base does not exist"

// Commit is the authorship information of a commit.
type Commit struct {
	SHA string

	AuthorName  string
	AuthorLogin string
	AuthorType  string
	AuthorDate  time.Time

	CommitterName  string
	CommitterLogin string
	CommitterType  string
	CommitterDate  time.Time
}

// Date returns the committer date, if it is unset the author date.
// If both are unset, false is returned.
func (c *Commit) Date() (time.Time, bool) {
	if !c.CommitterDate.IsZero() {
		return c.CommitterDate, true
	}

	if !c.AuthorDate.IsZero() {
		return c.AuthorDate, true
	}

	return time.Time{}, false
}

func toCommit(rc *github.RepositoryCommit) *Commit {
	result := Commit{SHA: rc.GetSHA()}

	if c := rc.GetCommit(); c != nil {
		result.AuthorName = c.GetAuthor().GetName()
		result.AuthorDate = c.GetAuthor().GetDate().Time
		result.CommitterName = c.GetCommitter().GetName()
		result.CommitterDate = c.GetCommitter().GetDate().Time
	}

	if u := rc.GetAuthor(); u != nil {
		result.AuthorLogin = u.GetLogin()
		result.AuthorType = u.GetType()
	}

	if u := rc.GetCommitter(); u != nil {
		result.CommitterLogin = u.GetLogin()
		result.CommitterType = u.GetType()
	}

	return &result
}

// BranchSnapshot is the state of a branch at the time it was fetched.
type BranchSnapshot struct {
	Name string
	Head *Commit
}

// MergeResult is the result of a branch merge, Status is the HTTP status code
// returned by GitHub:
// 201 a merge commit was created, 204 the base already contained the head,
// 409 the merge has conflicts.
type MergeResult struct {
	Status int
	SHA    string
}

// ListOrgRepositories returns all repositories of an organization.
func (clt *Client) ListOrgRepositories(ctx context.Context, org string) ([]*github.Repository, error) {
	var result []*github.Repository

	opts := github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		if err := clt.wait(ctx); err != nil {
			return nil, err
		}

		repos, resp, err := clt.restClt.Repositories.ListByOrg(ctx, org, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, repos...)

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// GetRepository returns the metadata of a repository.
// If the repository does not exist, mkerr.ErrNotFound is returned.
func (clt *Client) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	if err := clt.wait(ctx); err != nil {
		return nil, err
	}

	r, _, err := clt.restClt.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("repository %s/%s: %w", owner, repo, mkerr.ErrNotFound)
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	return r, nil
}

// GetBranch returns the tip of a branch.
// If the branch does not exist, nil is returned for the snapshot and the
// error.
func (clt *Client) GetBranch(ctx context.Context, owner, repo, branch string) (*BranchSnapshot, error) {
	if err := clt.wait(ctx); err != nil {
		return nil, err
	}

	b, _, err := clt.restClt.Repositories.GetBranch(ctx, owner, repo, branch, 1)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	result := BranchSnapshot{Name: b.GetName()}
	if b.Commit != nil {
		result.Head = toCommit(b.Commit)
	}

	return &result, nil
}

// CreateMainBranchFrom creates the main branch pointing to the head commit of
// sourceBranch.
// If the main branch already exists, nothing is done.
func (clt *Client) CreateMainBranchFrom(ctx context.Context, owner, repo, sourceBranch string) error {
	logger := clt.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Branch(sourceBranch),
	)

	mainBranch, err := clt.GetBranch(ctx, owner, repo, MainBranch)
	if err != nil {
		return fmt.Errorf("checking if main branch exists failed: %w", err)
	}

	if mainBranch != nil {
		logger.Debug("main branch already exists, skipping creation",
			logfields.Event("github_main_branch_exists"))
		return nil
	}

	src, err := clt.GetBranch(ctx, owner, repo, sourceBranch)
	if err != nil {
		return fmt.Errorf("retrieving source branch failed: %w", err)
	}

	if src == nil || src.Head == nil || src.Head.SHA == "" {
		return fmt.Errorf("source branch %q: %w", sourceBranch, mkerr.ErrNotFound)
	}

	if err := clt.wait(ctx); err != nil {
		return err
	}

	_, _, err = clt.restClt.Git.CreateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + MainBranch),
		Object: &github.GitObject{SHA: github.String(src.Head.SHA)},
	})
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) &&
			respErr.Response != nil &&
			respErr.Response.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(respErr.Message, "Reference already exists") {
			logger.Debug("main branch was created concurrently",
				logfields.Event("github_main_branch_exists"))
			return nil
		}

		return clt.wrapRetryableErrors(err)
	}

	logger.Info("main branch created",
		logfields.Event("github_main_branch_created"),
		logfields.Commit(src.Head.SHA),
	)

	return nil
}

// MergeBranches merges head into base.
// A merge conflict is not returned as error but as MergeResult with Status
// 409.
// If base does not exist, an error wrapping mkerr.ErrBaseDoesNotExist is
// returned.
func (clt *Client) MergeBranches(ctx context.Context, owner, repo, base, head, commitMsg string) (*MergeResult, error) {
	if err := clt.wait(ctx); err != nil {
		return nil, err
	}

	commit, resp, err := clt.restClt.Repositories.Merge(ctx, owner, repo, &github.RepositoryMergeRequest{
		Base:          github.String(base),
		Head:          github.String(head),
		CommitMessage: github.String(commitMsg),
	})
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil {
			switch respErr.Response.StatusCode {
			case http.StatusConflict:
				return &MergeResult{Status: http.StatusConflict}, nil

			case http.StatusNotFound:
				if strings.Contains(respErr.Message, baseDoesNotExistMsg) {
					return nil, fmt.Errorf("merging %s into %s: %w", head, base, mkerr.ErrBaseDoesNotExist)
				}
			}
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	result := MergeResult{Status: resp.StatusCode}
	if commit != nil {
		result.SHA = commit.GetSHA()
	}

	return &result, nil
}

// CommitIterator iterates over the commits of a branch, newest first.
type CommitIterator interface {
	// Next returns the next commit. When all commits were returned, nil
	// is returned.
	Next() (*Commit, error)
}

type commitIter struct {
	clt *Client

	ctx    context.Context
	owner  string
	repo   string
	branch string

	unseen []*github.RepositoryCommit

	nextPage int
	finished bool
}

func (it *commitIter) Next() (*Commit, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return toCommit(result), nil
	}

	if it.finished {
		return nil, nil
	}

	if err := it.clt.wait(it.ctx); err != nil {
		return nil, err
	}

	commits, resp, err := it.clt.restClt.Repositories.ListCommits(it.ctx, it.owner, it.repo, &github.CommitsListOptions{
		SHA: it.branch,
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: perPage,
		},
	})
	if err != nil {
		return nil, it.clt.wrapRetryableErrors(err)
	}

	if resp.NextPage == 0 || len(commits) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = commits
	if len(it.unseen) == 0 {
		return nil, nil
	}

	return it.Next()
}

// ListCommits returns an iterator over the history of branch, newest commit
// first.
// Pages are only fetched when they are reached.
func (clt *Client) ListCommits(ctx context.Context, owner, repo, branch string) CommitIterator { // interface is returned to make the method mockable
	return &commitIter{
		clt:      clt,
		ctx:      ctx,
		owner:    owner,
		repo:     repo,
		branch:   branch,
		nextPage: 1,
	}
}

// SetWorkflowEnabled enables or disables a GitHub Actions workflow.
func (clt *Client) SetWorkflowEnabled(ctx context.Context, owner, repo, workflowFile string, enabled bool) error {
	if err := clt.wait(ctx); err != nil {
		return err
	}

	var err error
	if enabled {
		_, err = clt.restClt.Actions.EnableWorkflowByFileName(ctx, owner, repo, workflowFile)
	} else {
		_, err = clt.restClt.Actions.DisableWorkflowByFileName(ctx, owner, repo, workflowFile)
	}

	if err != nil {
		return clt.wrapRetryableErrors(err)
	}

	clt.logger.Debug("workflow state changed",
		logfields.Event("github_workflow_state_changed"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		zap.String("workflow", workflowFile),
		zap.Bool("enabled", enabled),
	)

	return nil
}
