// Package forkguard detects when mergekeeper runs in a fork of a repository
// that has an open pull request to its upstream.
// Merging branches in such a fork would flow into the upstream pull request.
package forkguard

import (
	"context"
	"fmt"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/ghutil"
	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

//go:generate mockgen -destination=mocks/githubclient.go -package=mocks . GithubClient

const loggerName = "fork_guard"

const (
	ReasonCheckFailed   = "fork guard check failed"
	ReasonUnknownParent = "fork detected with unknown parent"
)

type GithubClient interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error)
	ListOpenPullRequests(ctx context.Context, owner, repo, head string) githubclt.PRIterator
}

// Result is the result of a fork check.
// If Safe is false, Reason describes why.
type Result struct {
	Safe   bool
	Reason string
}

// Check returns an unsafe result if owner/repo is a fork and an open pull
// request from its main branch to the parent repository exists.
// Every error and every unclear state results in an unsafe result.
func Check(ctx context.Context, clt GithubClient, owner, repo string) *Result {
	logger := zap.L().Named(loggerName).With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
	)

	r, err := clt.GetRepository(ctx, owner, repo)
	if err != nil {
		logger.Warn("retrieving repository metadata failed, assuming unsafe",
			logfields.Event("fork_guard_check_failed"),
			zap.Error(err),
		)
		return &Result{Reason: ReasonCheckFailed}
	}

	if !r.GetFork() {
		return &Result{Safe: true}
	}

	parent := r.GetParent().GetFullName()
	if parent == "" {
		logger.Warn("repository is a fork of an unknown parent, assuming unsafe",
			logfields.Event("fork_guard_unknown_parent"),
		)
		return &Result{Reason: ReasonUnknownParent}
	}

	parentOwner := r.GetParent().GetOwner().GetLogin()
	parentRepo := r.GetParent().GetName()
	if parentOwner == "" || parentRepo == "" {
		parentOwner, parentRepo, err = ghutil.SplitFullName(parent)
		if err != nil {
			logger.Warn("parent repository name is invalid, assuming unsafe",
				logfields.Event("fork_guard_unknown_parent"),
				zap.Error(err),
			)
			return &Result{Reason: ReasonUnknownParent}
		}
	}

	head := owner + ":" + githubclt.MainBranch
	it := clt.ListOpenPullRequests(ctx, parentOwner, parentRepo, head)

	pr, err := it.Next()
	if err != nil {
		logger.Warn("listing pull requests of parent repository failed, assuming unsafe",
			logfields.Event("fork_guard_check_failed"),
			zap.String("github.parent_repository", parent),
			zap.Error(err),
		)
		return &Result{Reason: ReasonCheckFailed}
	}

	if pr == nil {
		logger.Debug("repository is a fork without open upstream pull request",
			logfields.Event("fork_guard_safe_fork"),
			zap.String("github.parent_repository", parent),
		)
		return &Result{Safe: true}
	}

	reason := fmt.Sprintf(
		"fork %s/%s has open pull request #%d from %s to %s",
		owner, repo, pr.GetNumber(), head, parent,
	)

	logger.Warn("fork with open upstream pull request detected",
		logfields.Event("fork_guard_unsafe"),
		logfields.PullRequest(pr.GetNumber()),
		zap.String("github.parent_repository", parent),
	)

	return &Result{Reason: reason}
}
