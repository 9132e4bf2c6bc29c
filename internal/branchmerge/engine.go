// Package branchmerge merges inactive development branches into the main
// branch of all repositories of GitHub organizations.
package branchmerge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/forkguard"
	"github.com/simplesurance/mergekeeper/internal/ghutil"
	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

//go:generate mockgen -destination=mocks/githubclient.go -package=mocks . GithubClient

const loggerName = "branch_merge"

// DefDefaultBranch is used when GitHub does not report a default branch for
// a repository.
const DefDefaultBranch = "development"

// maxBaseMissingRetries is how often a merge is retried after the main branch
// was created because the merge failed with mkerr.ErrBaseDoesNotExist.
const maxBaseMissingRetries = 1

const day = 24 * time.Hour

// maxInactivityDays is the largest number of days that fits into a
// time.Duration.
const maxInactivityDays = math.MaxInt64 / int64(day)

const (
	ReasonArchived        = "Repository archived"
	ReasonIgnored         = "Repository ignored"
	ReasonExcluded        = "Repository excluded by filter"
	ReasonMainMissing     = "main branch missing and failed to create"
	ReasonNoCommitDate    = "Unable to determine last commit date"
	ReasonStillActive     = "Development branch is still active"
	reasonBranchMissingFn = "%s branch missing"
	reasonSameBranchFn    = "main branch is the same as default branch (%s)"
	reasonUnexpectedFn    = "Unexpected status: %d"
)

type GithubClient interface {
	forkguard.GithubClient

	ListOrgRepositories(ctx context.Context, org string) ([]*github.Repository, error)
	GetBranch(ctx context.Context, owner, repo, branch string) (*githubclt.BranchSnapshot, error)
	CreateMainBranchFrom(ctx context.Context, owner, repo, sourceBranch string) error
	MergeBranches(ctx context.Context, owner, repo, base, head, commitMsg string) (*githubclt.MergeResult, error)
	OpenPullRequest(ctx context.Context, owner, repo, head, base, title, body string) (*github.PullRequest, error)
	ListCommits(ctx context.Context, owner, repo, branch string) githubclt.CommitIterator
}

// ClientProvider returns a client that is authorized to access the
// repositories of org.
type ClientProvider func(ctx context.Context, org string) (GithubClient, error)

// Retryer runs GithubClient methods repeatedly if they fail with a temporary
// error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
}

// Engine merges the default branch of repositories into their main branch,
// when no human committed to the default branch for a configured number of
// days.
type Engine struct {
	clients        ClientProvider
	retryer        Retryer
	inactivityDays int
	ignore         []string
	filter         *RepositoryFilter
	clk            clock.Clock
	logger         *zap.Logger
}

type Option func(*Engine)

// WithClock sets the time source that is used to calculate the inactivity
// period.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clk = clk
	}
}

// WithIgnorePatterns configures repositories that are skipped.
// A pattern is either an organization name or "<org>/<repository>", they are
// matched case-insensitive.
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.ignore = append(e.ignore, patterns...)
	}
}

// WithRepositoryFilter skips all repositories for which f does not match.
func WithRepositoryFilter(f *RepositoryFilter) Option {
	return func(e *Engine) {
		e.filter = f
	}
}

func New(clients ClientProvider, retryer Retryer, inactivityDays int, opts ...Option) *Engine {
	e := Engine{
		clients:        clients,
		retryer:        retryer,
		inactivityDays: inactivityDays,
		clk:            clock.New(),
		logger:         zap.L().Named(loggerName),
	}

	for _, o := range opts {
		o(&e)
	}

	return &e
}

// inactivityCutoff returns the point in time before which the last commit must
// have been made for a branch to be merged.
// If the inactivity period can not be represented as time.Duration, the zero
// time is returned, no commit is old enough then.
func inactivityCutoff(now time.Time, inactivityDays int) time.Time {
	if inactivityDays < 0 || int64(inactivityDays) > maxInactivityDays {
		return time.Time{}
	}

	return now.Add(-time.Duration(inactivityDays) * day)
}

// Run processes the repositories of all orgs sequentially.
// Failures of one organization or repository do not affect the processing of
// others. When the fork guard reports that it is unsafe to run in a
// repository, the remaining repositories of the organization are not
// processed.
func (e *Engine) Run(ctx context.Context, orgs []string) *Result {
	var result Result

	metrics.run()

	for _, org := range orgs {
		if ctx.Err() != nil {
			e.logger.Info("run cancelled",
				logfields.Event("branch_merge_run_cancelled"),
				zap.Error(ctx.Err()),
			)
			break
		}

		e.processOrganization(ctx, org, &result)
	}

	e.logger.Info("branch merge run finished",
		logfields.Event("branch_merge_run_finished"),
		zap.Int("outcomes", len(result.Outcomes)),
		zap.Int("merged", result.Count(StatusMerged)),
		zap.Int("errors", result.Errors),
	)

	return &result
}

func (e *Engine) processOrganization(ctx context.Context, org string, result *Result) {
	logger := e.logger.With(logfields.Organization(org))

	logger.Info("processing organization", logfields.Event("branch_merge_org_started"))

	clt, err := e.clients(ctx, org)
	if err != nil {
		logger.Error("authenticating for organization failed",
			logfields.Event("branch_merge_org_authentication_failed"),
			zap.Error(err),
		)

		result.addError(&MergeError{
			Scope:    ScopeOrg,
			Org:      org,
			URL:      orgURL(org),
			Reason:   err.Error(),
			Stage:    StageAuthenticate,
			Severity: SeverityError,
		})

		return
	}

	var repos []*github.Repository
	err = e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		repos, err = clt.ListOrgRepositories(ctx, org)
		return err
	}, []zap.Field{logfields.Organization(org)})
	if err != nil {
		logger.Error("listing repositories failed",
			logfields.Event("branch_merge_list_repositories_failed"),
			zap.Error(err),
		)

		result.addError(&MergeError{
			Scope:    ScopeOrg,
			Org:      org,
			URL:      orgURL(org),
			Reason:   fmt.Sprintf("Failed to list repositories: %s", err),
			Stage:    StageListRepos,
			Severity: SeverityError,
		})

		return
	}

	logger.Info("retrieved repositories",
		logfields.Event("branch_merge_repositories_listed"),
		zap.Int("count", len(repos)),
	)

	for _, repo := range repos {
		if ctx.Err() != nil {
			return
		}

		if abort := e.processRepository(ctx, clt, org, repo, result); abort {
			logger.Warn("aborting processing of organization",
				logfields.Event("branch_merge_org_aborted"),
				logfields.Repository(repo.GetName()),
			)

			return
		}
	}
}

func (e *Engine) isIgnored(org, repo string) bool {
	for _, p := range e.ignore {
		if strings.EqualFold(p, org) || strings.EqualFold(p, org+"/"+repo) {
			return true
		}
	}

	return false
}

// processRepository evaluates a repository and merges it if it is eligible.
// It returns true if the processing of the organization must be aborted.
func (e *Engine) processRepository(ctx context.Context, clt GithubClient, org string, repo *github.Repository, result *Result) bool {
	repoName := repo.GetName()
	defaultBranch := repo.GetDefaultBranch()
	if defaultBranch == "" {
		defaultBranch = DefDefaultBranch
	}

	logger := e.logger.With(
		logfields.Organization(org),
		logfields.Repository(repoName),
		logfields.Branch(defaultBranch),
	)

	outcome := Outcome{
		Org:           org,
		Repo:          repoName,
		DefaultBranch: defaultBranch,
	}

	skip := func(reason string) bool {
		outcome.Status = StatusSkipped
		outcome.Reason = reason
		result.addOutcome(&outcome)

		logger.Info("skipping repository",
			logfields.Event("branch_merge_repository_skipped"),
			logfields.Reason(reason),
		)

		return false
	}

	if e.isIgnored(org, repoName) {
		return skip(ReasonIgnored)
	}

	if e.filter != nil {
		match, err := e.filter.Match(ctx, repo)
		if err != nil {
			logger.Warn("evaluating repository filter failed, skipping repository",
				logfields.Event("branch_merge_repository_filter_failed"),
				zap.Error(err),
			)
			return skip(ReasonExcluded)
		}

		if !match {
			return skip(ReasonExcluded)
		}
	}

	guard := forkguard.Check(ctx, clt, org, repoName)
	if !guard.Safe {
		logger.Warn("fork guard reported unsafe repository",
			logfields.Event("branch_merge_fork_guard_unsafe"),
			logfields.Reason(guard.Reason),
		)

		result.addError(&MergeError{
			Scope:    ScopeRepo,
			Org:      org,
			Repo:     repoName,
			URL:      repoURL(org, repoName),
			Reason:   guard.Reason,
			Stage:    StageForkGuard,
			Severity: SeverityWarning,
		})

		return true
	}

	if repo.GetArchived() {
		return skip(ReasonArchived)
	}

	branch, err := e.getBranch(ctx, clt, org, repoName, defaultBranch)
	if err != nil {
		e.recordRepoError(logger, result, org, repoName, StageUnknown, fmt.Errorf("retrieving %s branch failed: %w", defaultBranch, err))
		return false
	}

	if branch == nil {
		return skip(fmt.Sprintf(reasonBranchMissingFn, defaultBranch))
	}

	if defaultBranch == githubclt.MainBranch {
		return skip(fmt.Sprintf(reasonSameBranchFn, defaultBranch))
	}

	mainBranch, err := e.getBranch(ctx, clt, org, repoName, githubclt.MainBranch)
	if err != nil {
		e.recordRepoError(logger, result, org, repoName, StageUnknown, fmt.Errorf("retrieving main branch failed: %w", err))
		return false
	}

	if mainBranch == nil {
		logger.Info("main branch does not exist, creating it",
			logfields.Event("branch_merge_creating_main_branch"),
		)

		if err := clt.CreateMainBranchFrom(ctx, org, repoName, defaultBranch); err != nil {
			logger.Warn("creating main branch failed",
				logfields.Event("branch_merge_creating_main_branch_failed"),
				zap.Error(err),
			)
			return skip(ReasonMainMissing)
		}
	}

	lastCommit, found, err := e.lastHumanCommitDate(ctx, clt, org, repoName, branch)
	if err != nil {
		e.recordRepoError(logger, result, org, repoName, StageUnknown, fmt.Errorf("retrieving commit history failed: %w", err))
		return skip(ReasonNoCommitDate)
	}

	if !found {
		return skip(ReasonNoCommitDate)
	}

	now := e.clk.Now()
	cutoff := inactivityCutoff(now, e.inactivityDays)
	daysSinceLastCommit := int(now.Sub(lastCommit) / day)

	logger = logger.With(
		zap.Time("last_commit", lastCommit),
		zap.Int("days_since_last_commit", daysSinceLastCommit),
		zap.Int("inactivity_days", e.inactivityDays),
	)

	if lastCommit.After(cutoff) {
		return skip(ReasonStillActive)
	}

	logger.Info("branch is inactive, merging it into main",
		logfields.Event("branch_merge_merging"),
	)

	mergeRes, err := e.merge(ctx, clt, org, repoName, defaultBranch, maxBaseMissingRetries)
	if err != nil {
		e.recordRepoError(logger, result, org, repoName, StageMerge, err)
		return false
	}

	switch mergeRes.Status {
	case http.StatusCreated:
		outcome.Status = StatusMerged
		outcome.SHA = mergeRes.SHA

		logger.Info("merged branch into main",
			logfields.Event("branch_merge_merged"),
			logfields.Commit(mergeRes.SHA),
		)

	case http.StatusNoContent:
		outcome.Status = StatusUpToDate

		logger.Info("main already contains branch",
			logfields.Event("branch_merge_uptodate"),
		)

	case http.StatusConflict:
		outcome.Status = StatusConflict

		logger.Warn("merge conflict, opening pull request",
			logfields.Event("branch_merge_conflict"),
		)

		e.openFallbackPullRequest(ctx, clt, logger, result, org, repoName, defaultBranch)

	default:
		return skip(fmt.Sprintf(reasonUnexpectedFn, mergeRes.Status))
	}

	result.addOutcome(&outcome)

	return false
}

func (e *Engine) recordRepoError(logger *zap.Logger, result *Result, org, repo string, stage Stage, err error) {
	severity := classifySeverity(err.Error())

	if severity == SeverityError {
		logger.Error("processing repository failed",
			logfields.Event("branch_merge_repository_failed"),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	} else {
		logger.Warn("processing repository failed",
			logfields.Event("branch_merge_repository_failed"),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}

	result.addError(&MergeError{
		Scope:    ScopeRepo,
		Org:      org,
		Repo:     repo,
		URL:      repoURL(org, repo),
		Reason:   err.Error(),
		Stage:    stage,
		Severity: severity,
	})
}

func (e *Engine) getBranch(ctx context.Context, clt GithubClient, org, repo, branch string) (*githubclt.BranchSnapshot, error) {
	var result *githubclt.BranchSnapshot

	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = clt.GetBranch(ctx, org, repo, branch)
		return err
	}, []zap.Field{logfields.Organization(org), logfields.Repository(repo), logfields.Branch(branch)})

	return result, err
}

// merge merges branch into main. If the main branch does not exist, it is
// created and the merge is retried up to retries times.
func (e *Engine) merge(ctx context.Context, clt GithubClient, org, repo, branch string, retries int) (*githubclt.MergeResult, error) {
	var result *githubclt.MergeResult

	commitMsg := fmt.Sprintf(
		"Merge %s into %s\n\nNo commits were made to %s for at least %d days.",
		branch, githubclt.MainBranch, branch, e.inactivityDays,
	)

	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = clt.MergeBranches(ctx, org, repo, githubclt.MainBranch, branch, commitMsg)
		return err
	}, []zap.Field{logfields.Organization(org), logfields.Repository(repo), logfields.Branch(branch)})
	if err == nil {
		return result, nil
	}

	if !errors.Is(err, mkerr.ErrBaseDoesNotExist) || retries <= 0 {
		return nil, err
	}

	e.logger.Info("main branch does not exist, creating it and retrying merge",
		logfields.Event("branch_merge_base_missing"),
		logfields.Organization(org),
		logfields.Repository(repo),
		zap.Int("retries_left", retries),
	)

	if err := clt.CreateMainBranchFrom(ctx, org, repo, branch); err != nil {
		return nil, fmt.Errorf("creating missing main branch failed: %w", err)
	}

	return e.merge(ctx, clt, org, repo, branch, retries-1)
}

func (e *Engine) openFallbackPullRequest(ctx context.Context, clt GithubClient, logger *zap.Logger, result *Result, org, repo, branch string) {
	pr, err := clt.OpenPullRequest(
		ctx, org, repo, branch, githubclt.MainBranch,
		fmt.Sprintf("Merge %s into %s", branch, githubclt.MainBranch),
		fmt.Sprintf("Merging %s into %s automatically failed because of conflicts, they have to be resolved manually.", branch, githubclt.MainBranch),
	)
	if err != nil {
		e.recordRepoError(logger, result, org, repo, StageMerge, fmt.Errorf("opening pull request failed: %w", err))
		return
	}

	logger.Info("opened pull request for conflicting merge",
		logfields.Event("branch_merge_pull_request_opened"),
		logfields.PullRequest(pr.GetNumber()),
	)
}

func isHumanCommit(c *githubclt.Commit) bool {
	return !ghutil.IsBotName(c.AuthorName) &&
		!ghutil.IsBotName(c.CommitterName) &&
		ghutil.IsHumanAccount(c.AuthorLogin, c.AuthorType) &&
		ghutil.IsHumanAccount(c.CommitterLogin, c.CommitterType)
}

// lastHumanCommitDate returns the date of the newest commit on branch that
// was authored and committed by a human.
// If the history only contains bot commits, the date of the branch head is
// returned.
func (e *Engine) lastHumanCommitDate(ctx context.Context, clt GithubClient, org, repo string, branch *githubclt.BranchSnapshot) (time.Time, bool, error) {
	head := branch.Head
	if head == nil {
		return time.Time{}, false, nil
	}

	if isHumanCommit(head) {
		d, ok := head.Date()
		return d, ok, nil
	}

	it := clt.ListCommits(ctx, org, repo, branch.Name)
	for {
		c, err := it.Next()
		if err != nil {
			return time.Time{}, false, err
		}

		if c == nil {
			break
		}

		if !isHumanCommit(c) {
			continue
		}

		if d, ok := c.Date(); ok {
			e.logger.Debug("branch head is a bot commit, using last human commit",
				logfields.Event("branch_merge_human_commit_found"),
				logfields.Organization(org),
				logfields.Repository(repo),
				logfields.Commit(c.SHA),
			)
			return d, true, nil
		}
	}

	e.logger.Debug("branch contains only bot commits, using head commit date",
		logfields.Event("branch_merge_no_human_commit"),
		logfields.Organization(org),
		logfields.Repository(repo),
	)

	d, ok := head.Date()
	return d, ok, nil
}
