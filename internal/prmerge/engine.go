// Package prmerge merges pull requests that close watched issues, when they
// had no activity for a configured period, are sufficiently approved and
// their CI checks passed.
package prmerge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/ghutil"
	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/provider"
	"github.com/simplesurance/mergekeeper/internal/ratelimit"
	"github.com/simplesurance/mergekeeper/internal/watchlist"
)

//go:generate mockgen -destination=mocks/githubclient.go -package=mocks . GithubClient

const loggerName = "pr_merge"

const reviewStateApproved = "APPROVED"

type GithubClient interface {
	LinkedPullRequests(ctx context.Context, owner, repo string, issueNumber int) ([]*githubclt.LinkedPullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	TimelineEvents(ctx context.Context, owner, repo string, number int) ([]*githubclt.TimelineEvent, error)
	ListReviews(ctx context.Context, owner, repo string, number int) ([]*github.PullRequestReview, error)
	ListCheckSuites(ctx context.Context, owner, repo, ref string) ([]*github.CheckSuite, error)
	ListCheckRunsForSuite(ctx context.Context, owner, repo string, suiteID int64) ([]*github.CheckRun, error)
	MergePullRequest(ctx context.Context, owner, repo string, number int, commitMsg string) (string, error)
	SetWorkflowEnabled(ctx context.Context, owner, repo, workflowFile string, enabled bool) error
}

// ClientProvider returns a client that is authorized to access owner/repo.
type ClientProvider func(ctx context.Context, owner, repo string) (GithubClient, error)

// WatchList stores the issues whose linked pull requests are evaluated.
type WatchList interface {
	AddIssue(ctx context.Context, issueURL string) error
	RemoveIssueByNumber(ctx context.Context, owner, repo string, issueNumber int) error
	AllRepositories(ctx context.Context) ([]*watchlist.Repository, error)
	HasData(ctx context.Context) (bool, error)
}

// ResultSink receives the results of evaluating pull requests.
type ResultSink interface {
	ReportPullRequests(ctx context.Context, results []*ResultInfo) error
}

// Retryer runs GithubClient methods repeatedly if they fail with a temporary
// error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
}

// ResultInfo is the result of evaluating a pull request.
type ResultInfo struct {
	URL    string
	Merged bool
}

type Engine struct {
	clients   ClientProvider
	watchList WatchList
	retryer   Retryer
	sink      ResultSink
	limiter   *ratelimit.Limiter
	clk       clock.Clock
	logger    *zap.Logger

	cfg                  Config
	excludedRepositories map[string]struct{}
	allowedReviewerRoles map[string]struct{}
}

type Option func(*Engine)

func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clk = clk
	}
}

// WithResultSink sets the sink that receives the results after each
// processed event or sweep.
func WithResultSink(s ResultSink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithRateLimiter paces the repositories that are processed by Sweep.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

func New(clients ClientProvider, wl WatchList, retryer Retryer, cfg *Config, opts ...Option) *Engine {
	e := Engine{
		clients:              clients,
		watchList:            wl,
		retryer:              retryer,
		clk:                  clock.New(),
		logger:               zap.L().Named(loggerName),
		cfg:                  *cfg,
		excludedRepositories: toLowerSet(cfg.ExcludedRepositories),
		allowedReviewerRoles: toUpperSet(cfg.AllowedReviewerRoles),
	}

	e.cfg.setDefaults()

	for _, o := range opts {
		o(&e)
	}

	return &e
}

func (e *Engine) isExcluded(owner, repo string) bool {
	_, exist := e.excludedRepositories[strings.ToLower(owner+"/"+repo)]
	return exist
}

// HandleEvent processes an issue event.
// Assigned issues are added to the watch list, unassigned issues without
// remaining assignees and closed issues are removed from it.
// For all other events the pull requests that close the issue are
// evaluated and merged when they are eligible.
// Afterwards the periodic workflow is enabled or disabled, depending on
// whether the watch list contains issues.
func (e *Engine) HandleEvent(ctx context.Context, ev *provider.Event) error {
	logger := e.logger.With(ev.LogFields()...)

	metrics.event(ev.EventType)

	var err error

	switch ev.EventType {
	case provider.EventIssueAssigned:
		err = e.register(ctx, logger, ev)

	case provider.EventIssueUnassigned:
		if ev.Assignees > 0 {
			logger.Info("issue still has assignees, nothing to do",
				logfields.Event("issue_still_assigned"),
				zap.Int("assignees", ev.Assignees),
			)
			break
		}

		err = e.deregister(ctx, logger, ev)

	case provider.EventIssueClosed:
		err = e.deregister(ctx, logger, ev)

	default:
		var results []*ResultInfo
		results, err = e.evaluateIssueWithClient(ctx, logger, ev.Owner, ev.Repository, ev.IssueNumber)
		e.report(ctx, results)
	}

	e.updateCronState(ctx)

	return err
}

func (e *Engine) register(ctx context.Context, logger *zap.Logger, ev *provider.Event) error {
	if e.isExcluded(ev.Owner, ev.Repository) {
		logger.Info("issue is in an excluded repository, not adding it to the watch list",
			logfields.Event("issue_registration_skipped"),
		)
		return nil
	}

	issueURL := ev.IssueURL
	if issueURL == "" {
		issueURL = ghutil.IssueRef{Owner: ev.Owner, Repo: ev.Repository, Number: ev.IssueNumber}.URL()
	}

	if err := e.watchList.AddIssue(ctx, issueURL); err != nil {
		return fmt.Errorf("adding issue to watch list failed: %w", err)
	}

	logger.Info("issue added to watch list",
		logfields.Event("issue_registered"),
		logfields.URL(issueURL),
	)

	return nil
}

func (e *Engine) deregister(ctx context.Context, logger *zap.Logger, ev *provider.Event) error {
	if err := e.watchList.RemoveIssueByNumber(ctx, ev.Owner, ev.Repository, ev.IssueNumber); err != nil {
		return fmt.Errorf("removing issue from watch list failed: %w", err)
	}

	logger.Info("issue removed from watch list",
		logfields.Event("issue_deregistered"),
	)

	return nil
}

func (e *Engine) evaluateIssueWithClient(ctx context.Context, logger *zap.Logger, owner, repo string, issueNumber int) ([]*ResultInfo, error) {
	if e.isExcluded(owner, repo) {
		logger.Info("repository is excluded, skipping issue",
			logfields.Event("repository_excluded"),
		)
		return nil, nil
	}

	clt, err := e.clients(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("creating github client for %s/%s failed: %w", owner, repo, err)
	}

	return e.evaluateIssue(ctx, logger, clt, owner, repo, issueNumber)
}

// evaluateIssue evaluates all open pull requests that close the issue.
// Failures when processing a pull request are logged and recorded as not
// merged result, they do not affect the processing of other pull requests.
func (e *Engine) evaluateIssue(ctx context.Context, logger *zap.Logger, clt GithubClient, owner, repo string, issueNumber int) ([]*ResultInfo, error) {
	var prs []*githubclt.LinkedPullRequest
	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		prs, err = clt.LinkedPullRequests(ctx, owner, repo, issueNumber)
		return err
	}, append(logFields(owner, repo), logfields.Issue(issueNumber)))
	if err != nil {
		return nil, fmt.Errorf("retrieving linked pull requests failed: %w", err)
	}

	if len(prs) == 0 {
		logger.Info("no linked pull requests found, nothing to do",
			logfields.Event("no_linked_pull_requests"),
		)
		return nil, nil
	}

	logger.Info("found linked pull requests",
		logfields.Event("linked_pull_requests_found"),
		zap.Int("count", len(prs)),
	)

	results := make([]*ResultInfo, 0, len(prs))

	for _, pr := range prs {
		prLogger := logger.With(
			logfields.PullRequest(pr.Number),
			logfields.URL(pr.URL),
		)

		prClt, err := e.clientForPullRequest(ctx, clt, owner, repo, pr)
		if err != nil {
			prLogger.Error("creating github client for pull request repository failed",
				logfields.Event("pull_request_client_failed"),
				zap.Error(err),
			)
			metrics.pullRequest(resultFailed)

			results = append(results, &ResultInfo{URL: pr.URL})
			continue
		}

		if prClt == nil {
			prLogger.Info("pull request belongs to an excluded repository, skipping it",
				logfields.Event("pull_request_repository_excluded"),
			)
			continue
		}

		merged, evaluated, err := e.processPullRequest(ctx, prLogger, prClt, pr)
		if err != nil {
			prLogger.Error("processing pull request failed",
				logfields.Event("pull_request_processing_failed"),
				zap.Error(err),
			)
			metrics.pullRequest(resultFailed)

			results = append(results, &ResultInfo{URL: pr.URL})
			continue
		}

		if !evaluated {
			continue
		}

		if merged {
			metrics.pullRequest(resultMerged)

			if err := e.watchList.RemoveIssueByNumber(ctx, owner, repo, issueNumber); err != nil {
				prLogger.Error("removing issue from watch list failed",
					logfields.Event("issue_deregistration_failed"),
					zap.Error(err),
				)
			}
		} else {
			metrics.pullRequest(resultNotMerged)
		}

		results = append(results, &ResultInfo{URL: pr.URL, Merged: merged})
	}

	return results, nil
}

// clientForPullRequest returns issueClt if the pull request belongs to the
// repository of the issue, otherwise a client for the repository of the pull
// request.
// It returns nil if the repository of the pull request is excluded.
func (e *Engine) clientForPullRequest(ctx context.Context, issueClt GithubClient, issueOwner, issueRepo string, pr *githubclt.LinkedPullRequest) (GithubClient, error) {
	if strings.EqualFold(pr.Owner, issueOwner) && strings.EqualFold(pr.Repo, issueRepo) {
		return issueClt, nil
	}

	if e.isExcluded(pr.Owner, pr.Repo) {
		return nil, nil
	}

	return e.clients(ctx, pr.Owner, pr.Repo)
}

func logFields(owner, repo string) []zap.Field {
	return []zap.Field{
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
	}
}

// processPullRequest merges the pull request if it is eligible.
// evaluated is false if the pull request is already merged or closed.
func (e *Engine) processPullRequest(ctx context.Context, logger *zap.Logger, clt GithubClient, lpr *githubclt.LinkedPullRequest) (merged, evaluated bool, err error) {
	owner, repo, number := lpr.Owner, lpr.Repo, lpr.Number
	logF := append(logFields(owner, repo), logfields.PullRequest(number))

	var pr *github.PullRequest
	err = e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		pr, err = clt.GetPullRequest(ctx, owner, repo, number)
		return err
	}, logF)
	if err != nil {
		return false, false, fmt.Errorf("retrieving pull request failed: %w", err)
	}

	if pr.GetMerged() || pr.MergedAt != nil || pr.ClosedAt != nil || pr.GetState() == "closed" {
		logger.Info("pull request is already merged or closed, nothing to do",
			logfields.Event("pull_request_closed"),
		)
		return false, false, nil
	}

	lastActivity, found, err := e.lastActivity(ctx, clt, owner, repo, pr, logF)
	if err != nil {
		return false, true, err
	}

	req := e.cfg.requirementsFor(pr.GetAuthorAssociation())

	if !found {
		logger.Info("pull request does not have any activity, nothing to do",
			logfields.Event("pull_request_no_activity"),
		)
		return false, true, nil
	}

	if req == nil || req.MergeTimeout == "" {
		logger.Warn("no merge timeout applies to pull request, skipping merge-time check",
			logfields.Event("pull_request_no_merge_timeout"),
			zap.String("author_association", pr.GetAuthorAssociation()),
		)
		return false, true, nil
	}

	timeout, err := ghutil.ParseDuration(req.MergeTimeout)
	if err != nil {
		logger.Warn("merge timeout is invalid, skipping merge-time check",
			logfields.Event("pull_request_invalid_merge_timeout"),
			zap.String("merge_timeout", req.MergeTimeout),
			zap.Error(err),
		)
		return false, true, nil
	}

	logger = logger.With(
		zap.Time("last_activity", lastActivity),
		zap.String("merge_timeout", req.MergeTimeout),
	)

	if !e.clk.Now().After(lastActivity.Add(timeout)) {
		logger.Info("pull request had recent activity, nothing to do",
			logfields.Event("pull_request_active"),
		)
		return false, true, nil
	}

	approvals, err := e.approvalCount(ctx, clt, owner, repo, number, logF)
	if err != nil {
		return false, true, err
	}

	if approvals < req.RequiredApprovals {
		logger.Info("pull request does not have sufficient approvals to be merged",
			logfields.Event("pull_request_insufficient_approvals"),
			zap.Int("approvals", approvals),
			zap.Int("required_approvals", req.RequiredApprovals),
		)
		return false, true, nil
	}

	headSHA := pr.GetHead().GetSHA()

	green, err := e.isCIGreen(ctx, logger, clt, owner, repo, headSHA)
	if err != nil {
		return false, true, fmt.Errorf("evaluating ci status failed: %w", err)
	}

	if !green {
		logger.Info("pull request does not pass all ci checks, not merging it",
			logfields.Event("pull_request_ci_not_green"),
			logfields.Commit(headSHA),
		)
		return false, true, nil
	}

	logger.Info("pull request is past its merge timeout, merging it",
		logfields.Event("pull_request_merging"),
	)

	var sha string
	err = e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		sha, err = clt.MergePullRequest(ctx, owner, repo, number, "")
		return err
	}, logF)
	if err != nil {
		return false, true, fmt.Errorf("merging pull request failed: %w", err)
	}

	logger.Info("pull request merged",
		logfields.Event("pull_request_merged"),
		logfields.Commit(sha),
	)

	return true, true, nil
}

// lastActivity returns the most recent timestamp of all timeline events of
// the pull request. If the timeline has no events with a valid timestamp,
// the update or creation time of the pull request is returned.
func (e *Engine) lastActivity(ctx context.Context, clt GithubClient, owner, repo string, pr *github.PullRequest, logF []zap.Field) (time.Time, bool, error) {
	var events []*githubclt.TimelineEvent

	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		events, err = clt.TimelineEvents(ctx, owner, repo, pr.GetNumber())
		return err
	}, logF)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("retrieving timeline events failed: %w", err)
	}

	if t, ok := latestEventTime(events); ok {
		return t, true, nil
	}

	if t := pr.GetUpdatedAt(); !t.IsZero() {
		return t.Time, true, nil
	}

	if t := pr.GetCreatedAt(); !t.IsZero() {
		return t.Time, true, nil
	}

	return time.Time{}, false, nil
}

func latestEventTime(events []*githubclt.TimelineEvent) (time.Time, bool) {
	var result time.Time
	var found bool

	for _, ev := range events {
		t, ok := ghutil.FirstValidTimestamp(ev.CreatedAt, ev.UpdatedAt, ev.Timestamp, ev.CommentedAt, ev.SubmittedAt)
		if !ok {
			continue
		}

		if !found || t.After(result) {
			result = t
			found = true
		}
	}

	return result, found
}

// approvalCount returns the number of approving reviews of reviewers with
// an allowed role.
func (e *Engine) approvalCount(ctx context.Context, clt GithubClient, owner, repo string, number int, logF []zap.Field) (int, error) {
	var reviews []*github.PullRequestReview

	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		reviews, err = clt.ListReviews(ctx, owner, repo, number)
		return err
	}, logF)
	if err != nil {
		return 0, fmt.Errorf("retrieving reviews failed: %w", err)
	}

	var cnt int
	for _, r := range reviews {
		if _, allowed := e.allowedReviewerRoles[strings.ToUpper(r.GetAuthorAssociation())]; !allowed {
			continue
		}

		if r.GetState() == reviewStateApproved {
			cnt++
		}
	}

	return cnt, nil
}

func (e *Engine) report(ctx context.Context, results []*ResultInfo) {
	if e.sink == nil || len(results) == 0 {
		return
	}

	if err := e.sink.ReportPullRequests(ctx, results); err != nil {
		e.logger.Error("reporting results failed",
			logfields.Event("report_failed"),
			zap.Error(err),
		)
	}
}

// updateCronState enables the periodic workflow when the watch list
// contains issues and disables it otherwise.
func (e *Engine) updateCronState(ctx context.Context) {
	if e.cfg.ControlRepository == "" {
		return
	}

	logger := e.logger.With(
		zap.String("control_repository", e.cfg.ControlRepository),
		zap.String("workflow", e.cfg.CronWorkflow),
	)

	owner, repo, err := ghutil.SplitFullName(e.cfg.ControlRepository)
	if err != nil {
		logger.Error("control repository name is invalid, can not update workflow state",
			logfields.Event("cron_state_update_failed"),
			zap.Error(err),
		)
		return
	}

	hasData, err := e.watchList.HasData(ctx)
	if err != nil {
		logger.Error("checking watch list failed, can not update workflow state",
			logfields.Event("cron_state_update_failed"),
			zap.Error(err),
		)
		return
	}

	clt, err := e.clients(ctx, owner, repo)
	if err != nil {
		logger.Error("creating github client for control repository failed",
			logfields.Event("cron_state_update_failed"),
			zap.Error(err),
		)
		return
	}

	err = e.retryer.Run(ctx, func(ctx context.Context) error {
		return clt.SetWorkflowEnabled(ctx, owner, repo, e.cfg.CronWorkflow, hasData)
	}, logFields(owner, repo))
	if err != nil {
		logger.Error("enabling or disabling workflow failed",
			logfields.Event("cron_state_update_failed"),
			zap.Bool("enable", hasData),
			zap.Error(err),
		)
		return
	}

	logger.Debug("updated workflow state",
		logfields.Event("cron_state_updated"),
		zap.Bool("enabled", hasData),
	)
}

// Sweep evaluates all issues on the watch list.
// Repositories are processed sequentially, paced by the rate limiter.
// Failures are logged and do not affect the processing of other
// repositories.
func (e *Engine) Sweep(ctx context.Context) error {
	repos, err := e.watchList.AllRepositories(ctx)
	if err != nil {
		return fmt.Errorf("retrieving watched repositories failed: %w", err)
	}

	e.logger.Info("loaded watch list",
		logfields.Event("sweep_started"),
		zap.Int("repositories", len(repos)),
	)

	var results []*ResultInfo
	var errs []error

	for _, r := range repos {
		if len(r.IssueNumbers) == 0 {
			continue
		}

		if e.isExcluded(r.Owner, r.Repo) {
			e.logger.Info("repository is excluded, skipping it",
				append(logFields(r.Owner, r.Repo),
					logfields.Event("repository_excluded"),
				)...,
			)
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := e.sweepRepository(ctx, r)
		results = append(results, res...)
		if err != nil {
			e.logger.Error("processing repository failed",
				append(logFields(r.Owner, r.Repo),
					logfields.Event("sweep_repository_failed"),
					zap.Error(err),
				)...,
			)
			errs = append(errs, err)
		}
	}

	e.report(ctx, results)
	e.updateCronState(ctx)

	e.logger.Info("sweep finished",
		logfields.Event("sweep_finished"),
		zap.Int("evaluated_pull_requests", len(results)),
		zap.Int("errors", len(errs)),
	)

	return errors.Join(errs...)
}

func (e *Engine) sweepRepository(ctx context.Context, r *watchlist.Repository) ([]*ResultInfo, error) {
	logger := e.logger.With(logFields(r.Owner, r.Repo)...)

	logger.Info("processing repository",
		logfields.Event("sweep_repository_started"),
		zap.Ints("issues", r.IssueNumbers),
	)

	clt, err := e.clients(ctx, r.Owner, r.Repo)
	if err != nil {
		return nil, fmt.Errorf("creating github client failed: %w", err)
	}

	var results []*ResultInfo
	var errs []error

	for _, n := range r.IssueNumbers {
		ev := provider.Event{
			Provider:    "cron",
			EventType:   provider.EventIssueEdited,
			Owner:       r.Owner,
			Repository:  r.Repo,
			IssueNumber: n,
		}

		metrics.event(ev.EventType)

		res, err := e.evaluateIssue(ctx, e.logger.With(ev.LogFields()...), clt, r.Owner, r.Repo, n)
		results = append(results, res...)
		if err != nil {
			errs = append(errs, fmt.Errorf("issue #%d: %w", n, err))
		}
	}

	return results, errors.Join(errs...)
}
