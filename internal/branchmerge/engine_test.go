package branchmerge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergekeeper/internal/branchmerge/mocks"
	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
	"github.com/simplesurance/mergekeeper/internal/retry"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type commitSliceIter struct {
	commits []*githubclt.Commit
	err     error
}

func (it *commitSliceIter) Next() (*githubclt.Commit, error) {
	if len(it.commits) == 0 {
		return nil, it.err
	}

	c := it.commits[0]
	it.commits = it.commits[1:]

	return c, nil
}

type prSliceIter struct {
	prs []*github.PullRequest
}

func (it *prSliceIter) Next() (*github.PullRequest, error) {
	if len(it.prs) == 0 {
		return nil, nil
	}

	pr := it.prs[0]
	it.prs = it.prs[1:]

	return pr, nil
}

func humanCommit(sha string, date time.Time) *githubclt.Commit {
	return &githubclt.Commit{
		SHA:            sha,
		AuthorName:     "Alice",
		AuthorLogin:    "alice",
		AuthorType:     "User",
		AuthorDate:     date,
		CommitterName:  "Alice",
		CommitterLogin: "alice",
		CommitterType:  "User",
		CommitterDate:  date,
	}
}

func botCommit(sha string, date time.Time) *githubclt.Commit {
	return &githubclt.Commit{
		SHA:            sha,
		AuthorName:     "dependabot[bot]",
		AuthorLogin:    "dependabot[bot]",
		AuthorType:     "Bot",
		AuthorDate:     date,
		CommitterName:  "GitHub",
		CommitterLogin: "web-flow",
		CommitterType:  "User",
		CommitterDate:  date,
	}
}

func repository(name, defaultBranch string) *github.Repository {
	return &github.Repository{
		Name:          github.String(name),
		DefaultBranch: github.String(defaultBranch),
		Archived:      github.Bool(false),
	}
}

func daysAgo(days int) time.Time {
	return now.Add(-time.Duration(days) * day)
}

func newTestEngine(t *testing.T, clt *mocks.MockGithubClient, opts ...Option) *Engine {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(now)

	return New(
		func(context.Context, string) (GithubClient, error) { return clt, nil },
		retry.New(time.Second),
		90,
		append([]Option{WithClock(clk)}, opts...)...,
	)
}

func expectNotFork(clt *mocks.MockGithubClient, org, repo string) {
	clt.EXPECT().
		GetRepository(gomock.Any(), gomock.Eq(org), gomock.Eq(repo)).
		Return(&github.Repository{Fork: github.Bool(false)}, nil)
}

func expectBranch(clt *mocks.MockGithubClient, org, repo, branch string, head *githubclt.Commit) {
	var snapshot *githubclt.BranchSnapshot
	if head != nil {
		snapshot = &githubclt.BranchSnapshot{Name: branch, Head: head}
	}

	clt.EXPECT().
		GetBranch(gomock.Any(), gomock.Eq(org), gomock.Eq(repo), gomock.Eq(branch)).
		Return(snapshot, nil)
}

func requireSingleOutcome(t *testing.T, res *Result) *Outcome {
	t.Helper()

	require.Len(t, res.Outcomes, 1)
	return res.Outcomes[0]
}

func TestInactiveBranchIsMerged(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(91)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(200)))
	clt.EXPECT().
		MergeBranches(gomock.Any(), gomock.Eq("acme"), gomock.Eq("widget"), gomock.Eq("main"), gomock.Eq("development"), gomock.Any()).
		Return(&githubclt.MergeResult{Status: http.StatusCreated, SHA: "abc123"}, nil).
		Times(1)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusMerged, o.Status)
	assert.Equal(t, "abc123", o.SHA)
	assert.Equal(t, "acme", o.Org)
	assert.Equal(t, "widget", o.Repo)
	assert.Equal(t, "development", o.DefaultBranch)
	assert.Equal(t, 0, res.Errors)
	assert.Empty(t, res.ErrorsDetail)
}

func TestBranchInactiveForExactlyInactivityDaysIsMerged(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(90)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(200)))
	clt.EXPECT().
		MergeBranches(gomock.Any(), gomock.Eq("acme"), gomock.Eq("widget"), gomock.Eq("main"), gomock.Eq("development"), gomock.Any()).
		Return(&githubclt.MergeResult{Status: http.StatusCreated, SHA: "abc123"}, nil).
		Times(1)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusMerged, o.Status)
}

func TestHugeInactivityPeriodNeverMerges(t *testing.T) {
	for _, days := range []int{int(maxInactivityDays) + 1, 200000, -1} {
		t.Run(fmt.Sprint(days), func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

			clt := mocks.NewMockGithubClient(gomock.NewController(t))
			clk := clock.NewMock()
			clk.Set(now)

			clt.EXPECT().
				ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
				Return([]*github.Repository{repository("widget", "development")}, nil)
			expectNotFork(clt, "acme", "widget")
			expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(1)))
			expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(200)))
			clt.EXPECT().
				MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Times(0)

			e := New(
				func(context.Context, string) (GithubClient, error) { return clt, nil },
				retry.New(time.Second),
				days,
				WithClock(clk),
			)

			res := e.Run(context.Background(), []string{"acme"})

			o := requireSingleOutcome(t, res)
			assert.Equal(t, StatusSkipped, o.Status)
			assert.Equal(t, ReasonStillActive, o.Reason)
		})
	}
}

func TestInactivityCutoff(t *testing.T) {
	assert.Equal(t, now.Add(-90*day), inactivityCutoff(now, 90))
	assert.Equal(t, now, inactivityCutoff(now, 0))
	assert.True(t, inactivityCutoff(now, int(maxInactivityDays)).Before(now))
	assert.True(t, inactivityCutoff(now, int(maxInactivityDays)+1).IsZero())
}

func TestMainBranchIsCreatedWhenMissing(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(120)))
	expectBranch(clt, "acme", "widget", "main", nil)
	clt.EXPECT().
		CreateMainBranchFrom(gomock.Any(), gomock.Eq("acme"), gomock.Eq("widget"), gomock.Eq("development")).
		Return(nil).
		Times(1)
	clt.EXPECT().
		MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&githubclt.MergeResult{Status: http.StatusNoContent}, nil)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusUpToDate, o.Status)
	assert.Empty(t, o.SHA)
}

func TestMainBranchCreationFailureSkipsRepository(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(120)))
	expectBranch(clt, "acme", "widget", "main", nil)
	clt.EXPECT().
		CreateMainBranchFrom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("forbidden"))

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusSkipped, o.Status)
	assert.Equal(t, ReasonMainMissing, o.Reason)
}

func TestSkipReasons(t *testing.T) {
	tcs := []struct {
		name           string
		repo           *github.Repository
		expectedReason string
		setup          func(clt *mocks.MockGithubClient)
	}{
		{
			name: "archived",
			repo: &github.Repository{
				Name:          github.String("widget"),
				DefaultBranch: github.String("development"),
				Archived:      github.Bool(true),
			},
			expectedReason: ReasonArchived,
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
			},
		},
		{
			name:           "default branch missing",
			repo:           repository("widget", "development"),
			expectedReason: "development branch missing",
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
				expectBranch(clt, "acme", "widget", "development", nil)
			},
		},
		{
			name:           "default branch is main",
			repo:           repository("widget", "main"),
			expectedReason: "main branch is the same as default branch (main)",
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
				expectBranch(clt, "acme", "widget", "main", humanCommit("1", daysAgo(120)))
			},
		},
		{
			name:           "still active",
			repo:           repository("widget", "development"),
			expectedReason: ReasonStillActive,
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
				expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(10)))
				expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
			},
		},
		{
			name:           "one nanosecond inside the inactivity period",
			repo:           repository("widget", "development"),
			expectedReason: ReasonStillActive,
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
				expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(90).Add(time.Nanosecond)))
				expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
			},
		},
		{
			name:           "only bot commits recently",
			repo:           repository("widget", "development"),
			expectedReason: ReasonStillActive,
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
				expectBranch(clt, "acme", "widget", "development", botCommit("1", daysAgo(1)))
				expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
				clt.EXPECT().
					ListCommits(gomock.Any(), gomock.Eq("acme"), gomock.Eq("widget"), gomock.Eq("development")).
					Return(&commitSliceIter{commits: []*githubclt.Commit{
						botCommit("1", daysAgo(1)),
						botCommit("0", daysAgo(300)),
					}})
			},
		},
		{
			name:           "no commit date",
			repo:           repository("widget", "development"),
			expectedReason: ReasonNoCommitDate,
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
				expectBranch(clt, "acme", "widget", "development", humanCommit("1", time.Time{}))
				expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
			},
		},
		{
			name:           "unexpected merge status",
			repo:           repository("widget", "development"),
			expectedReason: "Unexpected status: 200",
			setup: func(clt *mocks.MockGithubClient) {
				expectNotFork(clt, "acme", "widget")
				expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(91)))
				expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
				clt.EXPECT().
					MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(&githubclt.MergeResult{Status: http.StatusOK}, nil)
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

			clt := mocks.NewMockGithubClient(gomock.NewController(t))
			clt.EXPECT().
				ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
				Return([]*github.Repository{tc.repo}, nil)
			tc.setup(clt)

			res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

			o := requireSingleOutcome(t, res)
			assert.Equal(t, StatusSkipped, o.Status)
			assert.Equal(t, tc.expectedReason, o.Reason)
			assert.Equal(t, 0, res.Errors)
		})
	}
}

func TestIgnoredAndFilteredRepositoriesAreNotAccessed(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))
	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
		Return([]*github.Repository{
			repository("Ignored", "development"),
			repository("template", "development"),
		}, nil)

	filter, err := NewRepositoryFilter(`.name != "template"`)
	require.NoError(t, err)

	res := newTestEngine(t, clt,
		WithIgnorePatterns([]string{"acme/ignored"}),
		WithRepositoryFilter(filter),
	).Run(context.Background(), []string{"acme"})

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, StatusSkipped, res.Outcomes[0].Status)
	assert.Equal(t, ReasonIgnored, res.Outcomes[0].Reason)
	assert.Equal(t, StatusSkipped, res.Outcomes[1].Status)
	assert.Equal(t, ReasonExcluded, res.Outcomes[1].Reason)
}

func TestIgnoredOrganization(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))
	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
		Return([]*github.Repository{repository("a", "development"), repository("b", "development")}, nil)

	res := newTestEngine(t, clt, WithIgnorePatterns([]string{"ACME"})).
		Run(context.Background(), []string{"acme"})

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 2, res.Count(StatusSkipped))
}

func TestBotHeadUsesLastHumanCommit(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", botCommit("3", daysAgo(2)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("9", daysAgo(300)))
	clt.EXPECT().
		ListCommits(gomock.Any(), gomock.Eq("acme"), gomock.Eq("widget"), gomock.Eq("development")).
		Return(&commitSliceIter{commits: []*githubclt.Commit{
			botCommit("3", daysAgo(2)),
			botCommit("2", daysAgo(50)),
			humanCommit("1", daysAgo(95)),
			humanCommit("0", daysAgo(200)),
		}})
	clt.EXPECT().
		MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&githubclt.MergeResult{Status: http.StatusCreated, SHA: "feed"}, nil)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusMerged, o.Status)
	assert.Equal(t, "feed", o.SHA)
}

func TestCommitListingFailureIsRecorded(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", botCommit("3", daysAgo(2)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("9", daysAgo(300)))
	clt.EXPECT().
		ListCommits(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&commitSliceIter{err: errors.New("boom")})

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusSkipped, o.Status)
	assert.Equal(t, ReasonNoCommitDate, o.Reason)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.ErrorsDetail, 1)
	assert.Equal(t, StageUnknown, res.ErrorsDetail[0].Stage)
}

func TestConflictOpensExactlyOnePullRequest(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(100)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
	clt.EXPECT().
		MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&githubclt.MergeResult{Status: http.StatusConflict}, nil).
		Times(1)
	clt.EXPECT().
		OpenPullRequest(gomock.Any(), gomock.Eq("acme"), gomock.Eq("widget"), gomock.Eq("development"), gomock.Eq("main"), gomock.Eq("Merge development into main"), gomock.Any()).
		Return(&github.PullRequest{Number: github.Int(7)}, nil).
		Times(1)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusConflict, o.Status)
	assert.Equal(t, 0, res.Errors)
}

func TestConflictWithExistingPullRequestIsWarning(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(100)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
	clt.EXPECT().
		MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&githubclt.MergeResult{Status: http.StatusConflict}, nil)
	clt.EXPECT().
		OpenPullRequest(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("Validation Failed: A pull request already exists for acme:development."))

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusConflict, o.Status)
	assert.Equal(t, 0, res.Errors)
	require.Len(t, res.ErrorsDetail, 1)
	assert.Equal(t, SeverityWarning, res.ErrorsDetail[0].Severity)
	assert.Equal(t, StageMerge, res.ErrorsDetail[0].Stage)
}

func TestMissingBaseIsRetriedOnce(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(100)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
	clt.EXPECT().
		MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("merging failed: %w", mkerr.ErrBaseDoesNotExist)).
		Times(2)
	clt.EXPECT().
		CreateMainBranchFrom(gomock.Any(), gomock.Eq("acme"), gomock.Eq("widget"), gomock.Eq("development")).
		Return(nil).
		Times(1)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	assert.Empty(t, res.Outcomes)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.ErrorsDetail, 1)
	assert.Equal(t, StageMerge, res.ErrorsDetail[0].Stage)
	assert.Equal(t, ScopeRepo, res.ErrorsDetail[0].Scope)
	assert.Equal(t, "https://github.com/acme/widget", res.ErrorsDetail[0].URL)
}

func TestMissingBaseRetrySucceeds(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(100)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))
	gomock.InOrder(
		clt.EXPECT().
			MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, mkerr.ErrBaseDoesNotExist),
		clt.EXPECT().
			CreateMainBranchFrom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil),
		clt.EXPECT().
			MergeBranches(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&githubclt.MergeResult{Status: http.StatusCreated, SHA: "cafe"}, nil),
	)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, StatusMerged, o.Status)
	assert.Equal(t, "cafe", o.SHA)
}

func TestForkGuardAbortsOrganization(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("forked")).
		Return([]*github.Repository{repository("a", "development"), repository("b", "development")}, nil)
	clt.EXPECT().
		GetRepository(gomock.Any(), gomock.Eq("forked"), gomock.Eq("a")).
		Return(&github.Repository{
			Fork: github.Bool(true),
			Parent: &github.Repository{
				Name:     github.String("a"),
				FullName: github.String("upstream/a"),
				Owner:    &github.User{Login: github.String("upstream")},
			},
		}, nil)
	clt.EXPECT().
		ListOpenPullRequests(gomock.Any(), gomock.Eq("upstream"), gomock.Eq("a"), gomock.Eq("forked:main")).
		Return(&prSliceIter{prs: []*github.PullRequest{{Number: github.Int(12)}}})

	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", humanCommit("1", daysAgo(10)))
	expectBranch(clt, "acme", "widget", "main", humanCommit("2", daysAgo(100)))

	res := newTestEngine(t, clt).Run(context.Background(), []string{"forked", "acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, "acme", o.Org)
	assert.Equal(t, ReasonStillActive, o.Reason)

	assert.Equal(t, 0, res.Errors)
	require.Len(t, res.ErrorsDetail, 1)
	assert.Equal(t, StageForkGuard, res.ErrorsDetail[0].Stage)
	assert.Equal(t, SeverityWarning, res.ErrorsDetail[0].Severity)
	assert.Equal(t, "a", res.ErrorsDetail[0].Repo)
	assert.Contains(t, res.ErrorsDetail[0].Reason, "#12")
}

func TestOrganizationErrorsAreIsolated(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))
	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("nolist")).
		Return(nil, errors.New("list failed"))
	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Eq("acme")).
		Return([]*github.Repository{repository("widget", "development")}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", "development", nil)

	clk := clock.NewMock()
	clk.Set(now)

	e := New(
		func(_ context.Context, org string) (GithubClient, error) {
			if org == "noauth" {
				return nil, errors.New("no installation for organization")
			}
			return clt, nil
		},
		retry.New(time.Second),
		90,
		WithClock(clk),
	)

	res := e.Run(context.Background(), []string{"noauth", "nolist", "acme"})

	assert.Equal(t, 2, res.Errors)
	require.Len(t, res.ErrorsDetail, 2)

	assert.Equal(t, ScopeOrg, res.ErrorsDetail[0].Scope)
	assert.Equal(t, StageAuthenticate, res.ErrorsDetail[0].Stage)
	assert.Equal(t, "noauth", res.ErrorsDetail[0].Org)
	assert.Equal(t, "https://github.com/orgs/noauth", res.ErrorsDetail[0].URL)

	assert.Equal(t, ScopeOrg, res.ErrorsDetail[1].Scope)
	assert.Equal(t, StageListRepos, res.ErrorsDetail[1].Stage)
	assert.Contains(t, res.ErrorsDetail[1].Reason, "list failed")

	o := requireSingleOutcome(t, res)
	assert.Equal(t, "acme", o.Org)
}

func TestEmptyDefaultBranchFallsBack(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	clt := mocks.NewMockGithubClient(gomock.NewController(t))
	clt.EXPECT().
		ListOrgRepositories(gomock.Any(), gomock.Any()).
		Return([]*github.Repository{{Name: github.String("widget")}}, nil)
	expectNotFork(clt, "acme", "widget")
	expectBranch(clt, "acme", "widget", DefDefaultBranch, nil)

	res := newTestEngine(t, clt).Run(context.Background(), []string{"acme"})

	o := requireSingleOutcome(t, res)
	assert.Equal(t, DefDefaultBranch, o.DefaultBranch)
}

func TestClassifySeverity(t *testing.T) {
	assert.Equal(t, SeverityWarning, classifySeverity("A pull request already exists for acme:development."))
	assert.Equal(t, SeverityWarning, classifySeverity("The development branch has no history in common with main"))
	assert.Equal(t, SeverityError, classifySeverity("Bad credentials"))
}
