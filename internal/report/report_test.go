package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/simplesurance/mergekeeper/internal/branchmerge"
	"github.com/simplesurance/mergekeeper/internal/prmerge"
)

func testResult() *branchmerge.Result {
	return &branchmerge.Result{
		Outcomes: []*branchmerge.Outcome{
			{Status: branchmerge.StatusMerged, Org: "acme", Repo: "widget", DefaultBranch: "development", SHA: "abc123def456"},
			{Status: branchmerge.StatusUpToDate, Org: "acme", Repo: "gadget", DefaultBranch: "development"},
			{Status: branchmerge.StatusSkipped, Org: "acme", Repo: "old", DefaultBranch: "development", Reason: "Repository archived"},
			{Status: branchmerge.StatusConflict, Org: "acme", Repo: "busy", DefaultBranch: "dev"},
		},
		Errors: 1,
		ErrorsDetail: []*branchmerge.MergeError{
			{
				Scope:    branchmerge.ScopeOrg,
				Org:      "other",
				URL:      "https://github.com/orgs/other",
				Reason:   "Bad credentials",
				Stage:    branchmerge.StageAuthenticate,
				Severity: branchmerge.SeverityError,
			},
			{
				Scope:    branchmerge.ScopeRepo,
				Org:      "acme",
				Repo:     "busy",
				URL:      "https://github.com/acme/busy",
				Reason:   "opening pull request failed: A pull request already exists for acme:dev.",
				Stage:    branchmerge.StageMerge,
				Severity: branchmerge.SeverityWarning,
			},
		},
	}
}

func TestWriteBranchMergeSummary(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteBranchMergeSummary(&buf, testResult()))
	out := buf.String()

	assert.Contains(t, out, "Processed **4** repositories with **1** errors.")
	assert.Contains(t, out, "| ✅ Merged | 1 |")
	assert.Contains(t, out, "| ⏭️ Skipped | 1 |")
	assert.Contains(t, out,
		"| acme | widget | development | ✅ merged | SHA: `abc123d` - [view commit](https://github.com/acme/widget/commit/abc123def456) |",
	)
	assert.Contains(t, out, "| acme | old | development | ⏭️ skipped | Repository archived |")
	assert.Contains(t, out, "| acme | busy | dev | ⚠️ conflict | Merge conflict detected; PR opened |")
	assert.Contains(t, out, "| ❌ Error | org | other | - | authenticate | Bad credentials | [link](https://github.com/orgs/other) |")
	assert.Contains(t, out, "| ⚠️ Warning | repo | acme | busy | merge |")
}

func TestBranchMergeSummaryWithoutFailures(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteBranchMergeSummary(&buf, &branchmerge.Result{}))
	assert.NotContains(t, buf.String(), "Failures")
}

func TestMarkdownCellEscaping(t *testing.T) {
	assert.Equal(t, `a \| b c`, markdownCell("a | b\nc"))
}

func TestMarkdownSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	require.NoError(t, os.WriteFile(path, []byte("existing\n"), 0o600))

	sink := NewMarkdownSink(path)
	ctx := context.Background()

	require.NoError(t, sink.ReportBranchMerge(ctx, testResult()))
	require.NoError(t, sink.ReportPullRequests(ctx, []*prmerge.ResultInfo{
		{URL: "https://github.com/acme/widget/pull/7", Merged: true},
		{URL: "https://github.com/acme/widget/pull/8"},
	}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(content)
	assert.True(t, strings.HasPrefix(out, "existing\n"))
	assert.Contains(t, out, "## Auto-Merge Summary")
	assert.Contains(t, out, "| https://github.com/acme/widget/pull/7 | ✅ yes |")
	assert.Contains(t, out, "| https://github.com/acme/widget/pull/8 | no |")
}

func TestMarkdownSinkInvalidPath(t *testing.T) {
	sink := NewMarkdownSink(filepath.Join(t.TempDir(), "missing", "summary.md"))
	assert.Error(t, sink.ReportBranchMerge(context.Background(), testResult()))
}

func TestAnnotationSink(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewAnnotationSink(&buf).ReportBranchMerge(context.Background(), testResult()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "::error title=[other] authenticate::Bad credentials (https://github.com/orgs/other)", lines[0])
	assert.Equal(t,
		"::warning title=[acme/busy] merge::opening pull request failed: A pull request already exists for acme:dev. (https://github.com/acme/busy)",
		lines[1],
	)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	sink := NewLogSink()
	require.NoError(t, sink.ReportBranchMerge(context.Background(), testResult()))

	assert.Equal(t, 4, logs.FilterMessage("repository processed").Len())
	assert.Equal(t, 1, logs.FilterMessage("failure during branch merge run").FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("failure during branch merge run").FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("branch merge summary").Len())
}

type failingSink struct{}

func (failingSink) ReportBranchMerge(context.Context, *branchmerge.Result) error {
	return errors.New("branch merge sink failed")
}

func (failingSink) ReportPullRequests(context.Context, []*prmerge.ResultInfo) error {
	return errors.New("pull request sink failed")
}

func TestMultiSinkReportsToAllSinks(t *testing.T) {
	var buf bytes.Buffer

	m := MultiSink{failingSink{}, NewAnnotationSink(&buf)}

	err := m.ReportBranchMerge(context.Background(), testResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch merge sink failed")
	assert.NotEmpty(t, buf.String())

	err = m.ReportPullRequests(context.Background(), nil)
	assert.ErrorContains(t, err, "pull request sink failed")
}
