package report

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/simplesurance/mergekeeper/internal/branchmerge"
	"github.com/simplesurance/mergekeeper/internal/prmerge"
)

//go:embed templates/*
var templFS embed.FS

const (
	branchMergeTemplate  = "branchmerge.md.tmpl"
	pullRequestsTemplate = "pullrequests.md.tmpl"
)

var templFuncs = template.FuncMap{
	"cell":       markdownCell,
	"statusIcon": statusIcon,
	"details":    outcomeDetails,
	"severity":   severityLabel,
}

var templates = template.Must(
	template.New("").
		Funcs(templFuncs).
		ParseFS(templFS, "templates/*"),
)

// MarkdownSink appends results as markdown to a file, usually the file
// referenced by $GITHUB_STEP_SUMMARY.
type MarkdownSink struct {
	path string
}

func NewMarkdownSink(path string) *MarkdownSink {
	return &MarkdownSink{path: path}
}

type branchMergeData struct {
	Outcomes     []*branchmerge.Outcome
	ErrorsDetail []*branchmerge.MergeError
	Errors       int

	Merged    int
	UpToDate  int
	Conflicts int
	Skipped   int
}

func (s *MarkdownSink) ReportBranchMerge(_ context.Context, res *branchmerge.Result) error {
	return s.appendToFile(func(w io.Writer) error {
		return WriteBranchMergeSummary(w, res)
	})
}

func (s *MarkdownSink) ReportPullRequests(_ context.Context, results []*prmerge.ResultInfo) error {
	return s.appendToFile(func(w io.Writer) error {
		return WritePullRequestSummary(w, results)
	})
}

func (s *MarkdownSink) appendToFile(fn func(io.Writer) error) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening summary file failed: %w", err)
	}

	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing summary file failed: %w", err)
	}

	return nil
}

// WriteBranchMergeSummary writes a markdown summary of res to w.
func WriteBranchMergeSummary(w io.Writer, res *branchmerge.Result) error {
	data := branchMergeData{
		Outcomes:     res.Outcomes,
		ErrorsDetail: res.ErrorsDetail,
		Errors:       res.Errors,
		Merged:       res.Count(branchmerge.StatusMerged),
		UpToDate:     res.Count(branchmerge.StatusUpToDate),
		Conflicts:    res.Count(branchmerge.StatusConflict),
		Skipped:      res.Count(branchmerge.StatusSkipped),
	}

	if err := templates.ExecuteTemplate(w, branchMergeTemplate, &data); err != nil {
		return fmt.Errorf("rendering branch merge summary failed: %w", err)
	}

	return nil
}

// WritePullRequestSummary writes a markdown table of results to w.
func WritePullRequestSummary(w io.Writer, results []*prmerge.ResultInfo) error {
	if err := templates.ExecuteTemplate(w, pullRequestsTemplate, results); err != nil {
		return fmt.Errorf("rendering pull request summary failed: %w", err)
	}

	return nil
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func markdownCell(s string) string {
	return cellReplacer.Replace(s)
}

func statusIcon(s branchmerge.Status) string {
	switch s {
	case branchmerge.StatusMerged:
		return "✅ merged"
	case branchmerge.StatusUpToDate:
		return "ℹ️ up-to-date"
	case branchmerge.StatusConflict:
		return "⚠️ conflict"
	case branchmerge.StatusSkipped:
		return "⏭️ skipped"
	default:
		return string(s)
	}
}

func outcomeDetails(o *branchmerge.Outcome) string {
	switch o.Status {
	case branchmerge.StatusMerged:
		short := o.SHA
		if len(short) > 7 {
			short = short[:7]
		}

		return fmt.Sprintf(
			"SHA: `%s` - [view commit](https://github.com/%s/%s/commit/%s)",
			short, o.Org, o.Repo, o.SHA,
		)
	case branchmerge.StatusUpToDate:
		return "Already contained"
	case branchmerge.StatusConflict:
		return "Merge conflict detected; PR opened"
	default:
		return markdownCell(o.Reason)
	}
}

func severityLabel(s branchmerge.Severity) string {
	if s == branchmerge.SeverityWarning {
		return "⚠️ Warning"
	}

	return "❌ Error"
}
