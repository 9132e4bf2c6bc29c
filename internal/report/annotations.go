package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/simplesurance/mergekeeper/internal/branchmerge"
	"github.com/simplesurance/mergekeeper/internal/prmerge"
)

// AnnotationSink writes branch merge failures as GitHub Actions workflow
// commands, they are shown as annotations of the workflow run.
type AnnotationSink struct {
	w io.Writer
}

func NewAnnotationSink(w io.Writer) *AnnotationSink {
	return &AnnotationSink{w: w}
}

var (
	dataEscaper     = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
)

func (s *AnnotationSink) ReportBranchMerge(_ context.Context, res *branchmerge.Result) error {
	for _, e := range res.ErrorsDetail {
		cmd := "error"
		if e.Severity == branchmerge.SeverityWarning {
			cmd = "warning"
		}

		scope := e.Org
		if e.Repo != "" {
			scope += "/" + e.Repo
		}

		_, err := fmt.Fprintf(s.w, "::%s title=%s::%s\n",
			cmd,
			propertyEscaper.Replace(fmt.Sprintf("[%s] %s", scope, e.Stage)),
			dataEscaper.Replace(fmt.Sprintf("%s (%s)", e.Reason, e.URL)),
		)
		if err != nil {
			return fmt.Errorf("writing annotation failed: %w", err)
		}
	}

	return nil
}

func (s *AnnotationSink) ReportPullRequests(context.Context, []*prmerge.ResultInfo) error {
	return nil
}
