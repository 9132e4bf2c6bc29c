package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/branchmerge"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/prmerge"
)

const loggerName = "report"

// LogSink writes results as log messages.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: zap.L().Named(loggerName)}
}

func (s *LogSink) ReportBranchMerge(_ context.Context, res *branchmerge.Result) error {
	for _, o := range res.Outcomes {
		fields := []zap.Field{
			logfields.Event("branch_merge_outcome"),
			logfields.Organization(o.Org),
			logfields.Repository(o.Repo),
			logfields.Branch(o.DefaultBranch),
			zap.String("status", string(o.Status)),
		}

		if o.SHA != "" {
			fields = append(fields, logfields.Commit(o.SHA))
		}

		if o.Reason != "" {
			fields = append(fields, logfields.Reason(o.Reason))
		}

		s.logger.Info("repository processed", fields...)
	}

	for _, e := range res.ErrorsDetail {
		fields := []zap.Field{
			logfields.Event("branch_merge_failure"),
			logfields.Organization(e.Org),
			zap.String("scope", string(e.Scope)),
			zap.String("stage", string(e.Stage)),
			logfields.Reason(e.Reason),
			logfields.URL(e.URL),
		}

		if e.Repo != "" {
			fields = append(fields, logfields.Repository(e.Repo))
		}

		if e.Severity == branchmerge.SeverityWarning {
			s.logger.Warn("failure during branch merge run", fields...)
			continue
		}

		s.logger.Error("failure during branch merge run", fields...)
	}

	s.logger.Info("branch merge summary",
		logfields.Event("branch_merge_summary"),
		zap.Int("repositories", len(res.Outcomes)),
		zap.Int("merged", res.Count(branchmerge.StatusMerged)),
		zap.Int("up_to_date", res.Count(branchmerge.StatusUpToDate)),
		zap.Int("conflicts", res.Count(branchmerge.StatusConflict)),
		zap.Int("skipped", res.Count(branchmerge.StatusSkipped)),
		zap.Int("errors", res.Errors),
	)

	return nil
}

func (s *LogSink) ReportPullRequests(_ context.Context, results []*prmerge.ResultInfo) error {
	for _, r := range results {
		s.logger.Info("pull request evaluated",
			logfields.Event("pull_request_result"),
			logfields.URL(r.URL),
			zap.Bool("merged", r.Merged),
		)
	}

	return nil
}
