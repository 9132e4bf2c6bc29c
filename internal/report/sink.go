// Package report renders the results of branch merge runs and pull request
// evaluations.
package report

import (
	"context"
	"errors"

	"github.com/simplesurance/mergekeeper/internal/branchmerge"
	"github.com/simplesurance/mergekeeper/internal/prmerge"
)

type Sink interface {
	ReportBranchMerge(context.Context, *branchmerge.Result) error
	ReportPullRequests(context.Context, []*prmerge.ResultInfo) error
}

// MultiSink forwards results to all sinks.
type MultiSink []Sink

func (m MultiSink) ReportBranchMerge(ctx context.Context, res *branchmerge.Result) error {
	var errs []error

	for _, s := range m {
		if err := s.ReportBranchMerge(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m MultiSink) ReportPullRequests(ctx context.Context, results []*prmerge.ResultInfo) error {
	var errs []error

	for _, s := range m {
		if err := s.ReportPullRequests(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
