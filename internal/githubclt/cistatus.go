package githubclt

import (
	"context"

	"github.com/google/go-github/v59/github"
)

// CIStatus abstracts the multiple result values of GitHub check runs into a
// single value.
type CIStatus string

const (
	CIStatusSuccess CIStatus = "SUCCESS"
	CIStatusPending CIStatus = "PENDING"
	CIStatusFailure CIStatus = "FAILURE"
)

const checkRunStatusCompleted = "completed"

// ListCheckSuites returns the check suites of a commit.
func (clt *Client) ListCheckSuites(ctx context.Context, owner, repo, ref string) ([]*github.CheckSuite, error) {
	var result []*github.CheckSuite

	opts := github.ListCheckSuiteOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		if err := clt.wait(ctx); err != nil {
			return nil, err
		}

		suites, resp, err := clt.restClt.Checks.ListCheckSuitesForRef(ctx, owner, repo, ref, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, suites.CheckSuites...)

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// ListCheckRunsForSuite returns the check runs of a check suite.
func (clt *Client) ListCheckRunsForSuite(ctx context.Context, owner, repo string, suiteID int64) ([]*github.CheckRun, error) {
	var result []*github.CheckRun

	opts := github.ListCheckRunsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		if err := clt.wait(ctx); err != nil {
			return nil, err
		}

		runs, resp, err := clt.restClt.Checks.ListCheckRunsCheckSuite(ctx, owner, repo, suiteID, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, runs.CheckRuns...)

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// CheckRunsStatus returns the combined status of the check runs of one
// check suite.
// Runs named ignoreName are not considered.
// The result is CIStatusPending if a run did not complete, CIStatusFailure if
// a run concluded with "failure" and CIStatusSuccess otherwise.
func CheckRunsStatus(runs []*github.CheckRun, ignoreName string) CIStatus {
	result := CIStatusSuccess

	for _, run := range runs {
		if run.GetName() == ignoreName {
			continue
		}

		if run.GetStatus() != checkRunStatusCompleted {
			return CIStatusPending
		}

		if run.GetConclusion() == "failure" {
			result = CIStatusFailure
		}
	}

	return result
}
