package prmerge

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

var errCIPending = errors.New("ci checks are in progress")

// ciStatus evaluates the check runs of all check suites of ref.
// Check runs named ignoreName are not considered.
func ciStatus(ctx context.Context, clt GithubClient, owner, repo, ref, ignoreName string) (githubclt.CIStatus, error) {
	suites, err := clt.ListCheckSuites(ctx, owner, repo, ref)
	if err != nil {
		return "", err
	}

	for _, suite := range suites {
		runs, err := clt.ListCheckRunsForSuite(ctx, owner, repo, suite.GetID())
		if err != nil {
			return "", err
		}

		switch status := githubclt.CheckRunsStatus(runs, ignoreName); status {
		case githubclt.CIStatusPending, githubclt.CIStatusFailure:
			return status, nil
		}
	}

	return githubclt.CIStatusSuccess, nil
}

// isCIGreen polls the CI status of ref until all check runs completed or
// the configured number of attempts is exhausted.
// False is returned if a check run failed or the runs did not complete in
// time.
func (e *Engine) isCIGreen(ctx context.Context, logger *zap.Logger, clt GithubClient, owner, repo, ref string) (bool, error) {
	var status githubclt.CIStatus
	var apiErr error

	bo := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(e.cfg.CIPollInterval),
			uint64(e.cfg.CIPollAttempts-1),
		),
		ctx,
	)

	err := backoff.RetryNotify(
		func() error {
			metrics.ciPoll()

			status, apiErr = ciStatus(ctx, clt, owner, repo, ref, e.cfg.WorkflowName)
			if apiErr != nil {
				return nil
			}

			if status == githubclt.CIStatusPending {
				return errCIPending
			}

			return nil
		},
		bo,
		func(_ error, next time.Duration) {
			logger.Info("not all ci checks completed, will retry",
				logfields.Event("ci_status_pending"),
				logfields.Commit(ref),
				zap.Duration("retry_in", next),
			)
		},
	)
	if apiErr != nil {
		return false, apiErr
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		logger.Warn("ci checks did not complete, giving up",
			logfields.Event("ci_status_poll_exhausted"),
			logfields.Commit(ref),
			zap.Int("attempts", e.cfg.CIPollAttempts),
		)

		return false, nil
	}

	return status == githubclt.CIStatusSuccess, nil
}
