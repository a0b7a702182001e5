package pipeline

import (
	"context"
	"errors"

	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/subscriptions"
)

// Process exit statuses of a job run.
const (
	ExitOK            = 0
	ExitConfigError   = 1
	ExitNoBuildBranch = 2
	ExitBuildFailed   = 3
	ExitCleanupFailed = 4
	ExitInterrupted   = 130
)

// ExitCode maps the error that ended a run onto its exit status.
func ExitCode(err error) int {
	var configErr *job.ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &configErr):
		return ExitConfigError
	case errors.Is(err, subscriptions.ErrNoBuildBranch):
		return ExitNoBuildBranch
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitBuildFailed
	}
}
