// Package pipeline sequences a pull-request build job: validation, branch
// resolution, one build per internal branch and the cleanup contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cochaviz/prbuild/internal/artifacts"
	"github.com/cochaviz/prbuild/internal/build"
	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/logging"
	"github.com/cochaviz/prbuild/internal/report"
	"github.com/cochaviz/prbuild/internal/subscriptions"
)

// BranchResolver finds the internal branches subscribed to a repository branch.
type BranchResolver interface {
	Resolve(ctx context.Context, repository, branch string) ([]string, error)
}

// BranchBuilder builds one internal branch.
type BranchBuilder interface {
	Run(ctx context.Context, jobCtx job.JobContext, branch string) (build.BranchResult, error)
}

// JobCleaner removes the scratch root of a job.
type JobCleaner interface {
	CleanupJob(ctx context.Context, buildTag string) error
}

// Orchestrator runs a complete job. Branches are built strictly one after
// another and the first failure ends the job.
type Orchestrator struct {
	Logger   *slog.Logger
	Lookup   job.LookupFunc
	Resolver BranchResolver
	Builder  BranchBuilder
	Cleaner  JobCleaner
	// ReportFile is the report name inside the workspace. Empty disables
	// the report.
	ReportFile string
}

// Outcome is everything a run produced. Err is the cause that ended the
// run; CleanupErr never replaces it.
type Outcome struct {
	RunID      string
	Job        job.JobContext
	Branches   []string
	Results    []build.BranchResult
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
	CleanupErr error
	ExitCode   int
}

// Error joins the cause and any cleanup failure for reporting.
func (o Outcome) Error() error {
	return errors.Join(o.Err, o.CleanupErr)
}

func (o *Orchestrator) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Run executes the job described by the environment.
func (o *Orchestrator) Run(ctx context.Context) Outcome {
	outcome := Outcome{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := o.logger().With("run_id", outcome.RunID)

	logging.Section(logger, "Pull request detected!")
	logging.Section(logger, "Checking job properly configured...")
	jobCtx, err := job.Validate(o.Lookup, logger)
	if err != nil {
		logger.Error("job is not configured", "error", err)
		return o.finish(logger, outcome, err)
	}
	outcome.Job = jobCtx
	logger.Info("job identity", "job", jobCtx)

	logging.Section(logger, "Removing artifacts from previous job...")
	if _, err := artifacts.ClearStale(jobCtx.Workspace, logger); err != nil {
		logger.Warn("stale artifacts were not fully removed", "error", err)
	}

	logging.Section(logger, "Finding local branches for target branch...",
		"target_branch", jobCtx.TargetBranch,
		"git_url", jobCtx.GitURL,
	)
	branches, err := o.Resolver.Resolve(ctx, jobCtx.RepositoryName(), jobCtx.TargetBranch)
	if err != nil {
		return o.fail(ctx, logger, outcome, fmt.Errorf("resolve build branches: %w", err))
	}
	if len(branches) == 0 {
		logger.Error("local build branch not found in subscriptions", "target_branch", jobCtx.TargetBranch)
		return o.finish(logger, outcome, subscriptions.ErrNoBuildBranch)
	}
	outcome.Branches = branches
	logger.Info("target branch resolved", "target_branch", jobCtx.TargetBranch, "branches", strings.Join(branches, ","))
	if len(branches) > 1 {
		logger.Info("all local branches will be built", "count", len(branches))
	}

	for _, branch := range branches {
		result, err := o.Builder.Run(ctx, jobCtx, branch)
		outcome.Results = append(outcome.Results, result)
		if err != nil {
			return o.fail(ctx, logger, outcome, err)
		}
	}

	if err := o.Cleaner.CleanupJob(ctx, jobCtx.BuildTag); err != nil {
		logger.Error("job cleanup failed", "error", err)
		outcome.CleanupErr = err
	}

	logging.Section(logger, "End of build script")
	return o.finish(logger, outcome, nil)
}

// fail attempts the job cleanup after a failure. A cleanup failure is
// recorded but the original error stays the cause.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, outcome Outcome, cause error) Outcome {
	logging.Section(logger, "Job failed, attempting cleanup...", "error", cause)

	// The job context may already be cancelled; cleanup still has to run.
	cleanupCtx := context.WithoutCancel(ctx)
	if err := o.Cleaner.CleanupJob(cleanupCtx, outcome.Job.BuildTag); err != nil {
		logger.Warn("cleanup failed", "error", err)
		outcome.CleanupErr = err
	}
	return o.finish(logger, outcome, cause)
}

func (o *Orchestrator) finish(logger *slog.Logger, outcome Outcome, cause error) Outcome {
	outcome.Err = cause
	outcome.FinishedAt = time.Now()
	outcome.ExitCode = ExitCode(cause)
	if cause == nil && outcome.CleanupErr != nil {
		outcome.ExitCode = ExitCleanupFailed
	}

	if o.ReportFile != "" && outcome.Job.Workspace != "" {
		path := filepath.Join(outcome.Job.Workspace, o.ReportFile)
		if err := report.Write(path, buildReport(outcome)); err != nil {
			logger.Warn("failed to write job report", "path", path, "error", err)
		} else {
			logger.Info("job report written", "path", path)
		}
	}

	logger.Info("job finished", "exit_code", outcome.ExitCode, "duration", outcome.FinishedAt.Sub(outcome.StartedAt))
	return outcome
}

func buildReport(outcome Outcome) report.Report {
	r := report.Report{
		RunID:        outcome.RunID,
		StartedAt:    outcome.StartedAt,
		FinishedAt:   outcome.FinishedAt,
		Repository:   outcome.Job.RepositoryName(),
		TargetBranch: outcome.Job.TargetBranch,
		PullRequest:  outcome.Job.PullID,
		Ref:          outcome.Job.Ref,
		Commit:       outcome.Job.Commit,
		BuildTag:     outcome.Job.BuildTag,
		Component:    outcome.Job.Component,
		Branches:     []report.Branch{},
		ExitCode:     outcome.ExitCode,
	}
	if outcome.Err != nil {
		r.Error = outcome.Err.Error()
	}
	if outcome.CleanupErr != nil {
		r.CleanupError = outcome.CleanupErr.Error()
	}

	for _, result := range outcome.Results {
		r.Branches = append(r.Branches, report.Branch{
			Name:      result.Branch,
			Stage:     string(result.Stage),
			FailedAt:  string(result.FailedAt),
			OutputDir: result.Harvest.Dir,
			Duration:  result.Duration.Round(time.Second).String(),
			Packages:  result.Harvest.Packages,
		})
	}
	return r
}
