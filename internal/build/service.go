// Package build runs the build of one internal branch: it provisions a
// scratch descriptor tree, injects the pull request, runs both build stages,
// harvests packages and reclaims the tree.
package build

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cochaviz/prbuild/internal/artifacts"
	"github.com/cochaviz/prbuild/internal/command"
	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/logging"
	"github.com/cochaviz/prbuild/internal/scratch"
)

// Runner builds internal branches one at a time.
type Runner struct {
	Logger    *slog.Logger
	Commands  command.Runner
	Harvester artifacts.Harvester
	Reclaimer Reclaimer
	Layout    Layout
}

func (r *Runner) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run builds branch for the pull request described by jobCtx. On failure
// the returned error is a *StageError and the scratch root is left for the
// job cleanup.
func (r *Runner) Run(ctx context.Context, jobCtx job.JobContext, branch string) (BranchResult, error) {
	if r.Commands == nil || r.Harvester == nil || r.Reclaimer == nil {
		return BranchResult{Branch: branch, Stage: StageFailed}, errors.New("build runner is not configured")
	}

	buildSpace := r.Layout.BuildSpace
	if buildSpace == "" {
		buildSpace = scratch.DefaultBuildSpace
	}

	start := time.Now()
	result := BranchResult{
		Branch:      branch,
		ScratchRoot: scratch.BranchRoot(buildSpace, jobCtx.BuildTag, branch),
		Stage:       StageInit,
	}
	logger := r.logger().With("branch", branch)
	root := result.ScratchRoot
	repoDir := filepath.Join(root, ExternalReposDir, jobCtx.RepositoryName())

	steps := []struct {
		stage   Stage
		heading string
		run     func() error
	}{
		{StageScratchCreated, "Fetching local branch from build system...", func() error {
			return scratch.Create(root)
		}},
		{StageDescriptorCloned, "", func() error {
			return r.exec(ctx, logger, descriptorCloneCommand(r.Layout.DescriptorURLFor(branch), root))
		}},
		{StageSourceInjected, "Injecting repo into " + ExternalReposDir + "...", func() error {
			return r.exec(ctx, logger, sourceCloneCommand(jobCtx.Workspace, repoDir))
		}},
		{StageRemoteRepointed, "", func() error {
			if err := r.exec(ctx, logger, gitCommand(repoDir, "remote", "set-url", "origin", jobCtx.GitURL)); err != nil {
				return err
			}
			return r.exec(ctx, logger, gitCommand(repoDir, "status"))
		}},
		{StageManifestBuilt, "Start the build...", func() error {
			return r.exec(ctx, logger, makeCommand(root, ManifestTarget))
		}},
		{StageComponentBuilt, "", func() error {
			return r.exec(ctx, logger, makeCommand(root, jobCtx.Component+"-build"))
		}},
		{StageHarvested, "Extracting packages for archive...", func() error {
			set, err := r.Harvester.Harvest(ctx, artifacts.HarvestRequest{
				BuildRoot: root,
				Component: jobCtx.Component,
				Arch:      r.Layout.Arch,
				Workspace: jobCtx.Workspace,
				Branch:    branch,
			})
			result.Harvest = set
			return err
		}},
		{StageScratchRemoved, "Deleting build tree for local branch...", func() error {
			return r.Reclaimer.Reclaim(ctx, root)
		}},
	}

	logging.Section(logger, "Starting build for local branch", "scratch_root", root)
	for _, step := range steps {
		if step.heading != "" {
			logging.Section(logger, step.heading)
		}
		if err := step.run(); err != nil {
			result.FailedAt = step.stage
			result.Stage = StageFailed
			result.Duration = time.Since(start)
			logger.Error("branch build failed", "stage", step.stage, "error", err)
			return result, &StageError{Branch: branch, Stage: step.stage, Err: err}
		}
		result.Stage = step.stage
		logger.Debug("stage reached", "stage", step.stage)
	}

	result.Duration = time.Since(start)
	logger.Info("branch build completed",
		"packages", len(result.Harvest.Packages),
		"output_dir", result.Harvest.Dir,
		"duration", result.Duration,
	)
	return result, nil
}

func (r *Runner) exec(ctx context.Context, logger *slog.Logger, cmd command.Command) error {
	logger.Info("running command", "command", cmd.String())
	res, err := r.Commands.Run(ctx, cmd)
	if err != nil {
		return err
	}
	logger.Debug("command finished", "command", cmd.Name, "duration", res.Duration)
	return nil
}
