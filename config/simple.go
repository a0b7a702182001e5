package simple

import (
	"context"
	"io"
	"log/slog"

	"github.com/cochaviz/prbuild/internal/artifacts"
	"github.com/cochaviz/prbuild/internal/build"
	"github.com/cochaviz/prbuild/internal/command"
	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/logging"
	"github.com/cochaviz/prbuild/internal/pipeline"
	"github.com/cochaviz/prbuild/internal/scratch"
	"github.com/cochaviz/prbuild/internal/setup"
	"github.com/cochaviz/prbuild/internal/subscriptions"
)

// Streams receive the output of build commands as they run.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewOrchestrator wires the job pipeline for settings. Job inputs are read
// through lookup, which defaults to the process environment.
func NewOrchestrator(settings Settings, lookup job.LookupFunc, streams Streams, logger *slog.Logger) *pipeline.Orchestrator {
	logger = logging.Ensure(logger)

	commands := &command.ExecRunner{
		Timeout: settings.CommandTimeout,
		Stdout:  streams.Stdout,
		Stderr:  streams.Stderr,
		Logger:  logger.With("component", "command"),
	}
	remover := newRemover(settings, commands)

	return &pipeline.Orchestrator{
		Logger: logger.With("component", "pipeline"),
		Lookup: lookup,
		Resolver: &subscriptions.Resolver{
			Path:   settings.Subscriptions,
			Logger: logger.With("component", "subscriptions"),
		},
		Builder: &build.Runner{
			Logger:    logger.With("component", "build"),
			Commands:  commands,
			Harvester: &artifacts.LocalHarvester{Logger: logger.With("component", "artifacts")},
			Reclaimer: &scratch.Reclaimer{
				Remover:    remover,
				BuildSpace: settings.BuildSpace,
				Attempts:   settings.RemoveAttempts,
				Delay:      settings.RemoveDelay,
				Logger:     logger.With("component", "scratch"),
			},
			Layout: build.Layout{
				BuildSpace:    settings.BuildSpace,
				DescriptorURL: settings.DescriptorURL,
				Arch:          settings.PackageArch,
			},
		},
		Cleaner:    newCleaner(settings, remover, logger),
		ReportFile: settings.ReportFile,
	}
}

// RunJob runs the pull-request build described by the environment.
func RunJob(ctx context.Context, settings Settings, streams Streams, logger *slog.Logger) pipeline.Outcome {
	return NewOrchestrator(settings, nil, streams, logger).Run(ctx)
}

// ResolveBranches lists the internal branches subscribed to a repository branch.
func ResolveBranches(ctx context.Context, settings Settings, repository, branch string, logger *slog.Logger) ([]string, error) {
	resolver := &subscriptions.Resolver{
		Path:   settings.Subscriptions,
		Logger: logging.Ensure(logger).With("component", "subscriptions"),
	}
	return resolver.Resolve(ctx, repository, branch)
}

// CleanupJob removes the scratch root of buildTag.
func CleanupJob(ctx context.Context, settings Settings, buildTag string, logger *slog.Logger) error {
	logger = logging.Ensure(logger)
	commands := &command.ExecRunner{Timeout: settings.CommandTimeout, Logger: logger.With("component", "command")}
	return newCleaner(settings, newRemover(settings, commands), logger).CleanupJob(ctx, buildTag)
}

// Check verifies that the host can run jobs with settings.
func Check(settings Settings, logger *slog.Logger) error {
	setup.SetLogger(logging.Ensure(logger).With("component", "setup"))
	return setup.Verify(setup.Requirements{
		Subscriptions: settings.Subscriptions,
		BuildSpace:    settings.BuildSpace,
		Tools:         requiredTools(settings),
	})
}

func requiredTools(settings Settings) []string {
	tools := []string{"hg", "git", "make"}
	if settings.Remover == RemoverCommand {
		tools = append(tools, "rm")
		if settings.Sudo.UseSudo() {
			tools = append(tools, "sudo")
		}
	}
	return tools
}

func newRemover(settings Settings, commands command.Runner) scratch.Remover {
	if settings.Remover == RemoverFS {
		return scratch.FSRemover{}
	}
	return &scratch.CommandRemover{Runner: commands, Sudo: settings.Sudo.UseSudo()}
}

func newCleaner(settings Settings, remover scratch.Remover, logger *slog.Logger) *scratch.JobCleaner {
	return &scratch.JobCleaner{
		Remover:    remover,
		BuildSpace: settings.BuildSpace,
		Logger:     logger.With("component", "cleanup"),
	}
}
