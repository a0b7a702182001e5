package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	config "github.com/cochaviz/prbuild/config"
	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/logging"
	"github.com/cochaviz/prbuild/internal/pipeline"
	"github.com/cochaviz/prbuild/internal/scratch"
	"github.com/cochaviz/prbuild/internal/subscriptions"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "cli"
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// cli holds state shared by the commands. settings is only complete once
// configure has layered the environment and the parsed flags.
type cli struct {
	levelVar  slog.LevelVar
	logger    *slog.Logger
	lookup    job.LookupFunc
	settings  config.Settings
	flags     config.Settings
	sudo      string
	logLevel  string
	logFormat string
}

func main() {
	app := &cli{}
	app.levelVar.Set(slog.LevelInfo)
	app.logger = logging.NewCLI(os.Stderr, &app.levelVar)
	slog.SetDefault(app.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(app)
	if err := root.ExecuteContext(ctx); err != nil {
		var exit *exitError
		switch {
		case errors.As(err, &exit):
			os.Exit(exit.code)
		case errors.Is(err, context.Canceled):
			app.logger.Warn("command interrupted", "error", err)
			os.Exit(pipeline.ExitInterrupted)
		default:
			app.logger.Error("command execution failed", "error", err)
			os.Exit(1)
		}
	}
}

func newRootCommand(app *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "prbuild",
		Short: "Build the internal branches subscribed to a pull request's target branch",
		Long: `prbuild runs inside a CI job triggered by a pull request. It reads the job
from the environment, resolves the internal build branches subscribed to the
target branch, builds each one in a scratch tree and collects the packages
into the job workspace.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome := config.RunJob(cmd.Context(), app.settings, config.Streams{
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			}, app.logger)
			if outcome.ExitCode != pipeline.ExitOK {
				return &exitError{code: outcome.ExitCode, err: outcome.Error()}
			}
			return nil
		},
	}

	defaults := config.DefaultSettings()
	flags := root.PersistentFlags()
	flags.StringVar(&app.logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	flags.StringVar(&app.logFormat, "log-format", defaultLogFormat, "Set log format (cli, json)")
	flags.StringVar(&app.flags.BuildSpace, "build-space", defaults.BuildSpace, "Directory holding per-job scratch trees")
	flags.StringVar(&app.flags.Subscriptions, "subscriptions", defaults.Subscriptions, "Branch subscriptions file")
	flags.StringVar(&app.flags.DescriptorURL, "descriptor-url", defaults.DescriptorURL, "Build descriptor repository URL, {branch} is replaced by the internal branch")
	flags.StringVar(&app.flags.PackageArch, "arch", defaults.PackageArch, "Package architecture to collect")
	flags.DurationVar(&app.flags.CommandTimeout, "command-timeout", defaults.CommandTimeout, "Maximum duration of a single build command")
	flags.IntVar(&app.flags.RemoveAttempts, "remove-attempts", defaults.RemoveAttempts, "Scratch removal attempts after a build")
	flags.DurationVar(&app.flags.RemoveDelay, "remove-delay", defaults.RemoveDelay, "Delay between scratch removal attempts")
	flags.StringVar(&app.sudo, "sudo", string(defaults.Sudo), "Run removals through sudo (auto, always, never)")
	flags.StringVar(&app.flags.Remover, "remover", defaults.Remover, "Scratch remover (command, fs)")
	flags.StringVar(&app.flags.ReportFile, "report", defaults.ReportFile, "Report file name in the workspace, empty to disable")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := app.configure(cmd); err != nil {
			return &exitError{code: pipeline.ExitConfigError, err: err}
		}
		return nil
	}

	root.AddCommand(
		newResolveCommand(app),
		newCleanupCommand(app),
		newCheckCommand(app),
	)
	return root
}

// configure sets up the logger and builds the settings from the
// environment, with explicitly set flags taking precedence.
func (app *cli) configure(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(app.logLevel)
	if err != nil {
		app.logger.Error("invalid log level", "error", err)
		return err
	}
	mode, err := logging.ParseMode(app.logFormat)
	if err != nil {
		app.logger.Error("invalid log format", "error", err)
		return err
	}
	app.levelVar.Set(level)
	app.logger = logging.New(mode, os.Stderr, &app.levelVar)
	slog.SetDefault(app.logger)

	settings, err := config.ApplyEnv(config.DefaultSettings(), app.lookup)
	if err != nil {
		app.logger.Error("invalid settings", "error", err)
		return err
	}

	overrides := map[string]func(*config.Settings){
		"build-space":     func(s *config.Settings) { s.BuildSpace = app.flags.BuildSpace },
		"subscriptions":   func(s *config.Settings) { s.Subscriptions = app.flags.Subscriptions },
		"descriptor-url":  func(s *config.Settings) { s.DescriptorURL = app.flags.DescriptorURL },
		"arch":            func(s *config.Settings) { s.PackageArch = app.flags.PackageArch },
		"command-timeout": func(s *config.Settings) { s.CommandTimeout = app.flags.CommandTimeout },
		"remove-attempts": func(s *config.Settings) { s.RemoveAttempts = app.flags.RemoveAttempts },
		"remove-delay":    func(s *config.Settings) { s.RemoveDelay = app.flags.RemoveDelay },
		"remover":         func(s *config.Settings) { s.Remover = app.flags.Remover },
		"report":          func(s *config.Settings) { s.ReportFile = app.flags.ReportFile },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply(&settings)
		}
	}
	if cmd.Flags().Changed("sudo") {
		sudo, err := scratch.ParseSudoMode(app.sudo)
		if err != nil {
			app.logger.Error("invalid settings", "error", err)
			return err
		}
		settings.Sudo = sudo
	}

	if err := settings.Validate(); err != nil {
		app.logger.Error("invalid settings", "error", err)
		return err
	}
	app.settings = settings
	return nil
}

func newResolveCommand(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <repository> <branch>",
		Args:  cobra.ExactArgs(2),
		Short: "List the internal branches subscribed to a repository branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			repository := strings.TrimSpace(args[0])
			branch := strings.TrimSpace(args[1])
			cmdLogger := app.logger.With("command", "resolve", "repository", repository, "branch", branch)

			branches, err := config.ResolveBranches(cmd.Context(), app.settings, repository, branch, cmdLogger)
			if err != nil {
				cmdLogger.Error("resolve failed", "error", err)
				return &exitError{code: pipeline.ExitBuildFailed, err: err}
			}
			if len(branches) == 0 {
				cmdLogger.Warn("no build branch found")
				return &exitError{code: pipeline.ExitNoBuildBranch, err: subscriptions.ErrNoBuildBranch}
			}
			for _, name := range branches {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCleanupCommand(app *cli) *cobra.Command {
	var buildTag string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Args:  cobra.NoArgs,
		Short: "Remove the scratch trees of a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := strings.TrimSpace(buildTag)
			if tag == "" {
				tag = strings.TrimSpace(os.Getenv(job.EnvBuildTag))
			}
			if tag == "" {
				return &exitError{code: pipeline.ExitConfigError, err: fmt.Errorf("build tag is required (--build-tag or BUILD_TAG)")}
			}
			if err := job.CheckPathName(tag); err != nil {
				return &exitError{code: pipeline.ExitConfigError, err: fmt.Errorf("build tag: %w", err)}
			}

			cmdLogger := app.logger.With("command", "cleanup", "build_tag", tag)
			if err := config.CleanupJob(cmd.Context(), app.settings, tag, cmdLogger); err != nil {
				cmdLogger.Error("cleanup failed", "error", err)
				return &exitError{code: pipeline.ExitCleanupFailed, err: err}
			}
			cmdLogger.Info("cleanup completed")
			return nil
		},
	}

	cmd.Flags().StringVar(&buildTag, "build-tag", "", "Build tag of the job to clean up (defaults to BUILD_TAG)")
	return cmd
}

func newCheckCommand(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Args:  cobra.NoArgs,
		Short: "Verify that this host can run jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := app.logger.With("command", "check")
			cmdLogger.Info("verifying host")
			if err := config.Check(app.settings, cmdLogger); err != nil {
				cmdLogger.Error("host verification failed", "error", err)
				return &exitError{code: pipeline.ExitConfigError, err: err}
			}
			cmdLogger.Info("host verification succeeded")
			return nil
		},
	}
}
