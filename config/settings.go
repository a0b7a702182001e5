package simple

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cochaviz/prbuild/internal/artifacts"
	"github.com/cochaviz/prbuild/internal/build"
	"github.com/cochaviz/prbuild/internal/command"
	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/report"
	"github.com/cochaviz/prbuild/internal/scratch"
	"github.com/cochaviz/prbuild/internal/subscriptions"
)

// Host setting overrides. Job inputs are read separately by job.Validate.
const (
	EnvBuildSpace     = "PRBUILD_BUILD_SPACE"
	EnvSubscriptions  = "PRBUILD_SUBSCRIPTIONS"
	EnvDescriptorURL  = "PRBUILD_DESCRIPTOR_URL"
	EnvPackageArch    = "PRBUILD_PACKAGE_ARCH"
	EnvCommandTimeout = "PRBUILD_COMMAND_TIMEOUT"
	EnvRemoveAttempts = "PRBUILD_REMOVE_ATTEMPTS"
	EnvRemoveDelay    = "PRBUILD_REMOVE_DELAY"
	EnvSudo           = "PRBUILD_SUDO"
	EnvRemover        = "PRBUILD_REMOVER"
	EnvReport         = "PRBUILD_REPORT"
)

// Remover implementations selectable through PRBUILD_REMOVER.
const (
	RemoverCommand = "command"
	RemoverFS      = "fs"
)

// Settings describes the build host.
type Settings struct {
	BuildSpace     string
	Subscriptions  string
	DescriptorURL  string
	PackageArch    string
	CommandTimeout time.Duration
	RemoveAttempts int
	RemoveDelay    time.Duration
	Sudo           scratch.SudoMode
	Remover        string
	ReportFile     string
}

// DefaultSettings returns the settings of the standard build host.
func DefaultSettings() Settings {
	return Settings{
		BuildSpace:     scratch.DefaultBuildSpace,
		Subscriptions:  subscriptions.DefaultPath,
		DescriptorURL:  build.DefaultDescriptorURL,
		PackageArch:    artifacts.DefaultArch,
		CommandTimeout: command.DefaultTimeout,
		RemoveAttempts: scratch.DefaultAttempts,
		RemoveDelay:    scratch.DefaultDelay,
		Sudo:           scratch.SudoAuto,
		Remover:        RemoverCommand,
		ReportFile:     report.DefaultFileName,
	}
}

// LoadSettings applies PRBUILD_* overrides to the defaults and validates
// the result. A nil lookup reads the process environment.
func LoadSettings(lookup job.LookupFunc) (Settings, error) {
	settings, err := ApplyEnv(DefaultSettings(), lookup)
	if err != nil {
		return Settings{}, err
	}
	return settings, settings.Validate()
}

// ApplyEnv applies PRBUILD_* overrides to settings without validating the
// result, so callers can layer flags on top first.
func ApplyEnv(settings Settings, lookup job.LookupFunc) (Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}

	if v, ok := get(EnvBuildSpace); ok {
		settings.BuildSpace = v
	}
	if v, ok := get(EnvSubscriptions); ok {
		settings.Subscriptions = v
	}
	if v, ok := get(EnvDescriptorURL); ok {
		settings.DescriptorURL = v
	}
	if v, ok := get(EnvPackageArch); ok {
		settings.PackageArch = v
	}
	if v, ok := get(EnvCommandTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvCommandTimeout, err)
		}
		settings.CommandTimeout = d
	}
	if v, ok := get(EnvRemoveAttempts); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvRemoveAttempts, err)
		}
		settings.RemoveAttempts = n
	}
	if v, ok := get(EnvRemoveDelay); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvRemoveDelay, err)
		}
		settings.RemoveDelay = d
	}
	if v, ok := get(EnvSudo); ok {
		mode, err := scratch.ParseSudoMode(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvSudo, err)
		}
		settings.Sudo = mode
	}
	if v, ok := get(EnvRemover); ok {
		settings.Remover = v
	}
	if v, ok := lookup(EnvReport); ok {
		// An explicitly empty value disables the report.
		settings.ReportFile = strings.TrimSpace(v)
	}

	return settings, nil
}

// Validate rejects settings the job cannot run with.
func (s Settings) Validate() error {
	switch {
	case !strings.HasPrefix(s.BuildSpace, "/"):
		return fmt.Errorf("build space must be an absolute path, got %q", s.BuildSpace)
	case s.CommandTimeout <= 0:
		return fmt.Errorf("command timeout must be positive, got %v", s.CommandTimeout)
	case s.RemoveAttempts <= 0:
		return fmt.Errorf("remove attempts must be positive, got %d", s.RemoveAttempts)
	case s.RemoveDelay < 0:
		return fmt.Errorf("remove delay must not be negative, got %v", s.RemoveDelay)
	case s.Remover != RemoverCommand && s.Remover != RemoverFS:
		return fmt.Errorf("unknown remover %q", s.Remover)
	case !strings.Contains(s.DescriptorURL, "{branch}"):
		return fmt.Errorf("descriptor URL %q has no {branch} placeholder", s.DescriptorURL)
	case strings.ContainsRune(s.ReportFile, '/'):
		return fmt.Errorf("report file %q must be a plain file name", s.ReportFile)
	}
	return nil
}
