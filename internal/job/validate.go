package job

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cochaviz/prbuild/internal/logging"
)

// LookupFunc resolves an environment variable. It has the signature of
// os.LookupEnv so tests can supply a map-backed lookup.
type LookupFunc func(key string) (string, bool)

// ConfigError reports required variables that were absent, empty or held a
// value the job cannot use.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing environment variables "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid environment variables "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("job is not configured: %s", strings.Join(parts, "; "))
}

// MapLookup adapts a map to a LookupFunc.
func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// Validate checks every required variable, logging its status, and returns
// the resulting JobContext. Unlike a shell check that stops at the first
// Fail, all variables are checked so the error names everything that is
// missing. BUILD_TAG names the job's scratch directory and must be a single
// path element.
func Validate(lookup LookupFunc, logger *slog.Logger) (JobContext, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	logger = logging.Ensure(logger)

	values := make(map[string]string, len(RequiredVariables))
	var missing, invalid []string

	for _, name := range RequiredVariables {
		value, ok := lookup(name)
		if !ok || strings.TrimSpace(value) == "" {
			logger.Error("checking environment variable", "variable", name, "status", "Fail")
			missing = append(missing, name)
			continue
		}
		if name == EnvBuildTag {
			if err := CheckPathName(value); err != nil {
				logger.Error("checking environment variable", "variable", name, "status", "Fail", "error", err)
				invalid = append(invalid, name)
				continue
			}
		}
		logger.Info("checking environment variable", "variable", name, "status", "OK")
		values[name] = value
	}

	if len(missing) > 0 || len(invalid) > 0 {
		return JobContext{}, &ConfigError{Missing: missing, Invalid: invalid}
	}

	return JobContext{
		TargetBranch: values[EnvTargetBranch],
		PullID:       values[EnvPullID],
		Commit:       values[EnvCommit],
		Workspace:    values[EnvWorkspace],
		BuildTag:     values[EnvBuildTag],
		GitURL:       values[EnvGitURL],
		Ref:          values[EnvRef],
		Component:    values[EnvComponent],
	}, nil
}
