package artifacts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/logging"
)

// ClearStale removes every rpms-* output directory from workspace. Each
// directory is attempted; failures are collected rather than stopping the
// sweep.
func ClearStale(workspace string, logger *slog.Logger) ([]string, error) {
	logger = logging.Ensure(logger)

	matches, err := filepath.Glob(job.OutputDirPattern(workspace))
	if err != nil {
		return nil, fmt.Errorf("glob stale output: %w", err)
	}

	removed := []string{}
	var errs error
	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove stale output", "path", dir, "error", err)
			errs = errors.Join(errs, err)
			continue
		}
		logger.Info("removed stale output", "path", dir)
		removed = append(removed, dir)
	}
	return removed, errs
}
