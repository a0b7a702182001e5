package scratch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/logging"
)

// JobCleaner removes the scratch root of a whole job.
type JobCleaner struct {
	Remover    Remover
	BuildSpace string
	Logger     *slog.Logger
}

func (c *JobCleaner) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// CleanupJob deletes <build space>/<build tag>. It makes a single attempt;
// callers decide how a failure is reported. A tag that does not name a
// directory strictly below the build space is refused.
func (c *JobCleaner) CleanupJob(ctx context.Context, buildTag string) error {
	if err := job.CheckPathName(buildTag); err != nil {
		return fmt.Errorf("%w: build tag: %w", ErrUnsafePath, err)
	}

	buildSpace := c.BuildSpace
	if buildSpace == "" {
		buildSpace = DefaultBuildSpace
	}
	root := JobRoot(buildSpace, buildTag)
	if err := checkWithin(buildSpace, root); err != nil {
		return err
	}

	logging.Section(c.logger(), "Deleting temporary build root...", "path", root)
	if err := c.Remover.Remove(ctx, root); err != nil {
		return fmt.Errorf("delete job scratch root %s: %w", root, err)
	}
	return nil
}
