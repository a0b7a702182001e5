package scratch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultAttempts is the removal budget for a branch scratch root.
	DefaultAttempts = 4
	// DefaultDelay separates failed removal attempts. Bind mounts made by the
	// build can take a few seconds to be released.
	DefaultDelay = 3 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Reclaimer removes a scratch root with bounded retries and verifies that it
// is gone afterwards. Only paths strictly below BuildSpace are removed.
type Reclaimer struct {
	Remover    Remover
	BuildSpace string
	Attempts   int
	Delay      time.Duration
	Sleep      SleepFunc
	Logger     *slog.Logger
}

func (r *Reclaimer) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Reclaim deletes path. Removal failures are retried up to the attempt
// budget; the result is decided by whether path still exists afterwards.
func (r *Reclaimer) Reclaim(ctx context.Context, path string) error {
	buildSpace := r.BuildSpace
	if buildSpace == "" {
		buildSpace = DefaultBuildSpace
	}
	if err := checkWithin(buildSpace, path); err != nil {
		return err
	}

	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := r.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := r.logger().With("path", path)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = r.Remover.Remove(ctx, path)
		if lastErr == nil {
			break
		}
		logger.Warn("deletion failed",
			"attempt", attempt,
			"attempts", attempts,
			"transient", IsTransient(lastErr),
			"error", lastErr,
		)
		if attempt == attempts {
			break
		}
		logger.Info("retrying deletion", "delay", delay)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	present, err := exists(path)
	if err != nil {
		return fmt.Errorf("check scratch root %s: %w", path, err)
	}
	if present {
		if lastErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrScratchNotReclaimed, path, lastErr)
		}
		return fmt.Errorf("%w: %s", ErrScratchNotReclaimed, path)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
