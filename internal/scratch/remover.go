// Package scratch manages the disposable build roots under the local build
// space: creating them fresh, reclaiming them with bounded retries and
// removing a whole job's tree at the end.
package scratch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/cochaviz/prbuild/internal/command"
)

// DefaultBuildSpace is the local directory under which job scratch roots live.
const DefaultBuildSpace = "/usr/local/builds/jenkins"

var (
	// ErrScratchExists is returned when a scratch root is already present.
	ErrScratchExists = errors.New("scratch root already exists")
	// ErrScratchNotReclaimed is returned when a scratch root is still present
	// after every removal attempt.
	ErrScratchNotReclaimed = errors.New("scratch root could not be reclaimed")
	// ErrUnsafePath guards removals against relative or root paths and
	// against targets that are not strictly below the build space.
	ErrUnsafePath = errors.New("refusing to remove unsafe path")
)

// JobRoot is the scratch directory shared by all branches of a job.
func JobRoot(buildSpace, buildTag string) string {
	return filepath.Join(buildSpace, buildTag)
}

// BranchRoot is the scratch directory of a single internal branch build.
func BranchRoot(buildSpace, buildTag, branch string) string {
	return filepath.Join(buildSpace, buildTag, branch)
}

// Create makes path and any missing parents. The final element must not
// exist yet.
func Create(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create scratch parent: %w", err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrScratchExists, path)
		}
		return fmt.Errorf("create scratch root: %w", err)
	}
	return nil
}

// Remover deletes a directory tree.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// SudoMode selects whether removal commands are prefixed with sudo.
type SudoMode string

const (
	SudoAuto   SudoMode = "auto"
	SudoAlways SudoMode = "always"
	SudoNever  SudoMode = "never"
)

// ParseSudoMode validates a sudo mode setting.
func ParseSudoMode(value string) (SudoMode, error) {
	switch mode := SudoMode(value); mode {
	case "":
		return SudoAuto, nil
	case SudoAuto, SudoAlways, SudoNever:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown sudo mode %q", value)
	}
}

// UseSudo reports whether the mode requires sudo for the current process.
// In auto mode sudo is used unless the process already runs as root.
func (m SudoMode) UseSudo() bool {
	switch m {
	case SudoAlways:
		return true
	case SudoNever:
		return false
	default:
		return unix.Geteuid() != 0
	}
}

// CommandRemover deletes trees with "rm -rf". Build trees contain files
// owned by root, so it runs through sudo when needed.
type CommandRemover struct {
	Runner command.Runner
	Sudo   bool
}

var _ Remover = (*CommandRemover)(nil)

// Remove runs rm -rf on path.
func (r *CommandRemover) Remove(ctx context.Context, path string) error {
	if err := checkSafe(path); err != nil {
		return err
	}

	cmd := command.Command{Name: "rm", Args: []string{"-rf", path}}
	if r.Sudo {
		cmd = command.Command{Name: "sudo", Args: append([]string{cmd.Name}, cmd.Args...)}
	}

	_, err := r.Runner.Run(ctx, cmd)
	return err
}

// FSRemover deletes trees in process.
type FSRemover struct{}

var _ Remover = FSRemover{}

// Remove deletes path with os.RemoveAll.
func (FSRemover) Remove(_ context.Context, path string) error {
	if err := checkSafe(path); err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// IsTransient reports whether a removal failure is likely caused by a mount
// that has not been released yet. It only classifies failures for the log:
// rm run through sudo reports an exit status, not an errno, so every failure
// is retried.
func IsTransient(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.ENOTEMPTY)
}

func checkSafe(path string) error {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) || clean == string(filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, path)
	}
	return nil
}

// checkWithin requires path to lie strictly below buildSpace.
func checkWithin(buildSpace, path string) error {
	if err := checkSafe(buildSpace); err != nil {
		return fmt.Errorf("build space: %w", err)
	}
	rel, err := filepath.Rel(filepath.Clean(buildSpace), filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q is not below build space %q", ErrUnsafePath, path, buildSpace)
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
