// Package artifacts harvests built packages out of a descriptor tree into
// the job workspace and clears what earlier jobs left behind.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cochaviz/prbuild/internal/job"
)

// ErrOutputExists is returned when the output directory of a branch is
// already present in the workspace.
var ErrOutputExists = errors.New("output directory already exists")

// PackagePattern is the glob matching the packages a component build
// produces inside a descriptor tree.
func PackagePattern(buildRoot, component, arch string) string {
	if arch == "" {
		arch = DefaultArch
	}
	return filepath.Join(buildRoot, "output", component, "RPMS", arch, "*")
}

// LocalHarvester copies packages on the local filesystem.
type LocalHarvester struct {
	Logger *slog.Logger
}

var _ Harvester = (*LocalHarvester)(nil)

func (h *LocalHarvester) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Harvest creates <workspace>/rpms-<branch> and copies every regular file
// matched by PackagePattern into it.
func (h *LocalHarvester) Harvest(ctx context.Context, request HarvestRequest) (HarvestedSet, error) {
	if request.Workspace == "" || request.BuildRoot == "" || request.Branch == "" {
		return HarvestedSet{}, errors.New("harvest request is incomplete")
	}

	outputDir := filepath.Join(request.Workspace, job.OutputDirName(request.Branch))
	if err := os.Mkdir(outputDir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return HarvestedSet{}, fmt.Errorf("%w: %s", ErrOutputExists, outputDir)
		}
		return HarvestedSet{}, fmt.Errorf("create output directory: %w", err)
	}

	pattern := PackagePattern(request.BuildRoot, request.Component, request.Arch)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return HarvestedSet{}, fmt.Errorf("glob %s: %w", pattern, err)
	}

	logger := h.logger().With("branch", request.Branch, "output_dir", outputDir)
	set := HarvestedSet{Dir: outputDir, Packages: []Package{}}

	for _, source := range matches {
		if err := ctx.Err(); err != nil {
			return set, err
		}

		info, err := os.Stat(source)
		if err != nil {
			return set, fmt.Errorf("stat %s: %w", source, err)
		}
		if !info.Mode().IsRegular() {
			logger.Warn("skipping non-regular build output", "path", source)
			continue
		}

		dest := filepath.Join(outputDir, filepath.Base(source))
		size, err := copyFile(source, dest, info.Mode().Perm())
		if err != nil {
			return set, fmt.Errorf("copy %s: %w", source, err)
		}
		logger.Info("copied package", "source", source, "dest", dest, "status", "OK")

		set.Packages = append(set.Packages, Package{
			Name:   filepath.Base(source),
			Source: source,
			Path:   dest,
			Size:   size,
		})
	}

	if len(set.Packages) == 0 {
		logger.Warn("no packages matched", "pattern", pattern)
	}
	return set, nil
}

func copyFile(source, dest string, perm os.FileMode) (int64, error) {
	src, err := os.Open(source)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return written, err
	}
	return written, dst.Close()
}
