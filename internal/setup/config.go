package setup

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Requirements lists what a build host must provide.
type Requirements struct {
	Subscriptions string
	BuildSpace    string
	Tools         []string
}

// LookPath is used to locate tools. Tests replace it.
var LookPath = exec.LookPath

// Verify checks every requirement and joins the failures.
func Verify(req Requirements) error {
	var errs []error

	if req.Subscriptions != "" {
		if err := readable(req.Subscriptions); err != nil {
			errs = append(errs, fmt.Errorf("subscriptions file: %w", err))
		} else {
			getLogger().Info("subscriptions file readable", "path", req.Subscriptions)
		}
	}

	if req.BuildSpace != "" {
		if err := buildSpaceUsable(req.BuildSpace); err != nil {
			errs = append(errs, fmt.Errorf("build space: %w", err))
		} else {
			getLogger().Info("build space usable", "path", req.BuildSpace)
		}
	}

	for _, tool := range req.Tools {
		path, err := LookPath(tool)
		if err != nil {
			getLogger().Warn("tool missing", "tool", tool)
			errs = append(errs, fmt.Errorf("tool %s: %w", tool, err))
			continue
		}
		getLogger().Info("tool found", "tool", tool, "path", path)
	}

	return errors.Join(errs...)
}

func readable(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	return file.Close()
}

// The build space may not exist yet; its nearest existing ancestor must be
// a directory.
func buildSpaceUsable(path string) error {
	for dir := path; ; {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return err
		}
		dir = parent
	}
}
