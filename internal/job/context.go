// Package job holds the immutable description of a pull-request build job
// and the validation that produces it from the process environment.
package job

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Environment variable names supplied by the CI pull-request trigger.
const (
	EnvTargetBranch = "ghprbTargetBranch"
	EnvPullID       = "ghprbPullId"
	EnvCommit       = "ghprbActualCommit"
	EnvWorkspace    = "WORKSPACE"
	EnvBuildTag     = "BUILD_TAG"
	EnvGitURL       = "GIT_URL"
	EnvRef          = "sha1"
	EnvComponent    = "build_system_component"
)

// RequiredVariables lists the environment variables a job needs, in the order
// they are checked.
var RequiredVariables = []string{
	EnvTargetBranch,
	EnvPullID,
	EnvCommit,
	EnvWorkspace,
	EnvBuildTag,
	EnvGitURL,
	EnvRef,
	EnvComponent,
}

// JobContext is the validated input of a build job. It is constructed once
// by Validate and never modified afterwards.
type JobContext struct {
	TargetBranch string
	PullID       string
	Commit       string
	Workspace    string
	BuildTag     string
	GitURL       string
	Ref          string
	Component    string
}

// RepositoryName returns the name of the repository the pull request was
// opened against.
func (c JobContext) RepositoryName() string {
	return RepositoryName(c.GitURL)
}

// LogValue groups the job identity for structured logging.
func (c JobContext) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("repository", c.RepositoryName()),
		slog.String("target_branch", c.TargetBranch),
		slog.String("pull_request", c.PullID),
		slog.String("ref", c.Ref),
		slog.String("commit", c.Commit),
	)
}

// RepositoryName derives a repository name from its URL: the last path
// segment with everything from the first dot removed.
//
//	https://git/org/widget.git -> widget
func RepositoryName(gitURL string) string {
	segment := gitURL
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	name, _, _ := strings.Cut(segment, ".")
	return name
}

// OutputDirName is the workspace directory that receives packages harvested
// for an internal branch.
func OutputDirName(branch string) string {
	return "rpms-" + branch
}

// OutputDirPattern matches every harvested output directory in a workspace.
func OutputDirPattern(workspace string) string {
	return filepath.Join(workspace, "rpms-*")
}

// ErrUnsafeName is returned for names that cannot be used as a single path
// element under the build space.
var ErrUnsafeName = errors.New("not a single path element")

// CheckPathName rejects names that would escape or collapse onto their
// parent directory when joined to it: ".", ".." and anything containing a
// path separator.
func CheckPathName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}
