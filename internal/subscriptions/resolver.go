// Package subscriptions maps a repository branch onto the internal build
// branches that subscribe to it.
//
// The subscriptions file is line oriented with whitespace separated fields.
// A subscription line names a repository, the branch ref it follows and, in
// the fifth field, the ref of the internal build branch, e.g.
//
//	git widget refs/heads/release-9 hg refs/release-9-build
package subscriptions

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/cochaviz/prbuild/internal/job"
	"github.com/cochaviz/prbuild/internal/logging"
)

// DefaultPath is where the subscriptions file lives on build hosts.
const DefaultPath = "/home/xenhg/git-subscriptions"

const branchField = 4

var (
	// ErrNoBuildBranch is returned when no subscription matches the pull
	// request's target branch.
	ErrNoBuildBranch = errors.New("no internal build branch subscribes to the target branch")
	// ErrMalformedLine is returned for a matching line whose branch field
	// cannot be read.
	ErrMalformedLine = errors.New("malformed subscription line")
)

// Resolver reads branch subscriptions from a file.
type Resolver struct {
	Path   string
	Logger *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Resolve returns the internal branches subscribed to the given repository
// branch in file order. Duplicates are kept. An empty result is not an
// error here; callers decide what no match means.
func (r *Resolver) Resolve(ctx context.Context, repository, branch string) ([]string, error) {
	path := r.Path
	if path == "" {
		path = DefaultPath
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subscriptions %s: %w", path, err)
	}
	defer file.Close()

	return Parse(ctx, file, repository, branch, r.logger())
}

// Parse scans subscription lines from reader. It is the file-independent
// half of Resolve.
func Parse(ctx context.Context, reader io.Reader, repository, branch string, logger *slog.Logger) ([]string, error) {
	logger = logging.Ensure(logger)
	pattern := linePattern(repository, branch)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	branches := []string{}
	lineNumber := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNumber++

		// The pattern requires trailing whitespace, which the scanner strips.
		line := scanner.Text() + "\n"
		if !pattern.MatchString(line) {
			continue
		}
		logger.Info("found relevant subscription", "line", lineNumber, "entry", strings.TrimSpace(line))

		name, err := buildBranch(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		branches = append(branches, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}

	return branches, nil
}

func linePattern(repository, branch string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`\s%s\srefs/heads/%s\s`,
		regexp.QuoteMeta(repository), regexp.QuoteMeta(branch)))
}

// buildBranch extracts the second path segment of the branch ref field.
func buildBranch(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) <= branchField {
		return "", fmt.Errorf("%w: expected at least %d fields, got %d", ErrMalformedLine, branchField+1, len(fields))
	}

	segments := strings.Split(fields[branchField], "/")
	if len(segments) < 2 || segments[1] == "" {
		return "", fmt.Errorf("%w: branch ref %q has no branch segment", ErrMalformedLine, fields[branchField])
	}
	if err := job.CheckPathName(segments[1]); err != nil {
		return "", fmt.Errorf("%w: branch ref %q: %w", ErrMalformedLine, fields[branchField], err)
	}
	return segments[1], nil
}
