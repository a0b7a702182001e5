package subscriptions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSubscriptions = `# repo subscriptions
git widget refs/heads/release-9 hg refs/release-9-build
git gadget refs/heads/release-9 hg refs/gadget-build
git widget refs/heads/master hg refs/trunk
git widget refs/heads/release-9.1 hg refs/release-9.1-build
git widget-extra refs/heads/release-9 hg refs/extra-build
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSingleMatch(t *testing.T) {
	branches, err := Parse(context.Background(), strings.NewReader(sampleSubscriptions), "widget", "release-9", discardLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(branches) != 1 || branches[0] != "release-9-build" {
		t.Fatalf("branches = %v, want [release-9-build]", branches)
	}
}

func TestParseKeepsOrderAndDuplicates(t *testing.T) {
	input := sampleSubscriptions +
		"git widget refs/heads/release-9 hg refs/release-9-lcm\n" +
		"git widget refs/heads/release-9 hg refs/release-9-build\n"

	branches, err := Parse(context.Background(), strings.NewReader(input), "widget", "release-9", discardLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"release-9-build", "release-9-lcm", "release-9-build"}
	if len(branches) != len(want) {
		t.Fatalf("branches = %v, want %v", branches, want)
	}
	for i := range want {
		if branches[i] != want[i] {
			t.Fatalf("branches[%d] = %q, want %q", i, branches[i], want[i])
		}
	}
}

func TestParseNoMatch(t *testing.T) {
	branches, err := Parse(context.Background(), strings.NewReader(sampleSubscriptions), "widget", "release-10", discardLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(branches) != 0 {
		t.Fatalf("expected no branches, got %v", branches)
	}
}

func TestParseQuotesRegexCharacters(t *testing.T) {
	input := "git widget refs/heads/release-9x1 hg refs/wrong\n"

	branches, err := Parse(context.Background(), strings.NewReader(input), "widget", "release-9.1", discardLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(branches) != 0 {
		t.Fatalf("dot in branch name must match literally, got %v", branches)
	}
}

func TestParseMatchesLastLineWithoutNewline(t *testing.T) {
	input := "git widget refs/heads/release-9 hg refs/release-9-build"

	branches, err := Parse(context.Background(), strings.NewReader(input), "widget", "release-9", discardLogger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(branches) != 1 {
		t.Fatalf("expected one branch, got %v", branches)
	}
}

func TestParseMalformedLine(t *testing.T) {
	input := "git widget refs/heads/release-9 hg\n"

	_, err := Parse(context.Background(), strings.NewReader(input), "widget", "release-9", discardLogger())
	if !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("expected ErrMalformedLine, got %v", err)
	}
}

func TestParseRejectsBranchOutsideScratch(t *testing.T) {
	for _, ref := range []string{"refs/..", "refs/.", "refs/../jenkins"} {
		input := "git widget refs/heads/release-9 hg " + ref + "\n"

		_, err := Parse(context.Background(), strings.NewReader(input), "widget", "release-9", discardLogger())
		if !errors.Is(err, ErrMalformedLine) {
			t.Fatalf("ref %q: expected ErrMalformedLine, got %v", ref, err)
		}
	}
}

func TestResolverReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "git-subscriptions")
	if err := os.WriteFile(path, []byte(sampleSubscriptions), 0o644); err != nil {
		t.Fatalf("write subscriptions: %v", err)
	}

	resolver := &Resolver{Path: path, Logger: discardLogger()}
	branches, err := resolver.Resolve(context.Background(), "gadget", "release-9")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(branches) != 1 || branches[0] != "gadget-build" {
		t.Fatalf("branches = %v", branches)
	}
}

func TestResolverMissingFile(t *testing.T) {
	resolver := &Resolver{Path: filepath.Join(t.TempDir(), "absent")}

	if _, err := resolver.Resolve(context.Background(), "widget", "release-9"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
