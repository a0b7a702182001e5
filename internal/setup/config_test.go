package setup

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func stubLookPath(t *testing.T, available ...string) {
	t.Helper()
	previous := LookPath
	t.Cleanup(func() { LookPath = previous })
	LookPath = func(name string) (string, error) {
		for _, tool := range available {
			if tool == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestVerifyPasses(t *testing.T) {
	stubLookPath(t, "hg", "git", "make")
	dir := t.TempDir()
	subs := filepath.Join(dir, "git-subscriptions")
	if err := os.WriteFile(subs, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := Verify(Requirements{
		Subscriptions: subs,
		BuildSpace:    filepath.Join(dir, "builds", "jenkins"),
		Tools:         []string{"hg", "git", "make"},
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerifyReportsEveryFailure(t *testing.T) {
	stubLookPath(t, "git")
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := Verify(Requirements{
		Subscriptions: filepath.Join(dir, "missing"),
		BuildSpace:    filepath.Join(blocker, "builds"),
		Tools:         []string{"hg", "git", "make"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, os.ErrNotExist) || !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("unexpected error chain: %v", err)
	}
	for _, want := range []string{"subscriptions file", "build space", "tool hg", "tool make"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
	if strings.Contains(err.Error(), "tool git") {
		t.Errorf("git is available but reported: %v", err)
	}
}
