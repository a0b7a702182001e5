package artifacts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestHarvestCopiesOnlyMatchingFiles(t *testing.T) {
	buildRoot := t.TempDir()
	workspace := t.TempDir()

	rpmDir := filepath.Join(buildRoot, "output", "widget", "RPMS", "i686")
	writeFile(t, filepath.Join(rpmDir, "a.rpm"), "package a")
	writeFile(t, filepath.Join(rpmDir, "b.rpm"), "package b")
	writeFile(t, filepath.Join(buildRoot, "output", "widget", "c.txt"), "build log")
	writeFile(t, filepath.Join(buildRoot, "output", "widget", "RPMS", "x86_64", "d.rpm"), "other arch")
	if err := os.MkdirAll(filepath.Join(rpmDir, "repodata"), 0o755); err != nil {
		t.Fatalf("mkdir repodata: %v", err)
	}

	harvester := &LocalHarvester{Logger: discardLogger()}
	set, err := harvester.Harvest(context.Background(), HarvestRequest{
		BuildRoot: buildRoot,
		Component: "widget",
		Workspace: workspace,
		Branch:    "release-9-build",
	})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	wantDir := filepath.Join(workspace, "rpms-release-9-build")
	if set.Dir != wantDir {
		t.Fatalf("Dir = %q, want %q", set.Dir, wantDir)
	}

	entries, err := os.ReadDir(wantDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a.rpm" || names[1] != "b.rpm" {
		t.Fatalf("output contains %v, want [a.rpm b.rpm]", names)
	}

	if len(set.Packages) != 2 {
		t.Fatalf("Packages = %v", set.Packages)
	}
	data, err := os.ReadFile(filepath.Join(wantDir, "a.rpm"))
	if err != nil || string(data) != "package a" {
		t.Fatalf("copied content = %q, %v", data, err)
	}
}

func TestHarvestCreatesEmptyOutputWhenNothingBuilt(t *testing.T) {
	workspace := t.TempDir()

	set, err := (&LocalHarvester{Logger: discardLogger()}).Harvest(context.Background(), HarvestRequest{
		BuildRoot: t.TempDir(),
		Component: "widget",
		Workspace: workspace,
		Branch:    "trunk",
	})
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	if len(set.Packages) != 0 {
		t.Fatalf("expected no packages, got %v", set.Packages)
	}
	if _, err := os.Stat(filepath.Join(workspace, "rpms-trunk")); err != nil {
		t.Fatalf("output directory should exist: %v", err)
	}
}

func TestHarvestRequiresFreshOutput(t *testing.T) {
	workspace := t.TempDir()
	if err := os.Mkdir(filepath.Join(workspace, "rpms-trunk"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := (&LocalHarvester{Logger: discardLogger()}).Harvest(context.Background(), HarvestRequest{
		BuildRoot: t.TempDir(),
		Component: "widget",
		Workspace: workspace,
		Branch:    "trunk",
	})
	if !errors.Is(err, ErrOutputExists) {
		t.Fatalf("expected ErrOutputExists, got %v", err)
	}
}

func TestPackagePattern(t *testing.T) {
	got := PackagePattern("/b/release-9", "widget", "")
	if got != "/b/release-9/output/widget/RPMS/i686/*" {
		t.Fatalf("PackagePattern() = %q", got)
	}
}

func TestClearStaleRemovesOutputDirectories(t *testing.T) {
	workspace := t.TempDir()
	writeFile(t, filepath.Join(workspace, "rpms-old", "a.rpm"), "old")
	writeFile(t, filepath.Join(workspace, "rpms-older", "b.rpm"), "older")
	writeFile(t, filepath.Join(workspace, "src", "main.c"), "keep")

	removed, err := ClearStale(workspace, discardLogger())
	if err != nil {
		t.Fatalf("ClearStale() error = %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed = %v", removed)
	}

	if _, err := os.Stat(filepath.Join(workspace, "rpms-old")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("rpms-old should be removed")
	}
	if _, err := os.Stat(filepath.Join(workspace, "src", "main.c")); err != nil {
		t.Fatalf("unrelated files must be kept: %v", err)
	}
}
