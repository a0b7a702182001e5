// Package report persists a summary of a job run into the workspace so CI
// can archive it next to the harvested packages.
package report

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cochaviz/prbuild/internal/artifacts"
)

// DefaultFileName is the report file written into the job workspace.
const DefaultFileName = "prbuild-report.yaml"

// Report summarises one job run.
type Report struct {
	RunID        string    `yaml:"run_id"`
	StartedAt    time.Time `yaml:"started_at"`
	FinishedAt   time.Time `yaml:"finished_at"`
	Repository   string    `yaml:"repository"`
	TargetBranch string    `yaml:"target_branch"`
	PullRequest  string    `yaml:"pull_request"`
	Ref          string    `yaml:"ref"`
	Commit       string    `yaml:"commit"`
	BuildTag     string    `yaml:"build_tag"`
	Component    string    `yaml:"component"`

	Branches []Branch `yaml:"branches"`

	ExitCode     int    `yaml:"exit_code"`
	Error        string `yaml:"error,omitempty"`
	CleanupError string `yaml:"cleanup_error,omitempty"`
}

// Branch summarises the build of one internal branch.
type Branch struct {
	Name      string              `yaml:"name"`
	Stage     string              `yaml:"stage"`
	FailedAt  string              `yaml:"failed_at,omitempty"`
	OutputDir string              `yaml:"output_dir,omitempty"`
	Duration  string              `yaml:"duration"`
	Packages  []artifacts.Package `yaml:"packages,omitempty"`
}

// Write stores r as YAML at path.
func Write(path string, r Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Read loads a report written by Write.
func Read(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}
