package build

import (
	"strings"
	"time"

	"github.com/cochaviz/prbuild/internal/artifacts"
)

// Stage is a step of a branch build. A build moves through the stages in
// declaration order and ends in StageScratchRemoved or StageFailed.
type Stage string

// Supported build stages.
const (
	StageInit             Stage = "init"
	StageScratchCreated   Stage = "scratch_created"
	StageDescriptorCloned Stage = "descriptor_cloned"
	StageSourceInjected   Stage = "source_injected"
	StageRemoteRepointed  Stage = "remote_repointed"
	StageManifestBuilt    Stage = "built_stage1"
	StageComponentBuilt   Stage = "built_stage2"
	StageHarvested        Stage = "harvested"
	StageScratchRemoved   Stage = "scratch_removed"
	StageFailed           Stage = "failed"
)

const (
	// DefaultDescriptorURL locates the build descriptor repository of an
	// internal branch. {branch} is replaced with the branch name.
	DefaultDescriptorURL = "http://hg/carbon/{branch}/build.hg"
	// ExternalReposDir is the descriptor subdirectory holding injected
	// repositories.
	ExternalReposDir = "myrepos"
	// ManifestTarget is the make target generating the build manifest.
	ManifestTarget = "manifest-latest"
)

// Layout holds host-specific locations used by a branch build.
type Layout struct {
	BuildSpace    string
	DescriptorURL string
	Arch          string
}

// DescriptorURLFor expands the descriptor URL template for branch.
func (l Layout) DescriptorURLFor(branch string) string {
	template := l.DescriptorURL
	if template == "" {
		template = DefaultDescriptorURL
	}
	return strings.ReplaceAll(template, "{branch}", branch)
}

// BranchResult describes one branch build, successful or not.
type BranchResult struct {
	Branch      string
	ScratchRoot string
	Stage       Stage
	// FailedAt is the stage that was being attempted when the build failed.
	FailedAt Stage
	Harvest  artifacts.HarvestedSet
	Duration time.Duration
}
