package artifacts

// DefaultArch is the package architecture directory harvested from build
// output.
const DefaultArch = "i686"

// Package is one package file copied out of a build tree.
type Package struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
}

// HarvestRequest locates the packages of one branch build.
type HarvestRequest struct {
	// BuildRoot is the descriptor tree the component was built in.
	BuildRoot string
	Component string
	Arch      string
	// Workspace receives the per-branch output directory.
	Workspace string
	Branch    string
}

// HarvestedSet is the output directory of one branch and what was copied
// into it.
type HarvestedSet struct {
	Dir      string    `yaml:"dir"`
	Packages []Package `yaml:"packages"`
}
