package build

import (
	"path/filepath"

	"github.com/cochaviz/prbuild/internal/command"
)

var gitEnv = []string{"GIT_TERMINAL_PROMPT=0"}

func descriptorCloneCommand(url, scratchRoot string) command.Command {
	return command.Command{Name: "hg", Args: []string{"clone", url, scratchRoot}}
}

func sourceCloneCommand(workspace, dest string) command.Command {
	return command.Command{Name: "git", Args: []string{"clone", "file://" + workspace, dest}, Env: gitEnv}
}

func gitCommand(repo string, args ...string) command.Command {
	base := []string{"--git-dir=" + filepath.Join(repo, ".git"), "--work-tree=" + repo}
	return command.Command{Name: "git", Args: append(base, args...), Env: gitEnv}
}

func makeCommand(scratchRoot, target string) command.Command {
	return command.Command{Name: "make", Args: []string{"--directory=" + scratchRoot, target}}
}
