// Package project locates the project a devsession command operates on.
//
// The project root is the top-level directory of the Git working tree
// containing the current directory, as reported by
// `git rev-parse --show-toplevel`. Outside a Git checkout the starting
// directory itself is the root. Linked worktrees have their own root, so
// each worktree gets its own session state.
package project

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// StateDirName is the per-project directory holding session state.
const StateDirName = ".devsession"

// Project describes a located project.
type Project struct {
	// Root is the absolute project root.
	Root string

	// InGit reports whether Root came from Git.
	InGit bool

	// Worktree reports whether Root is a linked Git worktree rather than
	// the main checkout.
	Worktree bool
}

// StateDir returns the directory that holds the session lock and state
// file.
func (p Project) StateDir() string {
	return filepath.Join(p.Root, StateDirName)
}

// Locate finds the project containing dir. Git being unavailable or dir
// not being in a repository is not an error.
func Locate(dir string) (Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Project{}, fmt.Errorf("resolve %s: %w", dir, err)
	}

	root, err := RepoRoot(abs)
	if err != nil {
		return Project{Root: abs}, nil
	}
	return Project{Root: root, InGit: true, Worktree: IsWorktree(root)}, nil
}

// RepoRoot returns the top-level directory of the Git working tree
// containing path.
func RepoRoot(path string) (string, error) {
	output, err := runGit(path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(strings.TrimSpace(output)), nil
}

// IsWorktree reports whether path is a linked Git worktree: its .git is a
// file pointing at the main repository instead of a directory.
func IsWorktree(path string) bool {
	info, err := os.Lstat(filepath.Join(path, ".git"))
	if err != nil || info.IsDir() {
		return false
	}

	content, err := os.ReadFile(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

// runGit runs git with -C dir and returns stdout. Failures include git's
// stderr in the error.
func runGit(dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- args are constructed internally
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message += ": " + s
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}
	return stdout.String(), nil
}
