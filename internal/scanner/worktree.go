package scanner

import (
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// ScanWorktrees lists the linked git worktrees of projectPath via
// `git worktree list --porcelain`, skipping the main worktree (the first
// block). The directory-scan alternative
// (`projectPath/.claude/.worktrees/*`) is not built. Any failure (not a git repo, binary missing, timeout) returns
// an empty slice, never an error.
func ScanWorktrees(projectPath string) []protocol.WorktreeSummary {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "worktree", "list", "--porcelain")
	cmd.Dir = projectPath
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	blocks := strings.Split(strings.ReplaceAll(string(output), "\r\n", "\n"), "\n\n")
	if len(blocks) <= 1 {
		return nil
	}

	out := make([]protocol.WorktreeSummary, 0, len(blocks)-1)
	for _, block := range blocks[1:] { // skip the main worktree
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var path string
		var branch *string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "worktree "):
				path = strings.TrimPrefix(line, "worktree ")
			case strings.HasPrefix(line, "branch "):
				b := strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
				branch = &b
			case line == "detached":
				branch = nil
			}
		}
		if path == "" {
			continue
		}
		out = append(out, protocol.WorktreeSummary{
			Name:   filepath.Base(path),
			Path:   path,
			Branch: branch,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
