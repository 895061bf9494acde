// Package scanner walks the on-disk ~/.claude/projects/ tree (or any
// configured base paths) and derives ProjectSummary / SessionSummary /
// GroupedProject / WorktreeSummary views without building a full replay
// model.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

const reservedDirName = "memory"

// ScanProjects lists the direct child directories of each base path and
// summarizes the session activity found in each. Duplicate directory
// names under different base paths yield separate entries, distinguished
// by Source.
func ScanProjects(basePaths []string) []protocol.ProjectSummary {
	var out []protocol.ProjectSummary
	for _, base := range basePaths {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if strings.HasPrefix(name, ".") || name == reservedDirName {
				continue
			}
			dir := filepath.Join(base, name)
			count, lastActive := scanProjectDirStats(dir)
			if count == 0 {
				continue
			}
			out = append(out, protocol.ProjectSummary{
				ID:           name,
				Source:       base,
				Path:         decodeProjectDirName(name),
				SessionCount: count,
				LastActiveAt: lastActive,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lastActiveLess(out[j].LastActiveAt, out[i].LastActiveAt)
	})
	return out
}

// scanProjectDirStats counts .jsonl files whose stem is a lowercase UUID
// and finds the maximum lastActiveAt among them. It runs
// ExtractSessionSummary on each session file, the same per-file read
// ScanSessions performs.
func scanProjectDirStats(dir string) (count int, lastActive *string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil
	}
	for _, entry := range entries {
		if entry.IsDir() || !isSessionFile(entry.Name()) {
			continue
		}
		count++
		summary := ExtractSessionSummary(filepath.Join(dir, entry.Name()))
		if summary == nil {
			continue
		}
		if lastActiveLess(lastActive, summary.LastActiveAt) {
			lastActive = summary.LastActiveAt
		}
	}
	return count, lastActive
}

// decodeProjectDirName inverts the agent CLI's directory-name encoding
// (the original working directory with every path separator replaced by
// "-"), recovering a display path such as "/Users/me/project" from a
// directory name such as "-Users-me-project".
func decodeProjectDirName(name string) string {
	return strings.ReplaceAll(name, "-", string(filepath.Separator))
}

// isSessionFile reports whether name is "<uuid>.jsonl" with a lowercase
// UUID stem.
func isSessionFile(name string) bool {
	if !strings.HasSuffix(name, ".jsonl") {
		return false
	}
	stem := strings.TrimSuffix(name, ".jsonl")
	if stem != strings.ToLower(stem) {
		return false
	}
	_, err := uuid.Parse(stem)
	return err == nil
}

// lastActiveLess orders two nullable ISO-8601 timestamps with nulls
// sorting last: lastActiveLess(a, b) reports whether a should be
// considered "less" (earlier, or absent) than b.
func lastActiveLess(a, b *string) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	return *a < *b
}
