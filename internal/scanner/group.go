package scanner

import (
	"path/filepath"
	"strings"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// GroupProjects folds raw per-directory ProjectSummary entries into the
// configured logical projects: a raw project matches a config when its ID
// matches any glob pattern (`*`, `?`, path separators literal) in the
// config's ProjectDirs.
func GroupProjects(raw []protocol.ProjectSummary, configs []protocol.ProjectConfig) []protocol.GroupedProject {
	out := make([]protocol.GroupedProject, 0, len(configs))
	for _, cfg := range configs {
		var matched []string
		sessionCount := 0
		var lastActive *string
		for _, p := range raw {
			if !matchesAnyPattern(p.ID, cfg.ProjectDirs) {
				continue
			}
			matched = append(matched, p.ID)
			sessionCount += p.SessionCount
			if lastActiveLess(lastActive, p.LastActiveAt) {
				lastActive = p.LastActiveAt
			}
		}
		out = append(out, protocol.GroupedProject{
			Slug:          slugify(cfg.Title),
			Title:         cfg.Title,
			ProjectDirs:   cfg.ProjectDirs,
			MatchedDirIDs: matched,
			SessionCount:  sessionCount,
			LastActiveAt:  lastActive,
		})
	}
	return out
}

func matchesAnyPattern(id string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := filepath.Match(p, id); ok && err == nil {
			return true
		}
	}
	return false
}

// slugify lowercases a title and collapses every run of non-alphanumeric
// characters into a single hyphen, trimming leading/trailing hyphens.
func slugify(title string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteByte('-')
			prevDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
