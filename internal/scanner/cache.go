package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/fleetobserver/fleetobserver/internal/sqlcache"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// ScanSessionsCached behaves like ScanSessions but consults cache first for
// each session file, skipping the JSONL re-read and re-enrichment entirely
// when the file's mtime and size match what was cached. A nil cache falls
// back to ScanSessions's behavior exactly.
func ScanSessionsCached(projectDir string, cache *sqlcache.Cache) []protocol.SessionSummary {
	if cache == nil {
		return ScanSessions(projectDir)
	}

	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil
	}

	ctx := context.Background()
	var out []protocol.SessionSummary
	for _, entry := range entries {
		if entry.IsDir() || !isSessionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(projectDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if summary, hit := cache.Lookup(ctx, path, info); hit {
			out = append(out, summary)
			continue
		}

		s := ExtractSessionSummary(path)
		if s == nil {
			continue
		}
		out = append(out, *s)
		_ = cache.Store(ctx, path, info, *s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lastActiveLess(out[j].LastActiveAt, out[i].LastActiveAt)
	})
	return out
}
