package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fleetobserver/fleetobserver/internal/sqlcache"
)

func TestScanSessionsCached_NilCacheMatchesUncached(t *testing.T) {
	dir := t.TempDir()
	writeLine := `{"type":"user","uuid":"u1","sessionId":"x","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"hi"}}` + "\n"
	os.WriteFile(filepath.Join(dir, sampleUUID+".jsonl"), []byte(writeLine), 0o644)

	plain := ScanSessions(dir)
	cached := ScanSessionsCached(dir, nil)
	if len(plain) != len(cached) || len(plain) != 1 {
		t.Fatalf("plain=%v cached=%v", plain, cached)
	}
}

func TestScanSessionsCached_PopulatesAndReusesCache(t *testing.T) {
	dir := t.TempDir()
	writeLine := `{"type":"user","uuid":"u1","sessionId":"x","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"hi"}}` + "\n"
	os.WriteFile(filepath.Join(dir, sampleUUID+".jsonl"), []byte(writeLine), 0o644)

	cache, err := sqlcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cache.Close()

	first := ScanSessionsCached(dir, cache)
	if len(first) != 1 {
		t.Fatalf("first = %v", first)
	}

	second := ScanSessionsCached(dir, cache)
	if len(second) != 1 || second[0].SessionID != first[0].SessionID {
		t.Fatalf("second = %v", second)
	}
}
