// Package sqlcache is an optional on-disk cache of scanned SessionSummary
// rows, keyed by (path, mtime, size), so a repeated directory scan over a
// large project tree can skip re-reading files that have not changed since
// the last scan. Purely additive: a cache miss or a disabled cache falls
// back to the authoritative re-scan. Off by default, enabled via
// FLEET_SUMMARY_CACHE=1. Backed by modernc.org/sqlite's pure-Go driver.
package sqlcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// Cache stores SessionSummary rows keyed by the scanned file's path, mtime,
// and size, so a changed or rewritten file always misses.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) a Cache backed by a sqlite file at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlcache: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlcache: migrate: %w", err)
	}
	return &Cache{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS session_summaries (
	path      TEXT PRIMARY KEY,
	mtime_ns  INTEGER NOT NULL,
	size      INTEGER NOT NULL,
	summary   TEXT NOT NULL
);`

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached SessionSummary for path if its mtime and size
// still match what was cached, and false otherwise (cache miss).
func (c *Cache) Lookup(ctx context.Context, path string, info os.FileInfo) (protocol.SessionSummary, bool) {
	var raw string
	var cachedMtime, cachedSize int64
	row := c.db.QueryRowContext(ctx,
		`SELECT mtime_ns, size, summary FROM session_summaries WHERE path = ?`, path)
	if err := row.Scan(&cachedMtime, &cachedSize, &raw); err != nil {
		return protocol.SessionSummary{}, false
	}
	if cachedMtime != info.ModTime().UnixNano() || cachedSize != info.Size() {
		return protocol.SessionSummary{}, false
	}

	var summary protocol.SessionSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return protocol.SessionSummary{}, false
	}
	return summary, true
}

// Store upserts the summary for path, recording the file's current mtime
// and size as the cache key's freshness stamp.
func (c *Cache) Store(ctx context.Context, path string, info os.FileInfo, summary protocol.SessionSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("sqlcache: marshal summary: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO session_summaries (path, mtime_ns, size, summary) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime_ns = excluded.mtime_ns, size = excluded.size, summary = excluded.summary`,
		path, info.ModTime().UnixNano(), info.Size(), string(raw))
	return err
}
