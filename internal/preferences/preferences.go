// Package preferences persists the flat JSON preferences file, including
// detection and migration of the legacy "pinnedProjects" shape. Writes go
// through a temp-file-then-rename so a crash mid-write never leaves a
// truncated preferences file behind.
package preferences

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/titanous/json5"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// Preferences is the persisted document shape.
type Preferences struct {
	Projects []protocol.ProjectConfig `json:"projects"`
}

// legacyPreferences is the older on-disk shape, migrated transparently on
// read.
type legacyPreferences struct {
	PinnedProjects []string `json:"pinnedProjects"`
}

// Store loads, caches, and atomically persists the preferences file.
type Store struct {
	path string

	mu    sync.RWMutex
	prefs Preferences
}

// Load reads path (creating an empty in-memory document if it doesn't
// exist yet) and returns a ready-to-use Store.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var p Preferences
	if err := json5.Unmarshal(data, &p); err == nil && p.Projects != nil {
		s.prefs = p
		return s, nil
	}

	var legacy legacyPreferences
	if err := json5.Unmarshal(data, &legacy); err == nil && legacy.PinnedProjects != nil {
		s.prefs = Preferences{Projects: migrateLegacy(legacy)}
		return s, nil
	}

	return s, nil
}

func migrateLegacy(legacy legacyPreferences) []protocol.ProjectConfig {
	projects := make([]protocol.ProjectConfig, 0, len(legacy.PinnedProjects))
	for _, id := range legacy.PinnedProjects {
		projects = append(projects, protocol.ProjectConfig{
			Title:       lastPathSegment(id),
			ProjectDirs: []string{id},
		})
	}
	return projects
}

func lastPathSegment(id string) string {
	decoded := decodeProjectDirID(id)
	return filepath.Base(decoded)
}

// decodeProjectDirID reverses the scanner's directory-name encoding
// (dashes standing in for path separators) so the legacy migration can
// recover a readable title from a raw directory id.
func decodeProjectDirID(id string) string {
	return strings.ReplaceAll(id, "-", string(filepath.Separator))
}

// ProjectConfigs returns a copy of the currently persisted project list.
func (s *Store) ProjectConfigs() []protocol.ProjectConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.ProjectConfig, len(s.prefs.Projects))
	copy(out, s.prefs.Projects)
	return out
}

// SetProjectConfigs replaces the persisted project list and writes it to
// disk atomically.
func (s *Store) SetProjectConfigs(projects []protocol.ProjectConfig) error {
	s.mu.Lock()
	s.prefs = Preferences{Projects: projects}
	snapshot := s.prefs
	s.mu.Unlock()

	return s.save(snapshot)
}

func (s *Store) save(prefs Preferences) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "settings-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
