package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Server.Port)
	}
}

func TestLoad_EnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("FLEET_PORT", "9001")
	t.Setenv("FLEET_BASE_PATHS", "/a,/b")

	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"server":{"port":5000},"sessions":{"basePaths":["/file"]}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Server.Port)
	}
	if len(cfg.Sessions.BasePaths) != 2 || cfg.Sessions.BasePaths[0] != "/a" {
		t.Errorf("BasePaths = %v", cfg.Sessions.BasePaths)
	}
}

func TestLoad_FileValuesApplyBeforeEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"server":{"port":5000},"agent":{"binaryPath":"/usr/bin/claude"}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Agent.BinaryPath != "/usr/bin/claude" {
		t.Errorf("BinaryPath = %q", cfg.Agent.BinaryPath)
	}
}

func TestSave_WritesReadableJSON(t *testing.T) {
	cfg := Default()
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Server.Port != cfg.Server.Port {
		t.Errorf("reloaded port = %d, want %d", reloaded.Server.Port, cfg.Server.Port)
	}
}
