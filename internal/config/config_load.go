package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults (FLEET_PORT default
// 3000, FLEET_BASE_PATHS default ~/.claude/projects).
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Sessions: SessionsConfig{
			BasePaths:       []string{filepath.Join(home, ".claude", "projects")},
			PreferencesPath: filepath.Join(home, ".fleetobserver", "settings.json"),
			WatchDebounceMS: 300,
		},
		Agent: AgentConfig{
			BinaryPath: "claude",
		},
		Cache: CacheConfig{
			Path: filepath.Join(home, ".fleetobserver", "summaries.db"),
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error: defaults plus env overrides are returned instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays the FLEET_* env vars onto the config. Env vars
// take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("FLEET_HOST", &c.Server.Host)
	if v := os.Getenv("FLEET_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	envStr("FLEET_STATIC_DIR", &c.Server.StaticDir)
	if v := os.Getenv("FLEET_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}

	if v := os.Getenv("FLEET_BASE_PATHS"); v != "" {
		c.Sessions.BasePaths = strings.Split(v, ",")
	}
	envStr("FLEET_PREFERENCES_PATH", &c.Sessions.PreferencesPath)
	if v := os.Getenv("FLEET_WATCH_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			c.Sessions.WatchDebounceMS = ms
		}
	}

	envStr("FLEET_AGENT_BINARY", &c.Agent.BinaryPath)

	if v := os.Getenv("FLEET_SUMMARY_CACHE"); v != "" {
		c.Cache.Enabled = v == "1" || v == "true"
	}
	envStr("FLEET_SUMMARY_CACHE_PATH", &c.Cache.Path)

	if v := os.Getenv("FLEET_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "1" || v == "true"
	}
	envStr("FLEET_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("FLEET_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("FLEET_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "1" || v == "true"
	}
}

// Save writes the config to a JSON file. Nothing on the server's hot path
// calls it, so it stays a plain write rather
// than the atomic temp-file-plus-rename pattern internal/preferences uses
// for its much more frequently written settings file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
