// Package config holds the server's runtime configuration: listen address,
// the base paths scanned for project directories, the agent CLI binary used
// to spawn sessions, and the optional summary cache.
package config

import "sync"

// Config is the server's full runtime configuration.
type Config struct {
	mu sync.RWMutex

	Server    ServerConfig    `json:"server"`
	Sessions  SessionsConfig  `json:"sessions"`
	Agent     AgentConfig     `json:"agent"`
	Cache     CacheConfig     `json:"cache"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	StaticDir      string   `json:"staticDir"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// SessionsConfig controls where session transcripts are discovered and
// where this server's own preferences file lives.
type SessionsConfig struct {
	BasePaths       []string `json:"basePaths"`
	PreferencesPath string   `json:"preferencesPath"`
	WatchDebounceMS int      `json:"watchDebounceMs"`
}

// AgentConfig names the CLI binary the controller spawns per session.
type AgentConfig struct {
	BinaryPath string `json:"binaryPath"`
}

// CacheConfig toggles the optional sqlite-backed summary cache.
type CacheConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TelemetryConfig controls the optional OpenTelemetry trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"serviceName"`
	Insecure    bool   `json:"insecure"`
}

// Clone returns a deep-enough copy for safe concurrent reads of slice
// fields elsewhere in the process, without exposing the mutex itself.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := *c
	clone.mu = sync.RWMutex{}
	clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	clone.Sessions.BasePaths = append([]string(nil), c.Sessions.BasePaths...)
	return &clone
}
