// Package config loads server and client settings from a JSON file,
// following the teacher pack's load-at-init-with-env-override pattern
// (cppla-moto/config/setting.go): an explicit path or, failing that, one
// named by an environment variable, unmarshalled with encoding/json over
// the built-in defaults. With neither, the defaults are used as they are.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EnvOverride is the environment variable that, if set, names the config
// file for both cmd/relayserver and cmd/client when no path is passed.
const EnvOverride = "DUELCORE_CONFIG"

// NetSim holds the deterministic latency/jitter/loss injection settings
// for internal/netsim, active only when Enabled is true.
type NetSim struct {
	Enabled         bool    `json:"enabled"`
	Seed            int64   `json:"seed"`
	BaselineLatency Millis  `json:"baseline_latency_ms"`
	Jitter          Millis  `json:"jitter_ms"`
	PacketLoss      float32 `json:"packet_loss"`
}

// Millis is a duration expressed in milliseconds in JSON, converted to
// time.Duration via Duration().
type Millis int64

// Duration converts m to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Log holds internal/logging's settings.
type Log struct {
	Level string `json:"level"` // debug, info, warn, error
	Path  string `json:"path"`  // rotated JSON log file; empty disables file output
}

// Server is cmd/relayserver's configuration.
type Server struct {
	ListenAddr     string  `json:"listen_addr"`
	RetryTimeoutMs Millis  `json:"retry_timeout_ms"` // default 16ms per spec §4.2
	MaxRetries     int     `json:"max_retries"`      // default 120 per spec §4.2
	MetricsAddr    string  `json:"metrics_addr"`      // serves /metrics; empty disables
	Log            Log     `json:"log"`
	NetSim         NetSim  `json:"net_sim"`
}

// Client is cmd/client's configuration.
type Client struct {
	ServerAddr       string `json:"server_addr"`
	RetryTimeoutMs   Millis `json:"retry_timeout_ms"` // default 250ms per spec §4.2
	MaxRetries       int    `json:"max_retries"`      // default 8 per spec §4.2
	PhysicsFrameTime float64 `json:"physics_frame_time"` // default 1/60
	Log              Log    `json:"log"`
	NetSim           NetSim `json:"net_sim"`
}

// DefaultServer returns Server populated with spec-mandated defaults.
func DefaultServer() Server {
	return Server{
		ListenAddr:     ":7777",
		RetryTimeoutMs: 16,
		MaxRetries:     120,
		MetricsAddr:    ":9100",
		Log:            Log{Level: "info", Path: "logs/relayserver.log"},
	}
}

// DefaultClient returns Client populated with spec-mandated defaults.
func DefaultClient() Client {
	return Client{
		ServerAddr:       "127.0.0.1:7777",
		RetryTimeoutMs:   250,
		MaxRetries:       8,
		PhysicsFrameTime: 1.0 / 60.0,
		Log:              Log{Level: "info", Path: "logs/client.log"},
	}
}

// LoadServer reads Server config from path, or from EnvOverride if path is
// empty and the env var is set, falling back to DefaultServer() on any
// read/parse error (matching the teacher's "log and keep going" posture).
func LoadServer(path string) Server {
	cfg := DefaultServer()
	resolved := resolvePath(path)
	if resolved == "" {
		return cfg
	}
	buf, err := os.ReadFile(resolved)
	if err != nil {
		fmt.Printf("config: failed to read %s: %v, using defaults\n", resolved, err)
		return cfg
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		fmt.Printf("config: failed to parse %s: %v, using defaults\n", resolved, err)
		return DefaultServer()
	}
	return cfg
}

// LoadClient is LoadServer's counterpart for cmd/client.
func LoadClient(path string) Client {
	cfg := DefaultClient()
	resolved := resolvePath(path)
	if resolved == "" {
		return cfg
	}
	buf, err := os.ReadFile(resolved)
	if err != nil {
		fmt.Printf("config: failed to read %s: %v, using defaults\n", resolved, err)
		return cfg
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		fmt.Printf("config: failed to parse %s: %v, using defaults\n", resolved, err)
		return DefaultClient()
	}
	return cfg
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvOverride); env != "" {
		return env
	}
	return ""
}
