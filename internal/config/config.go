package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/ai"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/compress"
)

// Config holds the agent configuration
type Config struct {
	// DataDir is the root for all persisted state (sessions, tool registry)
	DataDir string `yaml:"data_dir"`

	// SessionTTLHours is how long an idle session stays resumable (default: 24)
	SessionTTLHours int `yaml:"session_ttl_hours"`

	// Server settings
	Server ServerConfig `yaml:"server"`

	// AI provider settings used for conversation summarization
	AI ai.Config `yaml:"ai"`

	// Context compression thresholds
	Compression compress.Config `yaml:"compression"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir:         ".sreagent",
		SessionTTLHours: 24,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8710,
		},
		AI: ai.Config{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Compression: compress.DefaultConfig(),
	}
}

// Load loads config from the given path. A missing file is not an
// error; defaults apply. Environment variables referenced as $VAR or
// ${VAR} in the file are expanded, and a .env file next to the config
// (or in the working directory) is loaded first so local development
// credentials resolve.
func Load(path string) (*Config, error) {
	// Best effort; absence of a .env file is the normal case.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Expand ~ in DataDir (config file may have a tilde path)
	if strings.HasPrefix(cfg.DataDir, "~/") {
		home, _ := os.UserHomeDir()
		cfg.DataDir = filepath.Join(home, cfg.DataDir[2:])
	}

	return cfg, nil
}

// SessionTTL returns the session time-to-live as a duration
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// SessionsDir returns the path where session records are stored
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// RegistryDir returns the path where the tool registry lives
func (c *Config) RegistryDir() string {
	return filepath.Join(c.DataDir, "tools")
}

// EnsureDataDir creates the data directory if it doesn't exist
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}
