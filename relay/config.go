package relay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/relay/mux"
	"github.com/tailored-agentic-units/relay/replay"
)

// Config holds initialization parameters for the relay core and the
// transport fields cmd/relay hands to the server layer.
type Config struct {
	// ReplayCapacity bounds each session's replay buffer.
	ReplayCapacity int `json:"replay_capacity,omitempty" yaml:"replay_capacity,omitempty"`

	// SendBufferSize bounds each subscriber's delivery channel.
	SendBufferSize int `json:"send_buffer_size,omitempty" yaml:"send_buffer_size,omitempty"`

	// Observer names the registered observability sink ("noop", "slog", or
	// anything added via observability.RegisterObserver).
	Observer string `json:"observer,omitempty" yaml:"observer,omitempty"`

	// Addr is the listen address for the server binary. The relay core
	// ignores it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// AuthToken, when set, gates the WebSocket and admin endpoints.
	AuthToken string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`

	// AllowedOrigins restricts browser upgrades to the listed origins.
	// Empty allows any origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReplayCapacity: replay.DefaultCapacity,
		SendBufferSize: mux.DefaultSendBufferSize,
		Observer:       "slog",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.ReplayCapacity > 0 {
		c.ReplayCapacity = source.ReplayCapacity
	}

	if source.SendBufferSize > 0 {
		c.SendBufferSize = source.SendBufferSize
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.Addr != "" {
		c.Addr = source.Addr
	}

	if source.AuthToken != "" {
		c.AuthToken = source.AuthToken
	}

	if len(source.AllowedOrigins) > 0 {
		c.AllowedOrigins = source.AllowedOrigins
	}
}

// Validate checks the config for values no merge produces but a hand-built
// Config can carry.
func (c *Config) Validate() error {
	if c.ReplayCapacity < 0 {
		return fmt.Errorf("replay capacity must not be negative, got %d", c.ReplayCapacity)
	}
	if c.SendBufferSize < 0 {
		return fmt.Errorf("send buffer size must not be negative, got %d", c.SendBufferSize)
	}
	return nil
}

// LoadConfig reads a config file, merges it with defaults, and returns the
// resulting Config. Files ending in .yaml or .yml parse as YAML; everything
// else parses as JSON.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
