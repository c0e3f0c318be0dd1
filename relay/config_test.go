package relay_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/relay/relay"
)

func TestDefaultConfig(t *testing.T) {
	cfg := relay.DefaultConfig()

	if cfg.ReplayCapacity != 1000 {
		t.Errorf("got ReplayCapacity %d, want 1000", cfg.ReplayCapacity)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("got SendBufferSize %d, want 256", cfg.SendBufferSize)
	}
	if cfg.Observer != "slog" {
		t.Errorf("got Observer %q, want %q", cfg.Observer, "slog")
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := relay.DefaultConfig()

	source := &relay.Config{
		ReplayCapacity: 500,
		Observer:       "noop",
		Addr:           ":9090",
		AuthToken:      "secret",
		AllowedOrigins: []string{"https://example.com"},
	}

	cfg.Merge(source)

	if cfg.ReplayCapacity != 500 {
		t.Errorf("got ReplayCapacity %d, want 500", cfg.ReplayCapacity)
	}
	if cfg.Observer != "noop" {
		t.Errorf("got Observer %q, want %q", cfg.Observer, "noop")
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("got SendBufferSize %d, want 256 (preserved default)", cfg.SendBufferSize)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("got Addr %q, want %q", cfg.Addr, ":9090")
	}
	if cfg.AuthToken != "secret" {
		t.Errorf("got AuthToken %q, want %q", cfg.AuthToken, "secret")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("got AllowedOrigins %v, want [https://example.com]", cfg.AllowedOrigins)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := relay.DefaultConfig()
	original := cfg.ReplayCapacity

	source := &relay.Config{} // All zero values

	cfg.Merge(source)

	if cfg.ReplayCapacity != original {
		t.Errorf("got ReplayCapacity %d, want %d (preserved default)", cfg.ReplayCapacity, original)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := relay.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}

	bad := relay.Config{ReplayCapacity: -1}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() should fail for negative replay capacity")
	}

	bad = relay.Config{SendBufferSize: -1}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() should fail for negative send buffer size")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	content := `{
		"replay_capacity": 250,
		"observer": "noop"
	}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := relay.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ReplayCapacity != 250 {
		t.Errorf("got ReplayCapacity %d, want 250", cfg.ReplayCapacity)
	}
	if cfg.Observer != "noop" {
		t.Errorf("got Observer %q, want %q", cfg.Observer, "noop")
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("got SendBufferSize %d, want 256 (preserved default)", cfg.SendBufferSize)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := "replay_capacity: 250\nsend_buffer_size: 64\naddr: \":9090\"\n"

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := relay.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ReplayCapacity != 250 {
		t.Errorf("got ReplayCapacity %d, want 250", cfg.ReplayCapacity)
	}
	if cfg.SendBufferSize != 64 {
		t.Errorf("got SendBufferSize %d, want 64", cfg.SendBufferSize)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("got Addr %q, want %q", cfg.Addr, ":9090")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := relay.LoadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.json")

	if err := os.WriteFile(configPath, []byte("{invalid}"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := relay.LoadConfig(configPath)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
