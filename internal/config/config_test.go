package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.SyncInterval != 3*time.Second || cfg.SyncPageSize != 20 || cfg.LoadPageSize != 50 {
		t.Fatalf("sync defaults: %v %d %d", cfg.SyncInterval, cfg.SyncPageSize, cfg.LoadPageSize)
	}
	if cfg.TypingIdleTimeout != 3*time.Second {
		t.Fatalf("TypingIdleTimeout = %v", cfg.TypingIdleTimeout)
	}
	if cfg.WSPongTimeout != 60*time.Second || cfg.WSSendBufferSize != 256 {
		t.Fatalf("ws defaults: %v %d", cfg.WSPongTimeout, cfg.WSSendBufferSize)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	path := filepath.Join(t.TempDir(), "client.yaml")
	yaml := []byte("api_base_url: https://chat.example.com\nsync_interval: 5\nsync_page_size: 40\nlog_level: debug\n")
	if err := os.WriteFile(path, yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg := Load()
	if cfg.APIBaseURL != "https://chat.example.com" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.SyncInterval != 5*time.Second || cfg.SyncPageSize != 40 {
		t.Fatalf("sync settings: %v %d", cfg.SyncInterval, cfg.SyncPageSize)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	// Не указанные в YAML поля остаются на значениях по умолчанию.
	if cfg.LoadPageSize != 50 {
		t.Fatalf("LoadPageSize = %d", cfg.LoadPageSize)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("api_base_url: https://yaml.example.com\nsync_interval: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("API_BASE_URL", "https://env.example.com")
	t.Setenv("SYNC_INTERVAL", "7")
	t.Setenv("SYNC_PAGE_SIZE", "not-a-number")

	cfg := Load()
	if cfg.APIBaseURL != "https://env.example.com" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.SyncInterval != 7*time.Second {
		t.Fatalf("SyncInterval = %v", cfg.SyncInterval)
	}
	// Невалидное значение из env игнорируется.
	if cfg.SyncPageSize != 20 {
		t.Fatalf("SyncPageSize = %d", cfg.SyncPageSize)
	}
}
