package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.PlayerTTL != 5*time.Minute {
		t.Errorf("Cache.PlayerTTL = %v, want 5m", cfg.Cache.PlayerTTL)
	}
	if cfg.Cache.MaxRecent != 5 {
		t.Errorf("Cache.MaxRecent = %d, want 5", cfg.Cache.MaxRecent)
	}
	if cfg.Directory.PageSize != 100 {
		t.Errorf("Directory.PageSize = %d, want 100", cfg.Directory.PageSize)
	}
	if cfg.Directory.SearchDebounce != 500*time.Millisecond {
		t.Errorf("Directory.SearchDebounce = %v, want 500ms", cfg.Directory.SearchDebounce)
	}
	if !cfg.Cache.SweepEnabled || !cfg.Stats.Enabled {
		t.Error("DefaultConfig should enable background tasks")
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestParse_ExpandsEnvAndKeepsValues(t *testing.T) {
	t.Setenv("VIMESTATS_PROXY", "https://corsproxy.io/?")

	cfg, err := Parse([]byte(`
server:
  port: 9090
upstream:
  cors_proxy: ${VIMESTATS_PROXY}
cache:
  player_ttl: 1m
storage:
  backend: redis
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Upstream.CORSProxy != "https://corsproxy.io/?" {
		t.Errorf("Upstream.CORSProxy = %q", cfg.Upstream.CORSProxy)
	}
	if cfg.Cache.PlayerTTL != time.Minute {
		t.Errorf("Cache.PlayerTTL = %v, want 1m", cfg.Cache.PlayerTTL)
	}
	if cfg.Upstream.UserAPIBase != "https://api.vimeworld.com" {
		t.Errorf("Upstream.UserAPIBase default not applied: %q", cfg.Upstream.UserAPIBase)
	}
}

func TestParse_StorageQuota(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  max_value_bytes: 4096\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.MaxValueBytes != 4096 {
		t.Errorf("Storage.MaxValueBytes = %d, want 4096", cfg.Storage.MaxValueBytes)
	}
	if _, err := Parse([]byte("storage:\n  max_value_bytes: -1\n")); err == nil {
		t.Fatal("expected error for negative quota")
	}
}

func TestParse_RejectsUnknownBackend(t *testing.T) {
	if _, err := Parse([]byte("storage:\n  backend: sqlite\n")); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("directory:\n  page_window: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Directory.PageWindow != 7 {
		t.Errorf("Directory.PageWindow = %d, want 7", cfg.Directory.PageWindow)
	}
}
