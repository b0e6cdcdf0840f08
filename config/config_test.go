package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldstore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	sc := cfg.Store()
	if sc.DeferCommits {
		t.Error("default config should commit after every write")
	}
	if sc.DefaultDimension != "Physical" {
		t.Errorf("default dimension = %q", sc.DefaultDimension)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
driver: postgres
dsn: postgres://localhost/world
default_commit: false
reciprocal_portals: true
log_level: debug
asset_cache:
  capacity: 50
  num_shards: 5
  ttl: 2m
  eviction_percentage: 10
`)
	t.Setenv("WORLDSTORE_DSN", "postgres://db/other")
	t.Setenv("WORLDSTORE_ASSET_CACHE_CAPACITY", "80")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Driver)
	}
	if cfg.DSN != "postgres://db/other" {
		t.Errorf("env did not override dsn: %q", cfg.DSN)
	}
	if cfg.AssetCache.Capacity != 80 {
		t.Errorf("capacity = %d, want 80", cfg.AssetCache.Capacity)
	}
	if cfg.AssetCache.TTL != 2*time.Minute {
		t.Errorf("ttl = %v", cfg.AssetCache.TTL)
	}
	sc := cfg.Store()
	if !sc.DeferCommits || !sc.ReciprocalPortals {
		t.Errorf("store config = %+v", sc)
	}
	// Unset keys keep their defaults.
	if !cfg.CreateSchema {
		t.Error("create_schema default lost")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != Default().Driver {
		t.Errorf("driver = %q", cfg.Driver)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Driver = "mysql" }, wantErr: "Driver"},
		{name: "missing dsn", mutate: func(c *Config) { c.DSN = "" }, wantErr: "DSN"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LogLevel"},
		{name: "bad cache", mutate: func(c *Config) { c.AssetCache.Capacity = 0 }, wantErr: "asset_cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn")
	if log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	log.Warn("store: rolled back pending writes")
	if !strings.Contains(buf.String(), "rolled back") {
		t.Errorf("output = %q", buf.String())
	}
}
