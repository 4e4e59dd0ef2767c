package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Ingest.BatchSize != 5 {
		t.Errorf("default ingest.batchSize = %d, want 5", cfg.Ingest.BatchSize)
	}
	if cfg.Verification.TokenTTL != 24*time.Hour {
		t.Errorf("default verification.tokenTtl = %v, want 24h", cfg.Verification.TokenTTL)
	}
	if cfg.Verification.WindowDuration != 24*time.Hour {
		t.Errorf("default verification.windowDuration = %v, want 24h", cfg.Verification.WindowDuration)
	}
	if cfg.Cleanup.Delay != 10*time.Minute {
		t.Errorf("default cleanup.delay = %v, want 10m", cfg.Cleanup.Delay)
	}
	if got := cfg.RateLimits.Actions["search"]; got.Limit != 10 || got.Window != time.Minute {
		t.Errorf("default search limit = %+v, want {10 1m}", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
bot:
  username: TestBot
  adminIds: [42, 7]
ingest:
  batchSize: 3
  interBatchDelay: 250ms
rateLimits:
  backend: memory
  actions:
    search:
      limit: 5
      window: 60s
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Bot.Username != "TestBot" {
		t.Errorf("bot.username = %q, want TestBot", cfg.Bot.Username)
	}
	if len(cfg.Bot.AdminIDs) != 2 || cfg.Bot.AdminIDs[0] != 42 {
		t.Errorf("bot.adminIds = %v, want [42 7]", cfg.Bot.AdminIDs)
	}
	if cfg.Ingest.BatchSize != 3 {
		t.Errorf("ingest.batchSize = %d, want 3", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.InterBatchDelay != 250*time.Millisecond {
		t.Errorf("ingest.interBatchDelay = %v, want 250ms", cfg.Ingest.InterBatchDelay)
	}
	if got := cfg.RateLimits.Actions["search"]; got.Limit != 5 || got.Window != time.Minute {
		t.Errorf("search limit = %+v, want {5 1m}", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FG_BOT_USERNAME", "EnvBot")
	t.Setenv("FG_BOT_ADMIN_IDS", "1, 2,3")
	t.Setenv("FG_STORAGE_DRIVER", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Bot.Username != "EnvBot" {
		t.Errorf("bot.username = %q, want EnvBot", cfg.Bot.Username)
	}
	if len(cfg.Bot.AdminIDs) != 3 {
		t.Errorf("bot.adminIds = %v, want three entries", cfg.Bot.AdminIDs)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage.driver = %q, want memory", cfg.Storage.Driver)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Ingest.BatchSize = 0 }},
		{"empty bot username", func(c *Config) { c.Bot.Username = "" }},
		{"negative cleanup delay", func(c *Config) { c.Cleanup.Delay = -time.Second }},
		{"unknown storage driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"unknown rate limit backend", func(c *Config) { c.RateLimits.Backend = "etcd" }},
		{"zero action limit", func(c *Config) {
			c.RateLimits.Actions = map[string]ActionLimit{"search": {Limit: 0, Window: time.Minute}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}
