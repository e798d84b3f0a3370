package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Market.Symbol != "NVDA" {
		t.Errorf("Symbol = %q, want default", cfg.Market.Symbol)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chartmorph.toml")
	content := `
[market]
symbol = "AAPL"
update_interval = "2m"

[transition]
duration = "5s"
steps = 60

[cache]
backend = "none"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Market.Symbol != "AAPL" {
		t.Errorf("Symbol = %q", cfg.Market.Symbol)
	}
	if cfg.Market.UpdateInterval.Std() != 2*time.Minute {
		t.Errorf("UpdateInterval = %v", cfg.Market.UpdateInterval.Std())
	}
	if cfg.Transition.Steps != 60 {
		t.Errorf("Steps = %d", cfg.Transition.Steps)
	}
	// Untouched sections keep defaults.
	if cfg.Display.Width != 768 {
		t.Errorf("Width = %d, want default 768", cfg.Display.Width)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Market.Symbol = "" }},
		{"zero interval", func(c *Config) { c.Market.UpdateInterval = 0 }},
		{"zero width", func(c *Config) { c.Display.Width = 0 }},
		{"negative height", func(c *Config) { c.Display.Height = -1 }},
		{"zero fps", func(c *Config) { c.Display.TargetFPS = 0 }},
		{"zero transition steps", func(c *Config) { c.Transition.Steps = 0 }},
		{"no endpoint", func(c *Config) { c.Generation.Endpoint = "" }},
		{"zero generation steps", func(c *Config) { c.Generation.Steps = 0 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }},
		{"bad flow scale", func(c *Config) { c.Flow.PyrScale = 1.5 }},
		{"zero poly n", func(c *Config) { c.Flow.PolyN = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[market\nsymbol="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
