package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Selection != "second-best" {
		t.Errorf("default selection = %q, want second-best", cfg.Selection)
	}
	if !cfg.History {
		t.Error("default history should be true")
	}
	if len(cfg.Profiles) != 3 {
		t.Errorf("default profiles = %d, want 3", len(cfg.Profiles))
	}
	if cfg.Conversion.PollInterval != 5*time.Second || cfg.Conversion.MaxPolls != 60 {
		t.Errorf("default polling = %v x %d, want 5s x 60", cfg.Conversion.PollInterval, cfg.Conversion.MaxPolls)
	}
	if cfg.Navigation.Tabs != 7 {
		t.Errorf("default tabs = %d, want 7", cfg.Navigation.Tabs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"first selection", func(c *Config) { c.Selection = "first" }, false},
		{"invalid selection", func(c *Config) { c.Selection = "best" }, true},
		{"no profiles", func(c *Config) { c.Profiles = nil }, true},
		{"unnamed profile", func(c *Config) { c.Profiles[0].Name = "" }, true},
		{"socks proxy", func(c *Config) { c.Profiles[1].Proxy = "socks5://127.0.0.1:1080" }, false},
		{"bad proxy scheme", func(c *Config) { c.Profiles[1].Proxy = "ftp://127.0.0.1:21" }, true},
		{"proxy without host", func(c *Config) { c.Browser.Proxy = "http://" }, true},
		{"zero fetch timeout", func(c *Config) { c.Fetch.Timeout = 0 }, true},
		{"bad conversion url", func(c *Config) { c.Conversion.BaseURL = "videotomp3" }, true},
		{"zero polls", func(c *Config) { c.Conversion.MaxPolls = 0 }, true},
		{"empty resolver selector", func(c *Config) { c.Resolver.LinkSelector = "" }, true},
		{"too many tabs", func(c *Config) { c.Navigation.Tabs = 100 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNormalizesSelection(t *testing.T) {
	cfg := Default()
	cfg.Selection = " First "
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Selection != "first" {
		t.Errorf("selection = %q, want first", cfg.Selection)
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	content := `
selection = "first"
history = false

[fetch]
timeout = "10s"
interval = "250ms"

[budgets]
identity = "2m"

[conversion]
base_url = "http://127.0.0.1:8080"
max_polls = 12

[[profiles]]
name = "only"
user_agent = "test-agent"
proxy = "http://proxy.local:3128"

[profiles.headers]
DNT = "1"
`
	dir := filepath.Join(tmpDir, "fbzone")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Selection != "first" {
		t.Errorf("selection = %q, want first", cfg.Selection)
	}
	if cfg.History {
		t.Error("history should be false")
	}
	if cfg.Fetch.Timeout != 10*time.Second || cfg.Fetch.Interval != 250*time.Millisecond {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Budgets.Identity != 2*time.Minute {
		t.Errorf("identity ceiling = %v, want 2m", cfg.Budgets.Identity)
	}
	if cfg.Budgets.Audio != Default().Budgets.Audio {
		t.Errorf("unset budget changed: %v", cfg.Budgets.Audio)
	}
	if cfg.Conversion.BaseURL != "http://127.0.0.1:8080" || cfg.Conversion.MaxPolls != 12 {
		t.Errorf("conversion = %+v", cfg.Conversion)
	}
	if len(cfg.Profiles) != 1 {
		t.Fatalf("profiles = %d, want the file's set to replace the defaults", len(cfg.Profiles))
	}
	p := cfg.Profiles[0]
	if p.Name != "only" || p.Proxy != "http://proxy.local:3128" || p.Headers["DNT"] != "1" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte(`selection = "random"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject an unknown selection policy")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.Selection != "second-best" {
		t.Errorf("missing file should return defaults, got selection = %q", cfg.Selection)
	}
}

func TestExpandOutputDir(t *testing.T) {
	cfg := Default()
	cfg.OutputDir = "/tmp/test-downloads"

	dir, err := cfg.ExpandOutputDir()
	if err != nil {
		t.Fatalf("ExpandOutputDir() error: %v", err)
	}
	if dir != "/tmp/test-downloads" {
		t.Errorf("got %q, want /tmp/test-downloads", dir)
	}
}

func TestHistoryPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmpDir)

	path, err := HistoryPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(tmpDir, "fbzone", "history.db"); path != want {
		t.Errorf("HistoryPath() = %q, want %q", path, want)
	}
}
