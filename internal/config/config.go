// Package config handles TOML-based configuration loading and validation.
// Header profiles, proxies and service endpoints are data here, never
// constants inside the strategies that use them.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Debug     bool   `toml:"debug"`
	OutputDir string `toml:"output_dir"`
	Selection string `toml:"selection"`
	History   bool   `toml:"history"`
	WorkDir   string `toml:"work_dir"`
	FFmpeg    string `toml:"ffmpeg"`

	Fetch      Fetch      `toml:"fetch"`
	Profiles   []Profile  `toml:"profiles"`
	Budgets    Budgets    `toml:"budgets"`
	Conversion Conversion `toml:"conversion"`
	Browser    Browser    `toml:"browser"`
	Resolver   Resolver   `toml:"resolver"`
	Navigation Navigation `toml:"navigation"`
}

// Fetch configures plain HTTP page and media fetches.
type Fetch struct {
	Timeout      time.Duration `toml:"timeout"`
	Interval     time.Duration `toml:"interval"` // Minimum gap between requests
	MaxBodyBytes int64         `toml:"max_body_bytes"`
	MaxMedia     int64         `toml:"max_media_bytes"`
}

// Profile is one request header identity. The first profile is used for
// the direct fetch; the rest are rotated through on failure.
type Profile struct {
	Name           string            `toml:"name"`
	UserAgent      string            `toml:"user_agent"`
	Accept         string            `toml:"accept"`
	AcceptLanguage string            `toml:"accept_language"`
	Proxy          string            `toml:"proxy"`
	Headers        map[string]string `toml:"headers"`
}

// Budgets are per strategy timeouts plus one ceiling per goal.
type Budgets struct {
	DirectFetch     time.Duration `toml:"direct_fetch"`
	HeaderVariants  time.Duration `toml:"header_variants"`
	BrowserRender   time.Duration `toml:"browser_render"`
	KeyNavigation   time.Duration `toml:"key_navigation"`
	ImageScan       time.Duration `toml:"image_scan"`
	VideoScan       time.Duration `toml:"video_scan"`
	ResolverService time.Duration `toml:"resolver_service"`
	LocalTranscode  time.Duration `toml:"local_transcode"`
	RemoteConvert   time.Duration `toml:"remote_conversion"`
	Download        time.Duration `toml:"download"`

	Identity time.Duration `toml:"identity"`
	Video    time.Duration `toml:"video"`
	Audio    time.Duration `toml:"audio"`
	Photo    time.Duration `toml:"photo"`
}

// Conversion configures the remote conversion service.
type Conversion struct {
	BaseURL         string        `toml:"base_url"`
	PollInterval    time.Duration `toml:"poll_interval"`
	MaxPolls        int           `toml:"max_polls"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	UploadTimeout   time.Duration `toml:"upload_timeout"`
	DownloadTimeout time.Duration `toml:"download_timeout"`
}

// Browser configures the automation browser.
type Browser struct {
	ExecPath     string        `toml:"exec_path"`
	Headless     bool          `toml:"headless"`
	UserAgent    string        `toml:"user_agent"`
	Proxy        string        `toml:"proxy"`
	Settle       time.Duration `toml:"settle"`
	WindowWidth  int           `toml:"window_width"`
	WindowHeight int           `toml:"window_height"`
}

// Resolver describes the third-party video resolution form.
type Resolver struct {
	URL             string `toml:"url"`
	InputSelector   string `toml:"input_selector"`
	ResultsSelector string `toml:"results_selector"`
	LinkSelector    string `toml:"link_selector"`
}

// Navigation configures the key script that opens a profile photo.
type Navigation struct {
	Tabs   int           `toml:"tabs"`
	Pause  time.Duration `toml:"pause"`
	Settle time.Duration `toml:"settle"`
}

const chromeUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		OutputDir: "~/Downloads/fbzone",
		Selection: "second-best",
		History:   true,
		FFmpeg:    "ffmpeg",
		Fetch: Fetch{
			Timeout:      45 * time.Second,
			Interval:     500 * time.Millisecond,
			MaxBodyBytes: 10 << 20,
			MaxMedia:     1 << 30,
		},
		Profiles: []Profile{
			{
				Name:           "desktop-chrome",
				UserAgent:      chromeUA,
				Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
				AcceptLanguage: "en-US,en;q=0.9",
				Headers: map[string]string{
					"DNT":                       "1",
					"Upgrade-Insecure-Requests": "1",
					"Sec-Fetch-Dest":            "document",
					"Sec-Fetch-Mode":            "navigate",
					"Sec-Fetch-Site":            "none",
					"Cache-Control":             "no-cache",
				},
			},
			{
				Name:           "mobile-safari",
				UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
				Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				AcceptLanguage: "en-US,en;q=0.5",
			},
			{
				Name:           "windows-firefox",
				UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
				Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
				AcceptLanguage: "en-US,en;q=0.5",
			},
		},
		Budgets: Budgets{
			DirectFetch:     45 * time.Second,
			HeaderVariants:  90 * time.Second,
			BrowserRender:   90 * time.Second,
			KeyNavigation:   60 * time.Second,
			ImageScan:       60 * time.Second,
			VideoScan:       150 * time.Second,
			ResolverService: 180 * time.Second,
			LocalTranscode:  300 * time.Second,
			RemoteConvert:   11 * time.Minute,
			Download:        120 * time.Second,
			Identity:        4 * time.Minute,
			Video:           6 * time.Minute,
			Audio:           20 * time.Minute,
			Photo:           8 * time.Minute,
		},
		Conversion: Conversion{
			BaseURL:         "https://videotomp3.onrender.com",
			PollInterval:    5 * time.Second,
			MaxPolls:        60,
			RequestTimeout:  30 * time.Second,
			UploadTimeout:   180 * time.Second,
			DownloadTimeout: 120 * time.Second,
		},
		Browser: Browser{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			Settle:       5 * time.Second,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Resolver: Resolver{
			URL:             "https://snapsave.app/",
			InputSelector:   "#url",
			ResultsSelector: "#download-section",
			LinkSelector:    "#download-section > section > div > div.download-link > div:nth-child(2) > div > table > tbody > tr:nth-child(1) > td:nth-child(3) > a",
		},
		Navigation: Navigation{
			Tabs:   7,
			Pause:  time.Second,
			Settle: 3 * time.Second,
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fbzone"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "fbzone"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// A [[profiles]] array in the file replaces the default set.
	var probe struct {
		Profiles []Profile `toml:"profiles"`
	}
	if _, err := toml.Decode(string(data), &probe); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if len(probe.Profiles) > 0 {
		cfg.Profiles = nil
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	c.Selection = strings.ToLower(strings.TrimSpace(c.Selection))
	switch c.Selection {
	case "", "second-best", "first":
	default:
		return fmt.Errorf("unsupported selection %q (valid: second-best, first)", c.Selection)
	}

	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one header profile is required")
	}
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d has no name", i)
		}
		if p.Proxy != "" {
			if err := validateProxy(p.Proxy); err != nil {
				return fmt.Errorf("profile %s: %w", p.Name, err)
			}
		}
	}
	if c.Browser.Proxy != "" {
		if err := validateProxy(c.Browser.Proxy); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Fetch.Interval < 0 {
		return fmt.Errorf("fetch interval cannot be negative")
	}

	if err := validateServiceURL(c.Conversion.BaseURL); err != nil {
		return fmt.Errorf("conversion base_url: %w", err)
	}
	if c.Conversion.PollInterval <= 0 {
		return fmt.Errorf("conversion poll_interval must be positive")
	}
	if c.Conversion.MaxPolls < 1 {
		return fmt.Errorf("conversion max_polls must be at least 1")
	}

	if err := validateServiceURL(c.Resolver.URL); err != nil {
		return fmt.Errorf("resolver url: %w", err)
	}
	if c.Resolver.InputSelector == "" || c.Resolver.ResultsSelector == "" || c.Resolver.LinkSelector == "" {
		return fmt.Errorf("resolver selectors cannot be empty")
	}

	if c.Navigation.Tabs < 0 || c.Navigation.Tabs > 50 {
		return fmt.Errorf("navigation tabs %d out of range (0-50)", c.Navigation.Tabs)
	}

	return nil
}

func validateProxy(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid proxy URL %q", raw)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
		return nil
	}
	return fmt.Errorf("unsupported proxy scheme %q (valid: http, https, socks5)", u.Scheme)
}

func validateServiceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid URL %q", raw)
	}
	return nil
}

// ExpandOutputDir resolves ~ in the output directory path.
func (c *Config) ExpandOutputDir() (string, error) {
	dir := c.OutputDir
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// HistoryPath returns the path to the history database.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "fbzone", "history.db"), nil
}
