// Package config loads wako-events settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file is not an error.
const DefaultPath = "wako-events.yaml"

// Source names, also used as keys under "sources:" in the YAML file.
const (
	SourceWakoCity   = "wako_city"
	SourceSunAzalea  = "sun_azalea"
	SourceWakoSCI    = "wako_sci"
	SourceWaKosodate = "wa_kosodate"
)

// Renderers for fetching a page.
const (
	RendererHTTP    = "http"
	RendererBrowser = "browser"
)

// SourceNames lists the sources in the order the crawl runs and merges them.
var SourceNames = []string{SourceWakoCity, SourceSunAzalea, SourceWakoSCI, SourceWaKosodate}

// HTTPConfig controls the plain HTTP fetcher.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Retries   uint64        `yaml:"retries"`
}

// BrowserConfig controls the headless Chrome session.
type BrowserConfig struct {
	ExecPath    string        `yaml:"exec_path"`
	Headless    bool          `yaml:"headless"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// SourceConfig configures one source adapter. Not every field applies to
// every source.
type SourceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Renderer string `yaml:"renderer,omitempty"`

	// Months is the number of calendar pages to read (wako_city).
	Months int `yaml:"months,omitempty"`

	// TitleHint is the literal event title searched for on the page (wa_kosodate).
	TitleHint string `yaml:"title_hint,omitempty"`

	// RollForwardYear moves a year-less date in an earlier month to next
	// year instead of the current one (wa_kosodate).
	RollForwardYear bool `yaml:"roll_forward_year,omitempty"`
}

// Config is the full application configuration.
type Config struct {
	Output         string                  `yaml:"output"`
	Bookmarks      string                  `yaml:"bookmarks"`
	LogLevel       string                  `yaml:"log_level"`
	Concurrency    int                     `yaml:"concurrency"`
	AdapterTimeout time.Duration           `yaml:"adapter_timeout"`
	HTTP           HTTPConfig              `yaml:"http"`
	Browser        BrowserConfig           `yaml:"browser"`
	Sources        map[string]SourceConfig `yaml:"sources"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output:         filepath.Join("data", "events.json"),
		Bookmarks:      "~/.local/share/wako-events/bookmarks.json",
		LogLevel:       "info",
		Concurrency:    1,
		AdapterTimeout: 2 * time.Minute,
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "wako-events/1.0 (github.com/pfrederiksen/wako-events)",
			Retries:   2,
		},
		Browser: BrowserConfig{
			Headless:    true,
			WaitTimeout: 15 * time.Second,
			SettleDelay: 2 * time.Second,
		},
		Sources: map[string]SourceConfig{
			SourceWakoCity: {
				Enabled:  true,
				URL:      "https://www.city.wako.lg.jp/event_calendar.html",
				BaseURL:  "https://www.city.wako.lg.jp",
				Renderer: RendererBrowser,
				Months:   3,
			},
			SourceSunAzalea: {
				Enabled:  true,
				URL:      "https://www.sunazalea.or.jp/event/",
				Renderer: RendererHTTP,
			},
			SourceWakoSCI: {
				Enabled:  true,
				URL:      "http://www.wako-sci.or.jp/",
				Renderer: RendererHTTP,
			},
			SourceWaKosodate: {
				Enabled:   true,
				URL:       "https://wa-kosodate.com/25syuunen",
				Renderer:  RendererHTTP,
				TitleHint: "クリスマスこどもフェス",
			},
		},
	}
}

// Load reads path over the defaults. If path is empty DefaultPath is tried;
// a missing default file yields the defaults, a missing explicit file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.merge(data); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays YAML on cfg. Source entries are merged field by field so a
// file may override only "enabled" for a source.
func (c *Config) merge(data []byte) error {
	defaults := make(map[string]SourceConfig, len(c.Sources))
	for name, sc := range c.Sources {
		defaults[name] = sc
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	c.Sources = defaults

	var overlay struct {
		Sources map[string]yaml.Node `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	for name, node := range overlay.Sources {
		sc, known := c.Sources[name]
		if !known {
			return fmt.Errorf("unknown source %q in config", name)
		}
		if err := node.Decode(&sc); err != nil {
			return fmt.Errorf("parsing source %q: %w", name, err)
		}
		c.Sources[name] = sc
	}
	return nil
}

// Validate checks the configuration for values the crawl cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.AdapterTimeout < 0 {
		return fmt.Errorf("adapter_timeout must not be negative")
	}

	for _, name := range SourceNames {
		sc, ok := c.Sources[name]
		if !ok || !sc.Enabled {
			continue
		}
		if err := validateURL(sc.URL); err != nil {
			return fmt.Errorf("source %s: url: %w", name, err)
		}
		if sc.BaseURL != "" {
			if err := validateURL(sc.BaseURL); err != nil {
				return fmt.Errorf("source %s: base_url: %w", name, err)
			}
		}
		switch sc.Renderer {
		case "", RendererHTTP, RendererBrowser:
		default:
			return fmt.Errorf("source %s: invalid renderer %q (must be 'http' or 'browser')", name, sc.Renderer)
		}
		if name == SourceWakoCity {
			if sc.Months < 1 {
				return fmt.Errorf("source %s: months must be at least 1", name)
			}
			if sc.Renderer == RendererHTTP {
				return fmt.Errorf("source %s: the calendar needs the browser renderer", name)
			}
		}
	}
	return nil
}

// Enabled returns the enabled sources, in SourceNames order. If only is not
// empty, sources not named in it are skipped.
func (c *Config) Enabled(only []string) ([]string, error) {
	filter := make(map[string]bool, len(only))
	for _, name := range only {
		if _, ok := c.Sources[name]; !ok {
			return nil, fmt.Errorf("unknown source: %s", name)
		}
		filter[name] = true
	}

	names := make([]string, 0, len(SourceNames))
	for _, name := range SourceNames {
		sc, ok := c.Sources[name]
		if !ok || !sc.Enabled {
			continue
		}
		if len(filter) > 0 && !filter[name] {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}
