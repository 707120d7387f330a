package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the client's configuration model: API endpoint, session storage,
// dashboard windows, and metrics.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Windows WindowsConfig `yaml:"windows"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type APIConfig struct {
	BaseURL string `yaml:"baseURL"`
	// Access token override. If empty, the session database is consulted,
	// then SNOWBALL_ACCESS_TOKEN.
	AccessToken string `yaml:"accessToken"`
}

type SessionConfig struct {
	DBPath string `yaml:"dbPath"`
}

// WindowsConfig holds the trailing windows each dashboard is scoped to,
// in the wire "7d"/"30d" form.
type WindowsConfig struct {
	Stats          string `yaml:"stats"`
	PlatformImpact string `yaml:"platformImpact"`
	CampaignImpact string `yaml:"campaignImpact"`
	ShareCard      string `yaml:"shareCard"`
	Assists        string `yaml:"assists"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		API:     APIConfig{BaseURL: "http://localhost:8000/api/v1"},
		Session: SessionConfig{DBPath: "./snowball.db"},
		Windows: WindowsConfig{
			Stats:          "7d",
			PlatformImpact: "7d",
			CampaignImpact: "30d",
			ShareCard:      "7d",
			Assists:        "7d",
		},
		Metrics: MetricsConfig{Addr: ""},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("SNOWBALL_API_URL"); v != "" && c.API.BaseURL == "" {
		c.API.BaseURL = v
	}
	if c.API.AccessToken == "" {
		c.API.AccessToken = os.Getenv("SNOWBALL_ACCESS_TOKEN")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("SNOWBALL_METRICS_ADDR")
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
