package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources           `yaml:"sources"`
	Companies  map[string]string `yaml:"companies"`
	Clustering Clustering        `yaml:"clustering"`
	Ranking    Ranking           `yaml:"ranking"`
	Schedule   Schedule          `yaml:"schedule"`
	Output     Output            `yaml:"output"`
	Server     Server            `yaml:"server"`
	Logging    Logging           `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed `yaml:"feeds"`
}

// Feed is one configured disclosure or press-release feed. Tier is the
// trust tier the ingestion collaborator assigns to every record from
// this feed.
type Feed struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Tier string `yaml:"tier"`
}

type Clustering struct {
	WindowMinutes       int     `yaml:"window_minutes"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	CooldownMinutes     int     `yaml:"cooldown_minutes"`
}

// Window returns the clustering time window as a duration.
func (c Clustering) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// CooldownWindow returns the cooldown merge window as a duration.
func (c Clustering) CooldownWindow() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

type Ranking struct {
	Preset string `yaml:"preset"`
}

type Schedule struct {
	MorningDigest string `yaml:"morning_digest"`
	EveningDigest string `yaml:"evening_digest"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for kaiji.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "kaiji")
}

// DataDir returns the XDG data directory for kaiji.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "kaiji")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/kaiji/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'kaiji init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Clustering: Clustering{
			WindowMinutes:       30,
			SimilarityThreshold: 0.7,
			CooldownMinutes:     30,
		},
		Ranking: Ranking{Preset: "live-feed"},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG
// default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
