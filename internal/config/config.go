package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Results  Results  `yaml:"results"`
	Monitor  Monitor  `yaml:"monitor"`
	Defaults Defaults `yaml:"defaults"`
}

type Results struct {
	// Dir is the root under which timestamped run directories live.
	Dir string `yaml:"dir"`
}

type Monitor struct {
	RefreshIntervalS int   `yaml:"refresh_interval_s"`
	AutoDetect       *bool `yaml:"auto_detect"`
}

type Defaults struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config file, falling back to defaults when it is absent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// AutoDetectEnabled defaults to true when the file does not say.
func (c *Config) AutoDetectEnabled() bool {
	if c.Monitor.AutoDetect == nil {
		return true
	}
	return *c.Monitor.AutoDetect
}

func validate(cfg *Config) error {
	if cfg.Monitor.RefreshIntervalS < 0 {
		return fmt.Errorf("monitor.refresh_interval_s must not be negative")
	}
	if cfg.Defaults.MaxAttempts < 0 {
		return fmt.Errorf("defaults.max_attempts must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "tmp.benchmarks"
	}
	if cfg.Monitor.RefreshIntervalS == 0 {
		cfg.Monitor.RefreshIntervalS = 5
	}
	if cfg.Defaults.MaxAttempts == 0 {
		cfg.Defaults.MaxAttempts = 3
	}
}
