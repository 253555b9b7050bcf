// Package config loads the project-level configuration stored in the
// metadata directory.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the project configuration, persisted as yaml in the metadata
// directory. CLI flags override it per invocation.
type Config struct {
	// RemoteURL is where push/pull/status synchronize cache entries:
	// an http(s) URL or a filesystem path. Empty means no remote.
	RemoteURL string `yaml:"remote"`
	// Jobs bounds concurrent remote transfers.
	Jobs int `yaml:"jobs"`
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{Jobs: 1}
}

// Load reads and validates the config file at path. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Jobs < 1 {
		return cfg, fmt.Errorf("config: jobs must be a positive integer, got %d", cfg.Jobs)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
