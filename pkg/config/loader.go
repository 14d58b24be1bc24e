package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from a YAML file and environment variables.
// The YAML file path is determined by NOTESYNC_CONFIG_PATH (fallback
// "./notesync.yaml"). If the file does not exist and the path was not set
// explicitly, configuration comes from ENV + defaults only.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("NOTESYNC_CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./notesync.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration produced by struct defaults and any
// NOTESYNC_* environment overrides, without a YAML file. A malformed
// environment value is an error, never a panic.
func Default() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
