package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file, starting from Default()
// so unset sections keep their safe-for-local-runs values (teacher's
// internal/config/loader.go pattern, minus the $include mechanism this
// deployment has no use for).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return LoadFromBytes(raw)
}

// LoadFromBytes parses an in-memory YAML document into a Config, starting
// from Default(). Used by Load and by tests.
func LoadFromBytes(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	return &cfg, nil
}
