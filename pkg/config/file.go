package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// applyFile overlays the YAML file at path onto the config. Keys absent
// from the file keep their environment-derived values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
