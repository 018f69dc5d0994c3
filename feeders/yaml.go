package feeders

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YamlFeeder reads a YAML file and populates fields tagged `yaml`.
type YamlFeeder struct {
	Path string
}

// NewYamlFeeder creates a YamlFeeder reading from the given file.
func NewYamlFeeder(path string) YamlFeeder {
	return YamlFeeder{Path: path}
}

// Feed implements Feeder.
func (f YamlFeeder) Feed(target any) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("yaml feeder: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("yaml feeder: %w", err)
	}
	if err := feedMap(values, target, "yaml"); err != nil {
		return fmt.Errorf("yaml feeder: %w", err)
	}
	return nil
}
