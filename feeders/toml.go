package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TomlFeeder reads a TOML file and populates fields tagged `toml`.
type TomlFeeder struct {
	Path string
}

// NewTomlFeeder creates a TomlFeeder reading from the given file.
func NewTomlFeeder(path string) TomlFeeder {
	return TomlFeeder{Path: path}
}

// Feed implements Feeder.
func (f TomlFeeder) Feed(target any) error {
	var values map[string]any
	if _, err := toml.DecodeFile(f.Path, &values); err != nil {
		return fmt.Errorf("toml feeder: %w", err)
	}
	if err := feedMap(values, target, "toml"); err != nil {
		return fmt.Errorf("toml feeder: %w", err)
	}
	return nil
}
