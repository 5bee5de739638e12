package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Aliases maps raw tool/server names onto the source keys and display names
// used in markers and instructional blocks. Deployments use this to keep keys
// stable when a connector is renamed.
type Aliases struct {
	// SourceKeys maps a tool or MCP server name to a fixed source key. Names
	// absent here fall through to sanitization of the raw name.
	SourceKeys map[string]string `yaml:"source_keys"`
	// DisplayNames maps a source key to the human label shown in
	// instructional blocks.
	DisplayNames map[string]string `yaml:"display_names"`
}

// LoadAliases reads the alias file. A missing path (or empty argument)
// returns an empty alias set; a malformed file is an error.
func LoadAliases(path string) (*Aliases, error) {
	a := &Aliases{
		SourceKeys:   map[string]string{},
		DisplayNames: map[string]string{},
	}
	if path == "" {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return a, nil
		}
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	if err := yaml.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}
	if a.SourceKeys == nil {
		a.SourceKeys = map[string]string{}
	}
	if a.DisplayNames == nil {
		a.DisplayNames = map[string]string{}
	}
	return a, nil
}

// SourceKey returns the configured key for a tool name, or "" when the name
// has no alias.
func (a *Aliases) SourceKey(name string) string {
	return a.SourceKeys[name]
}

// DisplayName returns the configured label for a source key, or "" when there
// is none.
func (a *Aliases) DisplayName(key string) string {
	return a.DisplayNames[key]
}
