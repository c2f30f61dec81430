package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// toolFile is the on-disk shape of a declarative tool-definition document.
type toolFile struct {
	Tools []models.ToolDefinition `yaml:"tools"`
}

// LoadFromYAML reads a declarative tool-definition document (spec §4.2,
// §6.5) and builds a Catalog from it. The file groups definitions under a
// top-level `tools:` list.
func LoadFromYAML(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}
	var doc toolFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", path, err)
	}
	return New(doc.Tools)
}

// LoadFromBytes parses a declarative tool-definition document already held
// in memory (used by tests and by callers embedding the config).
func LoadFromBytes(raw []byte) (*Catalog, error) {
	var doc toolFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parsing bytes: %w", err)
	}
	return New(doc.Tools)
}
